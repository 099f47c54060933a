package domain

import "fmt"

// MaxEditsPerParty is the number of edits each party may append.
const MaxEditsPerParty = 2

// EditRound is the derived state of the bounded edit negotiation.
type EditRound struct {
	PartyA int `json:"party_a"`
	PartyB int `json:"party_b"`
}

// Count returns the edit count of the given party.
func (r EditRound) Count(role SenderRole) int {
	if role == SenderRolePartyB {
		return r.PartyB
	}
	return r.PartyA
}

// CanEdit reports whether the party is still below the cap.
// Turns do not alternate: a party may use both edits before the other starts.
func (r EditRound) CanEdit(role SenderRole) bool {
	return role.IsParty() && r.Count(role) < MaxEditsPerParty
}

// Complete reports whether both parties used all of their edits.
func (r EditRound) Complete() bool {
	return r.PartyA >= MaxEditsPerParty && r.PartyB >= MaxEditsPerParty
}

// Started reports whether any edit has been appended.
func (r EditRound) Started() bool {
	return r.PartyA > 0 || r.PartyB > 0
}

// FormatEditEntry renders the labeled entry appended to the settlement document.
func FormatEditEntry(role SenderRole, n int, text string) string {
	return fmt.Sprintf("%s Edit %d: %s", role.Label(), n, text)
}

// EditSeparator separates the document from each appended edit.
const EditSeparator = "\n\n"
