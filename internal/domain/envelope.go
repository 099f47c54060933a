package domain

import "time"

// Envelope tracks a settlement routed for e-signature. One per session.
type Envelope struct {
	EnvelopeID   string         `json:"envelope_id"`
	SessionID    string         `json:"session_id"`
	Status       EnvelopeStatus `json:"status"`
	PartyASigned bool           `json:"party_a_signed"`
	PartyBSigned bool           `json:"party_b_signed"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// EffectiveStatus derives partially-signed from the stored status and booleans.
func (e *Envelope) EffectiveStatus() EnvelopeStatus {
	if e.Status == EnvelopeStatusSent && e.PartyASigned != e.PartyBSigned {
		return EnvelopeStatusPartiallySigned
	}
	return e.Status
}

// FullySigned reports whether both parties have signed.
func (e *Envelope) FullySigned() bool {
	return e.PartyASigned && e.PartyBSigned
}

// EnvelopeEvent is a normalized webhook delivery from the e-signature provider.
type EnvelopeEvent struct {
	EnvelopeID  string            `json:"envelope_id"`
	Type        EnvelopeEventType `json:"type"`
	RecipientID string            `json:"recipient_id,omitempty"`
}

// RecipientRole maps provider recipient ids to party slots.
// Party A is always routed as recipient "1" and party B as "2".
func RecipientRole(recipientID string) (SenderRole, bool) {
	switch recipientID {
	case "1":
		return SenderRolePartyA, true
	case "2":
		return SenderRolePartyB, true
	}
	return "", false
}
