package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session represents one mediation case between two parties.
type Session struct {
	SessionID         string           `json:"session_id"`
	Code              string           `json:"code"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Status            SessionStatus    `json:"status"`
	PartyAID          string           `json:"party_a_id,omitempty"`
	PartyBID          string           `json:"party_b_id,omitempty"`
	CreatedBy         string           `json:"created_by"`
	PartyAPosition    string           `json:"party_a_position,omitempty"`
	PartyBPosition    string           `json:"party_b_position,omitempty"`
	Category          Category         `json:"category,omitempty"`
	AIProposal        string           `json:"-"`
	SettlementText    *string          `json:"settlement_text,omitempty"`
	SettlementAmount  *decimal.Decimal `json:"settlement_amount,omitempty"`
	IsSettled         bool             `json:"is_settled"`
	PartyAEdits       int              `json:"party_a_edits"`
	PartyBEdits       int              `json:"party_b_edits"`
	ManualStage       int              `json:"-"`
	ManualProgress    int              `json:"-"`
	PaymentConfirmed  bool             `json:"payment_confirmed"`
	EnvelopeClaimed   bool             `json:"-"`
	PendingEnvelopeID string           `json:"-"`
	FailureReason     string           `json:"failure_reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// RoleOf resolves a caller identity against the two party slots.
// Callers that occupy neither slot are reported as mediator.
func (s *Session) RoleOf(partyID string) SenderRole {
	switch {
	case partyID == "":
		return SenderRoleMediator
	case partyID == s.PartyAID:
		return SenderRolePartyA
	case partyID == s.PartyBID:
		return SenderRolePartyB
	}
	return SenderRoleMediator
}

// HasPositions reports whether both parties recorded their desired outcome.
func (s *Session) HasPositions() bool {
	return s.PartyAPosition != "" && s.PartyBPosition != ""
}

// HasDocument reports whether a settlement document has been generated.
func (s *Session) HasDocument() bool {
	return s.SettlementText != nil && *s.SettlementText != ""
}

// EditRound returns the derived state of the edit negotiation.
func (s *Session) EditRound() EditRound {
	return EditRound{PartyA: s.PartyAEdits, PartyB: s.PartyBEdits}
}

// PaymentEligible reports whether checkout may start.
func (s *Session) PaymentEligible() bool {
	return s.Status == SessionStatusActive && s.HasDocument() && s.EditRound().Complete()
}

// Profile is the identity collaborator's view of a party.
type Profile struct {
	ProfileID string    `json:"profile_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName falls back to the given label when no name is on file.
func (p *Profile) DisplayName(fallback string) string {
	if p == nil || p.FullName == "" {
		return fallback
	}
	return p.FullName
}

// Payment records a checkout created with the payment provider.
type Payment struct {
	CheckoutID   string        `json:"checkout_id"`
	SessionID    string        `json:"session_id"`
	AmountCents  int64         `json:"amount_cents"`
	DiscountCode string        `json:"discount_code,omitempty"`
	Status       PaymentStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}
