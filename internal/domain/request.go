package domain

// CreateSessionRequest opens a new mediation session.
type CreateSessionRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
}

// JoinSessionRequest joins a waiting session by its code.
type JoinSessionRequest struct {
	Code string `json:"code" validate:"required,len=8,alphanum"`
}

// PositionsRequest records party positions. When both fields are set the
// caller records both; otherwise Position is recorded for the caller's slot.
type PositionsRequest struct {
	PartyA   string `json:"party_a" validate:"omitempty,max=5000"`
	PartyB   string `json:"party_b" validate:"omitempty,max=5000"`
	Position string `json:"position" validate:"omitempty,max=5000"`
}

// AmountRequest sets the settlement amount as a decimal string.
type AmountRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

// EditRequest appends a party edit to the settlement document.
type EditRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// FailRequest moves a session to failed with an operator reason.
type FailRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CreateMessageRequest appends a message to the session log.
type CreateMessageRequest struct {
	Content     string      `json:"content" validate:"required,max=5000"`
	MessageType MessageType `json:"message_type" validate:"omitempty,oneof=text system ai_response settlement_proposal"`
}

// MediatorRequest asks the AI mediator for a contribution.
type MediatorRequest struct {
	Action MediatorAction `json:"action" validate:"required,oneof=summary settlement_suggestion progress_analysis"`
}

// CheckoutRequest starts payment for a settlement.
type CheckoutRequest struct {
	DiscountCode string `json:"discount_code" validate:"omitempty,max=32"`
}

// CheckoutResponse carries the provider redirect.
type CheckoutResponse struct {
	CheckoutID  string `json:"checkout_id"`
	RedirectURL string `json:"redirect_url"`
	AmountCents int64  `json:"amount_cents"`
}

// ProfileRequest provisions a party profile.
type ProfileRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
}

// SessionView is the session plus its derived sub-state.
type SessionView struct {
	*Session
	EditRound       EditRound `json:"edit_round"`
	EditsComplete   bool      `json:"edits_complete"`
	PaymentEligible bool      `json:"payment_eligible"`
	Envelope        *Envelope `json:"envelope,omitempty"`
	EnvelopeStatus  string    `json:"envelope_status,omitempty"`
}

// PushEvent is delivered to websocket subscribers of a session.
type PushEvent struct {
	Type      PushEventType `json:"type"`
	SessionID string        `json:"session_id"`
	Ts        int64         `json:"ts"`
	Data      any           `json:"data,omitempty"`
}
