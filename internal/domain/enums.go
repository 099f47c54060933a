// Package domain defines the core domain models for the mediator.
package domain

// SessionStatus represents the lifecycle status of a mediation session.
type SessionStatus string

const (
	SessionStatusWaiting   SessionStatus = "waiting"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusFailed    SessionStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusCancelled, SessionStatusFailed:
		return true
	}
	return false
}

// SenderRole identifies who authored a message.
type SenderRole string

const (
	SenderRolePartyA   SenderRole = "party_a"
	SenderRolePartyB   SenderRole = "party_b"
	SenderRoleMediator SenderRole = "mediator"
)

// IsParty reports whether the role is one of the two disputants.
func (r SenderRole) IsParty() bool {
	return r == SenderRolePartyA || r == SenderRolePartyB
}

// Label returns the human readable party label used in documents.
func (r SenderRole) Label() string {
	switch r {
	case SenderRolePartyA:
		return "Party A"
	case SenderRolePartyB:
		return "Party B"
	}
	return "Mediator"
}

// MessageType represents the kind of a message.
type MessageType string

const (
	MessageTypeText               MessageType = "text"
	MessageTypeSystem             MessageType = "system"
	MessageTypeAIResponse         MessageType = "ai_response"
	MessageTypeSettlementProposal MessageType = "settlement_proposal"
)

// Valid reports whether the message type is known.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeSystem, MessageTypeAIResponse, MessageTypeSettlementProposal:
		return true
	}
	return false
}

// EnvelopeStatus represents the persisted status of a signature envelope.
type EnvelopeStatus string

const (
	EnvelopeStatusSent            EnvelopeStatus = "sent"
	EnvelopeStatusPartiallySigned EnvelopeStatus = "partially-signed" // derived, never stored
	EnvelopeStatusCompleted       EnvelopeStatus = "envelope-completed"
	EnvelopeStatusFailed          EnvelopeStatus = "failed"
)

// EnvelopeEventType is the event string delivered by the e-signature provider.
type EnvelopeEventType string

const (
	EnvelopeEventRecipientCompleted EnvelopeEventType = "recipient-completed"
	EnvelopeEventCompleted          EnvelopeEventType = "envelope-completed"
	EnvelopeEventDeclined           EnvelopeEventType = "envelope-declined"
	EnvelopeEventVoided             EnvelopeEventType = "envelope-voided"
)

// Known reports whether the reconciliation service acts on the event.
func (e EnvelopeEventType) Known() bool {
	switch e {
	case EnvelopeEventRecipientCompleted, EnvelopeEventCompleted, EnvelopeEventDeclined, EnvelopeEventVoided:
		return true
	}
	return false
}

// MediatorAction selects the AI mediator prompt.
type MediatorAction string

const (
	MediatorActionSummary              MediatorAction = "summary"
	MediatorActionSettlementSuggestion MediatorAction = "settlement_suggestion"
	MediatorActionProgressAnalysis     MediatorAction = "progress_analysis"
)

// PaymentStatus represents the status of a checkout.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PushEventType is the type of an event pushed to connected clients.
type PushEventType string

const (
	PushEventSessionUpdated  PushEventType = "session_updated"
	PushEventMessageCreated  PushEventType = "message_created"
	PushEventEnvelopeUpdated PushEventType = "envelope_updated"
)

// Category is the dispute category chosen by the classifier.
type Category string

const (
	CategoryEmployment           Category = "employment"
	CategoryLandlordTenant       Category = "landlord_tenant"
	CategoryBusinessPartnership  Category = "business_partnership"
	CategoryConsumerProtection   Category = "consumer_protection"
	CategoryIntellectualProperty Category = "intellectual_property"
	CategoryInsurance            Category = "insurance"
	CategoryConstruction         Category = "construction"
	CategoryFamily               Category = "family"
	CategoryContract             Category = "contract"
	CategoryFinancial            Category = "financial"
	CategoryService              Category = "service"
	CategoryProperty             Category = "property"
)
