// Package esign routes settlement documents for electronic signature.
package esign

import "context"

// Signer is one recipient of an envelope.
type Signer struct {
	Name  string
	Email string
}

// EnvelopeRequest describes a two-signer envelope.
type EnvelopeRequest struct {
	SessionID    string
	SessionCode  string
	DocumentText string
	PartyA       Signer
	PartyB       Signer
}

// Provider creates signature envelopes and returns the provider envelope id.
type Provider interface {
	CreateEnvelope(ctx context.Context, req EnvelopeRequest) (string, error)
}
