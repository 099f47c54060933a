package esign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// SignatureHeader carries the HMAC of the webhook body.
const SignatureHeader = "X-DocuSign-Signature-1"

var (
	ErrMalformedEvent = errors.New("malformed envelope event")
	ErrBadSignature   = errors.New("envelope webhook signature mismatch")
)

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		EnvelopeID  string `json:"envelopeId"`
		RecipientID string `json:"recipientId"`
	} `json:"data"`
}

// ParseEvent decodes a provider webhook into a normalized event.
func ParseEvent(body []byte) (*domain.EnvelopeEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, ErrMalformedEvent
	}
	if p.Event == "" || p.Data.EnvelopeID == "" {
		return nil, ErrMalformedEvent
	}
	return &domain.EnvelopeEvent{
		EnvelopeID:  p.Data.EnvelopeID,
		Type:        domain.EnvelopeEventType(p.Event),
		RecipientID: p.Data.RecipientID,
	}, nil
}

// VerifySignature checks the base64 HMAC-SHA256 of body. An empty secret
// disables verification.
func VerifySignature(body []byte, header, secret string) error {
	if secret == "" {
		return nil
	}
	if !hmac.Equal([]byte(header), []byte(Sign(body, secret))) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
