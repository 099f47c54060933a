// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// Store defines the interface for data persistence. Every state change is a
// conditional write; the bool result reports whether the guard held.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*domain.Session, error)
	JoinSession(ctx context.Context, code, joinerID string, now time.Time) (bool, error)
	UpdatePositions(ctx context.Context, sessionID, partyA, partyB string, now time.Time) (bool, error)
	UpdatePosition(ctx context.Context, sessionID string, role domain.SenderRole, text string, now time.Time) (bool, error)
	StoreSettlement(ctx context.Context, sessionID string, category domain.Category, aiText, text string, now time.Time) (bool, error)
	AppendEdit(ctx context.Context, sessionID string, role domain.SenderRole, text string, now time.Time) (bool, error)
	SetSettlementAmount(ctx context.Context, sessionID, amount string, now time.Time) (bool, error)
	TransitionStatus(ctx context.Context, sessionID string, from []domain.SessionStatus, to domain.SessionStatus, reason string, now time.Time) (bool, error)
	FinalizeSession(ctx context.Context, sessionID string, now time.Time) (bool, error)
	UpdateStageOverride(ctx context.Context, sessionID string, prevStage, prevProgress, stage, progress int, now time.Time) (bool, error)
	ConfirmPayment(ctx context.Context, sessionID string, now time.Time) (bool, error)
	ClaimEnvelope(ctx context.Context, sessionID string, now time.Time) (bool, error)
	SetPendingEnvelope(ctx context.Context, sessionID, envelopeID string, now time.Time) (bool, error)
	ReleaseEnvelopeClaim(ctx context.Context, sessionID string, now time.Time) error

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.Message, error)

	// Envelope operations
	CreateEnvelope(ctx context.Context, envelope *domain.Envelope) error
	GetEnvelope(ctx context.Context, envelopeID string) (*domain.Envelope, error)
	GetEnvelopeBySession(ctx context.Context, sessionID string) (*domain.Envelope, error)
	MarkRecipientSigned(ctx context.Context, envelopeID string, role domain.SenderRole, now time.Time) (bool, error)
	CompleteEnvelope(ctx context.Context, envelopeID string, now time.Time) (bool, error)
	FailEnvelope(ctx context.Context, envelopeID string, now time.Time) (bool, error)

	// Payment operations
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	GetPayment(ctx context.Context, checkoutID string) (*domain.Payment, error)
	MarkPaymentPaid(ctx context.Context, checkoutID string) (bool, error)

	// Profile operations
	UpsertProfile(ctx context.Context, profile *domain.Profile) error
	GetProfile(ctx context.Context, profileID string) (*domain.Profile, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
