package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

const envelopeColumns = `envelope_id, session_id, status, party_a_signed, party_b_signed, completed_at, created_at, updated_at`

func scanEnvelope(row rowScanner) (*domain.Envelope, error) {
	var env domain.Envelope
	var a, b int
	var completedAt sql.NullTime
	if err := row.Scan(&env.EnvelopeID, &env.SessionID, &env.Status, &a, &b, &completedAt, &env.CreatedAt, &env.UpdatedAt); err != nil {
		return nil, err
	}
	env.PartyASigned = a == 1
	env.PartyBSigned = b == 1
	if completedAt.Valid {
		env.CompletedAt = &completedAt.Time
	}
	return &env, nil
}

// CreateEnvelope records a newly created provider envelope.
func (s *SQLiteStore) CreateEnvelope(ctx context.Context, envelope *domain.Envelope) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO envelopes (envelope_id, session_id, status, party_a_signed, party_b_signed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		envelope.EnvelopeID, envelope.SessionID, envelope.Status,
		boolInt(envelope.PartyASigned), boolInt(envelope.PartyBSigned), envelope.CreatedAt, envelope.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetEnvelope retrieves an envelope by provider id.
func (s *SQLiteStore) GetEnvelope(ctx context.Context, envelopeID string) (*domain.Envelope, error) {
	env, err := scanEnvelope(s.db.QueryRowContext(ctx,
		`SELECT `+envelopeColumns+` FROM envelopes WHERE envelope_id = ?`, envelopeID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return env, err
}

// GetEnvelopeBySession retrieves the envelope of a session.
func (s *SQLiteStore) GetEnvelopeBySession(ctx context.Context, sessionID string) (*domain.Envelope, error) {
	env, err := scanEnvelope(s.db.QueryRowContext(ctx,
		`SELECT `+envelopeColumns+` FROM envelopes WHERE session_id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return env, err
}

// MarkRecipientSigned sets one party's signed flag. Flags only ever go from
// false to true, and a failed envelope is left alone.
func (s *SQLiteStore) MarkRecipientSigned(ctx context.Context, envelopeID string, role domain.SenderRole, now time.Time) (bool, error) {
	column, err := partyColumn(role, "signed")
	if err != nil {
		return false, err
	}
	return affected(s.db.ExecContext(ctx,
		`UPDATE envelopes SET `+column+` = 1, updated_at = ?
		 WHERE envelope_id = ? AND status <> 'failed' AND `+column+` = 0`,
		now, envelopeID))
}

// CompleteEnvelope forces both flags, stamps completion once and marks the
// envelope completed. A failed envelope stays failed.
func (s *SQLiteStore) CompleteEnvelope(ctx context.Context, envelopeID string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE envelopes SET status = 'envelope-completed', party_a_signed = 1, party_b_signed = 1,
			completed_at = COALESCE(completed_at, ?), updated_at = ?
		 WHERE envelope_id = ? AND status = 'sent'`,
		now, now, envelopeID))
}

// FailEnvelope marks a sent envelope failed. Signed flags are untouched.
func (s *SQLiteStore) FailEnvelope(ctx context.Context, envelopeID string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE envelopes SET status = 'failed', updated_at = ? WHERE envelope_id = ? AND status = 'sent'`,
		now, envelopeID))
}
