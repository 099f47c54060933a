package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

const sessionColumns = `session_id, code, title, description, status, party_a_id, party_b_id, created_by,
	party_a_position, party_b_position, category, ai_proposal, settlement_text, settlement_amount,
	is_settled, party_a_edits, party_b_edits, manual_stage, manual_progress, payment_confirmed,
	envelope_requested, pending_envelope_id, failure_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var partyA, partyB, posA, posB, category, proposal, text, amount, pending, reason sql.NullString
	var settled, paid, claimed int
	err := row.Scan(&sess.SessionID, &sess.Code, &sess.Title, &sess.Description, &sess.Status,
		&partyA, &partyB, &sess.CreatedBy, &posA, &posB, &category, &proposal, &text, &amount,
		&settled, &sess.PartyAEdits, &sess.PartyBEdits, &sess.ManualStage, &sess.ManualProgress,
		&paid, &claimed, &pending, &reason, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.PartyAID = partyA.String
	sess.PartyBID = partyB.String
	sess.PartyAPosition = posA.String
	sess.PartyBPosition = posB.String
	sess.Category = domain.Category(category.String)
	sess.AIProposal = proposal.String
	sess.FailureReason = reason.String
	sess.PendingEnvelopeID = pending.String
	if text.Valid {
		sess.SettlementText = &text.String
	}
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("invalid settlement amount %q: %w", amount.String, err)
		}
		sess.SettlementAmount = &d
	}
	sess.IsSettled = settled == 1
	sess.PaymentConfirmed = paid == 1
	sess.EnvelopeClaimed = claimed == 1
	return &sess, nil
}

// CreateSession creates a new session. A code collision returns ErrDuplicate.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, code, title, description, status, party_a_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.Code, session.Title, session.Description, session.Status,
		nullString(session.PartyAID), session.CreatedBy, session.CreatedAt, session.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// GetSessionByCode retrieves a session by its join code.
func (s *SQLiteStore) GetSessionByCode(ctx context.Context, code string) (*domain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE code = ?`, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// JoinSession fills the party B slot and activates the session in one
// conditional write. Only one concurrent joiner can succeed.
func (s *SQLiteStore) JoinSession(ctx context.Context, code, joinerID string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET party_b_id = ?, status = 'active', updated_at = ?
		 WHERE code = ? AND status = 'waiting' AND party_b_id IS NULL AND party_a_id <> ?`,
		joinerID, now, code, joinerID))
}

// UpdatePositions stores both party positions on an active session.
func (s *SQLiteStore) UpdatePositions(ctx context.Context, sessionID, partyA, partyB string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET party_a_position = ?, party_b_position = ?, updated_at = ?
		 WHERE session_id = ? AND status = 'active'`,
		partyA, partyB, now, sessionID))
}

// UpdatePosition stores one party's position on an active session.
func (s *SQLiteStore) UpdatePosition(ctx context.Context, sessionID string, role domain.SenderRole, text string, now time.Time) (bool, error) {
	column, err := partyColumn(role, "position")
	if err != nil {
		return false, err
	}
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET `+column+` = ?, updated_at = ? WHERE session_id = ? AND status = 'active'`,
		text, now, sessionID))
}

// StoreSettlement overwrites the generated document. The write is refused
// once any edit has been appended.
func (s *SQLiteStore) StoreSettlement(ctx context.Context, sessionID string, category domain.Category, aiText, text string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET category = ?, ai_proposal = ?, settlement_text = ?, updated_at = ?
		 WHERE session_id = ? AND status = 'active' AND party_a_edits = 0 AND party_b_edits = 0`,
		category, aiText, text, now, sessionID))
}

// AppendEdit appends a labeled edit entry and increments the party's counter
// in one statement, guarded by the per-party cap.
func (s *SQLiteStore) AppendEdit(ctx context.Context, sessionID string, role domain.SenderRole, text string, now time.Time) (bool, error) {
	column, err := partyColumn(role, "edits")
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(
		`UPDATE sessions SET settlement_text = settlement_text || ? || ? || (%[1]s + 1) || ': ' || ?,
		 %[1]s = %[1]s + 1, updated_at = ?
		 WHERE session_id = ? AND status = 'active' AND settlement_text IS NOT NULL AND %[1]s < ?`, column)
	return affected(s.db.ExecContext(ctx, query,
		domain.EditSeparator, role.Label()+" Edit ", text, now, sessionID, domain.MaxEditsPerParty))
}

// SetSettlementAmount stores the amount while the session is active and unpaid.
func (s *SQLiteStore) SetSettlementAmount(ctx context.Context, sessionID, amount string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET settlement_amount = ?, updated_at = ?
		 WHERE session_id = ? AND status = 'active' AND payment_confirmed = 0`,
		amount, now, sessionID))
}

// TransitionStatus moves a session to the target status when its current
// status is one of from.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, sessionID string, from []domain.SessionStatus, to domain.SessionStatus, reason string, now time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	placeholders := make([]string, len(from))
	args := []any{to, nullString(reason), now, sessionID}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, st)
	}
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, failure_reason = COALESCE(?, failure_reason), updated_at = ?
		 WHERE session_id = ? AND status IN (`+strings.Join(placeholders, ", ")+`)`,
		args...))
}

// FinalizeSession completes an active session whose envelope carries both signatures.
func (s *SQLiteStore) FinalizeSession(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'completed', is_settled = 1, updated_at = ?
		 WHERE session_id = ? AND status = 'active' AND EXISTS (
			SELECT 1 FROM envelopes e
			WHERE e.session_id = sessions.session_id AND e.party_a_signed = 1 AND e.party_b_signed = 1
		 )`,
		now, sessionID))
}

// UpdateStageOverride replaces the analyzer override if it still holds the
// values the caller read.
func (s *SQLiteStore) UpdateStageOverride(ctx context.Context, sessionID string, prevStage, prevProgress, stage, progress int, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET manual_stage = ?, manual_progress = ?, updated_at = ?
		 WHERE session_id = ? AND status = 'active' AND manual_stage = ? AND manual_progress = ?`,
		stage, progress, now, sessionID, prevStage, prevProgress))
}

// ConfirmPayment flips the payment flag once.
func (s *SQLiteStore) ConfirmPayment(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET payment_confirmed = 1, updated_at = ?
		 WHERE session_id = ? AND payment_confirmed = 0`,
		now, sessionID))
}

// ClaimEnvelope reserves the right to create the session's envelope.
func (s *SQLiteStore) ClaimEnvelope(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET envelope_requested = 1, updated_at = ?
		 WHERE session_id = ? AND status = 'active' AND payment_confirmed = 1 AND envelope_requested = 0
		   AND party_a_edits >= ? AND party_b_edits >= ?`,
		now, sessionID, domain.MaxEditsPerParty, domain.MaxEditsPerParty))
}

// SetPendingEnvelope records the provider envelope created under a held claim,
// so a retry can finish recording it without calling the provider again.
func (s *SQLiteStore) SetPendingEnvelope(ctx context.Context, sessionID, envelopeID string, now time.Time) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE sessions SET pending_envelope_id = ?, updated_at = ?
		 WHERE session_id = ? AND envelope_requested = 1`,
		envelopeID, now, sessionID))
}

// ReleaseEnvelopeClaim undoes a claim after a failed provider call.
func (s *SQLiteStore) ReleaseEnvelopeClaim(ctx context.Context, sessionID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET envelope_requested = 0, pending_envelope_id = NULL, updated_at = ?
		 WHERE session_id = ? AND NOT EXISTS (SELECT 1 FROM envelopes e WHERE e.session_id = sessions.session_id)`,
		now, sessionID)
	return err
}

// partyColumn maps a role to one of the whitelisted per-party columns.
func partyColumn(role domain.SenderRole, suffix string) (string, error) {
	switch role {
	case domain.SenderRolePartyA:
		return "party_a_" + suffix, nil
	case domain.SenderRolePartyB:
		return "party_b_" + suffix, nil
	}
	return "", fmt.Errorf("role %q has no %s column", role, suffix)
}
