package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/repository"
	"github.com/xiaot623/gogo/mediator/policy"
)

// CreateSession opens a waiting session with the creator in slot A.
func (s *Service) CreateSession(ctx context.Context, creatorID string, req domain.CreateSessionRequest) (*domain.Session, error) {
	if creatorID == "" {
		return nil, domain.Validation("caller identity is required")
	}
	title, err := s.sanitizer.clean("title", req.Title, maxTitleLength)
	if err != nil {
		return nil, err
	}
	description, err := s.sanitizer.clean("description", req.Description, maxContentLength)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &domain.Session{
		SessionID:   uuid.New().String(),
		Title:       title,
		Description: description,
		Status:      domain.SessionStatusWaiting,
		PartyAID:    creatorID,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newSessionCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session code: %w", err)
		}
		sess.Code = code
		err = s.store.CreateSession(ctx, sess)
		if err == nil {
			s.recordTransition(sess.SessionID, sess.Status)
			return sess, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		log.Debug().Str("code", code).Msg("session code collision, retrying")
	}
	return nil, fmt.Errorf("failed to create session: no unique code after %d attempts", codeAttempts)
}

// GetSession retrieves a session by ID.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.loadSession(ctx, sessionID)
}

// GetSessionByCode retrieves a session by its join code.
func (s *Service) GetSessionByCode(ctx context.Context, code string) (*domain.Session, error) {
	sess, err := s.store.GetSessionByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// GetSessionView returns the session with its derived edit round and envelope.
func (s *Service) GetSessionView(ctx context.Context, sessionID string) (*domain.SessionView, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	env, err := s.store.GetEnvelopeBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope: %w", err)
	}
	round := sess.EditRound()
	view := &domain.SessionView{
		Session:         sess,
		EditRound:       round,
		EditsComplete:   round.Complete(),
		PaymentEligible: sess.PaymentEligible(),
		Envelope:        env,
	}
	if env != nil {
		view.EnvelopeStatus = string(env.EffectiveStatus())
	}
	return view, nil
}

// JoinSession places the joiner in slot B and activates the session.
func (s *Service) JoinSession(ctx context.Context, code, joinerID string) (*domain.Session, error) {
	if joinerID == "" {
		return nil, domain.Validation("caller identity is required")
	}
	code = strings.ToUpper(strings.TrimSpace(code))

	ok, err := s.store.JoinSession(ctx, code, joinerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}

	sess, err := s.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ok {
		s.recordTransition(sess.SessionID, domain.SessionStatusActive)
		s.publish(domain.PushEventSessionUpdated, sess.SessionID, sess)
		return sess, nil
	}

	switch {
	case sess.PartyAID == joinerID || sess.PartyBID == joinerID:
		return nil, rejected("join", domain.ErrAlreadyJoined)
	case sess.PartyBID != "":
		return nil, rejected("join", domain.ErrSessionFull)
	case sess.Status != domain.SessionStatusWaiting:
		return nil, rejected("join", domain.InvalidTransition("session is no longer open for joining"))
	}
	return nil, rejected("join", domain.ErrConcurrentUpdate)
}

// RecordPartyPositions stores both positions at once.
func (s *Service) RecordPartyPositions(ctx context.Context, sessionID, callerID, partyA, partyB string) (*domain.Session, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionRecordPosition); err != nil {
		return nil, err
	}
	a, err := s.sanitizer.clean("party_a position", partyA, maxContentLength)
	if err != nil {
		return nil, err
	}
	b, err := s.sanitizer.clean("party_b position", partyB, maxContentLength)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.UpdatePositions(ctx, sessionID, a, b, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update positions: %w", err)
	}
	if !ok {
		return nil, rejected("record_positions", domain.InvalidTransition("positions can only be recorded on an active session"))
	}
	return s.afterSessionWrite(ctx, sessionID)
}

// RecordPartyPosition stores the caller's own position.
func (s *Service) RecordPartyPosition(ctx context.Context, sessionID, callerID, text string) (*domain.Session, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	role, err := s.authorize(ctx, sess, callerID, policy.ActionRecordPosition)
	if err != nil {
		return nil, err
	}
	position, err := s.sanitizer.clean("position", text, maxContentLength)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.UpdatePosition(ctx, sessionID, role, position, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update position: %w", err)
	}
	if !ok {
		return nil, rejected("record_position", domain.InvalidTransition("positions can only be recorded on an active session"))
	}
	return s.afterSessionWrite(ctx, sessionID)
}

// SetSettlementAmount stores a positive amount before payment.
func (s *Service) SetSettlementAmount(ctx context.Context, sessionID, callerID, amount string) (*domain.Session, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !value.IsPositive() {
		return nil, domain.Validation("amount must be a positive decimal")
	}
	value = value.Round(2)

	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionSetAmount); err != nil {
		return nil, err
	}

	ok, err := s.store.SetSettlementAmount(ctx, sessionID, value.StringFixed(2), s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to set settlement amount: %w", err)
	}
	if !ok {
		current, err := s.loadSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if current.PaymentConfirmed {
			return nil, rejected("set_amount", domain.InvalidTransition("amount cannot change after payment"))
		}
		return nil, rejected("set_amount", domain.InvalidTransition("amount can only be set on an active session"))
	}
	return s.afterSessionWrite(ctx, sessionID)
}

// Finalize completes the session once its envelope carries both signatures.
// Calling it on a completed session is a no-op.
func (s *Service) Finalize(ctx context.Context, sessionID string) error {
	ok, err := s.store.FinalizeSession(ctx, sessionID, s.now())
	if err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}
	if ok {
		s.recordTransition(sessionID, domain.SessionStatusCompleted)
		_, err := s.afterSessionWrite(ctx, sessionID)
		return err
	}

	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == domain.SessionStatusCompleted {
		return nil
	}
	if sess.Status != domain.SessionStatusActive {
		return rejected("finalize", domain.InvalidTransition("only an active session can be finalized"))
	}
	return rejected("finalize", domain.InvalidTransition("envelope is not signed by both parties"))
}

// CancelSession cancels a waiting or active session.
func (s *Service) CancelSession(ctx context.Context, sessionID, callerID string) (*domain.Session, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionCancel); err != nil {
		return nil, err
	}
	return s.transition(ctx, sessionID, domain.SessionStatusCancelled, "")
}

// FailSession moves a non-terminal session to failed.
func (s *Service) FailSession(ctx context.Context, sessionID, callerID, reason string) (*domain.Session, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionFail); err != nil {
		return nil, err
	}
	cleaned, err := s.sanitizer.clean("reason", reason, maxReasonLength)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, sessionID, domain.SessionStatusFailed, cleaned)
}

func (s *Service) transition(ctx context.Context, sessionID string, to domain.SessionStatus, reason string) (*domain.Session, error) {
	from := []domain.SessionStatus{domain.SessionStatusWaiting, domain.SessionStatusActive}
	ok, err := s.store.TransitionStatus(ctx, sessionID, from, to, reason, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}
	if !ok {
		return nil, rejected(string(to), domain.InvalidTransition("session has already ended"))
	}
	s.recordTransition(sessionID, to)
	return s.afterSessionWrite(ctx, sessionID)
}

// afterSessionWrite re-reads the session and notifies subscribers.
func (s *Service) afterSessionWrite(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.publish(domain.PushEventSessionUpdated, sessionID, sess)
	return sess, nil
}
