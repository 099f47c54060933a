package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/adapter/esign"
	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/repository"
	"github.com/xiaot623/gogo/mediator/internal/settlement"
	"github.com/xiaot623/gogo/mediator/policy"
)

// CreateEnvelope routes the paid settlement to both parties for signature.
// At most one envelope exists per session; a repeated call returns it.
func (s *Service) CreateEnvelope(ctx context.Context, sessionID, callerID string) (*domain.Envelope, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionCreateEnvelope); err != nil {
		return nil, err
	}
	if existing, err := s.store.GetEnvelopeBySession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get envelope: %w", err)
	} else if existing != nil {
		return existing, nil
	}
	if err := envelopePrecondition(sess); err != nil {
		return nil, rejected("create_envelope", err)
	}

	partyA := s.lookupProfile(ctx, sess.PartyAID)
	partyB := s.lookupProfile(ctx, sess.PartyBID)
	if partyA == nil || partyB == nil || partyA.Email == "" || partyB.Email == "" {
		return nil, domain.Validation("both parties need a profile with an email address")
	}

	now := s.now()
	claimed, err := s.store.ClaimEnvelope(ctx, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim envelope: %w", err)
	}
	if !claimed {
		return s.claimRejected(ctx, sessionID)
	}

	envelopeID, err := s.signatures.CreateEnvelope(ctx, esign.EnvelopeRequest{
		SessionID:    sessionID,
		SessionCode:  sess.Code,
		DocumentText: settlement.EnvelopeDocument(*sess.SettlementText, sess.SettlementAmount),
		PartyA:       esign.Signer{Name: partyA.DisplayName("Party A"), Email: partyA.Email},
		PartyB:       esign.Signer{Name: partyB.DisplayName("Party B"), Email: partyB.Email},
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("envelope creation failed")
		if rerr := s.store.ReleaseEnvelopeClaim(ctx, sessionID, s.now()); rerr != nil {
			log.Error().Err(rerr).Str("session_id", sessionID).Msg("failed to release envelope claim")
		}
		return nil, domain.Upstream("esign", err)
	}

	if ok, err := s.store.SetPendingEnvelope(ctx, sessionID, envelopeID, s.now()); err != nil || !ok {
		log.Warn().Err(err).Str("session_id", sessionID).Str("envelope_id", envelopeID).Msg("failed to record pending envelope")
	}
	return s.recordEnvelope(ctx, sessionID, envelopeID, now)
}

// recordEnvelope stores an envelope the provider has already created. A
// failed insert keeps the claim and the pending id, so the next call resumes here.
func (s *Service) recordEnvelope(ctx context.Context, sessionID, envelopeID string, now time.Time) (*domain.Envelope, error) {
	env := &domain.Envelope{
		EnvelopeID: envelopeID,
		SessionID:  sessionID,
		Status:     domain.EnvelopeStatusSent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateEnvelope(ctx, env); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			if existing, gerr := s.store.GetEnvelopeBySession(ctx, sessionID); gerr == nil && existing != nil {
				return existing, nil
			}
		}
		log.Error().Err(err).Str("session_id", sessionID).Str("envelope_id", envelopeID).Msg("envelope created upstream but not recorded")
		return nil, fmt.Errorf("failed to record envelope: %w", err)
	}

	log.Info().Str("session_id", sessionID).Str("envelope_id", envelopeID).Msg("envelope sent")
	s.publish(domain.PushEventEnvelopeUpdated, sessionID, env)
	s.systemMessage(ctx, sessionID, "The settlement has been sent to both parties for signature.")
	return env, nil
}

func envelopePrecondition(sess *domain.Session) error {
	switch {
	case sess.Status != domain.SessionStatusActive:
		return domain.InvalidTransition("envelopes can only be created for an active session")
	case !sess.HasDocument():
		return domain.InvalidTransition("no settlement document to sign")
	case !sess.EditRound().Complete():
		return domain.InvalidTransition("both parties must complete their edits first")
	case !sess.PaymentConfirmed:
		return domain.InvalidTransition("payment has not been confirmed")
	}
	return nil
}

// claimRejected classifies a lost envelope claim.
func (s *Service) claimRejected(ctx context.Context, sessionID string) (*domain.Envelope, error) {
	existing, err := s.store.GetEnvelopeBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	current, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.EnvelopeClaimed && current.PendingEnvelopeID != "" {
		log.Info().Str("session_id", sessionID).Str("envelope_id", current.PendingEnvelopeID).Msg("resuming unrecorded envelope")
		return s.recordEnvelope(ctx, sessionID, current.PendingEnvelopeID, s.now())
	}
	if err := envelopePrecondition(current); err != nil {
		return nil, rejected("create_envelope", err)
	}
	return nil, rejected("create_envelope", domain.ErrConcurrentUpdate)
}

// GetEnvelope returns the session's envelope.
func (s *Service) GetEnvelope(ctx context.Context, sessionID string) (*domain.Envelope, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	env, err := s.store.GetEnvelopeBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope: %w", err)
	}
	if env == nil {
		return nil, domain.ErrEnvelopeNotFound
	}
	return env, nil
}
