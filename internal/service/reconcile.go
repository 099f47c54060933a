package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// Outcome describes what a webhook event did.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoop    Outcome = "noop"
	OutcomeIgnored Outcome = "ignored"
)

// ApplyEnvelopeEvent folds one provider event into the envelope state. Every
// event is idempotent and the first terminal status wins. Unknown envelopes
// and event types are ignored.
func (s *Service) ApplyEnvelopeEvent(ctx context.Context, ev domain.EnvelopeEvent) (Outcome, error) {
	env, err := s.store.GetEnvelope(ctx, ev.EnvelopeID)
	if err != nil {
		return "", fmt.Errorf("failed to get envelope: %w", err)
	}
	if env == nil {
		log.Warn().Str("envelope_id", ev.EnvelopeID).Str("event", string(ev.Type)).Msg("event for unknown envelope")
		return OutcomeIgnored, nil
	}

	var changed bool
	now := s.now()
	switch ev.Type {
	case domain.EnvelopeEventRecipientCompleted:
		role, ok := domain.RecipientRole(ev.RecipientID)
		if !ok {
			log.Warn().Str("envelope_id", ev.EnvelopeID).Str("recipient_id", ev.RecipientID).Msg("unknown recipient")
			return OutcomeIgnored, nil
		}
		changed, err = s.store.MarkRecipientSigned(ctx, ev.EnvelopeID, role, now)

	case domain.EnvelopeEventCompleted:
		changed, err = s.store.CompleteEnvelope(ctx, ev.EnvelopeID, now)
		if err == nil {
			err = s.finalizeIfCompleted(ctx, ev.EnvelopeID)
		}

	case domain.EnvelopeEventDeclined, domain.EnvelopeEventVoided:
		changed, err = s.store.FailEnvelope(ctx, ev.EnvelopeID, now)

	default:
		log.Warn().Str("envelope_id", ev.EnvelopeID).Str("event", string(ev.Type)).Msg("unhandled envelope event")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to apply %s: %w", ev.Type, err)
	}

	if !changed {
		return OutcomeNoop, nil
	}
	updated, err := s.store.GetEnvelope(ctx, ev.EnvelopeID)
	if err != nil {
		return "", fmt.Errorf("failed to get envelope: %w", err)
	}
	log.Info().Str("envelope_id", ev.EnvelopeID).Str("event", string(ev.Type)).Str("status", string(updated.EffectiveStatus())).Msg("envelope updated")
	s.publish(domain.PushEventEnvelopeUpdated, env.SessionID, updated)
	return OutcomeApplied, nil
}

// finalizeIfCompleted runs Finalize for a completed envelope. It also runs on
// duplicate deliveries, where Finalize is a no-op.
func (s *Service) finalizeIfCompleted(ctx context.Context, envelopeID string) error {
	env, err := s.store.GetEnvelope(ctx, envelopeID)
	if err != nil {
		return fmt.Errorf("failed to get envelope: %w", err)
	}
	if env == nil || env.Status != domain.EnvelopeStatusCompleted {
		return nil
	}
	err = s.Finalize(ctx, env.SessionID)
	if domain.KindOf(err) == domain.KindInvalidTransition {
		log.Warn().Err(err).Str("session_id", env.SessionID).Msg("completed envelope for a session that cannot finalize")
		return nil
	}
	return err
}
