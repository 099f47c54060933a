package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/policy"
)

// SubmitEdit appends the caller's labeled edit to the settlement document.
// Each party gets two edits; order between the parties is not enforced.
func (s *Service) SubmitEdit(ctx context.Context, sessionID, callerID, text string) (*domain.Session, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	role, err := s.authorize(ctx, sess, callerID, policy.ActionEdit)
	if err != nil {
		return nil, err
	}
	edit, err := s.sanitizer.clean("edit", text, maxContentLength)
	if err != nil {
		return nil, err
	}
	if err := editPrecondition(sess, role); err != nil {
		return nil, rejected("edit", err)
	}

	ok, err := s.store.AppendEdit(ctx, sessionID, role, edit, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to append edit: %w", err)
	}
	if !ok {
		current, err := s.loadSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := editPrecondition(current, role); err != nil {
			return nil, rejected("edit", err)
		}
		return nil, rejected("edit", domain.ErrConcurrentUpdate)
	}

	updated, err := s.afterSessionWrite(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	round := updated.EditRound()
	log.Info().Str("session_id", sessionID).Str("role", string(role)).Int("count", round.Count(role)).Msg("edit appended")
	if round.Complete() {
		s.systemMessage(ctx, sessionID, "Both parties have completed their edits. The settlement is ready for payment.")
	}
	return updated, nil
}

func editPrecondition(sess *domain.Session, role domain.SenderRole) error {
	switch {
	case sess.Status != domain.SessionStatusActive:
		return domain.InvalidTransition("edits are only accepted on an active session")
	case !sess.HasDocument():
		return domain.InvalidTransition("no settlement document to edit")
	case !sess.EditRound().CanEdit(role):
		return domain.ErrEditLimit
	}
	return nil
}
