package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/settlement"
	"github.com/xiaot623/gogo/mediator/policy"
)

const settlementSystemPrompt = `You are an AI mediator specializing in settlement negotiations. Propose fair, balanced settlement terms based on the dispute and both parties' positions.

Guidelines:
- Propose specific, actionable settlement terms
- Consider both parties' interests and concerns
- Be realistic about outcomes
- Include clear deadlines and next steps for implementation`

// GenerateSettlement asks the AI provider for terms, classifies the dispute and
// stores the assembled document. Regeneration overwrites until the first edit.
func (s *Service) GenerateSettlement(ctx context.Context, sessionID, callerID string) (*domain.Session, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionGenerateSettlement); err != nil {
		return nil, err
	}
	if err := settlementPrecondition(sess); err != nil {
		return nil, rejected("generate_settlement", err)
	}

	partyA := s.displayName(ctx, sess.PartyAID, domain.SenderRolePartyA.Label())
	partyB := s.displayName(ctx, sess.PartyBID, domain.SenderRolePartyB.Label())

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Dispute: %s\nContext: %s\n\n", sess.Title, sess.Description)
	fmt.Fprintf(&prompt, "%s position: %s\n%s position: %s\n\n", partyA, sess.PartyAPosition, partyB, sess.PartyBPosition)
	prompt.WriteString("Provide a specific settlement proposal with its rationale, the benefit to each party and the implementation steps.")

	aiText, err := s.generator.Generate(ctx, settlementSystemPrompt, prompt.String())
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("settlement generation failed")
		return nil, domain.Upstream("ai", err)
	}

	category := settlement.Classify(sess.Title, sess.Description)
	text := settlement.Assemble(settlement.Input{
		Category:      category,
		CaseReference: sess.Code,
		Date:          s.now(),
		Title:         sess.Title,
		Description:   sess.Description,
		PartyA:        partyA,
		PartyB:        partyB,
		AIText:        aiText,
	})

	ok, err := s.store.StoreSettlement(ctx, sessionID, category, aiText, text, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to store settlement: %w", err)
	}
	if !ok {
		current, err := s.loadSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := settlementPrecondition(current); err != nil {
			return nil, rejected("generate_settlement", err)
		}
		return nil, rejected("generate_settlement", domain.ErrConcurrentUpdate)
	}

	log.Info().Str("session_id", sessionID).Str("category", string(category)).Msg("settlement generated")
	return s.afterSessionWrite(ctx, sessionID)
}

func settlementPrecondition(sess *domain.Session) error {
	switch {
	case sess.Status != domain.SessionStatusActive:
		return domain.InvalidTransition("settlement can only be generated on an active session")
	case !sess.HasPositions():
		return domain.InvalidTransition("both parties must record their positions first")
	case sess.EditRound().Started():
		return domain.InvalidTransition("settlement cannot be regenerated once edits exist")
	}
	return nil
}

// SettlementDocument returns the current document text and its download name.
func (s *Service) SettlementDocument(ctx context.Context, sessionID string) (string, string, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	if !sess.HasDocument() {
		return "", "", domain.NewError(domain.KindNotFound, "settlement_not_found", "no settlement document has been generated")
	}
	return *sess.SettlementText, settlement.Filename(sess.Code), nil
}
