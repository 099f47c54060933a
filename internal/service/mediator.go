package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/analysis"
	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/policy"
)

const progressWindow = 10

type mediatorPrompt struct {
	system string
	user   string
}

var mediatorPrompts = map[domain.MediatorAction]mediatorPrompt{
	domain.MediatorActionSummary: {
		system: `You are a neutral AI mediator. Summarize dispute conversations without bias, identify the key issues of both parties, highlight potential agreement and suggest constructive next steps in calm, professional language.`,
		user: `Summarize this mediation session.

Dispute: %s
Description: %s

Conversation (%d messages):
%s

Cover the current status, each party's key concerns, areas of potential agreement and recommended next steps.`,
	},
	domain.MediatorActionSettlementSuggestion: {
		system: settlementSystemPrompt,
		user: `Suggest a fair settlement proposal for this mediation session.

Dispute: %s
Context: %s

Conversation (%d messages):
%s

Provide a specific proposal, its rationale, the benefits for both parties and the implementation steps.`,
	},
	domain.MediatorActionProgressAnalysis: {
		system: `You are an AI mediator analyzing mediation progress. Evaluate the conversation flow and report how far the parties are from a resolution.`,
		user: `Analyze the progress of this mediation session.

Dispute: %s
Description: %s

Recent conversation (%d messages in total):
%s

Assess the progress level from 1 to 10, the cooperation between the parties, the remaining obstacles and recommended interventions.`,
	},
}

// RequestMediator asks the AI mediator for a contribution and records it in
// the log as a mediator message.
func (s *Service) RequestMediator(ctx context.Context, sessionID, callerID string, action domain.MediatorAction) (*domain.Message, error) {
	prompt, ok := mediatorPrompts[action]
	if !ok {
		return nil, domain.Validation("unknown mediator action")
	}
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionRequestMediator); err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, rejected("request_mediator", domain.InvalidTransition("session has ended"))
	}

	messages, err := s.GetMessages(ctx, sessionID, 0, "")
	if err != nil {
		return nil, err
	}
	window := messages
	if action == domain.MediatorActionProgressAnalysis && len(window) > progressWindow {
		window = window[len(window)-progressWindow:]
	}
	transcript := analysis.Transcript(window)
	if transcript == "" {
		transcript = "No messages yet"
	}

	user := fmt.Sprintf(prompt.user, sess.Title, sess.Description, len(messages), transcript)
	content, err := s.generator.Generate(ctx, prompt.system, user)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Str("action", string(action)).Msg("mediator request failed")
		return nil, domain.Upstream("ai", err)
	}

	return s.appendMessage(ctx, &domain.Message{
		SessionID:   sessionID,
		SenderRole:  domain.SenderRoleMediator,
		Content:     content,
		MessageType: domain.MessageTypeAIResponse,
	})
}
