package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/policy"
)

// PostMessage appends a party message to the session log.
func (s *Service) PostMessage(ctx context.Context, sessionID, callerID string, req domain.CreateMessageRequest) (*domain.Message, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	role, err := s.authorize(ctx, sess, callerID, policy.ActionPostMessage)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, rejected("post_message", domain.InvalidTransition("session has ended"))
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if msgType != domain.MessageTypeText && msgType != domain.MessageTypeSettlementProposal {
		return nil, domain.Validation("message_type is reserved for the mediator")
	}
	content, err := s.sanitizer.clean("content", req.Content, maxContentLength)
	if err != nil {
		return nil, err
	}

	return s.appendMessage(ctx, &domain.Message{
		SessionID:   sessionID,
		SenderID:    callerID,
		SenderRole:  role,
		Content:     content,
		MessageType: msgType,
	})
}

// GetMessages retrieves the session log in order.
func (s *Service) GetMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.Message, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.store.GetMessages(ctx, sessionID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

func (s *Service) appendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	msg.CreatedAt = s.now()
	msg.MessageID = s.ids.next(msg.CreatedAt)
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	s.publish(domain.PushEventMessageCreated, msg.SessionID, msg)
	return msg, nil
}

// systemMessage records a notice in the log. Failures are logged only.
func (s *Service) systemMessage(ctx context.Context, sessionID, content string) {
	_, err := s.appendMessage(ctx, &domain.Message{
		SessionID:   sessionID,
		SenderRole:  domain.SenderRoleMediator,
		Content:     content,
		MessageType: domain.MessageTypeSystem,
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to record system message")
	}
}
