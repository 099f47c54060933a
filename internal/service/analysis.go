package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/analysis"
	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/policy"
)

// ConversationReport is the analyzer projection plus advisory guidance.
type ConversationReport struct {
	analysis.Metrics
	Recommendations []string `json:"recommendations"`
}

const extractionSystemPrompt = `You extract structured information from mediation conversations. Reply with a single JSON object and nothing else, using the keys "dispute_type" (string), "key_issues" (array of strings), "positions" (object with "party_a" and "party_b" strings) and "proposed_solutions" (array of strings).`

// GetConversationReport derives metrics from the current log and override.
func (s *Service) GetConversationReport(ctx context.Context, sessionID string) (*ConversationReport, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	messages, err := s.GetMessages(ctx, sessionID, 0, "")
	if err != nil {
		return nil, err
	}
	return report(analysis.Analyze(messages, overrideOf(sess))), nil
}

// AdvanceStage moves the effective stage one step forward. At the final stage
// it is a no-op. A concurrent advance reports ErrConcurrentUpdate.
func (s *Service) AdvanceStage(ctx context.Context, sessionID, callerID string) (*ConversationReport, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionAdvanceStage); err != nil {
		return nil, err
	}
	if sess.Status != domain.SessionStatusActive {
		return nil, rejected("advance_stage", domain.InvalidTransition("stage can only advance on an active session"))
	}
	messages, err := s.GetMessages(ctx, sessionID, 0, "")
	if err != nil {
		return nil, err
	}

	prev := overrideOf(sess)
	current := analysis.Analyze(messages, prev)
	next, ok := analysis.Advance(current)
	if !ok {
		return report(current), nil
	}

	applied, err := s.store.UpdateStageOverride(ctx, sessionID, prev.StageRank, prev.Progress, next.StageRank, next.Progress, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update stage override: %w", err)
	}
	if !applied {
		latest, err := s.loadSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if latest.Status != domain.SessionStatusActive {
			return nil, rejected("advance_stage", domain.InvalidTransition("stage can only advance on an active session"))
		}
		return nil, rejected("advance_stage", domain.ErrConcurrentUpdate)
	}

	result := report(analysis.Analyze(messages, next))
	log.Info().Str("session_id", sessionID).Str("stage", string(result.CurrentStage)).Int("progress", result.ProgressScore).Msg("stage advanced")
	s.publish(domain.PushEventSessionUpdated, sessionID, result)
	return result, nil
}

// ExtractInfo returns advisory structured information about the dispute.
// Short logs and AI failures use the keyword extractor.
func (s *Service) ExtractInfo(ctx context.Context, sessionID string) (*analysis.Info, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.GetMessages(ctx, sessionID, 0, "")
	if err != nil {
		return nil, err
	}
	if len(messages) < analysis.AIExtractionThreshold {
		info := analysis.ExtractKeywords(messages)
		return &info, nil
	}

	info, err := s.extractWithAI(ctx, messages)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("ai extraction failed, using keywords")
		fallback := analysis.ExtractKeywords(messages)
		return &fallback, nil
	}
	return info, nil
}

func (s *Service) extractWithAI(ctx context.Context, messages []domain.Message) (*analysis.Info, error) {
	raw, err := s.generator.Generate(ctx, extractionSystemPrompt, analysis.Transcript(messages))
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var info analysis.Info
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &info); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	if info.DisputeType == "" {
		return nil, errors.New("decode extraction: dispute_type missing")
	}
	info.Source = analysis.SourceAI
	return &info, nil
}

func overrideOf(sess *domain.Session) analysis.Override {
	return analysis.Override{StageRank: sess.ManualStage, Progress: sess.ManualProgress}
}

func report(m analysis.Metrics) *ConversationReport {
	return &ConversationReport{Metrics: m, Recommendations: analysis.Recommendations(m)}
}
