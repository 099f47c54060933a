// Package service implements the mediation workflow on top of the store and
// the external providers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/adapter/esign"
	"github.com/xiaot623/gogo/mediator/internal/adapter/llm"
	"github.com/xiaot623/gogo/mediator/internal/adapter/payment"
	"github.com/xiaot623/gogo/mediator/internal/config"
	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/metrics"
	"github.com/xiaot623/gogo/mediator/internal/push"
	"github.com/xiaot623/gogo/mediator/internal/repository"
	"github.com/xiaot623/gogo/mediator/policy"
)

// Service is the mediation workflow shared by the HTTP and webhook handlers.
type Service struct {
	store        store.Store
	generator    llm.Generator
	payments     payment.Provider
	signatures   esign.Provider
	publisher    push.Publisher
	config       *config.Config
	policyEngine *policy.Engine
	profiles     *lru.Cache
	sanitizer    *sanitizer
	ids          *idSource
	now          func() time.Time
}

// New creates a new service.
func New(store store.Store, generator llm.Generator, payments payment.Provider, signatures esign.Provider, publisher push.Publisher, cfg *config.Config, policyEngine *policy.Engine) (*Service, error) {
	if policyEngine == nil {
		return nil, errors.New("policy engine is required")
	}
	size := cfg.ProfileCacheSize
	if size <= 0 {
		size = 1024
	}
	profiles, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}
	return &Service{
		store:        store,
		generator:    generator,
		payments:     payments,
		signatures:   signatures,
		publisher:    publisher,
		config:       cfg,
		policyEngine: policyEngine,
		profiles:     profiles,
		sanitizer:    newSanitizer(),
		ids:          newIDSource(),
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// authorize resolves the caller's role and checks it against the policy.
func (s *Service) authorize(ctx context.Context, sess *domain.Session, callerID, action string) (domain.SenderRole, error) {
	role := sess.RoleOf(callerID)
	allowed, err := s.policyEngine.Allowed(ctx, policy.Input{Action: action, Role: string(role)})
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if !allowed {
		return "", domain.ErrNotParty
	}
	return role, nil
}

// loadSession returns the session or ErrSessionNotFound.
func (s *Service) loadSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// rejected counts a refused conditional write and passes err through.
func rejected(operation string, err error) error {
	metrics.GuardRejections.WithLabelValues(operation).Inc()
	return err
}

func (s *Service) publish(eventType domain.PushEventType, sessionID string, data any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(domain.PushEvent{
		Type:      eventType,
		SessionID: sessionID,
		Ts:        s.now().UnixMilli(),
		Data:      data,
	})
}

func (s *Service) recordTransition(sessionID string, to domain.SessionStatus) {
	metrics.SessionTransitions.WithLabelValues(string(to)).Inc()
	log.Info().Str("session_id", sessionID).Str("status", string(to)).Msg("session transitioned")
}
