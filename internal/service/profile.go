package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// UpsertProfile provisions the identity record of a party.
func (s *Service) UpsertProfile(ctx context.Context, profileID string, req domain.ProfileRequest) (*domain.Profile, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, domain.Validation("profile id is required")
	}
	name, err := s.sanitizer.clean("full_name", req.FullName, maxTitleLength)
	if err != nil {
		return nil, err
	}
	profile := &domain.Profile{
		ProfileID: profileID,
		FullName:  name,
		Email:     strings.TrimSpace(req.Email),
		UpdatedAt: s.now(),
	}
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	s.profiles.Add(profileID, profile)
	return profile, nil
}

// GetProfile returns a cached profile or reads it from the store.
func (s *Service) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	if v, ok := s.profiles.Get(profileID); ok {
		return v.(*domain.Profile), nil
	}
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, domain.NewError(domain.KindNotFound, "profile_not_found", "profile not found")
	}
	s.profiles.Add(profileID, profile)
	return profile, nil
}

// lookupProfile returns nil when the party has no profile on file.
func (s *Service) lookupProfile(ctx context.Context, profileID string) *domain.Profile {
	if profileID == "" {
		return nil
	}
	profile, err := s.GetProfile(ctx, profileID)
	if err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			log.Warn().Err(err).Str("profile_id", profileID).Msg("profile lookup failed")
		}
		return nil
	}
	return profile
}

func (s *Service) displayName(ctx context.Context, profileID, fallback string) string {
	return s.lookupProfile(ctx, profileID).DisplayName(fallback)
}
