package store

import (
	"context"
	"database/sql"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// UpsertProfile creates or replaces a profile.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (profile_id, full_name, email, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET full_name = excluded.full_name, email = excluded.email, updated_at = excluded.updated_at`,
		profile.ProfileID, profile.FullName, profile.Email, profile.UpdatedAt)
	return err
}

// GetProfile retrieves a profile by ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	var p domain.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_id, full_name, email, updated_at FROM profiles WHERE profile_id = ?`,
		profileID).Scan(&p.ProfileID, &p.FullName, &p.Email, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
