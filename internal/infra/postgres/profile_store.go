package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-leaderboard-service/internal/domain"
)

// ProfileStore loads the profile directory from the profiles table.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) LoadProfiles(ctx context.Context) (map[string]domain.Profile, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, display_name, email, avatar_url FROM profiles`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]domain.Profile)
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.Email, &p.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles[p.UserID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

// Profiles lets the store serve as a directory without a cache in front.
func (s *ProfileStore) Profiles(ctx context.Context) (map[string]domain.Profile, error) {
	return s.LoadProfiles(ctx)
}

func (s *ProfileStore) PutProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO profiles (user_id, display_name, email, avatar_url, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    email = EXCLUDED.email,
    avatar_url = EXCLUDED.avatar_url,
    updated_at = now()`,
		p.UserID, p.DisplayName, p.Email, p.AvatarURL)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
