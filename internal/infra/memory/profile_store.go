package memory

import (
	"context"
	"sync"

	"quiz-leaderboard-service/internal/domain"
)

// ProfileStore keeps profiles in a map. It satisfies both ProfileLoader and
// app.ProfileDirectory, so it can be used with or without a cache in front.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

func NewProfileStore(seed ...domain.Profile) *ProfileStore {
	s := &ProfileStore{profiles: make(map[string]domain.Profile, len(seed))}
	for _, p := range seed {
		s.profiles[p.UserID] = p
	}
	return s
}

func (s *ProfileStore) LoadProfiles(_ context.Context) (map[string]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Profile, len(s.profiles))
	for id, p := range s.profiles {
		out[id] = p
	}
	return out, nil
}

func (s *ProfileStore) Profiles(ctx context.Context) (map[string]domain.Profile, error) {
	return s.LoadProfiles(ctx)
}

func (s *ProfileStore) PutProfile(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}
