package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-leaderboard-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.AttemptRecord
}

func NewAttemptStore(seed ...domain.AttemptRecord) *AttemptStore {
	s := &AttemptStore{attempts: make(map[string]domain.AttemptRecord, len(seed))}
	for _, a := range seed {
		s.attempts[a.ID] = a
	}
	return s
}

func (s *AttemptStore) ListAttempts(_ context.Context, userID string) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	out := make([]domain.AttemptRecord, 0, len(s.attempts))
	for _, a := range s.attempts {
		if userID == "" || a.UserID == userID {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveAttempt inserts or replaces the attempt with the same id. An id owned by
// another user is rejected with domain.ErrAttemptConflict.
func (s *AttemptStore) SaveAttempt(_ context.Context, attempt domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.attempts[attempt.ID]; ok && existing.UserID != attempt.UserID {
		return domain.ErrAttemptConflict
	}
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *AttemptStore) DeleteAttempt(_ context.Context, userID, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok || a.UserID != userID {
		return domain.ErrAttemptNotFound
	}
	delete(s.attempts, attemptID)
	return nil
}

func (s *AttemptStore) ClearAttempts(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.attempts {
		if a.UserID == userID {
			delete(s.attempts, id)
		}
	}
	return nil
}
