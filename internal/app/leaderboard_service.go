package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quiz-leaderboard-service/internal/domain"
	"quiz-leaderboard-service/internal/ranking"
)

// AttemptRepository abstracts where test history rows live (in-memory, Postgres).
type AttemptRepository interface {
	// ListAttempts returns the attempts of userID, newest first. An empty
	// userID returns every user's attempts.
	ListAttempts(ctx context.Context, userID string) ([]domain.AttemptRecord, error)
	SaveAttempt(ctx context.Context, attempt domain.AttemptRecord) error
	DeleteAttempt(ctx context.Context, userID, attemptID string) error
	ClearAttempts(ctx context.Context, userID string) error
}

// ProfileDirectory supplies display metadata keyed by user id.
type ProfileDirectory interface {
	Profiles(ctx context.Context) (map[string]domain.Profile, error)
	PutProfile(ctx context.Context, profile domain.Profile) error
}

// Observer receives operational signals; metrics.Metrics implements it.
type Observer interface {
	LeaderboardComputed(d time.Duration, entries int)
	DataUnavailable(source string)
	AttemptRecorded()
	SubscribersChanged(n int)
}

// LeaderboardService contains the leaderboard and test history use cases.
type LeaderboardService struct {
	attempts AttemptRepository
	profiles ProfileDirectory
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	hub       *hub
	publishMu sync.Mutex
}

// Option configures a LeaderboardService.
type Option func(*LeaderboardService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *LeaderboardService) { s.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(s *LeaderboardService) { s.observer = o }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *LeaderboardService) { s.now = now }
}

func NewLeaderboardService(attempts AttemptRepository, profiles ProfileDirectory, opts ...Option) *LeaderboardService {
	s := &LeaderboardService{
		attempts: attempts,
		profiles: profiles,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: nopObserver{},
		now:      time.Now,
		hub:      newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Leaderboard ranks every user with at least one attempt and a profile.
// It is recomputed from the full history on every call.
func (s *LeaderboardService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	start := s.now()
	attempts, profiles, err := s.fetch(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := ranking.ComputeLeaderboard(attempts, profiles)
	s.observer.LeaderboardComputed(s.now().Sub(start), len(entries))
	return domain.Leaderboard{
		Entries:   entries,
		UpdatedAt: s.now(),
	}, nil
}

// UserRank returns the 1-based leaderboard position of userID. The boolean is
// false when the user has no attempts or no profile.
func (s *LeaderboardService) UserRank(ctx context.Context, userID string) (int, bool, error) {
	if userID == "" {
		return 0, false, domain.ErrUserRequired
	}
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		return 0, false, err
	}
	rank, ok := ranking.RankOf(lb.Entries, userID)
	return rank, ok, nil
}

// RecordAttempt stores a completed test. Missing ids and completion times are
// filled in; scores are stored as submitted and clamped only when ranking.
func (s *LeaderboardService) RecordAttempt(ctx context.Context, attempt domain.AttemptRecord) (domain.AttemptRecord, error) {
	attempt.UserID = strings.TrimSpace(attempt.UserID)
	if attempt.UserID == "" {
		return domain.AttemptRecord{}, fmt.Errorf("%w: user id is empty", domain.ErrInvalidAttempt)
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CompletedAt.IsZero() {
		attempt.CompletedAt = s.now().UTC()
	}

	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("save attempt: %w", err)
	}
	s.observer.AttemptRecorded()
	s.logger.InfoContext(ctx, "attempt recorded",
		slog.String("user_id", attempt.UserID),
		slog.String("attempt_id", attempt.ID),
		slog.Float64("score", attempt.ScorePercentage),
	)
	s.publish(ctx)
	return attempt, nil
}

// History returns the attempts of a single user, newest first.
func (s *LeaderboardService) History(ctx context.Context, userID string) ([]domain.AttemptRecord, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	attempts, err := s.attempts.ListAttempts(ctx, userID)
	if err != nil {
		s.observer.DataUnavailable("attempts")
		return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	return attempts, nil
}

// DeleteAttempt removes one attempt owned by userID.
func (s *LeaderboardService) DeleteAttempt(ctx context.Context, userID, attemptID string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	if err := s.attempts.DeleteAttempt(ctx, userID, attemptID); err != nil {
		return fmt.Errorf("delete attempt %s: %w", attemptID, err)
	}
	s.publish(ctx)
	return nil
}

// ClearHistory removes every attempt owned by userID.
func (s *LeaderboardService) ClearHistory(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	if err := s.attempts.ClearAttempts(ctx, userID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	s.publish(ctx)
	return nil
}

// UpsertProfile creates or replaces the display metadata of a user.
func (s *LeaderboardService) UpsertProfile(ctx context.Context, profile domain.Profile) error {
	profile.UserID = strings.TrimSpace(profile.UserID)
	if profile.UserID == "" {
		return domain.ErrInvalidProfile
	}
	if err := s.profiles.PutProfile(ctx, profile); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	s.publish(ctx)
	return nil
}

// Subscribe returns a channel that receives the current leaderboard and every
// later update. The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	// Holding publishMu means a mutation either lands in the initial snapshot
	// or publishes after the subscriber is registered.
	s.publishMu.Lock()
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		s.publishMu.Unlock()
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(lb)
	s.publishMu.Unlock()
	s.observer.SubscribersChanged(s.hub.size())
	return ch, func() {
		cancel()
		s.observer.SubscribersChanged(s.hub.size())
	}, nil
}

func (s *LeaderboardService) fetch(ctx context.Context) ([]domain.AttemptRecord, map[string]domain.Profile, error) {
	var (
		attempts []domain.AttemptRecord
		profiles map[string]domain.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if attempts, err = s.attempts.ListAttempts(gctx, ""); err != nil {
			s.observer.DataUnavailable("attempts")
			return fmt.Errorf("list attempts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if profiles, err = s.profiles.Profiles(gctx); err != nil {
			s.observer.DataUnavailable("profiles")
			return fmt.Errorf("load profiles: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "leaderboard inputs unavailable", slog.Any("error", err))
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	return attempts, profiles, nil
}

// publish recomputes the leaderboard for live subscribers. Failures are logged
// only; the mutation that triggered it has already succeeded.
func (s *LeaderboardService) publish(ctx context.Context) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.hub.size() == 0 {
		return
	}

	lb, err := s.Leaderboard(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping leaderboard broadcast", slog.Any("error", err))
		return
	}
	s.hub.broadcast(lb)
}

type nopObserver struct{}

func (nopObserver) LeaderboardComputed(time.Duration, int) {}
func (nopObserver) DataUnavailable(string)                 {}
func (nopObserver) AttemptRecorded()                       {}
func (nopObserver) SubscribersChanged(int)                 {}
