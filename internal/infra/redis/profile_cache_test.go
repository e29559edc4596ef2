package redis

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"quiz-leaderboard-service/internal/domain"
	"quiz-leaderboard-service/internal/infra/memory"
)

func TestProfileCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{ProfileLoader: memory.NewProfileStore(sampleProfiles()...)}
	cache := NewProfileCache(newClient(mr), loader, time.Minute, discardLogger())

	first, err := cache.Profiles(context.Background())
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists(profilesKey) || !mr.Exists(loadedKey) {
		t.Fatalf("expected profile keys in redis")
	}

	// Second call should hit cache, loader not incremented.
	second, err := cache.Profiles(context.Background())
	if err != nil {
		t.Fatalf("profiles 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("cached profiles differ (-loaded +cached):\n%s", diff)
	}
}

func TestProfileCacheExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{ProfileLoader: memory.NewProfileStore(sampleProfiles()...)}
	cache := NewProfileCache(newClient(mr), loader, time.Minute, discardLogger())

	_, _ = cache.Profiles(context.Background())
	mr.FastForward(2 * time.Minute)
	_, _ = cache.Profiles(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls)
	}
}

func TestProfileCacheEmptyDirectoryIsCached(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{ProfileLoader: memory.NewProfileStore()}
	cache := NewProfileCache(newClient(mr), loader, time.Minute, discardLogger())

	for i := 0; i < 3; i++ {
		profiles, err := cache.Profiles(context.Background())
		if err != nil {
			t.Fatalf("profiles: %v", err)
		}
		if len(profiles) != 0 {
			t.Fatalf("expected empty directory, got %+v", profiles)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected single load for empty directory, got %d", loader.calls)
	}
}

func TestProfileCachePutInvalidates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	loader := &countingLoader{ProfileLoader: memory.NewProfileStore(sampleProfiles()...)}
	cache := NewProfileCache(newClient(mr), loader, time.Minute, discardLogger())

	_, _ = cache.Profiles(ctx)
	if err := cache.PutProfile(ctx, domain.Profile{UserID: "u3", DisplayName: "Carol"}); err != nil {
		t.Fatalf("put profile: %v", err)
	}
	if mr.Exists(loadedKey) {
		t.Fatalf("expected cache marker removed")
	}

	profiles, err := cache.Profiles(ctx)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if profiles["u3"].DisplayName != "Carol" {
		t.Fatalf("expected Carol after put, got %+v", profiles["u3"])
	}
}

func TestProfileCachePutDuringLoadIsNotLost(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	loader := newBlockingLoader(memory.NewProfileStore(sampleProfiles()...))
	cache := NewProfileCache(newClient(mr), loader, time.Minute, discardLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Profiles(ctx)
	}()
	<-loader.started

	if err := cache.PutProfile(ctx, domain.Profile{UserID: "u3", DisplayName: "Carol"}); err != nil {
		t.Fatalf("put profile: %v", err)
	}
	close(loader.release)
	<-done

	if mr.Exists(loadedKey) {
		t.Fatalf("expected stale fill to be discarded")
	}
	profiles, err := cache.Profiles(ctx)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if profiles["u3"].DisplayName != "Carol" {
		t.Fatalf("expected Carol after put raced a load, got %+v", profiles)
	}
}

func TestProfileCacheDisabledWithoutTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{ProfileLoader: memory.NewProfileStore(sampleProfiles()...)}
	cache := NewProfileCache(newClient(mr), loader, 0, discardLogger())

	for i := 0; i < 3; i++ {
		profiles, err := cache.Profiles(context.Background())
		if err != nil {
			t.Fatalf("profiles: %v", err)
		}
		if len(profiles) != 2 {
			t.Fatalf("expected 2 profiles, got %d", len(profiles))
		}
	}
	if loader.calls != 3 {
		t.Fatalf("expected loader on every call, got %d", loader.calls)
	}
	if mr.Exists(profilesKey) || mr.Exists(loadedKey) {
		t.Fatalf("expected nothing cached with ttl 0")
	}
}

// blockingLoader takes its snapshot, then holds the first load until release
// is closed.
type blockingLoader struct {
	memory.ProfileLoader
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingLoader(inner memory.ProfileLoader) *blockingLoader {
	return &blockingLoader{
		ProfileLoader: inner,
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (l *blockingLoader) LoadProfiles(ctx context.Context) (map[string]domain.Profile, error) {
	profiles, err := l.ProfileLoader.LoadProfiles(ctx)
	l.once.Do(func() {
		close(l.started)
		<-l.release
	})
	return profiles, err
}

type countingLoader struct {
	memory.ProfileLoader
	calls int
}

func (l *countingLoader) LoadProfiles(ctx context.Context) (map[string]domain.Profile, error) {
	l.calls++
	return l.ProfileLoader.LoadProfiles(ctx)
}

func sampleProfiles() []domain.Profile {
	return []domain.Profile{
		{UserID: "u1", DisplayName: "Alice", Email: "alice@example.com", AvatarURL: "https://example.com/a.png"},
		{UserID: "u2", DisplayName: "Bob", Email: "bob@example.com"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
