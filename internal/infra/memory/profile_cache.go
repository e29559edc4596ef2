package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-leaderboard-service/internal/domain"
)

// ProfileLoader fetches the profile directory from a backing store (e.g., Postgres).
type ProfileLoader interface {
	LoadProfiles(ctx context.Context) (map[string]domain.Profile, error)
	PutProfile(ctx context.Context, profile domain.Profile) error
}

const directoryKey = "profiles"

// ProfileCache caches the profile directory with TTL to avoid a DB hit on
// every leaderboard request.
type ProfileCache struct {
	loader ProfileLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu        sync.RWMutex
	profiles  map[string]domain.Profile
	expiresAt time.Time
	// generation is bumped by Invalidate; a load started under an older
	// generation must not store its result.
	generation uint64
}

func NewProfileCache(loader ProfileLoader, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Profiles returns the cached directory, loading it on miss or expiry.
// The returned map must not be modified.
func (c *ProfileCache) Profiles(ctx context.Context) (map[string]domain.Profile, error) {
	if profiles, ok := c.cached(c.clock()); ok {
		return profiles, nil
	}

	result, err, _ := c.sf.Do(directoryKey, func() (interface{}, error) {
		now := c.clock()
		if profiles, ok := c.cached(now); ok {
			return profiles, nil
		}

		c.mu.RLock()
		gen := c.generation
		c.mu.RUnlock()

		profiles, err := c.loader.LoadProfiles(ctx)
		if err != nil {
			return nil, err
		}
		if profiles == nil {
			profiles = map[string]domain.Profile{}
		}

		c.mu.Lock()
		if c.generation == gen {
			c.profiles = profiles
			c.expiresAt = now.Add(c.ttlWithJitter())
		}
		c.mu.Unlock()
		return profiles, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]domain.Profile), nil
}

// PutProfile writes through to the loader and drops the cached directory.
func (c *ProfileCache) PutProfile(ctx context.Context, profile domain.Profile) error {
	if err := c.loader.PutProfile(ctx, profile); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

func (c *ProfileCache) Invalidate() {
	c.mu.Lock()
	c.profiles = nil
	c.expiresAt = time.Time{}
	c.generation++
	c.mu.Unlock()
}

func (c *ProfileCache) cached(now time.Time) (map[string]domain.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profiles != nil && c.expiresAt.After(now) {
		return c.profiles, true
	}
	return nil, false
}

func (c *ProfileCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
