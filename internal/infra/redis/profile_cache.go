package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-leaderboard-service/internal/domain"
)

// ProfileLoader fetches the profile directory from a backing store (e.g., Postgres).
type ProfileLoader interface {
	LoadProfiles(ctx context.Context) (map[string]domain.Profile, error)
	PutProfile(ctx context.Context, profile domain.Profile) error
}

const (
	profilesKey = "leaderboard:profiles"
	// loadedKey marks a filled cache, so an empty directory is still a hit.
	loadedKey = "leaderboard:profiles:loaded"
	// versionKey is bumped on every invalidation; a fill only commits if it
	// still matches the value read before loading.
	versionKey = "leaderboard:profiles:version"
)

var errStaleFill = errors.New("profile directory changed during load")

// ProfileCache caches the profile directory in Redis and falls back to a
// loader on cache miss. Profiles are stored as:
//
//	HSET leaderboard:profiles {userID} {profile JSON}
//
// A ttl <= 0 disables caching and every call goes to the loader.
type ProfileCache struct {
	client *redis.Client
	loader ProfileLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewProfileCache(client *redis.Client, loader ProfileLoader, ttl time.Duration, logger *slog.Logger) *ProfileCache {
	return &ProfileCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ProfileCache) Profiles(ctx context.Context) (map[string]domain.Profile, error) {
	if c.ttl <= 0 {
		return c.load(ctx)
	}
	if profiles, ok := c.readCache(ctx); ok {
		return profiles, nil
	}

	result, err, _ := c.sf.Do(profilesKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if profiles, ok := c.readCache(ctx); ok {
			return profiles, nil
		}

		version, err := c.client.Get(ctx, versionKey).Int64()
		if err != nil && err != redis.Nil {
			c.logger.WarnContext(ctx, "profile cache version read failed", slog.Any("error", err))
			return c.load(ctx)
		}

		profiles, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.writeCache(ctx, version, profiles)
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
	return c.Invalidate(ctx)
}

func (c *ProfileCache) Invalidate(ctx context.Context) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, versionKey)
	pipe.Del(ctx, loadedKey, profilesKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate profile cache: %w", err)
	}
	return nil
}

func (c *ProfileCache) load(ctx context.Context) (map[string]domain.Profile, error) {
	profiles, err := c.loader.LoadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = map[string]domain.Profile{}
	}
	return profiles, nil
}

// readCache treats any Redis error as a miss; the loader stays the source of truth.
func (c *ProfileCache) readCache(ctx context.Context) (map[string]domain.Profile, bool) {
	pipe := c.client.Pipeline()
	loaded := pipe.Exists(ctx, loadedKey)
	raw := pipe.HGetAll(ctx, profilesKey)
	if _, err := pipe.Exec(ctx); err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "profile cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	if loaded.Val() == 0 {
		return nil, false
	}

	profiles := make(map[string]domain.Profile, len(raw.Val()))
	for userID, data := range raw.Val() {
		var p domain.Profile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			c.logger.WarnContext(ctx, "dropping corrupt cached profile",
				slog.String("user_id", userID), slog.Any("error", err))
			return nil, false
		}
		profiles[userID] = p
	}
	return profiles, true
}

// writeCache stores profiles unless the directory was invalidated after
// version was read.
func (c *ProfileCache) writeCache(ctx context.Context, version int64, profiles map[string]domain.Profile) {
	ttl := c.ttlWithJitter()
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, profilesKey)
			for userID, p := range profiles {
				data, err := json.Marshal(p)
				if err != nil {
					continue
				}
				pipe.HSet(ctx, profilesKey, userID, data)
			}
			pipe.Set(ctx, loadedKey, "1", ttl)
			pipe.Expire(ctx, profilesKey, ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.DebugContext(ctx, "skipping stale profile cache fill")
	default:
		c.logger.WarnContext(ctx, "profile cache write failed", slog.Any("error", err))
	}
}

func (c *ProfileCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
