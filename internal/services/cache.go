package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultCacheTTL bounds how stale a cached profile can get.
	DefaultCacheTTL = 10 * time.Minute
	// MaxCacheTTL is 12 hours
	MaxCacheTTL = 12 * time.Hour
)

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return CacheKeyPrefix + resource + ":" + identifier
}

// CachedDirectory is a read-through Redis cache in front of a ProfileStore.
// Only GetUser is cached; candidate listing always reads the store since
// eligibility changes with every profile edit. Redis errors degrade to a miss.
type CachedDirectory struct {
	next  ProfileStore
	redis *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedDirectory(next ProfileStore, client *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	return &CachedDirectory{
		next:  next,
		redis: client,
		ttl:   ttl,
		log:   log.With().Str("component", "directory_cache").Logger(),
	}
}

func (c *CachedDirectory) GetUser(ctx context.Context, id string) (models.User, error) {
	key := CacheKey("user", id)
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var u models.User
			if jsonErr := json.Unmarshal(raw, &u); jsonErr == nil {
				return u, nil
			}
		case !errors.Is(err, redis.Nil):
			c.log.Debug().Err(err).Str("user_id", id).Msg("cache read failed")
		}
	}

	u, err := c.next.GetUser(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	c.store(ctx, u)
	return u, nil
}

func (c *CachedDirectory) ListEligible(ctx context.Context, requesterID string, criteria models.SearchCriteria, pool pairing.CandidatePool) ([]models.User, error) {
	return c.next.ListEligible(ctx, requesterID, criteria, pool)
}

func (c *CachedDirectory) UpsertProfile(ctx context.Context, u models.User) (models.User, error) {
	saved, err := c.next.UpsertProfile(ctx, u)
	if err != nil {
		return models.User{}, err
	}
	c.store(ctx, saved)
	return saved, nil
}

func (c *CachedDirectory) SetBlocked(ctx context.Context, id string, blocked bool) error {
	if err := c.next.SetBlocked(ctx, id, blocked); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedDirectory) store(ctx context.Context, u models.User) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, CacheKey("user", u.ID), data, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Str("user_id", u.ID).Msg("cache write failed")
	}
}

func (c *CachedDirectory) invalidate(ctx context.Context, id string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, CacheKey("user", id)).Err(); err != nil {
		c.log.Warn().Err(err).Str("user_id", id).Msg("cache invalidation failed")
	}
}
