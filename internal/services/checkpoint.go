package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/redis/go-redis/v9"
)

const (
	checkpointKeyPrefix = "pairing:state:"
	checkpointTTL       = 24 * time.Hour
)

func checkpointKey(userID string) string {
	return checkpointKeyPrefix + userID
}

// RedisCheckpoint mirrors each user's pairing state to Redis so other instances
// and operators can see it. Nothing reads it back into the registry.
type RedisCheckpoint struct {
	redis *redis.Client
}

func NewRedisCheckpoint(client *redis.Client) *RedisCheckpoint {
	return &RedisCheckpoint{redis: client}
}

// Save stores a non-idle snapshot and clears the key for idle users.
func (c *RedisCheckpoint) Save(ctx context.Context, userID string, state pairing.Snapshot) error {
	if state.State == models.StateIdle || state.State == "" {
		return c.redis.Del(ctx, checkpointKey(userID)).Err()
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, checkpointKey(userID), data, checkpointTTL).Err()
}

// Load returns the last checkpoint for userID, Idle when none is stored.
func (c *RedisCheckpoint) Load(ctx context.Context, userID string) (pairing.Snapshot, error) {
	raw, err := c.redis.Get(ctx, checkpointKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return pairing.Snapshot{State: models.StateIdle}, nil
	}
	if err != nil {
		return pairing.Snapshot{}, fmt.Errorf("load checkpoint %s: %w", userID, err)
	}
	var snap pairing.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return pairing.Snapshot{}, fmt.Errorf("decode checkpoint %s: %w", userID, err)
	}
	return snap, nil
}
