package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	recentConnectionsKey    = "oversight:connections:recent"
	recentConnectionsMaxLen = 50
	recentConnectionsTTL    = 1 * time.Hour
)

// RecentConnections keeps the latest pairings in a Redis list (newest at head)
// so the admin dashboard's first page does not hit Mongo.
type RecentConnections struct {
	redis *redis.Client
	log   zerolog.Logger
}

func NewRecentConnections(client *redis.Client, log zerolog.Logger) *RecentConnections {
	return &RecentConnections{redis: client, log: log.With().Str("component", "oversight_cache").Logger()}
}

// Push adds rec at the head. LPUSH + LTRIM keeps the last 50.
func (r *RecentConnections) Push(ctx context.Context, rec models.ConnectionRecord) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	pipe := r.redis.Pipeline()
	pipe.LPush(ctx, recentConnectionsKey, data)
	pipe.LTrim(ctx, recentConnectionsKey, 0, recentConnectionsMaxLen-1)
	pipe.Expire(ctx, recentConnectionsKey, recentConnectionsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn().Err(err).Str("session_id", rec.SessionID).Msg("recent connections push failed")
	}
}

// List returns the cached pairings newest-first, (nil, false) on a miss.
func (r *RecentConnections) List(ctx context.Context) ([]models.ConnectionRecord, bool) {
	if r.redis == nil {
		return nil, false
	}
	raw, err := r.redis.LRange(ctx, recentConnectionsKey, 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	out := make([]models.ConnectionRecord, 0, len(raw))
	for _, item := range raw {
		var rec models.ConnectionRecord
		if json.Unmarshal([]byte(item), &rec) != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, true
}

// Warm replaces the list with recs, given newest-first.
func (r *RecentConnections) Warm(ctx context.Context, recs []models.ConnectionRecord) {
	if r.redis == nil || len(recs) == 0 {
		return
	}
	pipe := r.redis.TxPipeline()
	pipe.Del(ctx, recentConnectionsKey)
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, recentConnectionsKey, data)
	}
	pipe.LTrim(ctx, recentConnectionsKey, 0, recentConnectionsMaxLen-1)
	pipe.Expire(ctx, recentConnectionsKey, recentConnectionsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn().Err(err).Msg("recent connections warm failed")
	}
}
