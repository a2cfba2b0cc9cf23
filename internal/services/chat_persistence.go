package services

import (
	"context"
	"fmt"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	connectionsCollection = "chat_connections"
	transcriptsCollection = "chat_transcripts"

	defaultPageSize = 50
	maxPageSize     = 100
)

// TranscriptFilter narrows an admin transcript listing.
type TranscriptFilter struct {
	Before      *time.Time
	UserID      string
	FlaggedOnly bool
	Limit       int64
}

// OversightLog records pairings and finished transcripts in MongoDB for moderators.
type OversightLog struct {
	db     *mongo.Database
	recent *RecentConnections
	log    zerolog.Logger
}

// NewOversightLog wires the log. recent may be nil.
func NewOversightLog(db *mongo.Database, recent *RecentConnections, log zerolog.Logger) *OversightLog {
	return &OversightLog{
		db:     db,
		recent: recent,
		log:    log.With().Str("component", "oversight").Logger(),
	}
}

// EnsureIndexes configures indexes for both collections.
// Called on startup from main after Mongo has connected.
func (o *OversightLog) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		connectionsCollection: {
			{Keys: bson.D{{Key: "paired_at", Value: -1}}, Options: options.Index().SetName("idx_paired_at")},
			{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetName("idx_session_id")},
		},
		transcriptsCollection: {
			{Keys: bson.D{{Key: "ended_at", Value: -1}}, Options: options.Index().SetName("idx_ended_at")},
			{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetName("idx_session_id")},
			{Keys: bson.D{{Key: "flagged_keywords", Value: 1}}, Options: options.Index().SetName("idx_flagged_keywords")},
			{Keys: bson.D{{Key: "user_a.user_id", Value: 1}}, Options: options.Index().SetName("idx_user_a")},
			{Keys: bson.D{{Key: "user_b.user_id", Value: 1}}, Options: options.Index().SetName("idx_user_b")},
		},
	}
	for name, idx := range indexes {
		if _, err := o.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// LogConnection stores a new pairing and pushes it onto the recent list.
func (o *OversightLog) LogConnection(ctx context.Context, rec models.ConnectionRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if _, err := o.db.Collection(connectionsCollection).InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert connection %s: %w", rec.SessionID, err)
	}
	if o.recent != nil {
		o.recent.Push(ctx, rec)
	}
	return nil
}

// LogTranscript stores a finished pairing's transcript, flagging moderation keywords.
func (o *OversightLog) LogTranscript(ctx context.Context, rec models.TranscriptRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Entries == nil {
		rec.Entries = []models.TranscriptEntry{}
	}
	rec.FlaggedKeywords = FlagTranscript(rec.Entries)
	if len(rec.FlaggedKeywords) > 0 {
		o.log.Warn().
			Str("session_id", rec.SessionID).
			Strs("keywords", rec.FlaggedKeywords).
			Msg("⚠️ transcript flagged for review")
	}
	if _, err := o.db.Collection(transcriptsCollection).InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert transcript %s: %w", rec.SessionID, err)
	}
	return nil
}

// ListConnections returns pairings newest-first; the first page is served from Redis when warm.
func (o *OversightLog) ListConnections(ctx context.Context, before *time.Time, limit int64) ([]models.ConnectionRecord, bool, error) {
	limit = clampLimit(limit)
	if before == nil && o.recent != nil && limit <= recentConnectionsMaxLen {
		if cached, ok := o.recent.List(ctx); ok {
			hasMore := int64(len(cached)) >= limit
			if int64(len(cached)) > limit {
				cached = cached[:limit]
			}
			return cached, hasMore, nil
		}
	}

	filter := bson.M{}
	if before != nil {
		filter["paired_at"] = bson.M{"$lt": before.UTC()}
	}
	var out []models.ConnectionRecord
	hasMore, err := o.page(ctx, connectionsCollection, filter, "paired_at", limit, func(cur *mongo.Cursor) error {
		var rec models.ConnectionRecord
		if err := cur.Decode(&rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if before == nil && o.recent != nil && len(out) > 0 {
		o.recent.Warm(ctx, out)
	}
	return out, hasMore, nil
}

// ListTranscripts returns finished transcripts newest-first.
func (o *OversightLog) ListTranscripts(ctx context.Context, f TranscriptFilter) ([]models.TranscriptRecord, bool, error) {
	filter := bson.M{}
	if f.Before != nil {
		filter["ended_at"] = bson.M{"$lt": f.Before.UTC()}
	}
	if f.UserID != "" {
		filter["$or"] = bson.A{
			bson.M{"user_a.user_id": f.UserID},
			bson.M{"user_b.user_id": f.UserID},
		}
	}
	if f.FlaggedOnly {
		filter["flagged_keywords.0"] = bson.M{"$exists": true}
	}

	var out []models.TranscriptRecord
	hasMore, err := o.page(ctx, transcriptsCollection, filter, "ended_at", clampLimit(f.Limit), func(cur *mongo.Cursor) error {
		var rec models.TranscriptRecord
		if err := cur.Decode(&rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, hasMore, nil
}

// page reads limit+1 documents sorted by field descending and reports whether more exist.
func (o *OversightLog) page(ctx context.Context, collection string, filter bson.M, field string, limit int64, decode func(*mongo.Cursor) error) (bool, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: -1}}).
		SetLimit(limit + 1)

	cur, err := o.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return false, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var n int64
	for cur.Next(ctx) {
		n++
		if n > limit {
			break
		}
		if err := decode(cur); err != nil {
			o.log.Debug().Err(err).Str("collection", collection).Msg("skipping undecodable document")
			continue
		}
	}
	if err := cur.Err(); err != nil {
		return false, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return n > limit, nil
}

func clampLimit(limit int64) int64 {
	if limit <= 0 || limit > maxPageSize {
		return defaultPageSize
	}
	return limit
}
