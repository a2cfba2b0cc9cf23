package services

import (
	"context"
	"testing"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestOversightLog_LogTranscript(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		o := NewOversightLog(mt.DB, nil, zerolog.Nop())

		err := o.LogTranscript(context.Background(), models.TranscriptRecord{
			SessionID: "s1",
			Entries:   []models.TranscriptEntry{{Seq: 1, Kind: models.KindText, Content: "hi"}},
		})
		require.NoError(mt, err)
	})

	mt.Run("write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))
		o := NewOversightLog(mt.DB, nil, zerolog.Nop())

		err := o.LogTranscript(context.Background(), models.TranscriptRecord{SessionID: "s1"})
		assert.Error(mt, err)
	})
}

func TestOversightLog_LogConnection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		o := NewOversightLog(mt.DB, NewRecentConnections(nil, zerolog.Nop()), zerolog.Nop())

		err := o.LogConnection(context.Background(), models.ConnectionRecord{
			SessionID: "s1",
			UserA:     models.ParticipantSnapshot{UserID: "a"},
			UserB:     models.ParticipantSnapshot{UserID: "b"},
			PairedAt:  time.Now(),
		})
		require.NoError(mt, err)
	})
}

func TestOversightLog_ListTranscriptsPaginates(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("has more", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + transcriptsCollection
		now := time.Now().UTC().Truncate(time.Millisecond)
		first := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "session_id", Value: "s2"},
			{Key: "ended_at", Value: now},
			{Key: "entries", Value: bson.A{}},
			{Key: "flagged_keywords", Value: bson.A{"kill"}},
		}
		second := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "session_id", Value: "s1"},
			{Key: "ended_at", Value: now.Add(-time.Minute)},
			{Key: "entries", Value: bson.A{}},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, first, second))
		o := NewOversightLog(mt.DB, nil, zerolog.Nop())

		recs, hasMore, err := o.ListTranscripts(context.Background(), TranscriptFilter{Limit: 1, FlaggedOnly: true})
		require.NoError(mt, err)
		assert.True(mt, hasMore)
		require.Len(mt, recs, 1)
		assert.Equal(mt, "s2", recs[0].SessionID)
		assert.Equal(mt, []string{"kill"}, recs[0].FlaggedKeywords)
	})

	mt.Run("last page", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + connectionsCollection
		doc := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "session_id", Value: "s1"},
			{Key: "user_a", Value: bson.D{{Key: "user_id", Value: "a"}}},
			{Key: "user_b", Value: bson.D{{Key: "user_id", Value: "b"}}},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, doc))
		o := NewOversightLog(mt.DB, nil, zerolog.Nop())

		recs, hasMore, err := o.ListConnections(context.Background(), nil, 10)
		require.NoError(mt, err)
		assert.False(mt, hasMore)
		require.Len(mt, recs, 1)
		assert.Equal(mt, "b", recs[0].UserB.UserID)
	})
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, int64(defaultPageSize), clampLimit(0))
	assert.Equal(t, int64(defaultPageSize), clampLimit(1000))
	assert.Equal(t, int64(7), clampLimit(7))
}
