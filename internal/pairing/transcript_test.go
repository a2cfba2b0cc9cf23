package pairing

import (
	"testing"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptStore_EvictsOldestPastCap(t *testing.T) {
	s := NewTranscriptStore(100)
	s.Init("a")
	for i := 1; i <= 101; i++ {
		s.Append("a", models.TranscriptEntry{Seq: uint64(i)})
	}

	got := s.Drain("a")
	require.Len(t, got, 100)
	assert.Equal(t, uint64(2), got[0].Seq)
	assert.Equal(t, uint64(101), got[99].Seq)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Seq, got[i].Seq)
	}
}

func TestTranscriptStore_DrainClears(t *testing.T) {
	s := NewTranscriptStore(3)
	s.Init("a")
	s.Append("a", models.TranscriptEntry{Seq: 1})
	assert.Equal(t, 1, s.Len("a"))

	require.Len(t, s.Drain("a"), 1)
	assert.Equal(t, 0, s.Len("a"))
	assert.Nil(t, s.Drain("a"))
}

func TestTranscriptStore_CopiesAreIndependent(t *testing.T) {
	s := NewTranscriptStore(2)
	s.Init("a")
	s.Init("b")
	for i := 1; i <= 3; i++ {
		s.Append("a", models.TranscriptEntry{Seq: uint64(i)})
	}
	s.Append("b", models.TranscriptEntry{Seq: 1})

	assert.Len(t, s.Snapshot("a"), 2)
	assert.Len(t, s.Snapshot("b"), 1)
	assert.Equal(t, 2, s.Len("a"), "snapshot must not drain")
}

func TestTranscriptStore_InitResets(t *testing.T) {
	s := NewTranscriptStore(0)
	assert.Equal(t, DefaultTranscriptCap, s.Cap())
	s.Append("a", models.TranscriptEntry{Seq: 9})
	s.Init("a")
	assert.Equal(t, 0, s.Len("a"))
}

func TestMergeTranscripts(t *testing.T) {
	a := []models.TranscriptEntry{{Seq: 2}, {Seq: 3}, {Seq: 4}}
	b := []models.TranscriptEntry{{Seq: 1}, {Seq: 2}, {Seq: 3}}

	got := MergeTranscripts(a, b)
	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
	assert.Empty(t, MergeTranscripts(nil, nil))
}
