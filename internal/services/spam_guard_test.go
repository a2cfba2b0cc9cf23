package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpamGuard_BurstThenRefill(t *testing.T) {
	g := NewSpamGuard(60, 3)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, g.Allow("u1"), "message %d within burst", i)
	}
	assert.False(t, g.Allow("u1"))
	assert.True(t, g.Allow("u2"), "buckets are per user")

	clock = clock.Add(time.Second)
	assert.True(t, g.Allow("u1"))
	assert.False(t, g.Allow("u1"))
}

func TestSpamGuard_Defaults(t *testing.T) {
	g := NewSpamGuard(0, 0)
	assert.Equal(t, 10, g.burst)
	assert.InDelta(t, 20.0/60, float64(g.limit), 1e-9)
}

func TestSpamGuard_SweepAndForget(t *testing.T) {
	g := NewSpamGuard(20, 10)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }

	g.Allow("idle")
	clock = clock.Add(spamLimiterTTL + time.Minute)
	g.Allow("active")
	g.sweep()

	assert.NotContains(t, g.entries, "idle")
	assert.Contains(t, g.entries, "active")

	g.Forget("active")
	assert.Empty(t, g.entries)
}
