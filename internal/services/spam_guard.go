package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	spamCleanupInterval = 5 * time.Minute
	spamLimiterTTL      = 30 * time.Minute
)

type spamEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// SpamGuard rate-limits relayed messages per user with a token bucket.
type SpamGuard struct {
	mu      sync.Mutex
	entries map[string]*spamEntry
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewSpamGuard allows perMinute messages per user with the given burst.
func NewSpamGuard(perMinute, burst int) *SpamGuard {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 10
	}
	return &SpamGuard{
		entries: make(map[string]*spamEntry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow consumes one token for userID and reports whether the message may go through.
func (g *SpamGuard) Allow(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	e, ok := g.entries[userID]
	if !ok {
		e = &spamEntry{limiter: rate.NewLimiter(g.limit, g.burst)}
		g.entries[userID] = e
	}
	e.lastUse = now
	return e.limiter.AllowN(now, 1)
}

// Forget drops userID's bucket, e.g. when their socket closes.
func (g *SpamGuard) Forget(userID string) {
	g.mu.Lock()
	delete(g.entries, userID)
	g.mu.Unlock()
}

// Run evicts idle buckets until ctx is done.
func (g *SpamGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(spamCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *SpamGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for id, e := range g.entries {
		if now.Sub(e.lastUse) > spamLimiterTTL {
			delete(g.entries, id)
		}
	}
}
