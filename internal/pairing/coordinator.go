package pairing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/rs/zerolog"
)

// DefaultSideEffectTimeout bounds each notification, checkpoint and oversight call.
const DefaultSideEffectTimeout = 5 * time.Second

// maxSearchAttempts is the first selection plus one retry after a lost race.
const maxSearchAttempts = 2

// CoordinatorConfig wires the engine. Nil collaborators become no-ops.
type CoordinatorConfig struct {
	Directory    Directory
	Registry     *Registry
	Selector     *Selector
	Router       *Router
	Notifier     Notifier
	Presence     Presence
	Oversight    OversightLogger
	Checkpointer Checkpointer
	Logger       zerolog.Logger

	SideEffectTimeout time.Duration
}

// PairingResult is returned to a user whose search succeeded.
type PairingResult struct {
	Edge      models.PairingEdge    `json:"edge"`
	PartnerID string                `json:"partner_id"`
	Partner   models.PartnerProfile `json:"partner"`
}

// DisconnectResult confirms an ended pairing.
type DisconnectResult struct {
	Edge      models.PairingEdge       `json:"edge"`
	PartnerID string                   `json:"partner_id"`
	Entries   []models.TranscriptEntry `json:"entries"`
}

// Coordinator orchestrates search, relay and disconnect. State changes commit
// first; notifications and oversight writes follow asynchronously and are never
// rolled back.
type Coordinator struct {
	directory    Directory
	registry     *Registry
	selector     *Selector
	router       *Router
	notifier     Notifier
	oversight    OversightLogger
	checkpointer Checkpointer
	log          zerolog.Logger
	timeout      time.Duration
	now          func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewCoordinator builds a coordinator from cfg.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	noop := noopCollaborators{}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry(nil)
	}
	if cfg.Selector == nil {
		cfg.Selector = NewSelector(cfg.Directory, cfg.Registry)
		if cfg.Presence != nil {
			cfg.Selector.WithPresence(cfg.Presence)
		}
	}
	if cfg.Router == nil {
		cfg.Router = NewRouter(cfg.Registry, noop, 0)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = noop
	}
	if cfg.Oversight == nil {
		cfg.Oversight = noop
	}
	if cfg.Checkpointer == nil {
		cfg.Checkpointer = noop
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = DefaultSideEffectTimeout
	}
	return &Coordinator{
		directory:    cfg.Directory,
		registry:     cfg.Registry,
		selector:     cfg.Selector,
		router:       cfg.Router,
		notifier:     cfg.Notifier,
		oversight:    cfg.Oversight,
		checkpointer: cfg.Checkpointer,
		log:          cfg.Logger.With().Str("component", "coordinator").Logger(),
		timeout:      cfg.SideEffectTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Search pairs userID with a random eligible partner.
func (c *Coordinator) Search(ctx context.Context, userID string, criteria models.SearchCriteria) (PairingResult, error) {
	user, err := c.directory.GetUser(ctx, userID)
	if err != nil {
		return PairingResult{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	user = user.WithDefaults()
	if user.Blocked {
		return PairingResult{}, ErrUserBlocked
	}
	if !user.ProfileComplete {
		return PairingResult{}, ErrProfileIncomplete
	}

	if _, err := c.registry.BeginSearch(userID); err != nil {
		return PairingResult{}, err
	}

	exclude := make(map[string]struct{})
	for attempt := 0; attempt < maxSearchAttempts; attempt++ {
		candidate, ok, err := c.selector.Select(ctx, userID, criteria, exclude)
		if err != nil {
			c.registry.AbandonSearch(userID)
			return PairingResult{}, err
		}
		if !ok {
			break
		}

		edge, err := c.registry.CommitPair(userID, candidate.ID)
		switch {
		case err == nil:
			candidate = candidate.WithDefaults()
			c.afterPaired(user, candidate, edge)
			return PairingResult{Edge: edge, PartnerID: candidate.ID, Partner: candidate.Public()}, nil
		case errors.Is(err, ErrPartnerUnavailable):
			c.log.Debug().Str("user_id", userID).Str("candidate_id", candidate.ID).Int("attempt", attempt+1).Msg("candidate taken before commit")
			exclude[candidate.ID] = struct{}{}
		default:
			// ErrAlreadyPaired: another searcher claimed us and has already notified both sides.
			return PairingResult{}, err
		}
	}

	c.registry.AbandonSearch(userID)
	return PairingResult{}, ErrNoPartners
}

// Relay forwards msg from senderID to their partner.
func (c *Coordinator) Relay(ctx context.Context, senderID string, msg models.Message) (models.TranscriptEntry, error) {
	entry, err := c.router.Relay(ctx, senderID, msg)
	if errors.Is(err, ErrDeliveryFailed) {
		reason := err.Error()
		c.dispatch("notify_delivery_failed", senderID, func(ctx context.Context) error {
			return c.notifier.Notify(ctx, senderID, Event{Kind: EventDeliveryFailed, Reason: reason})
		})
	}
	return entry, err
}

// Disconnect ends userID's pairing, forwards the combined transcript to oversight
// and tells the partner. A second call returns ErrNotPaired.
func (c *Coordinator) Disconnect(ctx context.Context, userID string) (DisconnectResult, error) {
	cleared, err := c.registry.ClearPair(userID)
	if err != nil {
		return DisconnectResult{}, err
	}
	edge := cleared.Edge
	partnerID := edge.Other(userID)
	entries := MergeTranscripts(cleared.Transcripts[edge.UserA], cleared.Transcripts[edge.UserB])
	endedAt := c.now()

	c.dispatch("log_transcript", userID, func(ctx context.Context) error {
		return c.oversight.LogTranscript(ctx, models.TranscriptRecord{
			SessionID: edge.SessionID,
			UserA:     c.snapshot(ctx, edge.UserA),
			UserB:     c.snapshot(ctx, edge.UserB),
			EndedBy:   userID,
			PairedAt:  edge.PairedAt,
			EndedAt:   endedAt,
			Entries:   entries,
		})
	})
	c.dispatch("notify_partner_left", partnerID, func(ctx context.Context) error {
		return c.notifier.Notify(ctx, partnerID, Event{Kind: EventPartnerLeft, SessionID: edge.SessionID, PartnerID: userID})
	})
	c.checkpoint(userID, partnerID)

	return DisconnectResult{Edge: edge, PartnerID: partnerID, Entries: entries}, nil
}

// Leave cleans up after a user whose connection went away: an in-flight search is
// abandoned and a live pairing is disconnected.
func (c *Coordinator) Leave(ctx context.Context, userID string) {
	if c.registry.AbandonSearch(userID) {
		c.checkpoint(userID)
		return
	}
	if _, err := c.Disconnect(ctx, userID); err != nil && !errors.Is(err, ErrNotPaired) {
		c.log.Warn().Err(err).Str("user_id", userID).Msg("leave failed")
	}
}

// State returns userID's current session snapshot.
func (c *Coordinator) State(userID string) Snapshot {
	return c.registry.State(userID)
}

// Stats returns registry counters.
func (c *Coordinator) Stats() Stats {
	return c.registry.Stats()
}

// Wait blocks until every in-flight side effect has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close stops accepting side effects and waits for the running ones or ctx.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain side effects: %w", ctx.Err())
	}
}

func (c *Coordinator) afterPaired(user, partner models.User, edge models.PairingEdge) {
	userProfile, partnerProfile := user.Public(), partner.Public()

	c.dispatch("notify_paired", user.ID, func(ctx context.Context) error {
		return c.notifier.Notify(ctx, user.ID, Event{Kind: EventPaired, SessionID: edge.SessionID, PartnerID: partner.ID, Partner: &partnerProfile})
	})
	c.dispatch("notify_paired", partner.ID, func(ctx context.Context) error {
		return c.notifier.Notify(ctx, partner.ID, Event{Kind: EventPaired, SessionID: edge.SessionID, PartnerID: user.ID, Partner: &userProfile})
	})
	c.dispatch("log_connection", user.ID, func(ctx context.Context) error {
		return c.oversight.LogConnection(ctx, models.ConnectionRecord{
			SessionID: edge.SessionID,
			UserA:     user.Snapshot(),
			UserB:     partner.Snapshot(),
			PairedAt:  edge.PairedAt,
		})
	})
	c.checkpoint(user.ID, partner.ID)
}

func (c *Coordinator) checkpoint(userIDs ...string) {
	for _, id := range userIDs {
		state := c.registry.State(id)
		c.dispatch("checkpoint", id, func(ctx context.Context) error {
			return c.checkpointer.Save(ctx, id, state)
		})
	}
}

// snapshot loads a participant profile for oversight, falling back to the bare id.
func (c *Coordinator) snapshot(ctx context.Context, userID string) models.ParticipantSnapshot {
	u, err := c.directory.GetUser(ctx, userID)
	if err != nil {
		c.log.Debug().Err(err).Str("user_id", userID).Msg("oversight profile lookup failed")
		return models.ParticipantSnapshot{UserID: userID}
	}
	return u.WithDefaults().Snapshot()
}

func (c *Coordinator) dispatch(op, userID string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Warn().Str("op", op).Str("user_id", userID).Msg("coordinator closed, side effect dropped")
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			c.log.Warn().Err(fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, op, err)).
				Str("op", op).Str("user_id", userID).Msg("side effect failed")
		}
	}()
}
