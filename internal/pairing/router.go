package pairing

import (
	"context"
	"fmt"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
)

// DefaultDeliveryTimeout bounds a single forward to the partner's channel.
const DefaultDeliveryTimeout = 3 * time.Second

// Router forwards messages between paired users and records what was delivered.
type Router struct {
	registry  *Registry
	deliverer Deliverer
	timeout   time.Duration
	now       func() time.Time
}

// NewRouter builds a router. A non-positive timeout falls back to DefaultDeliveryTimeout.
func NewRouter(registry *Registry, deliverer Deliverer, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Router{
		registry:  registry,
		deliverer: deliverer,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Relay forwards msg from senderID to their partner. The entry is appended to both
// transcripts only after delivery succeeded and while the same pairing is still live.
// No registry lock is held across the delivery call.
func (r *Router) Relay(ctx context.Context, senderID string, msg models.Message) (models.TranscriptEntry, error) {
	link, ok := r.registry.Link(senderID)
	if !ok {
		return models.TranscriptEntry{}, ErrNotPaired
	}
	if err := msg.Validate(); err != nil {
		return models.TranscriptEntry{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	dctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err := r.deliverer.Deliver(dctx, link.PartnerID, Delivery{
		SessionID: link.SessionID,
		FromID:    senderID,
		Message:   msg,
	})
	if err != nil {
		return models.TranscriptEntry{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	return r.registry.Record(link.SessionID, senderID, models.TranscriptEntry{
		Kind:      msg.Kind,
		Content:   msg.ContentRef(),
		Caption:   msg.Caption(),
		Summary:   msg.Summary(),
		Timestamp: r.now(),
	})
}
