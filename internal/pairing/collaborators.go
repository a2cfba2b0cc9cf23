package pairing

import (
	"context"

	"github.com/AnshRaj112/tandem-backend/internal/models"
)

// Directory is read access to user profiles.
type Directory interface {
	// GetUser returns ErrNotFound (possibly wrapped) for unknown ids.
	GetUser(ctx context.Context, id string) (models.User, error)
	// ListEligible returns complete, unblocked users matching criteria and pool, excluding requesterID.
	ListEligible(ctx context.Context, requesterID string, criteria models.SearchCriteria, pool CandidatePool) ([]models.User, error)
}

// CandidatePool narrows ListEligible to users that can actually be paired right now.
type CandidatePool struct {
	// Exclude lists ids that must not be returned: paired users and candidates lost to a race.
	Exclude []string
	// Only, when non-nil, restricts the result to these ids (connected users).
	Only []string
}

// Presence reports which users hold a live connection.
type Presence interface {
	Online(userID string) bool
	OnlineUsers() []string
}

// Delivery is a relayed message addressed to a partner.
type Delivery struct {
	SessionID string         `json:"session_id"`
	FromID    string         `json:"from_id"`
	Message   models.Message `json:"message"`
}

// Deliverer forwards relayed messages to the partner's device.
type Deliverer interface {
	Deliver(ctx context.Context, targetID string, d Delivery) error
}

// EventKind identifies a pairing notification.
type EventKind string

const (
	EventPaired         EventKind = "paired"
	EventPartnerLeft    EventKind = "partner_left"
	EventDeliveryFailed EventKind = "delivery_failed"
)

// Event is a pairing or disconnection notice sent to a user.
type Event struct {
	Kind      EventKind              `json:"kind"`
	SessionID string                 `json:"session_id,omitempty"`
	PartnerID string                 `json:"partner_id,omitempty"`
	Partner   *models.PartnerProfile `json:"partner,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
}

// Notifier sends pairing lifecycle events to users.
type Notifier interface {
	Notify(ctx context.Context, userID string, ev Event) error
}

// OversightLogger receives connection and transcript records. Calls are best-effort.
type OversightLogger interface {
	LogConnection(ctx context.Context, rec models.ConnectionRecord) error
	LogTranscript(ctx context.Context, rec models.TranscriptRecord) error
}

// Checkpointer mirrors session state to an external store.
type Checkpointer interface {
	Save(ctx context.Context, userID string, state Snapshot) error
}

type noopCollaborators struct{}

func (noopCollaborators) Deliver(context.Context, string, Delivery) error { return nil }
func (noopCollaborators) Notify(context.Context, string, Event) error     { return nil }
func (noopCollaborators) LogConnection(context.Context, models.ConnectionRecord) error {
	return nil
}
func (noopCollaborators) LogTranscript(context.Context, models.TranscriptRecord) error {
	return nil
}
func (noopCollaborators) Save(context.Context, string, Snapshot) error { return nil }
