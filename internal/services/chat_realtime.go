package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event types sent to clients over the WebSocket.
const (
	EventTypePaired         = "paired"
	EventTypeNoPartners     = "no_partners"
	EventTypeMessage        = "message"
	EventTypeMessageAck     = "message_ack"
	EventTypeDeliveryFailed = "delivery_failed"
	EventTypePartnerLeft    = "partner_left"
	EventTypeDisconnected   = "disconnected"
	EventTypeState          = "state"
	EventTypeError          = "error"
	EventTypePong           = "pong"
	EventTypeKicked         = "kicked"
)

const userChannelPrefix = "chat:user:"

// ErrRecipientOffline means no instance holds a connection for the target user.
var ErrRecipientOffline = errors.New("recipient is offline")

// ChatEvent is the payload written to a client and carried over Redis between instances.
type ChatEvent struct {
	Type      string                   `json:"type"`
	To        string                   `json:"to,omitempty"`
	SessionID string                   `json:"session_id,omitempty"`
	FromID    string                   `json:"from_id,omitempty"`
	PartnerID string                   `json:"partner_id,omitempty"`
	Partner   *models.PartnerProfile   `json:"partner,omitempty"`
	Message   *models.Message          `json:"message,omitempty"`
	Entry     *models.TranscriptEntry  `json:"entry,omitempty"`
	Entries   []models.TranscriptEntry `json:"entries,omitempty"`
	State     *pairing.Snapshot        `json:"state,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// ChatConn is the minimal interface our WebSocket implementation must satisfy.
type ChatConn interface {
	WriteJSON(v interface{}) error
	ReadJSON(dest interface{}) error
	Close() error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// UserConnection serializes writes to one client socket.
type UserConnection struct {
	UserID string
	Conn   ChatConn

	mu sync.Mutex
}

// WriteEvent writes ev, honouring ctx's deadline when the connection supports it.
func (uc *UserConnection) WriteEvent(ctx context.Context, ev ChatEvent) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if d, ok := uc.Conn.(writeDeadliner); ok {
		deadline, has := ctx.Deadline()
		if !has {
			deadline = time.Now().Add(10 * time.Second)
		}
		_ = d.SetWriteDeadline(deadline)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return uc.Conn.WriteJSON(ev)
}

// ChatHub tracks local client connections and routes events to users, locally or
// through Redis pub/sub when the user is connected to another instance. It is the
// Deliverer and Notifier of the pairing engine.
type ChatHub struct {
	mu          sync.RWMutex
	connections map[string]*UserConnection

	redis  *redis.Client
	pubsub *redis.PubSub
	log    zerolog.Logger
	now    func() time.Time
}

// NewChatHub builds a hub. client may be nil for a single-instance deployment.
func NewChatHub(client *redis.Client, log zerolog.Logger) *ChatHub {
	return &ChatHub{
		connections: make(map[string]*UserConnection),
		redis:       client,
		log:         log.With().Str("component", "chat_hub").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register records conn as userID's live connection, replacing and closing an older one.
func (h *ChatHub) Register(ctx context.Context, userID string, conn ChatConn) *UserConnection {
	uc := &UserConnection{UserID: userID, Conn: conn}

	h.mu.Lock()
	old := h.connections[userID]
	h.connections[userID] = uc
	ps := h.pubsub
	h.mu.Unlock()

	if old != nil {
		_ = old.Conn.Close()
	}
	if ps != nil {
		if err := ps.Subscribe(ctx, userChannelPrefix+userID); err != nil {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("redis subscribe failed")
		}
	}
	return uc
}

// Unregister drops uc if it is still userID's current connection.
func (h *ChatHub) Unregister(ctx context.Context, uc *UserConnection) {
	h.mu.Lock()
	cur, ok := h.connections[uc.UserID]
	if !ok || cur != uc {
		h.mu.Unlock()
		return
	}
	delete(h.connections, uc.UserID)
	ps := h.pubsub
	h.mu.Unlock()

	if ps != nil {
		if err := ps.Unsubscribe(ctx, userChannelPrefix+uc.UserID); err != nil {
			h.log.Debug().Err(err).Str("user_id", uc.UserID).Msg("redis unsubscribe failed")
		}
	}
}

// Online reports whether userID has a connection on this instance.
func (h *ChatHub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[userID]
	return ok
}

// OnlineUsers lists the users connected to this instance, sorted.
func (h *ChatHub) OnlineUsers() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Kick tells userID why they are being dropped and closes their socket. The
// connection stays registered until its read loop exits and unregisters it.
// A user connected to another instance is closed there when the event arrives.
func (h *ChatHub) Kick(ctx context.Context, userID, reason string) error {
	err := h.Send(ctx, userID, ChatEvent{Type: EventTypeKicked, Error: reason})

	h.mu.RLock()
	uc, ok := h.connections[userID]
	h.mu.RUnlock()
	if ok {
		if cerr := uc.Conn.Close(); cerr != nil {
			h.log.Debug().Err(cerr).Str("user_id", userID).Msg("close kicked connection")
		}
		return nil
	}
	return err
}

// Deliver forwards a relayed message to the partner.
func (h *ChatHub) Deliver(ctx context.Context, targetID string, d pairing.Delivery) error {
	msg := d.Message
	return h.Send(ctx, targetID, ChatEvent{
		Type:      EventTypeMessage,
		SessionID: d.SessionID,
		FromID:    d.FromID,
		Message:   &msg,
	})
}

// Notify forwards a pairing lifecycle event.
func (h *ChatHub) Notify(ctx context.Context, userID string, ev pairing.Event) error {
	return h.Send(ctx, userID, ChatEvent{
		Type:      string(ev.Kind),
		SessionID: ev.SessionID,
		PartnerID: ev.PartnerID,
		Partner:   ev.Partner,
		Error:     ev.Reason,
	})
}

// Send routes ev to userID: directly when connected here, otherwise via Redis.
func (h *ChatHub) Send(ctx context.Context, userID string, ev ChatEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now()
	}
	ev.To = userID

	h.mu.RLock()
	uc, ok := h.connections[userID]
	h.mu.RUnlock()
	if ok {
		return uc.WriteEvent(ctx, ev)
	}

	if h.redis == nil {
		return fmt.Errorf("%s: %w", userID, ErrRecipientOffline)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	receivers, err := h.redis.Publish(ctx, userChannelPrefix+userID, data).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", userID, err)
	}
	if receivers == 0 {
		return fmt.Errorf("%s: %w", userID, ErrRecipientOffline)
	}
	return nil
}

// Run subscribes to this instance's user channels and fans remote events out to
// local connections until ctx is done.
func (h *ChatHub) Run(ctx context.Context) {
	if h.redis == nil {
		h.log.Warn().Msg("⚠️ Redis client not initialized; cross-instance delivery disabled")
		return
	}

	h.mu.Lock()
	channels := make([]string, 0, len(h.connections))
	for id := range h.connections {
		channels = append(channels, userChannelPrefix+id)
	}
	ps := h.redis.Subscribe(ctx, channels...)
	h.pubsub = ps
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.pubsub = nil
		h.mu.Unlock()
		_ = ps.Close()
	}()

	h.log.Info().Msg("✅ Chat Redis subscriber started (channels: chat:user:<id>)")

	backoff := time.Second
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.Warn().Err(err).Dur("backoff", backoff).Msg("redis subscriber error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}
		backoff = time.Second

		var ev ChatEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			h.log.Warn().Err(err).Msg("failed to unmarshal chat event")
			continue
		}
		h.fanOut(ctx, ev)
	}
}

func (h *ChatHub) fanOut(ctx context.Context, ev ChatEvent) {
	h.mu.RLock()
	uc, ok := h.connections[ev.To]
	h.mu.RUnlock()
	if !ok {
		h.log.Debug().Str("user_id", ev.To).Str("type", ev.Type).Msg("remote event for user no longer connected")
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := uc.WriteEvent(writeCtx, ev); err != nil {
		h.log.Warn().Err(err).Str("user_id", ev.To).Msg("error writing chat event to websocket")
	}
	if ev.Type == EventTypeKicked {
		_ = uc.Conn.Close()
	}
}
