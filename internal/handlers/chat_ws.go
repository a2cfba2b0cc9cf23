package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/middleware"
	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/AnshRaj112/tandem-backend/internal/services"
	"github.com/gorilla/websocket"
)

const (
	wsReadLimit    = 64 * 1024
	wsPongWait     = 90 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// Client command types.
const (
	CommandSearch     = "search"
	CommandMessage    = "message"
	CommandDisconnect = "disconnect"
	CommandState      = "state"
	CommandPing       = "ping"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS for WebSocket is handled at the HTTP layer already.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatCommand is what the client sends over the WebSocket.
type ChatCommand struct {
	Type     string                 `json:"type"`
	Criteria *models.SearchCriteria `json:"criteria,omitempty"`
	Message  *models.Message        `json:"message,omitempty"`
}

// ChatWebSocket runs the gateway for one authenticated user.
// Pairing notifications (paired, partner_left, delivery_failed) arrive through the
// hub; command replies are written directly.
func (h *Handler) ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uc := h.hub.Register(ctx, userID, conn)
	log := h.log.With().Str("user_id", userID).Logger()
	log.Info().Msg("chat socket connected")
	defer func() {
		h.hub.Unregister(ctx, uc)
		if !h.hub.Online(userID) {
			h.coordinator.Leave(ctx, userID)
			h.spam.Forget(userID)
		}
		_ = conn.Close()
		log.Info().Msg("chat socket closed")
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go keepAlive(ctx, conn)

	h.reply(ctx, uc, services.ChatEvent{Type: services.EventTypeState, State: snapshotPtr(h.coordinator.State(userID))})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("chat socket read error")
			}
			return
		}
		var cmd ChatCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reply(ctx, uc, errorEvent("invalid command"))
			continue
		}
		for _, ev := range h.handleCommand(ctx, userID, cmd) {
			h.reply(ctx, uc, ev)
		}
	}
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) reply(ctx context.Context, uc *services.UserConnection, ev services.ChatEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.To = uc.UserID
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := uc.WriteEvent(writeCtx, ev); err != nil {
		h.log.Debug().Err(err).Str("user_id", uc.UserID).Str("type", ev.Type).Msg("reply write failed")
	}
}

// handleCommand executes one client command and returns the direct replies.
func (h *Handler) handleCommand(ctx context.Context, userID string, cmd ChatCommand) []services.ChatEvent {
	switch cmd.Type {
	case CommandSearch:
		var criteria models.SearchCriteria
		if cmd.Criteria != nil {
			criteria = *cmd.Criteria
		}
		_, err := h.coordinator.Search(ctx, userID, criteria)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, pairing.ErrNoPartners):
			// A concurrent searcher may have claimed us meanwhile; its paired event wins.
			if h.coordinator.State(userID).State == models.StatePaired {
				return nil
			}
			return []services.ChatEvent{{Type: services.EventTypeNoPartners}}
		case errors.Is(err, pairing.ErrAlreadyPaired):
			return []services.ChatEvent{errorEvent("already paired"), h.stateEvent(userID)}
		case errors.Is(err, pairing.ErrProfileIncomplete):
			return []services.ChatEvent{errorEvent("complete your profile before searching")}
		case errors.Is(err, pairing.ErrUserBlocked):
			return []services.ChatEvent{errorEvent("account blocked")}
		case errors.Is(err, pairing.ErrNotFound):
			return []services.ChatEvent{errorEvent("profile not found")}
		default:
			h.log.Error().Err(err).Str("user_id", userID).Msg("search failed")
			return []services.ChatEvent{errorEvent("search failed")}
		}

	case CommandMessage:
		if cmd.Message == nil {
			return []services.ChatEvent{errorEvent("message is required")}
		}
		if !h.spam.Allow(userID) {
			return []services.ChatEvent{errorEvent("you are sending messages too fast")}
		}
		entry, err := h.coordinator.Relay(ctx, userID, *cmd.Message)
		switch {
		case err == nil:
			return []services.ChatEvent{{Type: services.EventTypeMessageAck, SessionID: h.coordinator.State(userID).SessionID, Entry: &entry}}
		case errors.Is(err, pairing.ErrDeliveryFailed):
			// delivery_failed is sent through the notifier.
			return nil
		case errors.Is(err, pairing.ErrNotPaired):
			return []services.ChatEvent{errorEvent("you are not in a chat")}
		case errors.Is(err, pairing.ErrInvalidMessage):
			return []services.ChatEvent{errorEvent(err.Error())}
		default:
			h.log.Error().Err(err).Str("user_id", userID).Msg("relay failed")
			return []services.ChatEvent{errorEvent("message not sent")}
		}

	case CommandDisconnect:
		res, err := h.coordinator.Disconnect(ctx, userID)
		if errors.Is(err, pairing.ErrNotPaired) {
			return []services.ChatEvent{errorEvent("you are not in a chat")}
		}
		if err != nil {
			h.log.Error().Err(err).Str("user_id", userID).Msg("disconnect failed")
			return []services.ChatEvent{errorEvent("disconnect failed")}
		}
		entries := res.Entries
		if entries == nil {
			entries = []models.TranscriptEntry{}
		}
		return []services.ChatEvent{{
			Type:      services.EventTypeDisconnected,
			SessionID: res.Edge.SessionID,
			PartnerID: res.PartnerID,
			Entries:   entries,
		}}

	case CommandState:
		return []services.ChatEvent{h.stateEvent(userID)}

	case CommandPing:
		return []services.ChatEvent{{Type: services.EventTypePong}}
	}
	return []services.ChatEvent{errorEvent("unknown command " + cmd.Type)}
}

func (h *Handler) stateEvent(userID string) services.ChatEvent {
	return services.ChatEvent{Type: services.EventTypeState, State: snapshotPtr(h.coordinator.State(userID))}
}

func snapshotPtr(s pairing.Snapshot) *pairing.Snapshot { return &s }

func errorEvent(msg string) services.ChatEvent {
	return services.ChatEvent{Type: services.EventTypeError, Error: msg}
}
