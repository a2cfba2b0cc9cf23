package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	events []ChatEvent
	closed bool
	err    error
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, v.(ChatEvent))
	return nil
}

func (c *fakeConn) ReadJSON(interface{}) error { return errors.New("not readable") }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) written() []ChatEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatEvent(nil), c.events...)
}

func TestChatHub_DeliverLocal(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	conn := &fakeConn{}
	hub.Register(context.Background(), "b", conn)

	err := hub.Deliver(context.Background(), "b", pairing.Delivery{
		SessionID: "s1",
		FromID:    "a",
		Message:   models.Message{Kind: models.KindText, Text: "hi"},
	})
	require.NoError(t, err)

	got := conn.written()
	require.Len(t, got, 1)
	assert.Equal(t, EventTypeMessage, got[0].Type)
	assert.Equal(t, "b", got[0].To)
	assert.Equal(t, "hi", got[0].Message.Text)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestChatHub_OfflineWithoutRedis(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	err := hub.Notify(context.Background(), "ghost", pairing.Event{Kind: pairing.EventPartnerLeft})
	assert.ErrorIs(t, err, ErrRecipientOffline)
}

func TestChatHub_WriteErrorSurfaces(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	boom := errors.New("broken pipe")
	hub.Register(context.Background(), "b", &fakeConn{err: boom})

	err := hub.Deliver(context.Background(), "b", pairing.Delivery{Message: models.Message{Kind: models.KindText, Text: "x"}})
	assert.ErrorIs(t, err, boom)
}

func TestChatHub_NotifyCarriesPartner(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	conn := &fakeConn{}
	hub.Register(context.Background(), "a", conn)

	profile := models.PartnerProfile{DisplayName: "Bob", Country: "Spain"}
	require.NoError(t, hub.Notify(context.Background(), "a", pairing.Event{Kind: pairing.EventPaired, SessionID: "s", PartnerID: "b", Partner: &profile}))

	got := conn.written()
	require.Len(t, got, 1)
	assert.Equal(t, EventTypePaired, got[0].Type)
	assert.Equal(t, "Bob", got[0].Partner.DisplayName)
}

func TestChatHub_RegisterReplacesAndUnregisterIsScoped(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	ctx := context.Background()
	first := &fakeConn{}
	second := &fakeConn{}

	uc1 := hub.Register(ctx, "a", first)
	uc2 := hub.Register(ctx, "a", second)
	assert.True(t, first.closed)

	hub.Unregister(ctx, uc1)
	assert.True(t, hub.Online("a"), "stale handle must not remove the new connection")

	hub.Unregister(ctx, uc2)
	assert.False(t, hub.Online("a"))
}

func TestChatHub_CancelledContext(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	conn := &fakeConn{}
	hub.Register(context.Background(), "a", conn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := hub.Send(ctx, "a", ChatEvent{Type: EventTypePong})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.written())
}

func TestChatHub_FanOutRemoteEvent(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	conn := &fakeConn{}
	hub.Register(context.Background(), "a", conn)

	hub.fanOut(context.Background(), ChatEvent{Type: EventTypePartnerLeft, To: "a"})
	hub.fanOut(context.Background(), ChatEvent{Type: EventTypePartnerLeft, To: "nobody"})
	assert.Len(t, conn.written(), 1)
}

func TestChatHub_OnlineUsers(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	ctx := context.Background()
	assert.Empty(t, hub.OnlineUsers())

	hub.Register(ctx, "c", &fakeConn{})
	ub := hub.Register(ctx, "b", &fakeConn{})
	hub.Register(ctx, "a", &fakeConn{})
	assert.Equal(t, []string{"a", "b", "c"}, hub.OnlineUsers())

	hub.Unregister(ctx, ub)
	assert.Equal(t, []string{"a", "c"}, hub.OnlineUsers())
}

func TestChatHub_KickClosesLocalConnection(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	ctx := context.Background()
	conn := &fakeConn{}
	uc := hub.Register(ctx, "a", conn)

	require.NoError(t, hub.Kick(ctx, "a", "account blocked"))
	assert.True(t, conn.isClosed())
	got := conn.written()
	require.Len(t, got, 1)
	assert.Equal(t, EventTypeKicked, got[0].Type)
	assert.Equal(t, "account blocked", got[0].Error)

	// the read loop owns unregistration
	assert.True(t, hub.Online("a"))
	hub.Unregister(ctx, uc)
	assert.False(t, hub.Online("a"))

	err := hub.Kick(ctx, "a", "account blocked")
	assert.ErrorIs(t, err, ErrRecipientOffline)
}

func TestChatHub_KickClosesEvenWhenWriteFails(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	conn := &fakeConn{err: errors.New("broken pipe")}
	hub.Register(context.Background(), "a", conn)

	require.NoError(t, hub.Kick(context.Background(), "a", "account blocked"))
	assert.True(t, conn.isClosed())
}

func TestChatHub_FanOutKickClosesConnection(t *testing.T) {
	hub := NewChatHub(nil, zerolog.Nop())
	conn := &fakeConn{}
	hub.Register(context.Background(), "a", conn)

	hub.fanOut(context.Background(), ChatEvent{Type: EventTypeKicked, To: "a", Error: "account blocked"})
	assert.True(t, conn.isClosed())
	assert.Len(t, conn.written(), 1)
}
