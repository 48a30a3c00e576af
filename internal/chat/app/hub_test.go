package app

import (
	"sync"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Enqueue(t *testing.T) {
	logger.SetNewNop()

	t.Run("slow consumer is closed on overflow", func(t *testing.T) {
		c := NewClient("u1", 2)
		assert.True(t, c.Enqueue([]byte("1")))
		assert.True(t, c.Enqueue([]byte("2")))
		assert.False(t, c.Enqueue([]byte("3")))
		assert.True(t, c.IsClosed())
		assert.False(t, c.Enqueue([]byte("4")))
	})

	t.Run("close is idempotent", func(t *testing.T) {
		c := NewClient("u1", 1)
		c.Close()
		c.Close()
		<-c.Done()
		assert.False(t, c.Enqueue([]byte("x")))
	})
}

func TestRoomRegistry(t *testing.T) {
	r := NewRoomRegistry()
	a, b := NewClient("a", 1), NewClient("b", 1)

	r.Subscribe("room1", a)
	r.Subscribe("room1", a)
	r.Subscribe("room1", b)
	r.Subscribe("room2", a)

	assert.Len(t, r.Subscribers("room1"), 2)
	assert.ElementsMatch(t, []string{"room1", "room2"}, r.RoomsOf(a))
	assert.True(t, r.IsSubscribed("room2", a))

	r.Unsubscribe("room2", a)
	r.Unsubscribe("room2", a)
	assert.Equal(t, 1, r.RoomCount(), "empty room is garbage collected")

	rooms := r.RemoveClient(a)
	assert.Equal(t, []string{"room1"}, rooms)
	assert.Empty(t, r.RoomsOf(a))
	assert.Equal(t, []*Client{b}, r.Subscribers("room1"))

	r.RemoveClient(b)
	assert.Equal(t, 0, r.RoomCount())
}

func TestRoomRegistry_ClosedClient(t *testing.T) {
	r := NewRoomRegistry()
	c := NewClient("a", 1)
	c.Close()

	r.Subscribe("room1", c)
	assert.False(t, r.IsSubscribed("room1", c))
	assert.Empty(t, r.RoomsOf(c))
	assert.Equal(t, 0, r.RoomCount())
}

func TestRoomRegistry_Concurrent(t *testing.T) {
	r := NewRoomRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("u", 1)
			r.Subscribe("room", c)
			_ = r.Subscribers("room")
			r.RemoveClient(c)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.RoomCount())
}

func TestPresenceRegistry_MultiDevice(t *testing.T) {
	p := NewPresenceRegistry()
	phone, laptop := NewClient("u1", 1), NewClient("u1", 1)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, p.MarkOnline("u1", phone))
	assert.False(t, p.MarkOnline("u1", laptop))
	assert.Equal(t, 1, p.OnlineCount())
	assert.Len(t, p.Connections("u1"), 2)

	assert.False(t, p.MarkOffline("u1", phone, at))
	assert.True(t, p.IsOnline("u1"))
	_, ok := p.LastSeen("u1")
	assert.False(t, ok)

	assert.True(t, p.MarkOffline("u1", laptop, at))
	assert.False(t, p.IsOnline("u1"))
	seen, ok := p.LastSeen("u1")
	require.True(t, ok)
	assert.Equal(t, at, seen)

	// unknown connection
	assert.False(t, p.MarkOffline("u1", laptop, at))
}

func TestDispatcher(t *testing.T) {
	logger.SetNewNop()
	rooms := NewRoomRegistry()
	d := NewDispatcher(rooms)

	alice1, alice2, bob := NewClient("alice", 8), NewClient("alice", 8), NewClient("bob", 8)
	for _, c := range []*Client{alice1, alice2, bob} {
		rooms.Subscribe("room", c)
	}
	rooms.Subscribe("other", bob)

	t.Run("broadcast excludes one connection", func(t *testing.T) {
		n := d.BroadcastToRoom("room", domain.Typing, domain.TypingEvent{UserID: "alice", ChatID: "room"}, alice1)
		assert.Equal(t, 2, n)
		assert.Empty(t, drain(t, alice1))
		assert.Equal(t, []domain.Event{domain.Typing}, eventsOf(drain(t, alice2)))
		assert.Equal(t, []domain.Event{domain.Typing}, eventsOf(drain(t, bob)))
	})

	t.Run("per recipient payload", func(t *testing.T) {
		calls := 0
		d.BroadcastToRoomFunc("room", domain.MessageReceived, nil, func(c *Client) interface{} {
			calls++
			return map[string]string{"for": c.UserID}
		})
		assert.Equal(t, 2, calls, "payload built once per user")
		got := drain(t, bob)
		require.Len(t, got, 1)
		assert.JSONEq(t, `{"for":"bob"}`, string(got[0].Data))
		drain(t, alice1)
		drain(t, alice2)
	})

	t.Run("across rooms once per connection", func(t *testing.T) {
		n := d.BroadcastToRooms([]string{"room", "other"}, domain.UserOnlineStatus, domain.OnlineStatusEvent{UserID: "alice"}, "alice")
		assert.Equal(t, 1, n)
		assert.Len(t, drain(t, bob), 1)
		assert.Empty(t, drain(t, alice1))
	})

	t.Run("slow subscriber does not block others", func(t *testing.T) {
		slow := NewClient("slow", 1)
		rooms.Subscribe("room", slow)
		d.BroadcastToRoom("room", domain.Typing, nil, nil)
		d.BroadcastToRoom("room", domain.StopTyping, nil, nil)

		assert.True(t, slow.IsClosed())
		assert.Equal(t, []domain.Event{domain.Typing, domain.StopTyping}, eventsOf(drain(t, bob)))
	})
}
