package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	memberdomain "realtime_chat_service/internal/member/domain"
	memberrepo "realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// chatFixture in-memory stores, three members and a private chat between alice and bob
type chatFixture struct {
	ctx     context.Context
	clock   *fakeClock
	rooms   repository.RoomRepository
	msgs    repository.MessageRepository
	members memberrepo.MemberRepository

	messageUC *MessageUseCase
	roomUC    *RoomUseCase

	alice, bob, carol string
	chatID            string
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	logger.SetNewNop()

	f := &chatFixture{
		ctx:   context.Background(),
		clock: newFakeClock(),
		rooms: repository.NewMemoryRoomRepository(),
		msgs:  repository.NewMemoryMessageRepository(),
		alice: uuid.NewString(),
		bob:   uuid.NewString(),
		carol: uuid.NewString(),
	}
	f.members = memberrepo.NewMemoryMemberRepository(
		&memberdomain.Member{ID: 1, MemberID: f.alice, Name: "Alice", Username: "alice"},
		&memberdomain.Member{ID: 2, MemberID: f.bob, Name: "Bob", Username: "bob"},
		&memberdomain.Member{ID: 3, MemberID: f.carol, Name: "Carol", Username: "carol"},
	)

	f.messageUC = NewMessageUseCase(f.rooms, f.msgs, f.members, nil, 0)
	f.messageUC.now = f.clock.Now
	f.roomUC = NewRoomUseCase(f.rooms, f.msgs, f.members, nil)
	f.roomUC.now = f.clock.Now

	f.chatID = f.createChat(t, false, f.alice, f.bob)
	return f
}

func (f *chatFixture) createChat(t *testing.T, group bool, participants ...string) string {
	t.Helper()
	room := &domain.ChatRoom{
		ID:           uuid.NewString(),
		IsGroupChat:  group,
		Participants: participants,
		GroupAdmins:  []string{},
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	if group {
		room.Name = "group"
		room.GroupAdmins = []string{participants[0]}
	} else {
		room.PairKey = domain.PrivatePairKey(participants[0], participants[1])
	}
	require.NoError(t, f.rooms.CreateRoom(f.ctx, room))
	return room.ID
}

func (f *chatFixture) send(t *testing.T, userID, content string) *domain.MessageView {
	t.Helper()
	res, err := f.messageUC.Send(f.ctx, userID, domain.SendMessageRequest{ChatID: f.chatID, Content: content})
	require.NoError(t, err)
	return res.View
}

func (f *chatFixture) room(t *testing.T) *domain.ChatRoom {
	t.Helper()
	room, err := f.rooms.FindByID(f.ctx, f.chatID)
	require.NoError(t, err)
	return room
}

func (f *chatFixture) newManager() *SessionManager {
	m := NewSessionManager(
		NewAuthenticator(f.members, nil),
		f.messageUC,
		f.roomUC,
		f.members,
		nil,
		config.SessionConfig{SendBuffer: 64, EventsPerSecond: 1000, EventBurst: 1000},
	)
	m.now = f.clock.Now
	return m
}

func (f *chatFixture) member(t *testing.T, id string) *memberdomain.Member {
	t.Helper()
	m, err := f.members.FindByID(f.ctx, id)
	require.NoError(t, err)
	return m
}

func frame(t *testing.T, event domain.Event, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(domain.WSRequest{Event: event, Data: raw})
	require.NoError(t, err)
	return b
}

type received struct {
	Event domain.Event    `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// drain read every queued frame without blocking
func drain(t *testing.T, c *Client) []received {
	t.Helper()
	out := []received{}
	for {
		select {
		case b := <-c.Send():
			var r received
			require.NoError(t, json.Unmarshal(b, &r))
			out = append(out, r)
		default:
			return out
		}
	}
}

func eventsOf(rs []received) []domain.Event {
	out := make([]domain.Event, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Event)
	}
	return out
}

func findEvent(rs []received, event domain.Event) (received, bool) {
	for _, r := range rs {
		if r.Event == event {
			return r, true
		}
	}
	return received{}, false
}
