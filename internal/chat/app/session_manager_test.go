package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	memberdomain "realtime_chat_service/internal/member/domain"
	memberrepo "realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/token"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_SendMessageFanOut(t *testing.T) {
	f := newChatFixture(t)
	m := f.newManager()

	alice := m.Connect(f.ctx, f.member(t, f.alice))
	alicePhone := m.Connect(f.ctx, f.member(t, f.alice))
	bob := m.Connect(f.ctx, f.member(t, f.bob))
	drain(t, alice.Client)
	drain(t, alicePhone.Client)
	drain(t, bob.Client)

	m.HandleFrame(alice, frame(t, domain.SendMessage, domain.SendMessageRequest{ChatID: f.chatID, Content: "hi"}))

	got := drain(t, alice.Client)
	assert.Equal(t, []domain.Event{domain.MessageSent, domain.ChatUpdated}, eventsOf(got))
	var sent domain.MessageView
	require.NoError(t, json.Unmarshal(got[0].Data, &sent))
	assert.True(t, *sent.FromSelf)

	// sender's other device sees it as its own message
	phone := drain(t, alicePhone.Client)
	assert.Equal(t, []domain.Event{domain.MessageReceived, domain.ChatUpdated}, eventsOf(phone))
	var onPhone domain.MessageView
	require.NoError(t, json.Unmarshal(phone[0].Data, &onPhone))
	assert.True(t, *onPhone.FromSelf)

	got = drain(t, bob.Client)
	assert.Equal(t, []domain.Event{domain.MessageReceived, domain.ChatUpdated}, eventsOf(got))
	var recv domain.MessageView
	require.NoError(t, json.Unmarshal(got[0].Data, &recv))
	assert.False(t, *recv.FromSelf)
	assert.Equal(t, sent.ID, recv.ID)

	var updated domain.ChatUpdatedEvent
	require.NoError(t, json.Unmarshal(got[1].Data, &updated))
	assert.Equal(t, f.chatID, updated.ChatID)
	require.NotNil(t, updated.LatestMessage)
	assert.Equal(t, sent.ID, updated.LatestMessage.ID)
}

func TestSessionManager_ErrorsStayOnConnection(t *testing.T) {
	f := newChatFixture(t)
	m := f.newManager()

	carol := m.Connect(f.ctx, f.member(t, f.carol))
	bob := m.Connect(f.ctx, f.member(t, f.bob))
	m.HandleFrame(carol, frame(t, domain.JoinChat, domain.ChatRef{ChatID: f.chatID}))
	drain(t, bob.Client)

	cases := []struct {
		name string
		raw  []byte
		want string
	}{
		{"non participant send", frame(t, domain.SendMessage, domain.SendMessageRequest{ChatID: f.chatID, Content: "hi"}), "Not authorized to send message to this chat"},
		{"invalid json", []byte("{"), "Invalid message format"},
		{"unknown event", frame(t, "dance", domain.ChatRef{}), "Unknown event"},
		{"missing data", []byte(`{"event":"sendMessage"}`), "Invalid data for sendMessage"},
		{"missing message", frame(t, domain.EditMessage, domain.EditMessageRequest{MessageID: uuid.NewString(), Content: "x"}), "Message not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m.HandleFrame(carol, tc.raw)
			got := drain(t, carol.Client)
			require.Len(t, got, 1)
			assert.Equal(t, domain.ErrorMessage, got[0].Event)
			var e domain.ErrorEvent
			require.NoError(t, json.Unmarshal(got[0].Data, &e))
			assert.Equal(t, tc.want, e.Message)
			assert.Empty(t, drain(t, bob.Client))
			assert.False(t, carol.Client.IsClosed())
		})
	}
}

func TestSessionManager_RateLimited(t *testing.T) {
	f := newChatFixture(t)
	m := NewSessionManager(NewAuthenticator(f.members, nil), f.messageUC, f.roomUC, f.members, nil,
		config.SessionConfig{SendBuffer: 16, EventsPerSecond: 0.001, EventBurst: 1})

	alice := m.Connect(f.ctx, f.member(t, f.alice))
	drain(t, alice.Client)

	m.HandleFrame(alice, frame(t, domain.Typing, domain.ChatRef{ChatID: f.chatID}))
	m.HandleFrame(alice, frame(t, domain.Typing, domain.ChatRef{ChatID: f.chatID}))

	got := drain(t, alice.Client)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ErrorMessage, got[0].Event)
	assert.JSONEq(t, `{"message":"Too many events, slow down"}`, string(got[0].Data))
}

func TestSessionManager_RoomEvents(t *testing.T) {
	f := newChatFixture(t)
	m := f.newManager()

	alice := m.Connect(f.ctx, f.member(t, f.alice))
	bob := m.Connect(f.ctx, f.member(t, f.bob))
	drain(t, alice.Client)
	drain(t, bob.Client)

	msg := f.send(t, f.alice, "hi")

	t.Run("typing reaches room minus sender", func(t *testing.T) {
		m.HandleFrame(alice, frame(t, domain.Typing, domain.ChatRef{ChatID: f.chatID}))
		assert.Empty(t, drain(t, alice.Client))
		got := drain(t, bob.Client)
		require.Len(t, got, 1)
		assert.Equal(t, domain.Typing, got[0].Event)
		assert.JSONEq(t, `{"userId":"`+f.alice+`","chatId":"`+f.chatID+`"}`, string(got[0].Data))
	})

	t.Run("edit broadcast to whole room", func(t *testing.T) {
		m.HandleFrame(alice, frame(t, domain.EditMessage, domain.EditMessageRequest{MessageID: msg.ID, Content: "edited"}))
		assert.Equal(t, []domain.Event{domain.MessageEdited}, eventsOf(drain(t, alice.Client)))
		assert.Equal(t, []domain.Event{domain.MessageEdited}, eventsOf(drain(t, bob.Client)))
	})

	t.Run("seen and react", func(t *testing.T) {
		m.HandleFrame(bob, frame(t, domain.MessageSeen, domain.MessageSeenRequest{ChatID: f.chatID, MessageID: msg.ID}))
		m.HandleFrame(bob, frame(t, domain.ReactMessage, domain.ReactMessageRequest{MessageID: msg.ID, Emoji: "👍"}))
		want := []domain.Event{domain.MessageSeen, domain.MessageReactionUpdated}
		assert.Equal(t, want, eventsOf(drain(t, alice.Client)))
		assert.Equal(t, want, eventsOf(drain(t, bob.Client)))
	})

	t.Run("unicast acks", func(t *testing.T) {
		m.HandleFrame(bob, frame(t, domain.MarkAsRead, domain.ChatRef{ChatID: f.chatID}))
		m.HandleFrame(bob, frame(t, domain.ClearChat, domain.ChatRef{ChatID: f.chatID}))
		m.HandleFrame(bob, frame(t, domain.DeleteForMe, domain.MessageRef{MessageID: msg.ID}))
		assert.Equal(t, []domain.Event{domain.ChatRead, domain.ChatCleared, domain.MessageDeletedForMe}, eventsOf(drain(t, bob.Client)))
		assert.Empty(t, drain(t, alice.Client))
	})

	t.Run("unsend", func(t *testing.T) {
		m.HandleFrame(alice, frame(t, domain.UnsendMessage, domain.MessageRef{MessageID: msg.ID}))
		got := drain(t, bob.Client)
		require.Len(t, got, 1)
		assert.Equal(t, domain.MessageUnsent, got[0].Event)
		assert.JSONEq(t, `{"messageId":"`+msg.ID+`","chat":"`+f.chatID+`"}`, string(got[0].Data))
		drain(t, alice.Client)
	})

	t.Run("leave then join", func(t *testing.T) {
		m.HandleFrame(bob, frame(t, domain.LeaveChat, domain.ChatRef{ChatID: f.chatID}))
		m.HandleFrame(alice, frame(t, domain.Typing, domain.ChatRef{ChatID: f.chatID}))
		assert.Empty(t, drain(t, bob.Client))

		m.HandleFrame(bob, frame(t, domain.JoinChat, domain.ChatRef{ChatID: f.chatID}))
		m.HandleFrame(alice, frame(t, domain.StopTyping, domain.ChatRef{ChatID: f.chatID}))
		assert.Equal(t, []domain.Event{domain.StopTyping}, eventsOf(drain(t, bob.Client)))
	})
}

func TestSessionManager_Presence(t *testing.T) {
	f := newChatFixture(t)
	m := f.newManager()
	presPub := new(MockPresencePublisher)
	presPub.On("PublishPresence", mock.Anything, mock.Anything).Return(nil)
	m.presPub = presPub

	bob := m.Connect(f.ctx, f.member(t, f.bob))
	drain(t, bob.Client)

	alice := m.Connect(f.ctx, f.member(t, f.alice))
	online := drain(t, bob.Client)
	require.Len(t, online, 1)
	assert.Equal(t, domain.UserOnlineStatus, online[0].Event)
	assert.True(t, f.member(t, f.alice).IsOnline())

	alicePhone := m.Connect(f.ctx, f.member(t, f.alice))
	assert.Empty(t, drain(t, bob.Client), "second device is not a transition")

	m.Disconnect(alicePhone)
	assert.Empty(t, drain(t, bob.Client))
	assert.True(t, m.IsOnline(f.alice))

	f.clock.Advance(time.Minute)
	m.Disconnect(alice)

	got := drain(t, bob.Client)
	require.Len(t, got, 1, "exactly one offline event")
	var status domain.OnlineStatusEvent
	require.NoError(t, json.Unmarshal(got[0].Data, &status))
	assert.Equal(t, f.alice, status.UserID)
	assert.False(t, status.IsOnline)
	require.NotNil(t, status.LastSeen)
	assert.True(t, f.clock.Now().Equal(*status.LastSeen))

	stored := f.member(t, f.alice)
	assert.False(t, stored.IsOnline())
	require.NotNil(t, stored.LastSeen)
	assert.True(t, f.clock.Now().Equal(*stored.LastSeen))

	assert.True(t, alice.Client.IsClosed())
	assert.Empty(t, m.rooms.RoomsOf(alice.Client))
	presPub.AssertNumberOfCalls(t, "PublishPresence", 3)
}

// offlineHookRepository run hook right before the first offline write lands
type offlineHookRepository struct {
	memberrepo.MemberRepository
	hook func()
}

func (r *offlineHookRepository) SetOnlineStatus(ctx context.Context, memberID string, online bool, lastSeen *time.Time) error {
	if !online && r.hook != nil {
		hook := r.hook
		r.hook = nil
		hook()
	}
	return r.MemberRepository.SetOnlineStatus(ctx, memberID, online, lastSeen)
}

func TestSessionManager_ReconnectDuringDisconnect(t *testing.T) {
	f := newChatFixture(t)
	m := f.newManager()
	repo := &offlineHookRepository{MemberRepository: f.members}
	m.members = repo

	bob := m.Connect(f.ctx, f.member(t, f.bob))
	alice := m.Connect(f.ctx, f.member(t, f.alice))
	drain(t, bob.Client)

	// 重新整理頁面: 新連線在舊連線的 offline 寫入之前完成
	var refreshed *Session
	repo.hook = func() {
		refreshed = m.Connect(f.ctx, f.member(t, f.alice))
	}
	m.Disconnect(alice)

	require.NotNil(t, refreshed)
	assert.True(t, m.IsOnline(f.alice))
	stored := f.member(t, f.alice)
	assert.True(t, stored.IsOnline(), "stored status follows the live connection")
	assert.Nil(t, stored.LastSeen)

	for _, ev := range drain(t, bob.Client) {
		if ev.Event != domain.UserOnlineStatus {
			continue
		}
		var status domain.OnlineStatusEvent
		require.NoError(t, json.Unmarshal(ev.Data, &status))
		assert.True(t, status.IsOnline, "no offline event while a connection is live")
	}
}

func TestSessionManager_SubscribeUsersSkipsClosed(t *testing.T) {
	f := newChatFixture(t)
	m := f.newManager()

	carol := m.Connect(f.ctx, f.member(t, f.carol))
	drain(t, carol.Client)

	// send buffer 滿了已關閉, read loop 還沒呼叫 Disconnect
	carol.Client.Close()
	group := f.createChat(t, true, f.alice, f.carol)
	m.SubscribeUsers(group, []string{f.carol})
	assert.False(t, m.rooms.IsSubscribed(group, carol.Client))

	m.Disconnect(carol)
	m.SubscribeUsers(group, []string{f.carol})
	assert.Empty(t, m.rooms.RoomsOf(carol.Client))
	assert.Equal(t, 0, m.rooms.RoomCount())
}

func TestSessionManager_SubscribeUsers(t *testing.T) {
	f := newChatFixture(t)
	m := f.newManager()

	carol := m.Connect(f.ctx, f.member(t, f.carol))
	drain(t, carol.Client)

	group := f.createChat(t, true, f.alice, f.carol)
	m.SubscribeUsers(group, []string{f.alice, f.carol})
	assert.True(t, m.rooms.IsSubscribed(group, carol.Client))

	m.UnsubscribeUser(group, f.carol)
	assert.False(t, m.rooms.IsSubscribed(group, carol.Client))

	m.CloseAll()
	assert.True(t, carol.Client.IsClosed())
}

func TestSessionManager_Authenticate(t *testing.T) {
	f := newChatFixture(t)
	token.Configure("test-secret", "realtime_chat_service")

	t.Run("session must match token", func(t *testing.T) {
		tokenStr, err := token.GenerateJWT(f.alice, string(token.RoleMember))
		require.NoError(t, err)

		sessions := new(MockSessionRepository)
		sessions.On("FindSession", mock.Anything, f.alice).Return(&memberdomain.MemberSession{
			Token:     tokenStr,
			MemberID:  f.alice,
			ExpiredAt: time.Now().Add(time.Hour),
		}, nil).Once()
		sessions.On("FindSession", mock.Anything, f.alice).Return(nil, memberrepo.ErrSessionNotFound).Once()

		m := NewSessionManager(NewAuthenticator(f.members, sessions), f.messageUC, f.roomUC, f.members, nil, config.SessionConfig{})

		member, err := m.Authenticate(context.Background(), tokenStr)
		require.NoError(t, err)
		assert.Equal(t, "Alice", member.Name)

		_, err = m.Authenticate(context.Background(), tokenStr)
		assert.Error(t, err)
		sessions.AssertExpectations(t)
	})

	t.Run("bad token", func(t *testing.T) {
		m := f.newManager()
		_, err := m.Authenticate(context.Background(), "garbage")
		assert.Error(t, err)
		_, err = m.Authenticate(context.Background(), "")
		assert.Error(t, err)
	})
}
