package router

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/api/handlers"
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	memberdomain "realtime_chat_service/internal/member/domain"
	memberrepo "realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Event domain.Event    `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startServer(t *testing.T) (string, map[string]string) {
	t.Helper()
	logger.SetNewNop()
	token.Configure("router-secret", "")

	members := memberrepo.NewMemoryMemberRepository(
		&memberdomain.Member{MemberID: "alice", Name: "Alice", Username: "alice"},
		&memberdomain.Member{MemberID: "bob", Name: "Bob", Username: "bob"},
	)
	rooms := repository.NewMemoryRoomRepository()
	msgs := repository.NewMemoryMessageRepository()
	events := repository.NewNopEventPublisher()

	messageUC := app.NewMessageUseCase(rooms, msgs, members, events, 0)
	roomUC := app.NewRoomUseCase(rooms, msgs, members, events)
	manager := app.NewSessionManager(app.NewAuthenticator(members, nil), messageUC, roomUC, members, nil,
		config.SessionConfig{PingInterval: time.Second})

	r := fiber.New(fiber.Config{DisableStartupMessage: true, Immutable: true})
	RegisterRoutes(r, app.NewChatWebsocketHandler(manager), handlers.NewChatHandler(roomUC, messageUC, manager))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = r.Listener(ln)
	}()
	t.Cleanup(func() {
		manager.CloseAll()
		_ = r.Shutdown()
	})

	tokens := map[string]string{}
	for _, id := range []string{"alice", "bob"} {
		tk, err := token.GenerateJWT(id, string(token.RoleMember))
		require.NoError(t, err)
		tokens[id] = tk
	}
	return ln.Addr().String(), tokens
}

func dial(t *testing.T, addr, tk string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws?auth="+tk, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skip frames until event arrives
func readUntil(t *testing.T, conn *websocket.Conn, event domain.Event) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, b, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var f wsFrame
		require.NoError(t, json.Unmarshal(b, &f))
		if f.Event == event {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, event domain.Event, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(domain.WSRequest{Event: event, Data: raw}))
}

func TestHealthAndMetrics(t *testing.T) {
	addr, _ := startServer(t)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "chat service start!", string(b))

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), "chat_ws_active_connections")

	resp, err = http.Get("http://" + addr + "/api/chats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketHandshakeRejected(t *testing.T) {
	addr, _ := startServer(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws?auth=bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketMessageFlow(t *testing.T) {
	addr, tokens := startServer(t)

	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/api/chats/private/bob", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokens["alice"])
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var chat map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	chatID := chat["_id"].(string)

	bob := dial(t, addr, tokens["bob"])
	alice := dial(t, addr, tokens["alice"])

	online := readUntil(t, bob, domain.UserOnlineStatus)
	var status domain.OnlineStatusEvent
	require.NoError(t, json.Unmarshal(online.Data, &status))
	assert.Equal(t, "alice", status.UserID)
	assert.True(t, status.IsOnline)

	send(t, alice, domain.SendMessage, domain.SendMessageRequest{ChatID: chatID, Content: "hi bob"})

	sent := readUntil(t, alice, domain.MessageSent)
	var own domain.MessageView
	require.NoError(t, json.Unmarshal(sent.Data, &own))
	assert.Equal(t, "hi bob", own.Content)
	require.NotNil(t, own.FromSelf)
	assert.True(t, *own.FromSelf)

	got := readUntil(t, bob, domain.MessageReceived)
	var theirs domain.MessageView
	require.NoError(t, json.Unmarshal(got.Data, &theirs))
	assert.Equal(t, own.ID, theirs.ID)
	require.NotNil(t, theirs.FromSelf)
	assert.False(t, *theirs.FromSelf)

	t.Run("error stays on the connection", func(t *testing.T) {
		require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
		f := readUntil(t, alice, domain.ErrorMessage)
		assert.Contains(t, string(f.Data), "Invalid message format")
	})

	t.Run("offline on disconnect", func(t *testing.T) {
		require.NoError(t, alice.Close())
		f := readUntil(t, bob, domain.UserOnlineStatus)
		var st domain.OnlineStatusEvent
		require.NoError(t, json.Unmarshal(f.Data, &st))
		assert.Equal(t, "alice", st.UserID)
		assert.False(t, st.IsOnline)
		assert.NotNil(t, st.LastSeen)
	})
}
