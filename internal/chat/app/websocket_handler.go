package app

import (
	"context"
	"time"

	memberdomain "realtime_chat_service/internal/member/domain"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// LocalMember c.Locals key of the authenticated member
const LocalMember = "chatMember"

const writeWait = 10 * time.Second

// ChatWebsocketHandler fiber websocket transport of SessionManager
type ChatWebsocketHandler struct {
	manager *SessionManager
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(manager *SessionManager) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{manager: manager}
}

// Upgrade 在 upgrade 前驗證 token, 失敗時不建立連線
func (h *ChatWebsocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.manager.Config().HandlerTimeout)
	defer cancel()

	member, err := h.manager.Authenticate(ctx, middlewares.ExtractToken(c))
	if err != nil {
		if errprocess.IsKind(err, errprocess.KindAuthentication) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": errprocess.UserMessage(err)})
		}
		logger.Log.Error("websocket handshake failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": errprocess.UserMessage(err)})
	}

	c.Locals(LocalMember, member)
	return c.Next()
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(conn *websocket.Conn) {
	member, ok := conn.Locals(LocalMember).(*memberdomain.Member)
	if !ok {
		closeWebSocketConnection(conn, websocket.ClosePolicyViolation, "unauthenticated")
		return
	}

	cfg := h.manager.Config()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HandlerTimeout)
	session := h.manager.Connect(ctx, member)
	cancel()

	pongWait := cfg.PingInterval * 2
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writerDone := make(chan struct{})
	go h.writePump(conn, session, writerDone)

	defer func() {
		session.Client.Close()
		<-writerDone
		h.manager.Disconnect(session)
		conn.Close()
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				session.log.Debug("connection closed", zap.Error(err))
			} else if !session.Client.IsClosed() {
				//直接斷線 1006 或 pong timeout
				session.log.Info("websocket read error", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		// 同一連線依序處理
		h.manager.HandleFrame(session, message)
	}
}

// writePump 唯一寫入 conn 的 goroutine
func (h *ChatWebsocketHandler) writePump(conn *websocket.Conn, s *Session, done chan<- struct{}) {
	ticker := time.NewTicker(h.manager.Config().PingInterval)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case frame := <-s.Client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Info("write message error", zap.Error(err))
				s.Client.Close()
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Info("ping error", zap.Error(err))
				s.Client.Close()
				conn.Close()
				return
			}
		case <-s.Client.Done():
			// slow consumer 或 read loop 結束, 讓 ReadMessage 返回
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			conn.Close()
			return
		}
	}
}

func closeWebSocketConnection(conn *websocket.Conn, code int, reason string) {
	if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason)); err != nil {
		logger.Log.Error("Failed to send CloseMessage", zap.Error(err))
	}
	conn.Close()
}
