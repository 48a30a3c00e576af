package app

import (
	"context"
	"encoding/json"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	memberdomain "realtime_chat_service/internal/member/domain"
	memberrepo "realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/config"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Session connection context handed to every event handler
type Session struct {
	Client  *Client
	Member  *memberdomain.Member
	limiter *rate.Limiter
	log     *logger.LogInfo
}

// UserID owner of the connection
func (s *Session) UserID() string {
	return s.Client.UserID
}

type eventHandler func(ctx context.Context, s *Session, data json.RawMessage) error

// SessionManager bridge live connections to the persisted chat state
type SessionManager struct {
	presence   *PresenceRegistry
	rooms      *RoomRegistry
	dispatcher *Dispatcher

	auth      *Authenticator
	messageUC *MessageUseCase
	roomUC    *RoomUseCase
	members   memberrepo.MemberRepository
	presPub   repository.PresencePublisher

	cfg      config.SessionConfig
	tracer   trace.Tracer
	now      func() time.Time
	handlers map[domain.Event]eventHandler
}

// NewSessionManager registries are owned by the manager for the process lifetime
func NewSessionManager(
	auth *Authenticator,
	messageUC *MessageUseCase,
	roomUC *RoomUseCase,
	members memberrepo.MemberRepository,
	presPub repository.PresencePublisher,
	cfg config.SessionConfig,
) *SessionManager {
	if presPub == nil {
		presPub = repository.NewNopPresencePublisher()
	}
	rooms := NewRoomRegistry()
	m := &SessionManager{
		presence:   NewPresenceRegistry(),
		rooms:      rooms,
		dispatcher: NewDispatcher(rooms),
		auth:       auth,
		messageUC:  messageUC,
		roomUC:     roomUC,
		members:    members,
		presPub:    presPub,
		cfg:        cfg.WithDefaults(),
		tracer:     otel.Tracer("realtime_chat_service/chat"),
		now:        defaultNow,
	}
	m.handlers = map[domain.Event]eventHandler{
		domain.JoinChat:      m.onJoinChat,
		domain.LeaveChat:     m.onLeaveChat,
		domain.SendMessage:   m.onSendMessage,
		domain.EditMessage:   m.onEditMessage,
		domain.UnsendMessage: m.onUnsendMessage,
		domain.DeleteForMe:   m.onDeleteForMe,
		domain.MessageSeen:   m.onMessageSeen,
		domain.MarkAsRead:    m.onMarkAsRead,
		domain.Typing:        m.onTyping(domain.Typing),
		domain.StopTyping:    m.onTyping(domain.StopTyping),
		domain.ClearChat:     m.onClearChat,
		domain.ReactMessage:  m.onReactMessage,
	}
	return m
}

// Authenticate handshake token -> member
func (m *SessionManager) Authenticate(ctx context.Context, tokenStr string) (*memberdomain.Member, error) {
	ctx, span := m.tracer.Start(ctx, "chat.handshake")
	defer span.End()

	member, err := m.auth.Authenticate(ctx, tokenStr)
	if err != nil {
		span.SetStatus(codes.Error, string(errprocess.KindOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("chat.user_id", member.MemberID))
	return member, nil
}

// ValidateSession REST 請求也要對應到有效的 login session
func (m *SessionManager) ValidateSession(ctx context.Context, tokenStr string) error {
	_, err := m.auth.Authenticate(ctx, tokenStr)
	return err
}

// Config effective session tuning
func (m *SessionManager) Config() config.SessionConfig {
	return m.cfg
}

// Connect register connection, auto-subscribe the user's chats, announce online on the first connection
func (m *SessionManager) Connect(ctx context.Context, member *memberdomain.Member) *Session {
	userID := member.MemberID
	c := NewClient(userID, m.cfg.SendBuffer)
	s := &Session{
		Client:  c,
		Member:  member,
		limiter: rate.NewLimiter(rate.Limit(m.cfg.EventsPerSecond), m.cfg.EventBurst),
		log:     logger.Log.With(zap.String("conn_id", c.ID), zap.String("user_id", userID)),
	}

	metrics.IncWSActive()
	first := m.presence.MarkOnline(userID, c)

	chatIDs, err := m.roomUC.ChatIDsOf(ctx, userID)
	if err != nil {
		s.log.Error("load chats for auto-subscribe failed", zap.Error(err))
	}
	for _, id := range chatIDs {
		m.rooms.Subscribe(id, c)
	}

	if first {
		metrics.IncOnline()
		if err := m.members.SetOnlineStatus(ctx, userID, true, nil); err != nil {
			s.log.Error("set online status failed", zap.Error(err))
		}
		event := domain.OnlineStatusEvent{UserID: userID, IsOnline: true}
		m.dispatcher.BroadcastToRooms(chatIDs, domain.UserOnlineStatus, event, userID)
		if err := m.presPub.PublishPresence(ctx, event); err != nil {
			s.log.Warn("publish presence failed", zap.Error(err))
		}
	}

	s.log.Info("websocket connected", zap.Int("chats", len(chatIDs)), zap.Bool("first", first))
	return s
}

// Disconnect deregister connection, announce offline when it was the last one
func (m *SessionManager) Disconnect(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandlerTimeout)
	defer cancel()

	userID := s.UserID()
	// 先 close 再移除, 之後的 SubscribeUsers 不會再加入這個 client
	s.Client.Close()
	now := m.now()
	last := m.presence.MarkOffline(userID, s.Client, now)
	subscribed := m.rooms.RemoveClient(s.Client)
	metrics.DecWSActive()

	if !last {
		s.log.Info("websocket disconnected", zap.Bool("last", false))
		return
	}
	metrics.DecOnline()

	if err := m.members.SetOnlineStatus(ctx, userID, false, &now); err != nil {
		s.log.Error("set offline status failed", zap.Error(err))
	}
	// 同一時間重新連線, offline 寫入可能蓋掉新連線的 online
	if m.presence.IsOnline(userID) {
		if err := m.members.SetOnlineStatus(ctx, userID, true, nil); err != nil {
			s.log.Error("restore online status failed", zap.Error(err))
		}
		return
	}

	chatIDs, err := m.roomUC.ChatIDsOf(ctx, userID)
	if err != nil {
		s.log.Error("load chats for offline broadcast failed", zap.Error(err))
		chatIDs = subscribed
	}
	event := domain.OnlineStatusEvent{UserID: userID, IsOnline: false, LastSeen: &now}
	m.dispatcher.BroadcastToRooms(chatIDs, domain.UserOnlineStatus, event, userID)
	if err := m.presPub.PublishPresence(ctx, event); err != nil {
		s.log.Warn("publish presence failed", zap.Error(err))
	}
	s.log.Info("websocket disconnected", zap.Bool("last", true))
}

// HandleFrame decode and dispatch one inbound frame, errors go back as errorMessage
func (m *SessionManager) HandleFrame(s *Session, raw []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.log.Debug("invalid frame", zap.Error(err))
		m.sendError(s, errprocess.Set(errprocess.KindValidation, "Invalid message format"))
		metrics.IncWSEvent("invalid", "validation")
		return
	}

	if !s.limiter.Allow() {
		m.sendError(s, errprocess.Set(errprocess.KindRateLimited, "Too many events, slow down"))
		metrics.IncWSEvent(string(req.Event), string(errprocess.KindRateLimited))
		return
	}

	handler, ok := m.handlers[req.Event]
	if !ok {
		m.sendError(s, errprocess.Set(errprocess.KindValidation, "Unknown event"))
		metrics.IncWSEvent("unknown", "validation")
		return
	}

	// 連線斷開不中斷已開始的 handler
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandlerTimeout)
	defer cancel()
	ctx, span := m.tracer.Start(ctx, "chat.event."+string(req.Event),
		trace.WithAttributes(
			attribute.String("chat.user_id", s.UserID()),
			attribute.String("chat.conn_id", s.Client.ID),
		))
	defer span.End()

	err := handler(ctx, s, req.Data)
	if err == nil {
		metrics.IncWSEvent(string(req.Event), "ok")
		return
	}

	kind := errprocess.KindOf(err)
	span.SetStatus(codes.Error, string(kind))
	metrics.IncWSEvent(string(req.Event), string(kind))
	if kind == errprocess.KindStore {
		s.log.Error("websocket event failed", zap.String("event", string(req.Event)), zap.Error(err))
	} else {
		s.log.Debug("websocket event rejected", zap.String("event", string(req.Event)), zap.Error(err))
	}
	m.sendError(s, err)
}

func (m *SessionManager) sendError(s *Session, err error) {
	m.dispatcher.Unicast(s.Client, domain.ErrorMessage, domain.ErrorEvent{Message: errprocess.UserMessage(err)})
}

func decode(data json.RawMessage, v interface{}, event domain.Event) error {
	if len(data) == 0 {
		return errprocess.Set(errprocess.KindValidation, "Invalid data for "+string(event))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errprocess.Set(errprocess.KindValidation, "Invalid data for "+string(event))
	}
	return nil
}

func (m *SessionManager) onJoinChat(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.ChatRef
	if err := decode(data, &req, domain.JoinChat); err != nil {
		return err
	}
	if !validID(req.ChatID) {
		return errprocess.Set(errprocess.KindValidation, "Invalid chat ID")
	}
	m.rooms.Subscribe(req.ChatID, s.Client)
	return nil
}

func (m *SessionManager) onLeaveChat(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.ChatRef
	if err := decode(data, &req, domain.LeaveChat); err != nil {
		return err
	}
	m.rooms.Unsubscribe(req.ChatID, s.Client)
	return nil
}

func (m *SessionManager) onSendMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.SendMessageRequest
	if err := decode(data, &req, domain.SendMessage); err != nil {
		return err
	}
	res, err := m.messageUC.Send(ctx, s.UserID(), req)
	if err != nil {
		return err
	}

	m.dispatcher.Unicast(s.Client, domain.MessageSent, res.View.For(s.UserID()))
	m.dispatcher.BroadcastToRoomFunc(req.ChatID, domain.MessageReceived, s.Client, func(c *Client) interface{} {
		return res.View.For(c.UserID)
	})

	if res.IsLatest() {
		m.dispatcher.BroadcastToRoomFunc(req.ChatID, domain.ChatUpdated, nil, func(c *Client) interface{} {
			return domain.ChatUpdatedEvent{
				ChatID:        req.ChatID,
				LatestMessage: res.View.For(c.UserID),
				LastRead:      res.Room.LastRead,
			}
		})
	}
	return nil
}

func (m *SessionManager) onEditMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.EditMessageRequest
	if err := decode(data, &req, domain.EditMessage); err != nil {
		return err
	}
	view, err := m.messageUC.Edit(ctx, s.UserID(), req)
	if err != nil {
		return err
	}
	m.dispatcher.BroadcastToRoomFunc(view.Chat, domain.MessageEdited, nil, func(c *Client) interface{} {
		return view.For(c.UserID)
	})
	return nil
}

func (m *SessionManager) onUnsendMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.MessageRef
	if err := decode(data, &req, domain.UnsendMessage); err != nil {
		return err
	}
	removed, err := m.messageUC.Unsend(ctx, s.UserID(), req.MessageID)
	if err != nil {
		return err
	}
	m.dispatcher.BroadcastToRoom(removed.Chat, domain.MessageUnsent, removed, nil)
	return nil
}

func (m *SessionManager) onDeleteForMe(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.MessageRef
	if err := decode(data, &req, domain.DeleteForMe); err != nil {
		return err
	}
	removed, _, err := m.messageUC.DeleteForMe(ctx, s.UserID(), req.MessageID)
	if err != nil {
		return err
	}
	m.dispatcher.Unicast(s.Client, domain.MessageDeletedForMe, removed)
	return nil
}

func (m *SessionManager) onMessageSeen(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.MessageSeenRequest
	if err := decode(data, &req, domain.MessageSeen); err != nil {
		return err
	}
	event, err := m.messageUC.MarkSeen(ctx, s.UserID(), req)
	if err != nil {
		return err
	}
	m.dispatcher.BroadcastToRoom(event.ChatID, domain.MessageSeen, event, nil)
	return nil
}

func (m *SessionManager) onMarkAsRead(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.ChatRef
	if err := decode(data, &req, domain.MarkAsRead); err != nil {
		return err
	}
	ack, err := m.roomUC.MarkAsRead(ctx, s.UserID(), req.ChatID)
	if err != nil {
		return err
	}
	m.dispatcher.Unicast(s.Client, domain.ChatRead, ack)
	return nil
}

func (m *SessionManager) onTyping(event domain.Event) eventHandler {
	return func(ctx context.Context, s *Session, data json.RawMessage) error {
		var req domain.ChatRef
		if err := decode(data, &req, event); err != nil {
			return err
		}
		m.dispatcher.BroadcastToRoom(req.ChatID, event, domain.TypingEvent{UserID: s.UserID(), ChatID: req.ChatID}, s.Client)
		return nil
	}
}

func (m *SessionManager) onClearChat(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.ChatRef
	if err := decode(data, &req, domain.ClearChat); err != nil {
		return err
	}
	event, err := m.roomUC.ClearChat(ctx, s.UserID(), req.ChatID)
	if err != nil {
		return err
	}
	m.dispatcher.Unicast(s.Client, domain.ChatCleared, event)
	return nil
}

func (m *SessionManager) onReactMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var req domain.ReactMessageRequest
	if err := decode(data, &req, domain.ReactMessage); err != nil {
		return err
	}
	event, err := m.messageUC.React(ctx, s.UserID(), req)
	if err != nil {
		return err
	}
	m.dispatcher.BroadcastToRoom(event.Chat, domain.MessageReactionUpdated, event, nil)
	return nil
}

// SubscribeUsers subscribe every live connection of users to a room, used after REST chat creation
func (m *SessionManager) SubscribeUsers(roomID string, userIDs []string) {
	for _, u := range userIDs {
		for _, c := range m.presence.Connections(u) {
			m.rooms.Subscribe(roomID, c)
		}
	}
}

// UnsubscribeUser drop every live connection of user from a room, used after group removal
func (m *SessionManager) UnsubscribeUser(roomID, userID string) {
	for _, c := range m.presence.Connections(userID) {
		m.rooms.Unsubscribe(roomID, c)
	}
}

// IsOnline user has at least one live connection
func (m *SessionManager) IsOnline(userID string) bool {
	return m.presence.IsOnline(userID)
}

// CloseAll close every live connection, used on shutdown
func (m *SessionManager) CloseAll() {
	for _, c := range m.presence.All() {
		c.Close()
	}
}
