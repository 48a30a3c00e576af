package app

import (
	"context"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	memberdomain "realtime_chat_service/internal/member/domain"

	"github.com/stretchr/testify/mock"
)

// MockRoomRepository Mock RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) room(args mock.Arguments) (*domain.ChatRoom, error) {
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateRoom moke create room
func (m *MockRoomRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	return m.Called(ctx, room).Error(0)
}

// FindByID moke find room by room id
func (m *MockRoomRepository) FindByID(ctx context.Context, chatID string) (*domain.ChatRoom, error) {
	return m.room(m.Called(ctx, chatID))
}

// FindByParticipant moke find rooms of user
func (m *MockRoomRepository) FindByParticipant(ctx context.Context, userID string) ([]*domain.ChatRoom, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]*domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindPrivateRoom moke find one private room
func (m *MockRoomRepository) FindPrivateRoom(ctx context.Context, userA, userB string) (*domain.ChatRoom, error) {
	return m.room(m.Called(ctx, userA, userB))
}

// DeleteRoom moke delete room
func (m *MockRoomRepository) DeleteRoom(ctx context.Context, chatID string) error {
	return m.Called(ctx, chatID).Error(0)
}

// SetLatestMessage moke set latest message
func (m *MockRoomRepository) SetLatestMessage(ctx context.Context, chatID, messageID string, at time.Time) (*domain.ChatRoom, error) {
	return m.room(m.Called(ctx, chatID, messageID, at))
}

// ReplaceLatestMessage moke latest message compare-and-swap
func (m *MockRoomRepository) ReplaceLatestMessage(ctx context.Context, chatID, oldID string, newID *string, at *time.Time) error {
	return m.Called(ctx, chatID, oldID, newID, at).Error(0)
}

// SetLastRead moke set last read
func (m *MockRoomRepository) SetLastRead(ctx context.Context, chatID, userID string, at time.Time) error {
	return m.Called(ctx, chatID, userID, at).Error(0)
}

// SetClearedAt moke set cleared at
func (m *MockRoomRepository) SetClearedAt(ctx context.Context, chatID, userID string, at time.Time) (*domain.ChatRoom, error) {
	return m.room(m.Called(ctx, chatID, userID, at))
}

// UnsetClearedAtBefore moke unset cleared at
func (m *MockRoomRepository) UnsetClearedAtBefore(ctx context.Context, chatID, userID string, before time.Time) error {
	return m.Called(ctx, chatID, userID, before).Error(0)
}

// Rename moke rename group
func (m *MockRoomRepository) Rename(ctx context.Context, chatID, name string) (*domain.ChatRoom, error) {
	return m.room(m.Called(ctx, chatID, name))
}

// AddParticipant moke add participant
func (m *MockRoomRepository) AddParticipant(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return m.room(m.Called(ctx, chatID, userID))
}

// RemoveParticipant moke remove participant
func (m *MockRoomRepository) RemoveParticipant(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return m.room(m.Called(ctx, chatID, userID))
}

// AddAdmin moke add admin
func (m *MockRoomRepository) AddAdmin(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return m.room(m.Called(ctx, chatID, userID))
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) message(args mock.Arguments) (*domain.Message, error) {
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateMessage moke insert msg
func (m *MockMessageRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// FindByID moke find msg
func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	return m.message(m.Called(ctx, messageID))
}

// FindByChat moke find msgs of chat
func (m *MockMessageRepository) FindByChat(ctx context.Context, chatID string) ([]*domain.Message, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) != nil {
		return args.Get(0).([]*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindLatestInChat moke find latest msg
func (m *MockMessageRepository) FindLatestInChat(ctx context.Context, chatID string) (*domain.Message, error) {
	return m.message(m.Called(ctx, chatID))
}

// UpdateContent moke conditional edit
func (m *MockMessageRepository) UpdateContent(ctx context.Context, messageID, senderID, content string, notBefore, at time.Time) (*domain.Message, error) {
	return m.message(m.Called(ctx, messageID, senderID, content, notBefore, at))
}

// DeleteOwn moke conditional unsend
func (m *MockMessageRepository) DeleteOwn(ctx context.Context, messageID, senderID string, notBefore time.Time) error {
	return m.Called(ctx, messageID, senderID, notBefore).Error(0)
}

// AddReadBy moke add read by
func (m *MockMessageRepository) AddReadBy(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	return m.message(m.Called(ctx, messageID, userID))
}

// AddDeletedFor moke add deleted for
func (m *MockMessageRepository) AddDeletedFor(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	return m.message(m.Called(ctx, messageID, userID))
}

// DeleteIfDeletedByAll moke conditional delete
func (m *MockMessageRepository) DeleteIfDeletedByAll(ctx context.Context, messageID string, participants []string) (bool, error) {
	args := m.Called(ctx, messageID, participants)
	return args.Bool(0), args.Error(1)
}

// ToggleReaction moke toggle reaction
func (m *MockMessageRepository) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	return m.message(m.Called(ctx, messageID, userID, emoji))
}

// DeleteByChatBefore moke sweep
func (m *MockMessageRepository) DeleteByChatBefore(ctx context.Context, chatID string, before time.Time) (int64, error) {
	args := m.Called(ctx, chatID, before)
	return args.Get(0).(int64), args.Error(1)
}

// DeleteByChat moke delete all msgs of chat
func (m *MockMessageRepository) DeleteByChat(ctx context.Context, chatID string) (int64, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(int64), args.Error(1)
}

// MockMemberRepository Mock MemberRepository
type MockMemberRepository struct {
	mock.Mock
}

// FindByID moke find member
func (m *MockMemberRepository) FindByID(ctx context.Context, memberID string) (*memberdomain.Member, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) != nil {
		return args.Get(0).(*memberdomain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByIDs moke find members
func (m *MockMemberRepository) FindByIDs(ctx context.Context, memberIDs []string) ([]*memberdomain.Member, error) {
	args := m.Called(ctx, memberIDs)
	if args.Get(0) != nil {
		return args.Get(0).([]*memberdomain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

// SetOnlineStatus moke set online status
func (m *MockMemberRepository) SetOnlineStatus(ctx context.Context, memberID string, online bool, lastSeen *time.Time) error {
	return m.Called(ctx, memberID, online, lastSeen).Error(0)
}

// MockSessionRepository Mock SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

// FindSession moke find member session
func (m *MockSessionRepository) FindSession(ctx context.Context, memberID string) (*memberdomain.MemberSession, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) != nil {
		return args.Get(0).(*memberdomain.MemberSession), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// PublishEvent moke publish chat event
func (m *MockEventPublisher) PublishEvent(ctx context.Context, event repository.EventEnvelope) error {
	return m.Called(ctx, event).Error(0)
}

// MockPresencePublisher Mock PresencePublisher
type MockPresencePublisher struct {
	mock.Mock
}

// PublishPresence moke publish presence
func (m *MockPresencePublisher) PublishPresence(ctx context.Context, event domain.OnlineStatusEvent) error {
	return m.Called(ctx, event).Error(0)
}
