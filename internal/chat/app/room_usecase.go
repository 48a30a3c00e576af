package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	memberrepo "realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg"
	errprocess "realtime_chat_service/pkg/err"
	"realtime_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoomUseCase chat room 操作 (read state, clear, group admin)
type RoomUseCase struct {
	roomRepo  repository.RoomRepository
	msgRepo   repository.MessageRepository
	members   memberrepo.MemberRepository
	directory memberDirectory
	events    repository.EventPublisher
	now       func() time.Time
}

// NewRoomUseCase init room use case
func NewRoomUseCase(
	roomRepo repository.RoomRepository,
	msgRepo repository.MessageRepository,
	members memberrepo.MemberRepository,
	events repository.EventPublisher,
) *RoomUseCase {
	if events == nil {
		events = repository.NewNopEventPublisher()
	}
	return &RoomUseCase{
		roomRepo:  roomRepo,
		msgRepo:   msgRepo,
		members:   members,
		directory: memberDirectory{members: members},
		events:    events,
		now:       defaultNow,
	}
}

func (uc *RoomUseCase) participantRoom(ctx context.Context, userID, chatID, action string) (*domain.ChatRoom, error) {
	if !validID(chatID) {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid chat ID")
	}
	room, err := uc.roomRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	if !room.IsParticipant(userID) {
		return nil, errprocess.Set(errprocess.KindAuthorization, "Not authorized to "+action)
	}
	return room, nil
}

// MarkAsRead set lastRead[caller] = now
func (uc *RoomUseCase) MarkAsRead(ctx context.Context, userID, chatID string) (*domain.ChatRef, error) {
	if _, err := uc.participantRoom(ctx, userID, chatID, "markAsRead"); err != nil {
		return nil, err
	}
	if err := uc.roomRepo.SetLastRead(ctx, chatID, userID, uc.now()); err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	return &domain.ChatRef{ChatID: chatID}, nil
}

// ClearChat set clearedAt[caller], sweep once every participant has cleared
func (uc *RoomUseCase) ClearChat(ctx context.Context, userID, chatID string) (*domain.ChatClearedEvent, error) {
	if _, err := uc.participantRoom(ctx, userID, chatID, "clearChat"); err != nil {
		return nil, err
	}

	now := uc.now()
	room, err := uc.roomRepo.SetClearedAt(ctx, chatID, userID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 在 FindByID 之後被移出群組
			return nil, errprocess.Set(errprocess.KindAuthorization, "Not authorized to clearChat")
		}
		return nil, storeErr("set cleared at", err)
	}

	if before, ok := room.ClearSweepBefore(); ok {
		uc.sweep(ctx, room, before)
	}

	event := &domain.ChatClearedEvent{ChatID: chatID, ClearedAt: now}
	publish(ctx, uc.events, domain.ChatCleared, chatID, userID, now, event)
	return event, nil
}

// sweep 刪除所有人都已 clear 的訊息, 只 unset 已被消化的 clearedAt
func (uc *RoomUseCase) sweep(ctx context.Context, room *domain.ChatRoom, before time.Time) {
	deleted, err := uc.msgRepo.DeleteByChatBefore(ctx, room.ID, before)
	if err != nil {
		logger.Log.Error("clear chat sweep failed", zap.String("chat_id", room.ID), zap.Error(err))
		return
	}
	logger.Log.Debug("clear chat sweep", zap.String("chat_id", room.ID), zap.Int64("deleted", deleted), zap.Time("before", before))

	for _, p := range room.Participants {
		if err := uc.roomRepo.UnsetClearedAtBefore(ctx, room.ID, p, before); err != nil {
			logger.Log.Error("unset cleared at failed", zap.String("chat_id", room.ID), zap.String("user_id", p), zap.Error(err))
		}
	}

	if deleted > 0 && room.LatestMessageAt != nil && !room.LatestMessageAt.After(before) && room.LatestMessage != nil {
		if err := refreshLatest(ctx, uc.roomRepo, uc.msgRepo, room.ID, *room.LatestMessage); err != nil {
			logger.Log.Error("refresh latest message failed", zap.String("chat_id", room.ID), zap.Error(err))
		}
	}
}

// ChatIDsOf ids of chats the user participates in
func (uc *RoomUseCase) ChatIDsOf(ctx context.Context, userID string) ([]string, error) {
	rooms, err := uc.roomRepo.FindByParticipant(ctx, userID)
	if err != nil {
		return nil, storeErr("find chats", err)
	}
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// Chat single chat view for caller
func (uc *RoomUseCase) Chat(ctx context.Context, userID, chatID string) (*domain.ChatView, error) {
	room, err := uc.participantRoom(ctx, userID, chatID, "view this chat")
	if err != nil {
		return nil, err
	}
	return uc.view(ctx, userID, room), nil
}

// ListChats caller's chats newest first
func (uc *RoomUseCase) ListChats(ctx context.Context, userID string) ([]*domain.ChatView, error) {
	rooms, err := uc.roomRepo.FindByParticipant(ctx, userID)
	if err != nil {
		return nil, storeErr("find chats", err)
	}
	views := make([]*domain.ChatView, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, uc.view(ctx, userID, r))
	}
	return views, nil
}

func (uc *RoomUseCase) view(ctx context.Context, viewerID string, room *domain.ChatRoom) *domain.ChatView {
	v := &domain.ChatView{
		ChatRoom:     room,
		Participants: uc.directory.list(ctx, room.Participants),
		GroupAdmins:  uc.directory.list(ctx, room.GroupAdmins),
	}
	v.LatestMessage = uc.LatestView(ctx, viewerID, room)
	return v
}

// LatestView populated latest message, nil when the cache is empty or hidden for viewer
func (uc *RoomUseCase) LatestView(ctx context.Context, viewerID string, room *domain.ChatRoom) *domain.MessageView {
	if room.LatestMessage == nil {
		return nil
	}
	msg, err := uc.msgRepo.FindByID(ctx, *room.LatestMessage)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Log.Error("find latest message failed", zap.String("chat_id", room.ID), zap.Error(err))
		}
		return nil
	}
	var clearedAt *time.Time
	if t, ok := room.ClearedAt[viewerID]; ok {
		clearedAt = &t
	}
	if !msg.VisibleTo(viewerID, clearedAt) {
		return nil
	}
	return domain.NewMessageView(msg, uc.directory.summary(ctx, msg.Sender), nil).For(viewerID)
}

// AccessPrivateChat existing 1對1 chat or create one
func (uc *RoomUseCase) AccessPrivateChat(ctx context.Context, userID, otherID string) (*domain.ChatView, bool, error) {
	if otherID == "" || otherID == userID {
		return nil, false, errprocess.Set(errprocess.KindValidation, "Cannot create a chat with yourself")
	}
	if _, err := uc.members.FindByID(ctx, otherID); err != nil {
		if errors.Is(err, memberrepo.ErrMemberNotFound) {
			return nil, false, errprocess.Set(errprocess.KindNotFound, "User not found")
		}
		return nil, false, storeErr("find member", err)
	}

	room, err := uc.roomRepo.FindPrivateRoom(ctx, userID, otherID)
	if err == nil {
		return uc.view(ctx, userID, room), false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, storeErr("find private chat", err)
	}

	now := uc.now()
	room = &domain.ChatRoom{
		ID:           uuid.NewString(),
		Name:         "sender",
		IsGroupChat:  false,
		Participants: []string{userID, otherID},
		GroupAdmins:  []string{},
		PairKey:      domain.PrivatePairKey(userID, otherID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = uc.roomRepo.CreateRoom(ctx, room)
	if errors.Is(err, repository.ErrDuplicate) {
		// 同時建立, 另一個 request 先寫入
		existing, findErr := uc.roomRepo.FindPrivateRoom(ctx, userID, otherID)
		if findErr != nil {
			return nil, false, storeErr("find private chat", findErr)
		}
		return uc.view(ctx, userID, existing), false, nil
	}
	if err != nil {
		return nil, false, storeErr("create chat", err)
	}
	return uc.view(ctx, userID, room), true, nil
}

// CreateGroupChat caller becomes participant and admin
func (uc *RoomUseCase) CreateGroupChat(ctx context.Context, userID, name string, userIDs []string) (*domain.ChatView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errprocess.Set(errprocess.KindValidation, "Group name is required")
	}

	participants := []string{userID}
	for _, id := range userIDs {
		if id != "" && !pkg.Contains(participants, id) {
			participants = append(participants, id)
		}
	}
	if len(participants) < 2 {
		return nil, errprocess.Set(errprocess.KindValidation, "A group chat needs at least one other user")
	}

	found, err := uc.members.FindByIDs(ctx, participants)
	if err != nil {
		return nil, storeErr("find members", err)
	}
	if len(found) != len(participants) {
		return nil, errprocess.Set(errprocess.KindNotFound, "User not found")
	}

	now := uc.now()
	room := &domain.ChatRoom{
		ID:           uuid.NewString(),
		Name:         name,
		IsGroupChat:  true,
		Participants: participants,
		GroupAdmins:  []string{userID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.roomRepo.CreateRoom(ctx, room); err != nil {
		return nil, storeErr("create chat", err)
	}
	publish(ctx, uc.events, domain.ChatUpdated, room.ID, userID, now, room)
	return uc.view(ctx, userID, room), nil
}

func (uc *RoomUseCase) adminRoom(ctx context.Context, userID, chatID string) (*domain.ChatRoom, error) {
	if !validID(chatID) {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid chat ID")
	}
	room, err := uc.roomRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	if !room.IsGroupChat {
		return nil, errprocess.Set(errprocess.KindValidation, "Not a group chat")
	}
	if !room.IsAdmin(userID) {
		return nil, errprocess.Set(errprocess.KindAuthorization, "Only admins can do this")
	}
	return room, nil
}

func (uc *RoomUseCase) groupResult(ctx context.Context, userID string, room *domain.ChatRoom, err error) (*domain.ChatView, error) {
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	publish(ctx, uc.events, domain.ChatUpdated, room.ID, userID, uc.now(), room)
	return uc.view(ctx, userID, room), nil
}

// RenameGroup admin only
func (uc *RoomUseCase) RenameGroup(ctx context.Context, userID, chatID, name string) (*domain.ChatView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errprocess.Set(errprocess.KindValidation, "Group name is required")
	}
	if _, err := uc.adminRoom(ctx, userID, chatID); err != nil {
		return nil, err
	}
	room, err := uc.roomRepo.Rename(ctx, chatID, name)
	return uc.groupResult(ctx, userID, room, err)
}

// AddToGroup admin only, target must exist and not be a participant yet
func (uc *RoomUseCase) AddToGroup(ctx context.Context, userID, chatID, targetID string) (*domain.ChatView, error) {
	current, err := uc.adminRoom(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if current.IsParticipant(targetID) {
		return nil, errprocess.Set(errprocess.KindValidation, "User already in group")
	}
	if _, err := uc.members.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, memberrepo.ErrMemberNotFound) {
			return nil, errprocess.Set(errprocess.KindNotFound, "User not found")
		}
		return nil, storeErr("find member", err)
	}
	room, err := uc.roomRepo.AddParticipant(ctx, chatID, targetID)
	return uc.groupResult(ctx, userID, room, err)
}

// RemoveFromGroup admin, or self-leave. 最後一人離開時刪除 chat 與訊息, 回傳 nil view
func (uc *RoomUseCase) RemoveFromGroup(ctx context.Context, userID, chatID, targetID string) (*domain.ChatView, error) {
	if !validID(chatID) {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid chat ID")
	}
	current, err := uc.roomRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	if !current.IsGroupChat {
		return nil, errprocess.Set(errprocess.KindValidation, "Not a group chat")
	}
	if targetID != userID && !current.IsAdmin(userID) {
		return nil, errprocess.Set(errprocess.KindAuthorization, "Only admins can remove other users")
	}
	if !current.IsParticipant(targetID) {
		return nil, errprocess.Set(errprocess.KindNotFound, "User not in group")
	}

	room, err := uc.roomRepo.RemoveParticipant(ctx, chatID, targetID)
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}

	if len(room.Participants) == 0 {
		if _, err := uc.msgRepo.DeleteByChat(ctx, chatID); err != nil {
			return nil, storeErr("delete chat messages", err)
		}
		if err := uc.roomRepo.DeleteRoom(ctx, chatID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr("delete chat", err)
		}
		publish(ctx, uc.events, domain.ChatUpdated, chatID, userID, uc.now(), domain.ChatRef{ChatID: chatID})
		return nil, nil
	}

	publish(ctx, uc.events, domain.ChatUpdated, room.ID, userID, uc.now(), room)
	return uc.view(ctx, userID, room), nil
}

// MakeAdmin admin only, target must be participant and not already admin
func (uc *RoomUseCase) MakeAdmin(ctx context.Context, userID, chatID, targetID string) (*domain.ChatView, error) {
	current, err := uc.adminRoom(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if !current.IsParticipant(targetID) {
		return nil, errprocess.Set(errprocess.KindValidation, "User is not in group")
	}
	if current.IsAdmin(targetID) {
		return nil, errprocess.Set(errprocess.KindValidation, "User is already an admin")
	}
	room, err := uc.roomRepo.AddAdmin(ctx, chatID, targetID)
	return uc.groupResult(ctx, userID, room, err)
}
