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

// MessageUseCase 負責處理聊天訊息的 mutation
type MessageUseCase struct {
	roomRepo   repository.RoomRepository
	msgRepo    repository.MessageRepository
	directory  memberDirectory
	events     repository.EventPublisher
	editWindow time.Duration
	now        func() time.Time
}

// NewMessageUseCase init message use case, editWindow <= 0 uses domain.EditWindow
func NewMessageUseCase(
	roomRepo repository.RoomRepository,
	msgRepo repository.MessageRepository,
	members memberrepo.MemberRepository,
	events repository.EventPublisher,
	editWindow time.Duration,
) *MessageUseCase {
	if editWindow <= 0 {
		editWindow = domain.EditWindow
	}
	if events == nil {
		events = repository.NewNopEventPublisher()
	}
	return &MessageUseCase{
		roomRepo:   roomRepo,
		msgRepo:    msgRepo,
		directory:  memberDirectory{members: members},
		events:     events,
		editWindow: editWindow,
		now:        defaultNow,
	}
}

// SendResult created message and the chat after latest_message update
type SendResult struct {
	View *domain.MessageView
	Room *domain.ChatRoom
}

// IsLatest the new message is the chat's latest message
func (r *SendResult) IsLatest() bool {
	return r.Room != nil && r.Room.LatestMessage != nil && *r.Room.LatestMessage == r.View.ID
}

// Send create message, caller must be participant
func (uc *MessageUseCase) Send(ctx context.Context, userID string, req domain.SendMessageRequest) (*SendResult, error) {
	if !validID(req.ChatID) || strings.TrimSpace(req.Content) == "" {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid data for sendMessage")
	}

	room, err := uc.roomRepo.FindByID(ctx, req.ChatID)
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	if !room.IsParticipant(userID) {
		return nil, errprocess.Set(errprocess.KindAuthorization, "Not authorized to send message to this chat")
	}

	var replyMsg *domain.Message
	if req.ReplyTo != nil && *req.ReplyTo != "" {
		if !validID(*req.ReplyTo) {
			return nil, errprocess.Set(errprocess.KindValidation, "Invalid replyTo ID")
		}
		replyMsg, err = uc.msgRepo.FindByID(ctx, *req.ReplyTo)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr("find reply", err)
		}
		if replyMsg == nil || replyMsg.Chat != req.ChatID {
			return nil, errprocess.Set(errprocess.KindValidation, "Cannot reply to that message")
		}
	}

	now := uc.now()
	msg := &domain.Message{
		ID:         uuid.NewString(),
		Sender:     userID,
		Chat:       req.ChatID,
		Content:    req.Content,
		CreatedAt:  now,
		UpdatedAt:  now,
		Reactions:  []domain.Reaction{},
		ReadBy:     []string{userID},
		DeletedFor: []string{},
	}
	if replyMsg != nil {
		id := replyMsg.ID
		msg.ReplyTo = &id
	}
	if err := uc.msgRepo.CreateMessage(ctx, msg); err != nil {
		return nil, storeErr("create message", err)
	}

	updated, err := uc.roomRepo.SetLatestMessage(ctx, req.ChatID, msg.ID, msg.CreatedAt)
	if err != nil {
		// 訊息已寫入, latest 為 cache
		logger.Log.Error("set latest message failed", zap.String("chat_id", req.ChatID), zap.String("message_id", msg.ID), zap.Error(err))
		updated = nil
	}

	view := domain.NewMessageView(msg, uc.directory.summary(ctx, userID), replyMsg)
	publish(ctx, uc.events, domain.MessageSent, msg.Chat, userID, now, msg)
	return &SendResult{View: view, Room: updated}, nil
}

// findOwnWithinWindow 先檢查時間窗再檢查 sender
func (uc *MessageUseCase) findOwnWithinWindow(ctx context.Context, userID, messageID, action string) (*domain.Message, error) {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, lookupErr(err, "Message not found")
	}
	if !domain.WithinWindow(msg.CreatedAt, uc.now(), uc.editWindow) {
		return nil, errprocess.Set(errprocess.KindWindowExpired, action+" window expired")
	}
	if msg.Sender != userID {
		return nil, errprocess.Set(errprocess.KindAuthorization, "Not authorized to "+strings.ToLower(action))
	}
	return msg, nil
}

// conditionalFailed the atomic write matched nothing: window passed or message gone
func (uc *MessageUseCase) conditionalFailed(msg *domain.Message, action string) error {
	if !domain.WithinWindow(msg.CreatedAt, uc.now(), uc.editWindow) {
		return errprocess.Set(errprocess.KindWindowExpired, action+" window expired")
	}
	return errprocess.Set(errprocess.KindNotFound, "Message not found")
}

// Edit sender edits content within the window
func (uc *MessageUseCase) Edit(ctx context.Context, userID string, req domain.EditMessageRequest) (*domain.MessageView, error) {
	if !validID(req.MessageID) || strings.TrimSpace(req.Content) == "" {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid data for editMessage")
	}

	msg, err := uc.findOwnWithinWindow(ctx, userID, req.MessageID, "Edit")
	if err != nil {
		return nil, err
	}

	now := uc.now()
	updated, err := uc.msgRepo.UpdateContent(ctx, msg.ID, userID, req.Content, now.Add(-uc.editWindow), now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, uc.conditionalFailed(msg, "Edit")
	}
	if err != nil {
		return nil, storeErr("edit message", err)
	}

	var replyMsg *domain.Message
	if updated.ReplyTo != nil {
		if r, err := uc.msgRepo.FindByID(ctx, *updated.ReplyTo); err == nil {
			replyMsg = r
		}
	}

	view := domain.NewMessageView(updated, uc.directory.summary(ctx, updated.Sender), replyMsg)
	publish(ctx, uc.events, domain.MessageEdited, updated.Chat, userID, now, updated)
	return view, nil
}

// Unsend sender hard deletes within the window
func (uc *MessageUseCase) Unsend(ctx context.Context, userID, messageID string) (*domain.MessageRemoved, error) {
	if !validID(messageID) {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid message ID")
	}

	msg, err := uc.findOwnWithinWindow(ctx, userID, messageID, "Unsend")
	if err != nil {
		return nil, err
	}

	now := uc.now()
	err = uc.msgRepo.DeleteOwn(ctx, msg.ID, userID, now.Add(-uc.editWindow))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, uc.conditionalFailed(msg, "Unsend")
	}
	if err != nil {
		return nil, storeErr("unsend message", err)
	}

	if err := refreshLatest(ctx, uc.roomRepo, uc.msgRepo, msg.Chat, msg.ID); err != nil {
		logger.Log.Error("refresh latest message failed", zap.String("chat_id", msg.Chat), zap.Error(err))
	}

	removed := &domain.MessageRemoved{MessageID: msg.ID, Chat: msg.Chat}
	publish(ctx, uc.events, domain.MessageUnsent, msg.Chat, userID, now, removed)
	return removed, nil
}

// DeleteForMe hide for caller, hard delete once every participant hid it
func (uc *MessageUseCase) DeleteForMe(ctx context.Context, userID, messageID string) (*domain.MessageRemoved, bool, error) {
	if !validID(messageID) {
		return nil, false, errprocess.Set(errprocess.KindValidation, "Invalid message ID")
	}

	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, false, lookupErr(err, "Message not found")
	}
	room, err := uc.roomRepo.FindByID(ctx, msg.Chat)
	if err != nil {
		return nil, false, lookupErr(err, "Chat not found")
	}
	if !room.IsParticipant(userID) {
		return nil, false, errprocess.Set(errprocess.KindAuthorization, "Not authorized to deleteForMe")
	}

	updated, err := uc.msgRepo.AddDeletedFor(ctx, msg.ID, userID)
	if err != nil {
		return nil, false, lookupErr(err, "Message not found")
	}

	removed := &domain.MessageRemoved{MessageID: msg.ID, Chat: msg.Chat}
	hardDeleted := false
	if pkg.ContainsAll(updated.DeletedFor, room.Participants) {
		hardDeleted, err = uc.msgRepo.DeleteIfDeletedByAll(ctx, msg.ID, room.Participants)
		if err != nil {
			// 已對 caller 隱藏, 實體刪除留待下一次
			logger.Log.Error("delete message deleted by all failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
		if hardDeleted {
			if err := refreshLatest(ctx, uc.roomRepo, uc.msgRepo, msg.Chat, msg.ID); err != nil {
				logger.Log.Error("refresh latest message failed", zap.String("chat_id", msg.Chat), zap.Error(err))
			}
		}
	}

	publish(ctx, uc.events, domain.MessageDeletedForMe, msg.Chat, userID, uc.now(), removed)
	return removed, hardDeleted, nil
}

// MarkSeen add caller to read_by
func (uc *MessageUseCase) MarkSeen(ctx context.Context, userID string, req domain.MessageSeenRequest) (*domain.MessageSeenEvent, error) {
	if !validID(req.MessageID) || !validID(req.ChatID) {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid IDs for messageSeen")
	}

	msg, err := uc.msgRepo.FindByID(ctx, req.MessageID)
	if err != nil {
		return nil, lookupErr(err, "Message not found")
	}
	room, err := uc.roomRepo.FindByID(ctx, req.ChatID)
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	if !room.IsParticipant(userID) {
		return nil, errprocess.Set(errprocess.KindAuthorization, "Not authorized for messageSeen")
	}
	if msg.Chat != room.ID {
		return nil, errprocess.Set(errprocess.KindValidation, "Message does not belong to this chat")
	}

	if _, err := uc.msgRepo.AddReadBy(ctx, msg.ID, userID); err != nil {
		return nil, lookupErr(err, "Message not found")
	}

	return &domain.MessageSeenEvent{MessageID: msg.ID, UserID: userID, ChatID: room.ID}, nil
}

// React toggle caller's reaction
func (uc *MessageUseCase) React(ctx context.Context, userID string, req domain.ReactMessageRequest) (*domain.ReactionUpdatedEvent, error) {
	if !validID(req.MessageID) || req.Emoji == "" {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid data for reactMessage")
	}

	msg, err := uc.msgRepo.FindByID(ctx, req.MessageID)
	if err != nil {
		return nil, lookupErr(err, "Message not found")
	}
	room, err := uc.roomRepo.FindByID(ctx, msg.Chat)
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	if !room.IsParticipant(userID) {
		return nil, errprocess.Set(errprocess.KindAuthorization, "Not authorized for reactMessage")
	}

	updated, err := uc.msgRepo.ToggleReaction(ctx, msg.ID, userID, req.Emoji)
	if err != nil {
		return nil, lookupErr(err, "Message not found")
	}

	event := &domain.ReactionUpdatedEvent{MessageID: updated.ID, Reactions: updated.Reactions, Chat: updated.Chat}
	if event.Reactions == nil {
		event.Reactions = []domain.Reaction{}
	}
	publish(ctx, uc.events, domain.MessageReactionUpdated, updated.Chat, userID, uc.now(), event)
	return event, nil
}

// FetchMessages history for caller: deleted-for-me and cleared messages are filtered, never deleted
func (uc *MessageUseCase) FetchMessages(ctx context.Context, userID, chatID string) ([]*domain.MessageView, error) {
	if !validID(chatID) {
		return nil, errprocess.Set(errprocess.KindValidation, "Invalid chat ID")
	}

	room, err := uc.roomRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, lookupErr(err, "Chat not found")
	}
	if !room.IsParticipant(userID) {
		return nil, errprocess.Set(errprocess.KindAuthorization, "Not authorized to view this chat")
	}

	msgs, err := uc.msgRepo.FindByChat(ctx, chatID)
	if err != nil {
		return nil, storeErr("find messages", err)
	}

	var clearedAt *time.Time
	if t, ok := room.ClearedAt[userID]; ok {
		clearedAt = &t
	}

	byID := make(map[string]*domain.Message, len(msgs))
	senderIDs := []string{}
	seen := map[string]struct{}{}
	for _, m := range msgs {
		byID[m.ID] = m
		if _, ok := seen[m.Sender]; !ok {
			seen[m.Sender] = struct{}{}
			senderIDs = append(senderIDs, m.Sender)
		}
	}
	senders := uc.directory.summaries(ctx, senderIDs)

	views := []*domain.MessageView{}
	for _, m := range msgs {
		if !m.VisibleTo(userID, clearedAt) {
			continue
		}
		var reply *domain.Message
		if m.ReplyTo != nil {
			reply = byID[*m.ReplyTo]
		}
		views = append(views, domain.NewMessageView(m, senders[m.Sender], reply).For(userID))
	}
	return views, nil
}
