package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg"
)

// memoryRoomRepository in-process RoomRepository, store: memory
type memoryRoomRepository struct {
	mu    sync.Mutex
	rooms map[string]*domain.ChatRoom
}

// NewMemoryRoomRepository create in-memory room store
func NewMemoryRoomRepository() RoomRepository {
	return &memoryRoomRepository{rooms: make(map[string]*domain.ChatRoom)}
}

func cloneRoom(r *domain.ChatRoom) *domain.ChatRoom {
	cp := *r
	cp.Participants = append([]string(nil), r.Participants...)
	cp.GroupAdmins = append([]string(nil), r.GroupAdmins...)
	if r.LatestMessage != nil {
		id := *r.LatestMessage
		cp.LatestMessage = &id
	}
	if r.LatestMessageAt != nil {
		at := *r.LatestMessageAt
		cp.LatestMessageAt = &at
	}
	cp.ClearedAt = cloneTimes(r.ClearedAt)
	cp.LastRead = cloneTimes(r.LastRead)
	return &cp
}

func cloneTimes(m map[string]time.Time) map[string]time.Time {
	if m == nil {
		return nil
	}
	cp := make(map[string]time.Time, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func (r *memoryRoomRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room.PairKey != "" {
		for _, existing := range r.rooms {
			if existing.PairKey == room.PairKey {
				return ErrDuplicate
			}
		}
	}
	r.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (r *memoryRoomRepository) FindByID(ctx context.Context, chatID string) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRoom(room), nil
}

func (r *memoryRoomRepository) FindByParticipant(ctx context.Context, userID string) ([]*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := []*domain.ChatRoom{}
	for _, room := range r.rooms {
		if pkg.Contains(room.Participants, userID) {
			rooms = append(rooms, cloneRoom(room))
		}
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})
	return rooms, nil
}

func (r *memoryRoomRepository) FindPrivateRoom(ctx context.Context, userA, userB string) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if !room.IsGroupChat && pkg.Contains(room.Participants, userA) && pkg.Contains(room.Participants, userB) {
			return cloneRoom(room), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRoomRepository) DeleteRoom(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[chatID]; !ok {
		return ErrNotFound
	}
	delete(r.rooms, chatID)
	return nil
}

func (r *memoryRoomRepository) SetLatestMessage(ctx context.Context, chatID, messageID string, at time.Time) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	if room.LatestMessageAt == nil || !room.LatestMessageAt.After(at) {
		id := messageID
		t := at
		room.LatestMessage = &id
		room.LatestMessageAt = &t
		room.UpdatedAt = at
	}
	return cloneRoom(room), nil
}

func (r *memoryRoomRepository) ReplaceLatestMessage(ctx context.Context, chatID, oldID string, newID *string, at *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[chatID]
	if !ok || room.LatestMessage == nil || *room.LatestMessage != oldID {
		return nil
	}
	if newID == nil || at == nil {
		room.LatestMessage = nil
		room.LatestMessageAt = nil
		return nil
	}
	id, t := *newID, *at
	room.LatestMessage = &id
	room.LatestMessageAt = &t
	return nil
}

func (r *memoryRoomRepository) SetLastRead(ctx context.Context, chatID, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[chatID]
	if !ok {
		return ErrNotFound
	}
	if room.LastRead == nil {
		room.LastRead = make(map[string]time.Time)
	}
	room.LastRead[userID] = at
	return nil
}

func (r *memoryRoomRepository) SetClearedAt(ctx context.Context, chatID, userID string, at time.Time) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[chatID]
	if !ok || !pkg.Contains(room.Participants, userID) {
		return nil, ErrNotFound
	}
	if room.ClearedAt == nil {
		room.ClearedAt = make(map[string]time.Time)
	}
	room.ClearedAt[userID] = at
	return cloneRoom(room), nil
}

func (r *memoryRoomRepository) UnsetClearedAtBefore(ctx context.Context, chatID, userID string, before time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[chatID]
	if !ok {
		return nil
	}
	if t, ok := room.ClearedAt[userID]; ok && !t.After(before) {
		delete(room.ClearedAt, userID)
	}
	return nil
}

func (r *memoryRoomRepository) mutateGroup(chatID string, fn func(room *domain.ChatRoom) bool) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[chatID]
	if !ok || !room.IsGroupChat {
		return nil, ErrNotFound
	}
	if !fn(room) {
		return nil, ErrNotFound
	}
	room.UpdatedAt = time.Now().UTC()
	return cloneRoom(room), nil
}

func (r *memoryRoomRepository) Rename(ctx context.Context, chatID, name string) (*domain.ChatRoom, error) {
	return r.mutateGroup(chatID, func(room *domain.ChatRoom) bool {
		room.Name = name
		return true
	})
}

func (r *memoryRoomRepository) AddParticipant(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return r.mutateGroup(chatID, func(room *domain.ChatRoom) bool {
		if !pkg.Contains(room.Participants, userID) {
			room.Participants = append(room.Participants, userID)
		}
		return true
	})
}

func (r *memoryRoomRepository) RemoveParticipant(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return r.mutateGroup(chatID, func(room *domain.ChatRoom) bool {
		room.Participants = pkg.Remove(room.Participants, userID)
		room.GroupAdmins = pkg.Remove(room.GroupAdmins, userID)
		delete(room.ClearedAt, userID)
		delete(room.LastRead, userID)
		return true
	})
}

func (r *memoryRoomRepository) AddAdmin(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return r.mutateGroup(chatID, func(room *domain.ChatRoom) bool {
		if !pkg.Contains(room.Participants, userID) {
			return false
		}
		if !pkg.Contains(room.GroupAdmins, userID) {
			room.GroupAdmins = append(room.GroupAdmins, userID)
		}
		return true
	})
}

// memoryMessageRepository in-process MessageRepository, store: memory
type memoryMessageRepository struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
}

// NewMemoryMessageRepository create in-memory message store
func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepository{messages: make(map[string]*domain.Message)}
}

func cloneMessage(m *domain.Message) *domain.Message {
	cp := *m
	if m.ReplyTo != nil {
		id := *m.ReplyTo
		cp.ReplyTo = &id
	}
	cp.Reactions = append([]domain.Reaction(nil), m.Reactions...)
	cp.ReadBy = append([]string(nil), m.ReadBy...)
	cp.DeletedFor = append([]string(nil), m.DeletedFor...)
	return &cp
}

// byCreated created_at asc, id as tie breaker
func byCreated(msgs []*domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

func (r *memoryMessageRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *memoryMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMessage(msg), nil
}

func (r *memoryMessageRepository) FindByChat(ctx context.Context, chatID string) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := []*domain.Message{}
	for _, m := range r.messages {
		if m.Chat == chatID {
			msgs = append(msgs, cloneMessage(m))
		}
	}
	byCreated(msgs)
	return msgs, nil
}

func (r *memoryMessageRepository) FindLatestInChat(ctx context.Context, chatID string) (*domain.Message, error) {
	msgs, _ := r.FindByChat(ctx, chatID)
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return msgs[len(msgs)-1], nil
}

func (r *memoryMessageRepository) UpdateContent(ctx context.Context, messageID, senderID, content string, notBefore, at time.Time) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok || msg.Sender != senderID || msg.CreatedAt.Before(notBefore) {
		return nil, ErrNotFound
	}
	msg.Content = content
	msg.IsEdited = true
	msg.UpdatedAt = at
	return cloneMessage(msg), nil
}

func (r *memoryMessageRepository) DeleteOwn(ctx context.Context, messageID, senderID string, notBefore time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok || msg.Sender != senderID || msg.CreatedAt.Before(notBefore) {
		return ErrNotFound
	}
	delete(r.messages, messageID)
	return nil
}

func (r *memoryMessageRepository) addToSet(messageID string, field func(m *domain.Message) *[]string, userID string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	set := field(msg)
	if !pkg.Contains(*set, userID) {
		*set = append(*set, userID)
	}
	return cloneMessage(msg), nil
}

func (r *memoryMessageRepository) AddReadBy(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	return r.addToSet(messageID, func(m *domain.Message) *[]string { return &m.ReadBy }, userID)
}

func (r *memoryMessageRepository) AddDeletedFor(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	return r.addToSet(messageID, func(m *domain.Message) *[]string { return &m.DeletedFor }, userID)
}

func (r *memoryMessageRepository) DeleteIfDeletedByAll(ctx context.Context, messageID string, participants []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok || !pkg.ContainsAll(msg.DeletedFor, participants) {
		return false, nil
	}
	delete(r.messages, messageID)
	return true, nil
}

func (r *memoryMessageRepository) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	msg.Reactions = domain.ToggleReaction(msg.Reactions, userID, emoji)
	return cloneMessage(msg), nil
}

func (r *memoryMessageRepository) deleteWhere(fn func(m *domain.Message) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if fn(m) {
			delete(r.messages, id)
			n++
		}
	}
	return n
}

func (r *memoryMessageRepository) DeleteByChatBefore(ctx context.Context, chatID string, before time.Time) (int64, error) {
	return r.deleteWhere(func(m *domain.Message) bool {
		return m.Chat == chatID && !m.CreatedAt.After(before)
	}), nil
}

func (r *memoryMessageRepository) DeleteByChat(ctx context.Context, chatID string) (int64, error) {
	return r.deleteWhere(func(m *domain.Message) bool { return m.Chat == chatID }), nil
}
