package repository

import (
	"context"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// ChatCollection mongo collection of chats
	ChatCollection = "chats"
	// MessageCollection mongo collection of messages
	MessageCollection = "messages"
)

// ErrNotFound document 不存在或條件不成立
var ErrNotFound = errors.New("document not found")

// ErrDuplicate unique index 衝突, 例如同一對 user 的 private chat
var ErrDuplicate = errors.New("duplicate document")

// RoomRepository definition chat room store, every write is a single-document atomic update
type RoomRepository interface {
	CreateRoom(ctx context.Context, room *domain.ChatRoom) error
	FindByID(ctx context.Context, chatID string) (*domain.ChatRoom, error)
	FindByParticipant(ctx context.Context, userID string) ([]*domain.ChatRoom, error)
	FindPrivateRoom(ctx context.Context, userA, userB string) (*domain.ChatRoom, error)
	DeleteRoom(ctx context.Context, chatID string) error

	SetLatestMessage(ctx context.Context, chatID, messageID string, at time.Time) (*domain.ChatRoom, error)
	ReplaceLatestMessage(ctx context.Context, chatID, oldID string, newID *string, at *time.Time) error
	SetLastRead(ctx context.Context, chatID, userID string, at time.Time) error
	SetClearedAt(ctx context.Context, chatID, userID string, at time.Time) (*domain.ChatRoom, error)
	UnsetClearedAtBefore(ctx context.Context, chatID, userID string, before time.Time) error

	Rename(ctx context.Context, chatID, name string) (*domain.ChatRoom, error)
	AddParticipant(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error)
	RemoveParticipant(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error)
	AddAdmin(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error)
}

type chatRepository struct {
	roomsColl *mongo.Collection
}

// NewMongoChatRepository create new mongo chat
func NewMongoChatRepository(db *mongo.Database) RoomRepository {
	return &chatRepository{
		roomsColl: db.Collection(ChatCollection),
	}
}

// ChatIndexes indexes used by chat queries
func ChatIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
		{
			Keys: bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"pair_key": bson.M{"$exists": true}}),
		},
	}
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (r *chatRepository) findOneAndUpdate(ctx context.Context, filter, update interface{}) (*domain.ChatRoom, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var room domain.ChatRoom
	if err := r.roomsColl.FindOneAndUpdate(ctx, filter, update, opts).Decode(&room); err != nil {
		return nil, mapErr(err)
	}
	return &room, nil
}

// CreateRoom create room, ErrDuplicate when the private pair already exists
func (r *chatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	_, err := r.roomsColl.InsertOne(ctx, room)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// FindByID find room by id
func (r *chatRepository) FindByID(ctx context.Context, chatID string) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	if err := r.roomsColl.FindOne(ctx, bson.M{"_id": chatID}).Decode(&room); err != nil {
		return nil, mapErr(err)
	}
	return &room, nil
}

// FindByParticipant rooms of user, newest updated first
func (r *chatRepository) FindByParticipant(ctx context.Context, userID string) ([]*domain.ChatRoom, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.roomsColl.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rooms := []*domain.ChatRoom{}
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// FindPrivateRoom find private room
func (r *chatRepository) FindPrivateRoom(ctx context.Context, userA, userB string) (*domain.ChatRoom, error) {
	filter := bson.M{
		"is_group_chat": false,
		"participants":  bson.M{"$all": []string{userA, userB}},
	}
	var room domain.ChatRoom
	if err := r.roomsColl.FindOne(ctx, filter).Decode(&room); err != nil {
		return nil, mapErr(err)
	}
	return &room, nil
}

// DeleteRoom delete room
func (r *chatRepository) DeleteRoom(ctx context.Context, chatID string) error {
	res, err := r.roomsColl.DeleteOne(ctx, bson.M{"_id": chatID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLatestMessage 只在 at 不早於目前 latest 時覆蓋, 回傳最新的 room
func (r *chatRepository) SetLatestMessage(ctx context.Context, chatID, messageID string, at time.Time) (*domain.ChatRoom, error) {
	filter := bson.M{
		"_id": chatID,
		"$or": bson.A{
			bson.M{"latest_message_at": nil},
			bson.M{"latest_message_at": bson.M{"$lte": at}},
		},
	}
	update := bson.M{"$set": bson.M{
		"latest_message":    messageID,
		"latest_message_at": at,
		"updated_at":        at,
	}}
	room, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, ErrNotFound) {
		// 已有更新的訊息
		return r.FindByID(ctx, chatID)
	}
	return room, err
}

// ReplaceLatestMessage compare-and-set latest_message == oldID
func (r *chatRepository) ReplaceLatestMessage(ctx context.Context, chatID, oldID string, newID *string, at *time.Time) error {
	filter := bson.M{"_id": chatID, "latest_message": oldID}
	var update bson.M
	if newID == nil || at == nil {
		update = bson.M{
			"$set":   bson.M{"latest_message": nil},
			"$unset": bson.M{"latest_message_at": ""},
		}
	} else {
		update = bson.M{"$set": bson.M{"latest_message": *newID, "latest_message_at": *at}}
	}
	_, err := r.roomsColl.UpdateOne(ctx, filter, update)
	return err
}

// SetLastRead set last_read.<user>
func (r *chatRepository) SetLastRead(ctx context.Context, chatID, userID string, at time.Time) error {
	res, err := r.roomsColl.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{"$set": bson.M{"last_read." + userID: at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetClearedAt set cleared_at.<user>, only for participants
func (r *chatRepository) SetClearedAt(ctx context.Context, chatID, userID string, at time.Time) (*domain.ChatRoom, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": chatID, "participants": userID},
		bson.M{"$set": bson.M{"cleared_at." + userID: at}},
	)
}

// UnsetClearedAtBefore remove cleared_at.<user> if it is not after before
func (r *chatRepository) UnsetClearedAtBefore(ctx context.Context, chatID, userID string, before time.Time) error {
	key := "cleared_at." + userID
	_, err := r.roomsColl.UpdateOne(ctx,
		bson.M{"_id": chatID, key: bson.M{"$lte": before}},
		bson.M{"$unset": bson.M{key: ""}},
	)
	return err
}

// Rename rename group
func (r *chatRepository) Rename(ctx context.Context, chatID, name string) (*domain.ChatRoom, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": chatID, "is_group_chat": true},
		bson.M{"$set": bson.M{"name": name, "updated_at": time.Now().UTC()}},
	)
}

// AddParticipant $addToSet participants
func (r *chatRepository) AddParticipant(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": chatID, "is_group_chat": true},
		bson.M{
			"$addToSet": bson.M{"participants": userID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
}

// RemoveParticipant $pull participants & group_admins, drop per-user maps
func (r *chatRepository) RemoveParticipant(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": chatID, "is_group_chat": true},
		bson.M{
			"$pull":  bson.M{"participants": userID, "group_admins": userID},
			"$unset": bson.M{"cleared_at." + userID: "", "last_read." + userID: ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		},
	)
}

// AddAdmin $addToSet group_admins, target must be participant
func (r *chatRepository) AddAdmin(ctx context.Context, chatID, userID string) (*domain.ChatRoom, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": chatID, "is_group_chat": true, "participants": userID},
		bson.M{
			"$addToSet": bson.M{"group_admins": userID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
}
