package repository

import (
	"context"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition message store, every write is a single-document atomic update
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	// FindByChat sorted by created_at asc
	FindByChat(ctx context.Context, chatID string) ([]*domain.Message, error)
	FindLatestInChat(ctx context.Context, chatID string) (*domain.Message, error)

	// UpdateContent 只有 sender 且 created_at >= notBefore 才會成功
	UpdateContent(ctx context.Context, messageID, senderID, content string, notBefore, at time.Time) (*domain.Message, error)
	// DeleteOwn 只有 sender 且 created_at >= notBefore 才會成功
	DeleteOwn(ctx context.Context, messageID, senderID string, notBefore time.Time) error
	AddReadBy(ctx context.Context, messageID, userID string) (*domain.Message, error)
	AddDeletedFor(ctx context.Context, messageID, userID string) (*domain.Message, error)
	// DeleteIfDeletedByAll delete when deleted_for contains every participant
	DeleteIfDeletedByAll(ctx context.Context, messageID string, participants []string) (bool, error)
	ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error)

	DeleteByChatBefore(ctx context.Context, chatID string, before time.Time) (int64, error)
	DeleteByChat(ctx context.Context, chatID string) (int64, error)
}

type chatMessageRepository struct {
	coll *mongo.Collection
}

// NewMongoChatMessageRepository create a MessageRepository
func NewMongoChatMessageRepository(db *mongo.Database) MessageRepository {
	return &chatMessageRepository{
		coll: db.Collection(MessageCollection),
	}
}

// MessageIndexes indexes used by message queries
func MessageIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "chat", Value: 1}, {Key: "created_at", Value: 1}}},
	}
}

func (r *chatMessageRepository) findOneAndUpdate(ctx context.Context, filter, update interface{}) (*domain.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var msg domain.Message
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg); err != nil {
		return nil, mapErr(err)
	}
	return &msg, nil
}

// CreateMessage insert message
func (r *chatMessageRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

// FindByID find message by id
func (r *chatMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg); err != nil {
		return nil, mapErr(err)
	}
	return &msg, nil
}

// FindByChat all messages of chat, oldest first
func (r *chatMessageRepository) FindByChat(ctx context.Context, chatID string) ([]*domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"chat": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []*domain.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// FindLatestInChat newest remaining message
func (r *chatMessageRepository) FindLatestInChat(ctx context.Context, chatID string) (*domain.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var msg domain.Message
	if err := r.coll.FindOne(ctx, bson.M{"chat": chatID}, opts).Decode(&msg); err != nil {
		return nil, mapErr(err)
	}
	return &msg, nil
}

// UpdateContent edit message
func (r *chatMessageRepository) UpdateContent(ctx context.Context, messageID, senderID, content string, notBefore, at time.Time) (*domain.Message, error) {
	filter := bson.M{
		"_id":        messageID,
		"sender":     senderID,
		"created_at": bson.M{"$gte": notBefore},
	}
	update := bson.M{"$set": bson.M{"content": content, "is_edited": true, "updated_at": at}}
	return r.findOneAndUpdate(ctx, filter, update)
}

// DeleteOwn unsend message
func (r *chatMessageRepository) DeleteOwn(ctx context.Context, messageID, senderID string, notBefore time.Time) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{
		"_id":        messageID,
		"sender":     senderID,
		"created_at": bson.M{"$gte": notBefore},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddReadBy $addToSet read_by
func (r *chatMessageRepository) AddReadBy(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": messageID}, bson.M{"$addToSet": bson.M{"read_by": userID}})
}

// AddDeletedFor $addToSet deleted_for
func (r *chatMessageRepository) AddDeletedFor(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": messageID}, bson.M{"$addToSet": bson.M{"deleted_for": userID}})
}

// DeleteIfDeletedByAll conditional delete on deleted_for ⊇ participants
func (r *chatMessageRepository) DeleteIfDeletedByAll(ctx context.Context, messageID string, participants []string) (bool, error) {
	if len(participants) == 0 {
		return false, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{
		"_id":         messageID,
		"deleted_for": bson.M{"$all": participants},
	})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// ToggleReaction pipeline update, 一次完成讀取與寫入
func (r *chatMessageRepository) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	uid := bson.M{"$literal": userID}
	emo := bson.M{"$literal": emoji}
	reactions := bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}}
	entry := bson.M{"user": uid, "emoji": emo}

	toggled := bson.M{"$let": bson.M{
		"vars": bson.M{
			"mine": bson.M{"$filter": bson.M{
				"input": reactions,
				"cond":  bson.M{"$eq": bson.A{"$$this.user", uid}},
			}},
		},
		"in": bson.M{"$cond": bson.A{
			// same emoji: remove
			bson.M{"$in": bson.A{emo, "$$mine.emoji"}},
			bson.M{"$filter": bson.M{
				"input": reactions,
				"cond":  bson.M{"$ne": bson.A{"$$this.user", uid}},
			}},
			bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{bson.M{"$size": "$$mine"}, 0}},
				// different emoji: replace in place
				bson.M{"$map": bson.M{
					"input": reactions,
					"in": bson.M{"$cond": bson.A{
						bson.M{"$eq": bson.A{"$$this.user", uid}},
						entry,
						"$$this",
					}},
				}},
				bson.M{"$concatArrays": bson.A{reactions, bson.A{entry}}},
			}},
		}},
	}}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"reactions": toggled}}},
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": messageID}, pipeline)
}

// DeleteByChatBefore delete messages with created_at <= before
func (r *chatMessageRepository) DeleteByChatBefore(ctx context.Context, chatID string, before time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"chat": chatID, "created_at": bson.M{"$lte": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByChat delete every message of chat
func (r *chatMessageRepository) DeleteByChat(ctx context.Context, chatID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"chat": chatID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
