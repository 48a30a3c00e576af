package repository

import (
	"context"
	"encoding/json"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PresenceChannel redis channel of online / offline transitions
const PresenceChannel = "chat:presence"

// PresencePublisher relay presence transitions out of process
type PresencePublisher interface {
	PublishPresence(ctx context.Context, event domain.OnlineStatusEvent) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 將 message 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// PublishPresence publish userOnlineStatus to PresenceChannel
func (r *RedisPubSub) PublishPresence(ctx context.Context, event domain.OnlineStatusEvent) error {
	return r.Publish(ctx, PresenceChannel, domain.WSResponse{Event: domain.UserOnlineStatus, Data: event})
}

// Subscribe 訂閱 channel，收到訊息後呼叫 handler 處理, ctx 結束時關閉
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse, raw []byte)) error {
	sub := r.client.Subscribe(ctx, channel)
	// 確認訂閱成功
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var resp domain.WSResponse
				if err := json.Unmarshal([]byte(m.Payload), &resp); err != nil {
					logger.Log.Error("pubsub unmarshal failed", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(resp, []byte(m.Payload))
			case <-ctx.Done():
				logger.Log.Info("sub close", zap.String("channel", channel))
				return
			}
		}
	}()
	return nil
}

type nopPresencePublisher struct{}

// NewNopPresencePublisher presence relay disabled
func NewNopPresencePublisher() PresencePublisher {
	return nopPresencePublisher{}
}

func (nopPresencePublisher) PublishPresence(context.Context, domain.OnlineStatusEvent) error {
	return nil
}
