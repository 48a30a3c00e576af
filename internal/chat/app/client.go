package app

import (
	"sync"

	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client one live connection of a member, frames are queued in a bounded send buffer
type Client struct {
	ID     string
	UserID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient create client with send buffer size
func NewClient(userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// Enqueue non-blocking, 佇列滿時關閉連線 (slow consumer)
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		metrics.IncSlowConsumer()
		logger.Log.Warn("send buffer full, closing connection",
			zap.String("conn_id", c.ID), zap.String("user_id", c.UserID))
		c.Close()
		return false
	}
}

// Send outbound frames, read by the write pump
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done closed when the client is shut down
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close idempotent
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// IsClosed report closed
func (c *Client) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
