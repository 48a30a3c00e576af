package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRabbitRepo struct {
	mock.Mock
}

func (m *mockRabbitRepo) GetRabbit() *amqp.Channel { return nil }

func (m *mockRabbitRepo) DeclareTopicExchange(name string) error {
	return m.Called(name).Error(0)
}

func (m *mockRabbitRepo) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func (m *mockRabbitRepo) Close() error { return nil }

func TestAMQPEventPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("declare failure", func(t *testing.T) {
		rabbit := new(mockRabbitRepo)
		rabbit.On("DeclareTopicExchange", "chat.events").Return(errors.New("closed"))
		_, err := NewAMQPEventPublisher(rabbit, "")
		assert.Error(t, err)
	})

	t.Run("publish envelope", func(t *testing.T) {
		rabbit := new(mockRabbitRepo)
		rabbit.On("DeclareTopicExchange", "chat.events").Return(nil)
		rabbit.On("Publish", "chat.events", "chat.messageSent", mock.MatchedBy(func(msg amqp.Publishing) bool {
			var env EventEnvelope
			if err := json.Unmarshal(msg.Body, &env); err != nil {
				return false
			}
			return env.ChatID == "c1" && env.ActorID == "A" && msg.DeliveryMode == amqp.Persistent
		})).Return(nil)

		pub, err := NewAMQPEventPublisher(rabbit, "chat.events")
		assert.NoError(t, err)
		err = pub.PublishEvent(ctx, EventEnvelope{EventName: "messageSent", ChatID: "c1", ActorID: "A", OccurredAt: time.Now()})
		assert.NoError(t, err)
		rabbit.AssertExpectations(t)
	})

	t.Run("cancelled context", func(t *testing.T) {
		rabbit := new(mockRabbitRepo)
		rabbit.On("DeclareTopicExchange", "x").Return(nil)
		pub, _ := NewAMQPEventPublisher(rabbit, "x")

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, pub.PublishEvent(cctx, EventEnvelope{EventName: "messageSent"}))
		rabbit.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}
