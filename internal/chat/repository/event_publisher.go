package repository

import (
	"context"
	"encoding/json"
	"time"

	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/metrics"

	"github.com/streadway/amqp"
)

// EventEnvelope chat event written to the topic exchange
type EventEnvelope struct {
	EventName  string      `json:"event_name"`
	ChatID     string      `json:"chat_id"`
	ActorID    string      `json:"actor_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// EventPublisher chat mutation log
type EventPublisher interface {
	PublishEvent(ctx context.Context, env EventEnvelope) error
}

type amqpEventPublisher struct {
	rabbit   database.RabbitRepo
	exchange string
}

// NewAMQPEventPublisher declare exchange and return publisher, routing key chat.<event>
func NewAMQPEventPublisher(rabbit database.RabbitRepo, exchange string) (EventPublisher, error) {
	if exchange == "" {
		exchange = "chat.events"
	}
	if err := rabbit.DeclareTopicExchange(exchange); err != nil {
		return nil, err
	}
	return &amqpEventPublisher{rabbit: rabbit, exchange: exchange}, nil
}

func (p *amqpEventPublisher) PublishEvent(ctx context.Context, env EventEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	err = p.rabbit.Publish(p.exchange, "chat."+env.EventName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    env.OccurredAt,
		Headers:      amqp.Table{"chat_id": env.ChatID},
	})
	if err != nil {
		metrics.IncAMQPPublishError()
	}
	return err
}

type nopEventPublisher struct{}

// NewNopEventPublisher event log disabled
func NewNopEventPublisher() EventPublisher {
	return nopEventPublisher{}
}

func (nopEventPublisher) PublishEvent(context.Context, EventEnvelope) error {
	return nil
}
