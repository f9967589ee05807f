package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"flagstone-assistant/internal/model"
)

// ReindexRequest asks a reindex worker to rebuild the corpus index.
type ReindexRequest struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// JSONPublisher publishes JSON payloads to a durable queue on the default exchange.
type JSONPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewJSONPublisher(conn *amqp.Connection, queueName string) *JSONPublisher {
	return &JSONPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *JSONPublisher) publish(ctx context.Context, v any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	); err != nil {
		return fmt.Errorf("publish to %s failed: %w", p.queueName, err)
	}
	return nil
}

// ExchangePublisher hands answered exchanges to the persist worker.
type ExchangePublisher struct {
	*JSONPublisher
}

func NewExchangePublisher(conn *amqp.Connection, queueName string) *ExchangePublisher {
	return &ExchangePublisher{JSONPublisher: NewJSONPublisher(conn, queueName)}
}

func (p *ExchangePublisher) Publish(ctx context.Context, exchange model.Exchange) error {
	return p.publish(ctx, exchange)
}

type ReindexPublisher struct {
	*JSONPublisher
}

func NewReindexPublisher(conn *amqp.Connection, queueName string) *ReindexPublisher {
	return &ReindexPublisher{JSONPublisher: NewJSONPublisher(conn, queueName)}
}

func (p *ReindexPublisher) RequestReindex(ctx context.Context, reason string) error {
	return p.publish(ctx, ReindexRequest{Reason: reason, RequestedAt: time.Now()})
}

// DeclareQueue declares a durable, non-exclusive queue.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s failed: %w", name, err)
	}
	return q, nil
}
