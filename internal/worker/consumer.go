package worker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"flagstone-assistant/internal/platform/rabbitmq"
)

// handlerFunc processes one delivery. A returned error nacks the delivery
// without requeue.
type handlerFunc func(ctx context.Context, body []byte) error

// consumer runs one goroutine that drains a durable queue with manual acks.
type consumer struct {
	conn      *amqp.Connection
	queueName string
	handle    handlerFunc
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newConsumer(conn *amqp.Connection, queueName string, handle handlerFunc, log *zap.Logger) *consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &consumer{
		conn:      conn,
		queueName: queueName,
		handle:    handle,
		log:       log.With(zap.String("queue", queueName)),
	}
}

func (c *consumer) start(ctx context.Context) error {
	if c.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ch, err := c.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, c.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					c.log.Warn("delivery channel closed")
					return
				}
				if err := c.handle(workerCtx, d.Body); err != nil {
					c.log.Error("handle delivery failed", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	c.log.Info("worker started")
	return nil
}

func (c *consumer) close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
