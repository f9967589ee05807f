package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"flagstone-assistant/internal/platform/rabbitmq"
)

type Rebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// ReindexWorker rebuilds the corpus index on request.
type ReindexWorker struct {
	rebuilder Rebuilder
	consumer  *consumer
	log       *zap.Logger
}

func NewReindexWorker(conn *amqp.Connection, rebuilder Rebuilder, queueName string, log *zap.Logger) *ReindexWorker {
	if log == nil {
		log = zap.NewNop()
	}
	w := &ReindexWorker{rebuilder: rebuilder, log: log}
	w.consumer = newConsumer(conn, queueName, w.Handle, log)
	return w
}

func (w *ReindexWorker) Start(ctx context.Context) error {
	return w.consumer.start(ctx)
}

func (w *ReindexWorker) Close() {
	w.consumer.close()
}

func (w *ReindexWorker) Handle(ctx context.Context, body []byte) error {
	var req rabbitmq.ReindexRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("decode reindex request failed: %w", err)
	}

	docs, err := w.rebuilder.Rebuild(ctx)
	if err != nil {
		return err
	}
	w.log.Info("corpus reindexed",
		zap.String("reason", req.Reason),
		zap.Time("requested_at", req.RequestedAt),
		zap.Int("documents", docs),
	)
	return nil
}
