package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"flagstone-assistant/internal/model"
)

type ExchangeRepository interface {
	Create(ctx context.Context, exchange *model.Exchange) error
}

type DirtyClearer interface {
	ClearDirty(ctx context.Context) error
}

// ExchangePersistWorker stores exchanges published after each answer.
type ExchangePersistWorker struct {
	repo     ExchangeRepository
	cache    DirtyClearer
	consumer *consumer
	log      *zap.Logger
}

func NewExchangePersistWorker(conn *amqp.Connection, repo ExchangeRepository, cache DirtyClearer, queueName string, log *zap.Logger) *ExchangePersistWorker {
	if log == nil {
		log = zap.NewNop()
	}
	w := &ExchangePersistWorker{repo: repo, cache: cache, log: log}
	w.consumer = newConsumer(conn, queueName, w.Handle, log)
	return w
}

func (w *ExchangePersistWorker) Start(ctx context.Context) error {
	return w.consumer.start(ctx)
}

func (w *ExchangePersistWorker) Close() {
	w.consumer.close()
}

// Handle persists one encoded exchange. The pending history marker is
// released whatever the outcome, since failed deliveries are not requeued.
func (w *ExchangePersistWorker) Handle(ctx context.Context, body []byte) error {
	defer w.release(ctx)

	var exchange model.Exchange
	if err := json.Unmarshal(body, &exchange); err != nil {
		return fmt.Errorf("decode exchange failed: %w", err)
	}
	// ids are assigned by the database
	exchange.ID = 0

	return w.repo.Create(ctx, &exchange)
}

func (w *ExchangePersistWorker) release(ctx context.Context) {
	if w.cache == nil {
		return
	}
	if err := w.cache.ClearDirty(ctx); err != nil {
		w.log.Warn("clear history dirty marker failed", zap.Error(err))
	}
}
