package corpus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"flagstone-assistant/internal/chunker"
	"flagstone-assistant/internal/index"
)

// Loader populates the passage index from corpus documents.
type Loader struct {
	gateway    index.Gateway
	store      *Store
	collection string
	chunkSize  int
	log        *zap.Logger

	// rebuilds are serialized against each other; queries are not.
	mu sync.Mutex
}

func NewLoader(gateway index.Gateway, store *Store, collection string, chunkSize int, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		gateway:    gateway,
		store:      store,
		collection: collection,
		chunkSize:  chunkSize,
		log:        log,
	}
}

// Passages chunks every document and flattens the result in document order.
func Passages(docs []Document, chunkSize int) []string {
	var passages []string
	for _, doc := range docs {
		passages = append(passages, chunker.Chunk(doc.Text, chunkSize)...)
	}
	return passages
}

// Load chunks docs and upserts all passages in one batch.
func (l *Loader) Load(ctx context.Context, docs []Document) (int, error) {
	passages := Passages(docs, l.chunkSize)
	if err := l.gateway.Upsert(ctx, l.collection, passages); err != nil {
		return 0, fmt.Errorf("load corpus failed: %w", err)
	}
	l.log.Info("corpus loaded",
		zap.String("collection", l.collection),
		zap.Int("documents", len(docs)),
		zap.Int("passages", len(passages)),
	)
	return len(passages), nil
}

// Init ensures the collection exists and loads the corpus only when it is empty.
func (l *Loader) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.gateway.EnsureCollection(ctx, l.collection); err != nil {
		return fmt.Errorf("init corpus failed: %w", err)
	}
	n, err := l.gateway.Count(ctx, l.collection)
	if err != nil {
		return fmt.Errorf("init corpus failed: %w", err)
	}
	if n > 0 {
		l.log.Info("corpus already indexed", zap.String("collection", l.collection), zap.Int("passages", n))
		return nil
	}

	docs, err := l.store.ReadAll()
	if err != nil {
		return fmt.Errorf("init corpus failed: %w", err)
	}
	_, err = l.Load(ctx, docs)
	return err
}

// Rebuild drops the collection and reindexes every document on disk. It
// returns the number of documents indexed.
func (l *Loader) Rebuild(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	docs, err := l.store.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("rebuild corpus failed: %w", err)
	}

	if err := l.gateway.DeleteCollection(ctx, l.collection); err != nil {
		// a missing collection is not fatal to a rebuild
		l.log.Warn("delete collection failed", zap.String("collection", l.collection), zap.Error(err))
	}
	if _, err := l.gateway.EnsureCollection(ctx, l.collection); err != nil {
		return 0, fmt.Errorf("rebuild corpus failed: %w", err)
	}
	if _, err := l.Load(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
