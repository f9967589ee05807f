// Package index is the contract to the vector-index service. Backends own
// passage storage, embedding and similarity ranking; callers only see text.
package index

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps every failure reported by an index backend.
var ErrUnavailable = errors.New("index unavailable")

// Passage is a stored chunk of corpus text.
type Passage struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score"` // backend-defined; only the order is meaningful
}

// Collection describes a named passage collection.
type Collection struct {
	ID          string
	Name        string
	Description string
}

type Gateway interface {
	Heartbeat(ctx context.Context) error
	// EnsureCollection returns the named collection, creating it when absent.
	EnsureCollection(ctx context.Context, name string) (*Collection, error)
	// Upsert stores texts as passages chunk_0..chunk_n-1 tagged with the corpus source label.
	Upsert(ctx context.Context, collection string, texts []string) error
	// Query returns up to k passages ranked by the backend's similarity metric.
	Query(ctx context.Context, collection, text string, k int) ([]Passage, error)
	Count(ctx context.Context, collection string) (int, error)
	DeleteCollection(ctx context.Context, collection string) error
}

// Embedder turns text into vectors for backends that store raw embeddings.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Entries assigns batch-ordinal ids and the source label to texts.
func Entries(texts []string, source string) []Passage {
	entries := make([]Passage, len(texts))
	for i, text := range texts {
		entries[i] = Passage{
			ID:     fmt.Sprintf("chunk_%d", i),
			Text:   text,
			Source: source,
		}
	}
	return entries
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
