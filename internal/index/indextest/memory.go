// Package indextest provides an in-memory index.Gateway for tests.
package indextest

import (
	"context"
	"fmt"
	"sync"

	"flagstone-assistant/internal/index"
)

// Memory keeps passages per collection and returns them in insertion order.
type Memory struct {
	mu          sync.Mutex
	SourceLabel string
	Collections map[string][]index.Passage

	// Err, when set, is returned wrapped in index.ErrUnavailable by every call.
	Err error

	Deletes int
	Upserts int
}

func NewMemory(sourceLabel string) *Memory {
	return &Memory{SourceLabel: sourceLabel, Collections: map[string][]index.Passage{}}
}

func (m *Memory) fail(op string) error {
	if m.Err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", index.ErrUnavailable, op, m.Err)
}

func (m *Memory) Heartbeat(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail("heartbeat")
}

func (m *Memory) EnsureCollection(_ context.Context, name string) (*index.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ensure collection"); err != nil {
		return nil, err
	}
	if _, ok := m.Collections[name]; !ok {
		m.Collections[name] = []index.Passage{}
	}
	return &index.Collection{ID: name, Name: name}, nil
}

func (m *Memory) Upsert(_ context.Context, collection string, texts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("upsert"); err != nil {
		return err
	}
	m.Upserts++
	if len(texts) == 0 {
		return nil
	}
	if _, ok := m.Collections[collection]; !ok {
		return fmt.Errorf("%w: upsert: collection %q does not exist", index.ErrUnavailable, collection)
	}
	m.Collections[collection] = append(m.Collections[collection], index.Entries(texts, m.SourceLabel)...)
	return nil
}

func (m *Memory) Query(_ context.Context, collection, _ string, k int) ([]index.Passage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("query"); err != nil {
		return nil, err
	}
	passages := m.Collections[collection]
	if k > len(passages) {
		k = len(passages)
	}
	out := make([]index.Passage, k)
	copy(out, passages[:k])
	return out, nil
}

func (m *Memory) Count(_ context.Context, collection string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("count"); err != nil {
		return 0, err
	}
	passages, ok := m.Collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: count: collection %q does not exist", index.ErrUnavailable, collection)
	}
	return len(passages), nil
}

func (m *Memory) DeleteCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete collection"); err != nil {
		return err
	}
	m.Deletes++
	delete(m.Collections, collection)
	return nil
}

// Passages returns a copy of the stored passages of a collection.
func (m *Memory) Passages(collection string) []index.Passage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]index.Passage(nil), m.Collections[collection]...)
}

var _ index.Gateway = (*Memory)(nil)
