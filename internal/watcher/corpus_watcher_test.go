package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRebuilder struct {
	calls atomic.Int32
}

func (r *countingRebuilder) Rebuild(context.Context) (int, error) {
	r.calls.Add(1)
	return 1, nil
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/docs/guide.md", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/docs/rates.PDF", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/docs/old.md", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/docs/old.md", Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: "/docs/guide.md", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/docs/.guide.md.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/docs/notes.txt", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Relevant(tt.event), tt.event.String())
	}
}

func TestWatcherDebouncesRebuilds(t *testing.T) {
	dir := t.TempDir()
	rb := &countingRebuilder{}
	w := NewCorpusWatcher(dir, 100*time.Millisecond, rb, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.md"), []byte("Version text."), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return rb.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), rb.calls.Load())
}
