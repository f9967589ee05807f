// Package watcher rebuilds the corpus index when documents change on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"flagstone-assistant/internal/corpus"
)

type Rebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// CorpusWatcher coalesces bursts of file events into a single rebuild.
type CorpusWatcher struct {
	dir       string
	debounce  time.Duration
	rebuilder Rebuilder
	log       *zap.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewCorpusWatcher(dir string, debounce time.Duration, rebuilder Rebuilder, log *zap.Logger) *CorpusWatcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CorpusWatcher{
		dir:       dir,
		debounce:  debounce,
		rebuilder: rebuilder,
		log:       log.With(zap.String("dir", dir)),
	}
}

func (w *CorpusWatcher) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher failed: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s failed: %w", w.dir, err)
	}
	w.watcher = fw

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(watchCtx)
	w.log.Info("corpus watcher started")
	return nil
}

func (w *CorpusWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !Relevant(event) {
				continue
			}
			w.log.Debug("corpus file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.Error(err))
		case <-timer.C:
			docs, err := w.rebuilder.Rebuild(ctx)
			if err != nil {
				w.log.Error("rebuild after file change failed", zap.Error(err))
				continue
			}
			w.log.Info("corpus rebuilt after file change", zap.Int("documents", docs))
		}
	}
}

func (w *CorpusWatcher) Close() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// Relevant reports whether event touches a corpus document.
func Relevant(event fsnotify.Event) bool {
	if !corpus.IsDocument(filepath.Base(event.Name)) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
