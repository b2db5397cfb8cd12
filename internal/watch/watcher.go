// Package watch triggers generation runs when instruction files appear in
// a watched directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// defaultDebounce collapses the duplicate Create/Write events most editors
// emit for a single save.
const defaultDebounce = 500 * time.Millisecond

// Handler is invoked with the path of a changed instruction file.
type Handler func(ctx context.Context, path string)

// Watcher watches a directory for instruction files (*.txt, *.md).
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  Handler
	logger   *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// New creates a watcher over dir.
func New(dir string, handler Handler, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:      dir,
		debounce: defaultDebounce,
		handler:  handler,
		logger:   logger,
		lastSeen: make(map[string]time.Time),
	}
}

// SetDebounce overrides the debounce window (used by tests).
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run watches until the context is cancelled. Each debounced Create/Write
// event on an instruction file invokes the handler synchronously; a slow
// handler therefore backpressures the watcher rather than piling up
// goroutines.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("Watching for instruction files", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isInstructionFile(event.Name) {
				continue
			}
			if !w.shouldFire(event.Name) {
				continue
			}
			w.logger.Debug("Instruction file changed", zap.String("path", event.Name))
			w.handler(ctx, event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// shouldFire debounces repeated events for the same path.
func (w *Watcher) shouldFire(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if last, ok := w.lastSeen[path]; ok && now.Sub(last) < w.debounce {
		return false
	}
	w.lastSeen[path] = now
	return true
}

func isInstructionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}
