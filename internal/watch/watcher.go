// Package watch observes tracked workspace files and reports settled
// writes, so each burst of editor activity yields one snapshot.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is the settle window after the last write to a file.
const DefaultDebounce = 200 * time.Millisecond

// Event reports that a tracked file settled after one or more writes.
type Event struct {
	// FileID is the tracked file's workspace-relative path.
	FileID string

	// At is when the file settled.
	At time.Time
}

// Watcher watches a fixed set of workspace files. Editors commonly
// replace files via rename, so the parent directories are watched and
// events are filtered down to the tracked paths.
type Watcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger

	// fileIDs maps absolute path to workspace-relative id.
	fileIDs map[string]string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a watcher for the given workspace-relative file ids.
// A zero debounce uses DefaultDebounce.
func NewWatcher(root string, fileIDs []string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if len(fileIDs) == 0 {
		return nil, errors.New("at least one file to watch is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	byPath := make(map[string]string, len(fileIDs))
	for _, id := range fileIDs {
		byPath[filepath.Join(root, id)] = id
	}

	return &Watcher{
		root:     root,
		debounce: debounce,
		watcher:  fsw,
		events:   make(chan Event, 16),
		stop:     make(chan struct{}),
		logger:   logger,
		fileIDs:  byPath,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. Events are delivered on the Events channel until
// the context is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for path := range w.fileIDs {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
}

// Events returns the channel of settled-write events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			id, tracked := w.fileIDs[filepath.Clean(event.Name)]
			if !tracked {
				continue
			}
			w.bump(id)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// bump resets the settle timer for one file.
func (w *Watcher) bump(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[id]; ok {
		t.Stop()
	}
	w.timers[id] = time.AfterFunc(w.debounce, func() {
		select {
		case w.events <- Event{FileID: id, At: time.Now()}:
		case <-w.stop:
		default:
			// Channel full, drop rather than block the timer goroutine.
			w.logger.Warn("dropped watch event", zap.String("file_id", id))
		}
	})
}
