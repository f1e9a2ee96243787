package ics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/security"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// DefaultDebounce coalesces the burst of events an editor produces on save.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called once per user after a watched file settled.
type ChangeFunc func(ctx context.Context, userID uuid.UUID)

// Watcher triggers a sync when a local ICS file changes. Parent directories
// are watched so files replaced by rename keep being tracked.
type Watcher struct {
	fs       *fsnotify.Watcher
	onChange ChangeFunc
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	targets map[string]map[uuid.UUID]struct{}
	dirs    map[string]bool
	timers  map[uuid.UUID]*time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher calling onChange for modified files.
func NewWatcher(onChange ChangeFunc, logger *slog.Logger, opts ...WatcherOption) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
		targets:  make(map[string]map[uuid.UUID]struct{}),
		dirs:     make(map[string]bool),
		timers:   make(map[uuid.UUID]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch registers path as a source of userID. URL sources are ignored.
func (w *Watcher) Watch(path string, userID uuid.UUID) error {
	if IsURL(path) {
		return nil
	}
	abs, err := security.ResolvePath(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	users, ok := w.targets[abs]
	if !ok {
		users = make(map[uuid.UUID]struct{})
		w.targets[abs] = users
	}
	users[userID] = struct{}{}
	w.logger.Debug("watching ics file", "path", abs, "user_id", userID)
	return nil
}

// Run dispatches file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(ctx, filepath.Clean(ev.Name))
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("file watcher overflowed, syncing every watched file")
				w.scheduleAll(ctx)
				continue
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for userID := range w.targets[path] {
		w.scheduleUserLocked(ctx, userID)
	}
}

func (w *Watcher) scheduleAll(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, users := range w.targets {
		for userID := range users {
			w.scheduleUserLocked(ctx, userID)
		}
	}
}

func (w *Watcher) scheduleUserLocked(ctx context.Context, userID uuid.UUID) {
	if t, ok := w.timers[userID]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[userID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, userID)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("ics file changed", "user_id", userID)
		w.onChange(ctx, userID)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}
