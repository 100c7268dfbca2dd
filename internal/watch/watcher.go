// Package watch re-runs a callback when the curriculum on disk changes.
// It watches the artifact directory and the directory holding the pointer
// document, and coalesces bursts of events into one callback per debounce
// window.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"stepwise/internal/curriculum"
	"stepwise/internal/logging"
)

// DefaultDebounce is the quiet period before a burst of changes fires.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives the sorted paths that changed during one burst.
type ChangeFunc func(ctx context.Context, changed []string)

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Ignored       int
	Triggers      int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
	LastEventType string
}

// Watcher watches the tests directory and pointer document.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	testsDir    string
	pointerPath string
	onChange    ChangeFunc
	pending     map[string]struct{}
	lastEvent   time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closeOnce   sync.Once

	stats Stats
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDur = d
		}
	}
}

// New creates a watcher. pointerPath may be empty when only the tests
// directory matters.
func New(testsDir, pointerPath string, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: nil change callback")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fw,
		testsDir:    absClean(testsDir),
		onChange:    onChange,
		pending:     make(map[string]struct{}),
		debounceDur: DefaultDebounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	if pointerPath != "" {
		w.pointerPath = absClean(pointerPath)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func absClean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Start begins watching. It is non-blocking; events are handled in a
// goroutine until Stop is called or ctx is done. A directory that does not
// exist yet is logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	watched := 0
	for _, dir := range w.dirs() {
		if err := w.watcher.Add(dir); err != nil {
			logging.WatchWarn("Cannot watch %s: %v", dir, err)
			continue
		}
		watched++
		logging.Watch("Watching %s", dir)
	}
	if watched == 0 {
		logging.WatchWarn("No directories could be watched; changes will not be noticed")
	}

	go w.run(ctx)
	return nil
}

func (w *Watcher) dirs() []string {
	dirs := []string{w.testsDir}
	if w.pointerPath != "" {
		if pd := filepath.Dir(w.pointerPath); pd != w.testsDir {
			dirs = append(dirs, pd)
		}
	}
	return dirs
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.closeOnce.Do(func() {
		if err := w.watcher.Close(); err != nil {
			logging.WatchWarn("Error closing watcher: %v", err)
		}
	})
	logging.WatchDebug("Watcher stopped")
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchWarn("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.flush(ctx)
		}
	}
}

// relevant reports whether a path can affect the report: an artifact in the
// tests directory or the pointer document itself.
func (w *Watcher) relevant(path string) bool {
	path = filepath.Clean(path)
	if w.pointerPath != "" && path == w.pointerPath {
		return true
	}
	if filepath.Dir(path) != w.testsDir {
		return false
	}
	_, ok := curriculum.ParseIdentifier(filepath.Base(path))
	return ok
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var eventType string
	switch {
	case event.Has(fsnotify.Create):
		eventType = "create"
	case event.Has(fsnotify.Write):
		eventType = "modify"
	case event.Has(fsnotify.Remove):
		eventType = "delete"
	case event.Has(fsnotify.Rename):
		eventType = "rename"
	default:
		return // chmod
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.relevant(event.Name) {
		w.stats.Ignored++
		return
	}

	logging.WatchDebug("%s %s", eventType, event.Name)
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventType = eventType

	w.pending[filepath.Clean(event.Name)] = struct{}{}
	w.lastEvent = time.Now()
}

// flush fires the callback once the burst has been quiet for the debounce
// window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 || time.Since(w.lastEvent) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.stats.Triggers++
	w.mu.Unlock()

	sort.Strings(changed)
	logging.Watch("Change detected (%d paths), recomputing", len(changed))
	w.onChange(ctx, changed)
}

// GetStats returns the current watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching returns true if the watcher is currently running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.watcher.WatchList()
}
