package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a fixed set of files.
type FileWatcher struct {
	paths     map[string]bool
	opts      Options
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	stopOnce  sync.Once

	mu      sync.Mutex
	polling bool
}

// New creates a watcher for paths. The files need not exist yet; their
// directories must.
func New(paths []string, opts Options) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to watch")
	}
	opts = opts.WithDefaults()

	w := &FileWatcher{
		paths:     make(map[string]bool, len(paths)),
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, 4),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve absolute path: %w", err)
		}
		w.paths[filepath.Clean(abs)] = true
	}
	go w.forward()
	return w, nil
}

// Start watches until ctx is done or Stop is called. It blocks.
func (w *FileWatcher) Start(ctx context.Context) error {
	if !w.opts.ForcePolling {
		fsw, err := w.newFsnotify()
		if err == nil {
			return w.runFsnotify(ctx, fsw)
		}
		slog.Warn("fsnotify unavailable, polling instead", slog.String("error", err.Error()))
	}

	w.mu.Lock()
	w.polling = true
	w.mu.Unlock()
	return w.runPolling(ctx)
}

// Polling reports whether the watcher fell back to polling.
func (w *FileWatcher) Polling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// Stop ends watching and closes Events. Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.debouncer.Stop()
	})
	return nil
}

// Events delivers coalesced batches of changes. Closed after Stop.
func (w *FileWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors delivers non-fatal watcher errors. It is never closed.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

func (w *FileWatcher) newFsnotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dirs := make(map[string]bool)
	for p := range w.paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return fsw, nil
}

func (w *FileWatcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	defer func() { _ = fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleFsnotify(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *FileWatcher) handleFsnotify(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !w.paths[path] {
		return
	}

	var op Operation
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
}

type fileSnapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

func (w *FileWatcher) snapshot() map[string]fileSnapshot {
	snap := make(map[string]fileSnapshot, len(w.paths))
	for p := range w.paths {
		info, err := os.Stat(p)
		if err != nil {
			snap[p] = fileSnapshot{}
			continue
		}
		snap[p] = fileSnapshot{exists: true, modTime: info.ModTime(), size: info.Size()}
	}
	return snap
}

func (w *FileWatcher) runPolling(ctx context.Context) error {
	prev := w.snapshot()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			cur := w.snapshot()
			for path, before := range prev {
				if op, changed := diff(before, cur[path]); changed {
					w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
				}
			}
			prev = cur
		}
	}
}

func diff(before, after fileSnapshot) (Operation, bool) {
	switch {
	case !before.exists && after.exists:
		return OpCreate, true
	case before.exists && !after.exists:
		return OpDelete, true
	case before.exists && (before.size != after.size || !before.modTime.Equal(after.modTime)):
		return OpModify, true
	default:
		return 0, false
	}
}

func (w *FileWatcher) forward() {
	defer close(w.events)
	for batch := range w.debouncer.Output() {
		select {
		case w.events <- batch:
		case <-w.stopCh:
		}
	}
}

func (w *FileWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}
