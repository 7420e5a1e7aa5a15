package watcher

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per path. Within one window:
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE cancels out
//   - DELETE then CREATE becomes MODIFY (the file was replaced)
//   - anything else keeps the latest operation
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]pendingEvent
	timer   *time.Timer
	output  chan []FileEvent
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a Debouncer that emits after window of quiet.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]pendingEvent),
		output:  make(chan []FileEvent, 4),
	}
}

// Add queues event and restarts the window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		merged, keep := coalesce(existing, event)
		if keep {
			existing.event = merged
			d.pending[event.Path] = existing
		} else {
			delete(d.pending, event.Path)
		}
	} else {
		d.pending[event.Path] = pendingEvent{event: event, firstOp: event.Operation}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(existing pendingEvent, next FileEvent) (FileEvent, bool) {
	switch {
	case existing.firstOp == OpCreate && next.Operation == OpModify:
		return existing.event, true
	case existing.firstOp == OpCreate && next.Operation == OpDelete:
		return FileEvent{}, false
	case existing.firstOp == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, p := range d.pending {
		batch = append(batch, p.event)
	}
	slices.SortFunc(batch, func(a, b FileEvent) int { return strings.Compare(a.Path, b.Path) })
	d.pending = make(map[string]pendingEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("watcher_batch_dropped", slog.Int("events", len(batch)))
	}
}

// Output delivers coalesced batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop discards pending events and closes Output. Safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
