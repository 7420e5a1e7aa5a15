package watcher

import "time"

// Operation is the kind of change seen on a file.
type Operation int

const (
	// OpCreate means the file appeared.
	OpCreate Operation = iota
	// OpModify means the file's contents changed.
	OpModify
	// OpDelete means the file is gone.
	OpDelete
	// OpRename means the file was moved away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change to a watched file.
type FileEvent struct {
	// Path is the absolute path of the watched file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a FileWatcher.
type Options struct {
	// DebounceWindow is how long the watcher waits for a burst of events to
	// settle. Default: 500ms.
	DebounceWindow time.Duration

	// PollInterval is used when fsnotify is unavailable. Default: 2s.
	PollInterval time.Duration

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 500 * time.Millisecond,
		PollInterval:   2 * time.Second,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	return o
}
