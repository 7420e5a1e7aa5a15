// Package watcher reports changes to a fixed set of files, such as the grant
// corpus and label table a running server was built from.
//
// fsnotify is used when it can start. It watches each file's directory, so
// editors that save through a temporary file and a rename are still seen.
// Where fsnotify is unavailable (some network mounts and container volumes)
// the files are polled instead. Bursts of events are coalesced before they
// are delivered.
//
// Usage:
//
//	w, err := watcher.New([]string{"grants.csv"}, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Start(ctx) }()
//	defer w.Stop()
//
//	for batch := range w.Events() {
//	    // reload
//	}
package watcher
