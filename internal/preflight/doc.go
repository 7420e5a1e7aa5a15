// Package preflight runs the checks behind `grantlens doctor`.
//
// It verifies the corpus loads, the label table parses and matches the
// running ranking setup, the embedder answers, the language model client
// can be built, and the history database location is writable.
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
