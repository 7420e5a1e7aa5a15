// Package logging configures structured slog output for grantlens.
// Logs are JSON lines written to a size-rotated file under ~/.grantlens/logs/
// and, outside of stdio-transport serving, mirrored to stderr.
package logging
