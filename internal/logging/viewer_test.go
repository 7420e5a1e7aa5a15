package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"logging_ready","level_name":"debug"}
{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"runtime_ready","grants":8,"corpus":"grants.csv"}
not json at all
{"time":"2026-03-01T10:00:02.000Z","level":"WARN","msg":"annotation_degraded","index":3}
{"time":"2026-03-01T10:00:03.000Z","level":"ERROR","msg":"search_failed","error":"model offline"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grantlens.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestViewer_TailKeepsLastN(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "annotation_degraded", entries[0].Msg)
	assert.Equal(t, "search_failed", entries[1].Msg)
}

func TestViewer_LevelFilter(t *testing.T) {
	// Given: a viewer showing warnings and above
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &bytes.Buffer{})

	// When: tailing
	entries, err := v.Tail(path, 50)

	// Then: debug and info are gone, non-JSON lines pass through
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.False(t, entries[0].IsValid)
	assert.Equal(t, "WARN", entries[1].Level)
	assert.Equal(t, "ERROR", entries[2].Level)
}

func TestViewer_PatternFilter(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`grants\.csv`), NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 50)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "runtime_ready", entries[0].Msg)
}

func TestViewer_FormatEntrySortsAttributes(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)
	entry := v.parseLine(`{"time":"2026-03-01T10:00:01.5Z","level":"INFO","msg":"runtime_ready","grants":8,"corpus":"grants.csv"}`)

	v.Print([]LogEntry{entry})

	assert.Equal(t, "10:00:01.500 INFO  runtime_ready corpus=grants.csv grants=8\n", buf.String())
}

func TestViewer_FormatEntryRawLine(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	assert.Equal(t, "plain text", v.FormatEntry(v.parseLine("plain text")))
}

func TestViewer_TailMissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	_, err := v.Tail(filepath.Join(t.TempDir(), "nope.log"), 10)
	require.Error(t, err)
}

func TestViewer_FollowSeesAppendedLines(t *testing.T) {
	// Given: a followed log file with history
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 10)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()
	time.Sleep(150 * time.Millisecond)

	// When: a line is appended
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-03-01T10:00:04Z","level":"INFO","msg":"corpus_reloaded"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only the new entry is delivered
	select {
	case e := <-entries:
		assert.Equal(t, "corpus_reloaded", e.Msg)
	case <-time.After(3 * time.Second):
		t.Fatal("no entry followed")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, entries)
}

func TestLevelRank(t *testing.T) {
	assert.Less(t, levelRank("debug"), levelRank("INFO"))
	assert.Less(t, levelRank("info"), levelRank("warning"))
	assert.Less(t, levelRank("warn"), levelRank("error"))
	assert.Zero(t, levelRank(""))
	assert.Zero(t, levelRank("trace"))
}
