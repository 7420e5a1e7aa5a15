package output

import (
	"bytes"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressModel_View(t *testing.T) {
	// Given: a model with no total yet
	m := newProgressModel("Embedding grants")

	// Then: only the spinner and label show
	assert.Contains(t, m.View(), "Embedding grants")
	assert.NotContains(t, m.View(), "/")

	// When: half the work is reported
	updated, cmd := m.Update(progressMsg{done: 5, total: 10})
	m = updated.(progressModel)

	// Then: the count is shown and the program keeps running
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "5/10")
	assert.False(t, m.finished)
}

func TestProgressModel_QuitsWhenDone(t *testing.T) {
	m := newProgressModel("Embedding grants")

	updated, cmd := m.Update(progressMsg{done: 10, total: 10})
	m = updated.(progressModel)

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.finished)
	assert.Contains(t, m.View(), "Embedding grants: 10 done")
}

func TestProgressModel_WindowSizeClampsBar(t *testing.T) {
	m := newProgressModel("x")

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 30})
	assert.Equal(t, 20, updated.(progressModel).bar.Width)

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 300})
	assert.Equal(t, 60, updated.(progressModel).bar.Width)
}

func TestProgressUI_StopIsIdempotent(t *testing.T) {
	// Given: a running program on a buffer
	var buf bytes.Buffer
	ui := NewProgressUI(&buf, "Embedding grants")

	// When: progress completes and Stop is called twice
	ui.Update(3, 3)
	ui.Stop()
	ui.Stop()

	// Then: later updates are ignored without blocking
	ui.Update(1, 3)
}
