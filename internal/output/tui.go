package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProgressUI draws corpus embedding progress with a bubbletea program.
// Update may be called from any goroutine; Stop must be called once the
// work is finished.
type ProgressUI struct {
	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
	stopped bool
}

// NewProgressUI starts a progress program writing to w. Keyboard input is
// not read, so the caller's signal handling stays in charge of Ctrl+C.
func NewProgressUI(w io.Writer, label string) *ProgressUI {
	p := &ProgressUI{
		program: tea.NewProgram(newProgressModel(label), tea.WithOutput(w), tea.WithInput(nil)),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

// Update reports that done of total items are finished.
func (p *ProgressUI) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.program.Send(progressMsg{done: done, total: total})
}

// Stop ends the program and waits briefly for the final frame.
func (p *ProgressUI) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.program.Quit()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
	}
}

type progressMsg struct {
	done, total int
}

// progressModel is the bubbletea model behind ProgressUI.
type progressModel struct {
	label    string
	done     int
	total    int
	started  time.Time
	finished bool
	spinner  spinner.Model
	bar      progress.Model
	dim      lipgloss.Style
}

func newProgressModel(label string) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return progressModel{
		label:   label,
		started: time.Now(),
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		dim: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.done, m.total = msg.done, msg.total
		if m.total > 0 && m.done >= m.total {
			m.finished = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = max(20, min(60, msg.Width-40))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished {
		return fmt.Sprintf("✅ %s: %d done in %s\n", m.label, m.total, time.Since(m.started).Round(time.Millisecond))
	}
	if m.total <= 0 {
		return fmt.Sprintf("%s %s\n", m.spinner.View(), m.label)
	}

	pct := float64(m.done) / float64(m.total)
	return fmt.Sprintf("%s %s %s %s\n",
		m.spinner.View(),
		m.label,
		m.bar.ViewAs(pct),
		m.dim.Render(fmt.Sprintf("%d/%d", m.done, m.total)),
	)
}
