package output

import "github.com/charmbracelet/lipgloss"

// Color palette: one lime accent, grays for secondary text.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the styles used by Writer.
type Styles struct {
	Header     lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Dim        lipgloss.Style
	Label      lipgloss.Style
	Score      lipgloss.Style
	Relevant   lipgloss.Style
	Irrelevant lipgloss.Style
	Progress   lipgloss.Style
}

// DefaultStyles returns the colored styles bound to renderer r.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header:     r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Success:    r.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning:    r.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:      r.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:        r.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:      r.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Score:      r.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Relevant:   r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Irrelevant: r.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Progress:   r.NewStyle().Foreground(lipgloss.Color(ColorLime)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:     plain,
		Success:    plain,
		Warning:    plain,
		Error:      plain,
		Dim:        plain,
		Label:      plain,
		Score:      plain,
		Relevant:   plain,
		Irrelevant: plain,
		Progress:   plain,
	}
}
