package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// --- Color Palette (Dark Mode) ---
var (
	ColorPrimary   = lipgloss.Color("#7D56F4") // Indigo/Purple
	ColorSecondary = lipgloss.Color("#04B575") // Green
	ColorError     = lipgloss.Color("#FF5F87") // Pink/Red
	ColorWarning   = lipgloss.Color("#FFAF00") // Gold
	ColorText      = lipgloss.Color("#FAFAFA") // White-ish
	ColorSubtle    = lipgloss.Color("#767676") // Gray
	ColorBorder    = lipgloss.Color("#3C3C3C") // Dark Gray border
	ColorBanner    = lipgloss.Color("#7D56F4")
)

// Set is every style the report and live view use, bound to one renderer
// so output written to a pipe or file carries no escape codes.
type Set struct {
	Title  lipgloss.Style
	Rule   lipgloss.Style
	Text   lipgloss.Style
	Subtle lipgloss.Style
	Value  lipgloss.Style
	Active lipgloss.Style
	Error  lipgloss.Style
	Warn   lipgloss.Style
	Box    lipgloss.Style

	Pass         lipgloss.Style
	Fail         lipgloss.Style
	Inconclusive lipgloss.Style
}

func New(r *lipgloss.Renderer) Set {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Set{
		Title: r.NewStyle().
			Foreground(ColorPrimary).
			Bold(true),
		Rule:   r.NewStyle().Foreground(ColorSubtle),
		Text:   r.NewStyle().Foreground(ColorText),
		Subtle: r.NewStyle().Foreground(ColorSubtle),
		Value:  r.NewStyle().Foreground(ColorSecondary).Bold(true),
		Active: r.NewStyle().Foreground(ColorPrimary).Bold(true),
		Error:  r.NewStyle().Foreground(ColorError),
		Warn:   r.NewStyle().Foreground(ColorWarning),

		// Box/Card container
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1).
			Margin(0, 1),

		Pass:         r.NewStyle().Foreground(ColorSecondary).Bold(true),
		Fail:         r.NewStyle().Foreground(ColorError).Bold(true),
		Inconclusive: r.NewStyle().Foreground(ColorWarning).Bold(true),
	}
}

// Default is bound to stdout.
var Default = New(nil)

func RenderKey(key, desc string) string {
	return lipgloss.JoinHorizontal(lipgloss.Center,
		Default.Text.Bold(true).Render("<"+key+">"),
		" ",
		Default.Subtle.Render(desc),
	)
}
