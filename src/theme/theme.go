package theme

import "github.com/charmbracelet/lipgloss"

// Palette is the set of colors the CLI draws with
type Palette struct {
	Primary   lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Accent    lipgloss.Color
}

// CurrentTheme is the active palette
var CurrentTheme = Palette{
	Primary:   lipgloss.Color("#00ff00"),
	Text:      lipgloss.Color("#ffffff"),
	TextMuted: lipgloss.Color("#808080"),
	Error:     lipgloss.Color("#ff5f5f"),
	Warning:   lipgloss.Color("#ffaf00"),
	Accent:    lipgloss.Color("#5fafff"),
}

// SetTheme sets the current theme
func SetTheme(p Palette) {
	CurrentTheme = p
}

// Styles are the rendered roles of CLI output
type Styles struct {
	Title     lipgloss.Style
	Role      lipgloss.Style
	User      lipgloss.Style
	Reasoning lipgloss.Style
	Error     lipgloss.Style
	Notice    lipgloss.Style
	Citation  lipgloss.Style
	Muted     lipgloss.Style
	Prompt    lipgloss.Style
}

// NewStyles builds styles from p. With plain set every style renders text
// unchanged.
func NewStyles(p Palette, plain bool) Styles {
	if plain {
		s := lipgloss.NewStyle()
		return Styles{s, s, s, s, s, s, s, s, s}
	}
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
		Role:      lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		User:      lipgloss.NewStyle().Foreground(p.Text),
		Reasoning: lipgloss.NewStyle().Italic(true).Foreground(p.TextMuted),
		Error:     lipgloss.NewStyle().Foreground(p.Error),
		Notice:    lipgloss.NewStyle().Foreground(p.Warning),
		Citation:  lipgloss.NewStyle().Foreground(p.Accent).Underline(true),
		Muted:     lipgloss.NewStyle().Foreground(p.TextMuted),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
	}
}

// Default returns styles for the current theme.
func Default(plain bool) Styles {
	return NewStyles(CurrentTheme, plain)
}
