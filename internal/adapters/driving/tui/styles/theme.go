// Package styles holds the lipgloss palette used by CLI and TUI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// Relevance bands used to colour query scores.
const (
	StrongMatch = 0.75
	WeakMatch   = 0.4
)

// Palette is the set of colours the styles draw from.
type Palette struct {
	Accent  lipgloss.Color
	Heading lipgloss.Color
	Text    lipgloss.Color
	Dim     lipgloss.Color
	OK      lipgloss.Color
	Caution lipgloss.Color
	Fail    lipgloss.Color
	Rule    lipgloss.Color
}

// DefaultPalette is a dark-terminal palette.
func DefaultPalette() Palette {
	return Palette{
		Accent:  lipgloss.Color("#7C3AED"),
		Heading: lipgloss.Color("#06B6D4"),
		Text:    lipgloss.Color("#CDD6F4"),
		Dim:     lipgloss.Color("#6C7086"),
		OK:      lipgloss.Color("#A6E3A1"),
		Caution: lipgloss.Color("#F9E2AF"),
		Fail:    lipgloss.Color("#F38BA8"),
		Rule:    lipgloss.Color("#45475A"),
	}
}

// Styles are the rendered styles derived from a Palette.
type Styles struct {
	palette Palette

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Spinner  lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style

	// Result frames one query hit with a left rule.
	Result lipgloss.Style
}

// New derives styles from p.
func New(p Palette) *Styles {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &Styles{
		palette:  p,
		Title:    fg(p.Accent).Bold(true),
		Subtitle: fg(p.Heading).Bold(true),
		Normal:   fg(p.Text),
		Muted:    fg(p.Dim),
		Spinner:  fg(p.Accent),
		Error:    fg(p.Fail),
		Success:  fg(p.OK),
		Warning:  fg(p.Caution),
		Result: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(p.Rule).
			PaddingLeft(1),
	}
}

// DefaultStyles returns styles for DefaultPalette.
func DefaultStyles() *Styles {
	return New(DefaultPalette())
}

// Palette returns the colours the styles were built from.
func (s *Styles) Palette() Palette {
	return s.palette
}

// Score renders a relevance score, coloured by band.
func (s *Styles) Score(score float64) string {
	c := s.palette.Fail
	switch {
	case score >= StrongMatch:
		c = s.palette.OK
	case score >= WeakMatch:
		c = s.palette.Caution
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c).Render(formatScore(score))
}

// Status renders an ingestion status.
func (s *Styles) Status(status domain.IngestionStatus) string {
	if status == domain.StatusIngested {
		return s.Success.Render(status.String())
	}
	return s.Warning.Render(status.String())
}

// Check renders a pass or fail line with a leading mark.
func (s *Styles) Check(ok bool, msg string) string {
	if ok {
		return s.Success.Render("✓ " + msg)
	}
	return s.Error.Render("✗ " + msg)
}
