package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps the last Width samples and scales them to the window max.
type Sparkline struct {
	Data  []float64
	Width int
	Label string
	Unit  string
	Style lipgloss.Style
}

func NewSparkline(width int, label, unit string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Unit:  unit,
		Style: style,
		Data:  make([]float64, 0, width),
	}
}

func (s *Sparkline) Add(v float64) {
	if v < 0 {
		v = 0
	}
	s.Data = append(s.Data, v)
	if s.Width > 0 && len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}
}

// Last returns the newest sample.
func (s Sparkline) Last() float64 {
	if len(s.Data) == 0 {
		return 0
	}
	return s.Data[len(s.Data)-1]
}

func (s Sparkline) peak() float64 {
	var m float64
	for _, v := range s.Data {
		m = max(m, v)
	}
	return m
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}

	header := fmt.Sprintf("%s  %.1f %s", s.Label, s.Last(), s.Unit)

	top := s.peak()
	var graph strings.Builder
	for _, v := range s.Data {
		idx := 0
		if top > 0 {
			idx = int(v / top * float64(len(levels)-1))
		}
		idx = min(max(idx, 0), len(levels)-1)
		graph.WriteRune(levels[idx])
	}
	if pad := s.Width - len(s.Data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}

	return s.Style.Render(header) + "\n" + s.Style.Render(graph.String())
}
