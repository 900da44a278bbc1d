package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"faultcheck/internal/runner"
	"faultcheck/internal/tui/components"
	"faultcheck/internal/tui/styles"
)

// Model shows the batch currently in flight.
type Model struct {
	Stats    runner.Snapshot
	Progress progress.Model

	RateLine    components.Sparkline
	LatencyLine components.Sparkline

	LastUpdate time.Time
	LastReqs   uint64
	LastBytes  uint64

	Width  int
	Height int
}

func NewModel() Model {
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		RateLine:    components.NewSparkline(40, "Throughput", "KB/s", styles.Default.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90", "ms", styles.Default.Warn),
		LastUpdate:  time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.Snapshot:
		if msg.Scenario != m.Stats.Scenario {
			m = m.reset()
		}

		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		if msg.Bytes > 0 {
			m.RateLine.Unit = "KB/s"
			m.RateLine.Add(float64(msg.Bytes-m.LastBytes) / 1024 / dt)
		} else {
			m.RateLine.Unit = "req/s"
			m.RateLine.Add(float64(msg.Requests-m.LastReqs) / dt)
		}
		m.LatencyLine.Add(msg.P90Ms)

		m.Stats = msg
		m.LastReqs = msg.Requests
		m.LastBytes = msg.Bytes
		m.LastUpdate = now

		pct := 0.0
		if msg.Total > 0 {
			pct = min(float64(msg.Requests)/float64(msg.Total), 1)
		}
		return m, m.Progress.SetPercent(pct)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-4, 10)

		half := max((msg.Width/2)-6, 10)
		m.RateLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) reset() Model {
	m.RateLine.Data = m.RateLine.Data[:0]
	m.LatencyLine.Data = m.LatencyLine.Data[:0]
	m.LastReqs, m.LastBytes = 0, 0
	m.LastUpdate = time.Now()
	return m
}

const maxErrorWidth = 40

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (m Model) View() string {
	st := styles.Default
	s := strings.Builder{}

	s.WriteString(st.Title.Render(m.Stats.Scenario))
	s.WriteString("\n\n")

	reqs := m.Stats.Requests
	errRate := m.Stats.ErrorRate

	var errColor lipgloss.Style
	switch {
	case errRate > 25:
		errColor = st.Error
	case errRate > 0:
		errColor = st.Warn
	default:
		errColor = st.Active
	}

	col1 := fmt.Sprintf("DONE: %d/%d\nINF: %d (peak %d)", reqs, m.Stats.Total, m.Stats.Inflight, m.Stats.Peak)
	col2 := fmt.Sprintf("FAIL: %.1f%%\nERR: %d", errRate, m.Stats.Fail)
	for _, e := range m.Stats.TopErrors {
		col2 += fmt.Sprintf("\n%d x %s", e.Count, truncate(e.Message, maxErrorWidth))
	}
	col3 := fmt.Sprintf("KB: %d\nTIME: %s", m.Stats.Bytes/1024, m.Stats.Elapsed.Round(100*time.Millisecond))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		st.Box.Render(col1),
		st.Box.Render(errColor.Render(col2)),
		st.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		st.Box.Render(m.RateLine.View()),
		st.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	s.WriteString(st.Box.Render(fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms",
		m.Stats.P50Ms, m.Stats.P90Ms, m.Stats.P99Ms,
	)))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	return s.String()
}
