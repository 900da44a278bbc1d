package live

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"faultcheck/internal/runner"
	"faultcheck/internal/stats"
)

func TestModel_Snapshot(t *testing.T) {
	m := NewModel()

	m, cmd := m.Update(runner.Snapshot{Scenario: "bandwidth-50KB", Total: 10, Requests: 5, Success: 5, Bytes: 5 * 51200, Elapsed: time.Second})
	assert.NotNil(t, cmd, "progress animation")
	assert.Equal(t, "KB/s", m.RateLine.Unit)
	assert.Len(t, m.RateLine.Data, 1)
	assert.Equal(t, uint64(5), m.LastReqs)

	view := m.View()
	assert.Contains(t, view, "bandwidth-50KB")
	assert.Contains(t, view, "DONE: 5/10")
}

func TestModel_OpsRateAndReset(t *testing.T) {
	m := NewModel()
	m, _ = m.Update(runner.Snapshot{Scenario: "loss", Total: 4, Requests: 2, Fail: 1, ErrorRate: 50})
	m, _ = m.Update(runner.Snapshot{Scenario: "loss", Total: 4, Requests: 4, Fail: 2, ErrorRate: 50})
	assert.Equal(t, "req/s", m.RateLine.Unit)
	assert.Len(t, m.RateLine.Data, 2)
	assert.Contains(t, m.View(), "FAIL: 50.0%")

	m, _ = m.Update(runner.Snapshot{Scenario: "next", Total: 4, Requests: 1})
	assert.Len(t, m.RateLine.Data, 1, "a new scenario starts a fresh graph")
}

func TestModel_TopErrors(t *testing.T) {
	m := NewModel()
	m, _ = m.Update(runner.Snapshot{
		Scenario:  "packet-loss-25%",
		Total:     8,
		Requests:  8,
		Fail:      3,
		ErrorRate: 37.5,
		TopErrors: []stats.ErrorCount{
			{Message: "connection reset by peer", Count: 2},
			{Message: "timeout after 5s: " + strings.Repeat("x", 60), Count: 1},
		},
	})

	view := m.View()
	assert.Contains(t, view, "FAIL: 37.5%")
	assert.Contains(t, view, "2 x connection reset by peer")
	assert.Contains(t, view, "1 x timeout after 5s")
	assert.NotContains(t, view, strings.Repeat("x", 60))
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel()
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Equal(t, 96, m.Progress.Width)
	assert.Equal(t, 44, m.RateLine.Width)
}
