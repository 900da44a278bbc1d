package app

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"faultcheck/internal/runner"
	"faultcheck/internal/scenario"
	"faultcheck/internal/tui/live"
	"faultcheck/internal/tui/styles"
)

type SnapshotMsg runner.Snapshot

// ScenarioDoneMsg carries a finished scenario to the view.
type ScenarioDoneMsg scenario.Result

// RunDoneMsg ends the program.
type RunDoneMsg struct{}

type Model struct {
	Updates runner.SnapshotChan
	Cancel  context.CancelFunc

	Live     live.Model
	Finished []scenario.Result
	Total    int

	Stopping bool
	Done     bool
	Width    int
}

func NewModel(updates runner.SnapshotChan, total int, cancel context.CancelFunc) Model {
	return Model{
		Updates: updates,
		Cancel:  cancel,
		Live:    live.NewModel(),
		Total:   total,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

// waitForUpdate yields nil once sub is closed, which ends the wait loop.
func waitForUpdate(sub runner.SnapshotChan) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-sub
		if !ok {
			return nil
		}
		return SnapshotMsg(s)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.Cancel != nil && !m.Stopping {
				m.Cancel()
			}
			m.Stopping = true
			return m, nil
		}

	case SnapshotMsg:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(runner.Snapshot(msg))
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case ScenarioDoneMsg:
		m.Finished = append(m.Finished, scenario.Result(msg))
		return m, nil

	case RunDoneMsg:
		m.Done = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.Live, cmd = m.Live.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Done {
		return ""
	}
	st := styles.Default
	var b strings.Builder

	b.WriteString(st.Title.Render(fmt.Sprintf("faultcheck  scenario %d/%d", min(len(m.Finished)+1, m.Total), m.Total)))
	b.WriteString("\n\n")
	b.WriteString(m.Live.View())
	b.WriteString("\n\n")

	for _, r := range m.Finished {
		line := fmt.Sprintf("  %-24s [%s]", r.Scenario.Name, r.Status)
		if r.Verdict != nil {
			line += " " + string(r.Verdict.Status)
		}
		b.WriteString(st.Subtle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.Stopping {
		b.WriteString(st.Warn.Render("stopping: waiting for in-flight requests to settle"))
	} else {
		b.WriteString(styles.RenderKey("q", "stop run"))
	}
	return b.String()
}

// Sender is the part of *tea.Program the Reporter needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Reporter forwards finished scenarios into a running program.
type Reporter struct {
	Program Sender
}

func (r Reporter) ScenarioStarted(scenario.Scenario) {}

func (r Reporter) ScenarioFinished(res scenario.Result) {
	r.Program.Send(ScenarioDoneMsg(res))
}
