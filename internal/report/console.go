// Package report renders run results on a terminal and exports them to
// CSV and JSON.
package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"faultcheck/internal/probe"
	"faultcheck/internal/scenario"
	"faultcheck/internal/stats"
	"faultcheck/internal/tui/styles"
	"faultcheck/internal/verdict"
)

const rule = "======================================================================"

// Console prints a block per scenario as it finishes and a run summary at
// the end. It implements scenario.Reporter.
type Console struct {
	mu sync.Mutex
	w  io.Writer
	st styles.Set

	// Quiet drops the per-request lines.
	Quiet bool
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w, st: styles.New(lipgloss.NewRenderer(w))}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.w, format, args...)
}

func (c *Console) ScenarioStarted(s scenario.Scenario) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.printf("\n%s\n", c.st.Title.Render("▶ "+s.Name))
	c.printf("%s\n", c.st.Rule.Render(rule))
	c.printf("Target      : %s\n", s.Target)
	if s.Target.VirtualHost != "" {
		c.printf("Host header : %s\n", s.Target.VirtualHost)
	}
	if s.Target.Size > 0 {
		c.printf("Payload     : %s\n", formatBytes(s.Target.Size))
	}
	c.printf("Requests    : %d (concurrency %d)\n", s.Requests, s.Concurrency)
	if s.Interval > 0 {
		c.printf("Interval    : %s\n", s.Interval)
	}
	if s.Pause > 0 {
		c.printf("Pause       : %s\n", s.Pause)
	}
	c.printf("%s\n", c.st.Rule.Render(rule))
}

func (c *Console) ScenarioFinished(r scenario.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Err != nil {
		c.printf("%s %s\n", c.st.Error.Render("ERROR"), r.Err)
		return
	}

	if !c.Quiet {
		n := len(r.Batch.Outcomes)
		for _, o := range r.Batch.Outcomes {
			c.printf("  %s\n", c.requestLine(o, n, r.Scenario.Mode))
		}
	}
	c.printAggregate(r.Aggregate, r.Status)
	if r.Verdict != nil {
		c.printf("\n%s\n", c.verdictLine("Verdict", *r.Verdict))
	}
}

func (c *Console) requestLine(o probe.Outcome, n int, mode stats.ThroughputMode) string {
	prefix := fmt.Sprintf("Request %d/%d:", o.Index+1, n)
	if !o.Success {
		return prefix + " " + c.st.Error.Render("FAILED: "+o.Err)
	}
	line := fmt.Sprintf("%s %s", prefix, formatDuration(o.Duration))
	if mode == stats.ModeBytes {
		line += fmt.Sprintf(", %.1f KB/s", o.Speed()/1024)
	}
	return line
}

func (c *Console) printAggregate(a stats.Aggregate, status scenario.Status) {
	c.printf("\n%s %s\n", c.st.Title.Render("Results"), c.statusTag(status))
	c.printf("   Total requests : %d\n", a.Total)
	c.printf("   Successful     : %s\n", c.st.Value.Render(fmt.Sprint(a.Succeeded)))
	failed := fmt.Sprint(a.Failed)
	if a.Failed > 0 {
		failed = c.st.Error.Render(failed)
	}
	c.printf("   Failed         : %s\n", failed)
	c.printf("   Success rate   : %.1f%%\n", a.SuccessRate*100)
	c.printf("   Failure rate   : %.1f%%\n", a.FailureRate()*100)
	c.printf("   Total time     : %s\n", a.Span.Round(time.Millisecond))
	if a.Succeeded > 0 || a.Mode == stats.ModeOps {
		c.printf("   Throughput     : %s\n", formatThroughput(a.Throughput, a.Mode))
	}

	if l := a.Latency; l != nil {
		c.printf("\n   Response times (success only)\n")
		c.printf("     Min    : %s\n", formatDuration(l.Min))
		c.printf("     Max    : %s\n", formatDuration(l.Max))
		c.printf("     Mean   : %s\n", formatDuration(l.Mean))
		c.printf("     Median : %s\n", formatDuration(l.Median))
		c.printf("     P90    : %s\n", formatDuration(l.P90))
		c.printf("     P99    : %s\n", formatDuration(l.P99))
	} else {
		c.printf("\n   %s\n", c.st.Warn.Render("No successful requests; latency undefined"))
	}

	if breakdown := a.FailureBreakdown(); len(breakdown) > 0 {
		c.printf("\n   %s\n", c.st.Error.Render("Failures"))
		for _, e := range breakdown {
			c.printf("     %d x %s\n", e.Count, e.Message)
		}
	}
}

// Summary prints the cross-scenario totals and the overall verdict.
func (c *Console) Summary(run scenario.RunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := run.Summary
	mode := summaryMode(run.Results)

	c.printf("\n%s\n", c.st.Title.Render("=== Summary ==="))
	c.printf("Scenarios       : %d (%d with data)\n", s.Scenarios, s.WithData)
	c.printf("Requests        : %d total, %d ok, %d failed (%.1f%% failure)\n", s.Total, s.Succeeded, s.Failed, s.FailureRate*100)
	if s.WithData > 0 {
		c.printf("Average speed   : %s\n", formatThroughput(s.MeanThroughput, mode))
		c.printf("Speed range     : %s - %s\n", formatThroughput(s.MinThroughput, mode), formatThroughput(s.MaxThroughput, mode))
	}
	if s.MeanLatency != nil {
		c.printf("Mean latency    : %s\n", formatDuration(*s.MeanLatency))
	}
	c.printf("Duration        : %s\n", run.Finished.Sub(run.Started).Round(time.Millisecond))

	if len(run.Results) > 0 {
		c.printf("\n")
		for _, r := range run.Results {
			line := fmt.Sprintf("  %-24s %s", r.Scenario.Name, c.statusTag(r.Status))
			if r.Verdict != nil {
				line += "  " + c.statusStyle(r.Verdict.Status).Render(string(r.Verdict.Status))
			}
			c.printf("%s\n", line)
		}
	}

	if run.Overall != nil {
		c.printf("\n%s\n", c.verdictLine("Overall", *run.Overall))
	}
	c.printf("%s\n", c.st.Rule.Render(rule))
}

func (c *Console) verdictLine(label string, v verdict.Verdict) string {
	return fmt.Sprintf("%s: %s %s", label, c.statusStyle(v.Status).Render(string(v.Status)), v.Explanation)
}

func (c *Console) statusStyle(s verdict.Status) lipgloss.Style {
	switch s {
	case verdict.Pass:
		return c.st.Pass
	case verdict.Fail:
		return c.st.Fail
	default:
		return c.st.Inconclusive
	}
}

func (c *Console) statusTag(s scenario.Status) string {
	tag := "[" + string(s) + "]"
	switch s {
	case scenario.StatusOK:
		return c.st.Value.Render(tag)
	case scenario.StatusDegraded:
		return c.st.Warn.Render(tag)
	default:
		return c.st.Error.Render(tag)
	}
}

func summaryMode(results []scenario.Result) stats.ThroughputMode {
	if len(results) == 0 {
		return stats.ModeOps
	}
	for _, r := range results {
		if r.Scenario.Mode != stats.ModeBytes {
			return stats.ModeOps
		}
	}
	return stats.ModeBytes
}

func formatThroughput(v float64, mode stats.ThroughputMode) string {
	if mode == stats.ModeBytes {
		return fmt.Sprintf("%.1f KB/s", v/1024)
	}
	return fmt.Sprintf("%.1f req/s", v)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatBytes(n int64) string {
	if n >= 1024 && n%1024 == 0 {
		return fmt.Sprintf("%d KB", n/1024)
	}
	return fmt.Sprintf("%d B", n)
}
