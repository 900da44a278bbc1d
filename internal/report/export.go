package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"faultcheck/internal/probe"
	"faultcheck/internal/scenario"
	"faultcheck/internal/stats"
	"faultcheck/internal/verdict"
)

// Export writes <prefix>.csv and <prefix>_summary.json and returns the
// paths written.
func Export(run scenario.RunResult, prefix string) ([]string, error) {
	csvPath := prefix + ".csv"
	if err := ExportCSV(run, csvPath); err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}
	summaryPath := prefix + "_summary.json"
	if err := ExportSummary(run, summaryPath); err != nil {
		return nil, fmt.Errorf("export summary: %w", err)
	}
	return []string{csvPath, summaryPath}, nil
}

var csvHeader = []string{
	"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
	"threadName", "dataType", "success", "failureMessage", "bytes",
	"grpThreads", "URL", "failureKind",
}

// ExportCSV writes one JMeter-style row per outcome, scenario by scenario.
func ExportCSV(run scenario.RunResult, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, res := range run.Results {
		for _, o := range res.Batch.Outcomes {
			if err := w.Write(csvRecord(res.Scenario, o)); err != nil {
				return err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func csvRecord(s scenario.Scenario, o probe.Outcome) []string {
	return []string{
		strconv.FormatInt(o.Started.UnixMilli(), 10),
		strconv.FormatInt(o.Duration.Milliseconds(), 10),
		s.Name,
		strconv.Itoa(o.Status),
		http.StatusText(o.Status),
		"req-" + strconv.Itoa(o.Index),
		"bin",
		strconv.FormatBool(o.Success),
		o.Err,
		strconv.FormatInt(o.Bytes, 10),
		strconv.Itoa(s.Concurrency),
		s.Target.String(),
		string(o.Kind),
	}
}

type summaryFile struct {
	RunID     string            `json:"run_id"`
	Started   time.Time         `json:"started"`
	Finished  time.Time         `json:"finished"`
	Scenarios []scenarioSummary `json:"scenarios"`
	Summary   scenario.Summary  `json:"summary"`
	Overall   *verdict.Verdict  `json:"overall,omitempty"`
	Healthy   bool              `json:"healthy"`
}

type scenarioSummary struct {
	Name         string               `json:"name"`
	Target       probe.Target         `json:"target"`
	Requests     int                  `json:"requests"`
	Concurrency  int                  `json:"concurrency"`
	Status       scenario.Status      `json:"status"`
	Error        string               `json:"error,omitempty"`
	PeakInflight int64                `json:"peak_inflight"`
	Aggregate    *stats.Aggregate     `json:"aggregate,omitempty"`
	Failures     []stats.ErrorCount   `json:"failures,omitempty"`
	Expectation  *verdict.Expectation `json:"expectation,omitempty"`
	Verdict      *verdict.Verdict     `json:"verdict,omitempty"`
}

// ExportSummary writes per-scenario aggregates and verdicts as JSON.
func ExportSummary(run scenario.RunResult, filename string) error {
	out := summaryFile{
		RunID:     run.ID,
		Started:   run.Started,
		Finished:  run.Finished,
		Scenarios: make([]scenarioSummary, 0, len(run.Results)),
		Summary:   run.Summary,
		Overall:   run.Overall,
		Healthy:   run.Healthy(),
	}
	for _, r := range run.Results {
		ss := scenarioSummary{
			Name:         r.Scenario.Name,
			Target:       r.Scenario.Target,
			Requests:     r.Scenario.Requests,
			Concurrency:  r.Scenario.Concurrency,
			Status:       r.Status,
			PeakInflight: r.Batch.PeakInflight,
			Expectation:  r.Scenario.Expect,
			Verdict:      r.Verdict,
		}
		if r.Err != nil {
			ss.Error = r.Err.Error()
		}
		if r.Aggregate.Total > 0 {
			agg := r.Aggregate
			ss.Aggregate = &agg
			ss.Failures = agg.FailureBreakdown()
		}
		out.Scenarios = append(out.Scenarios, ss)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
