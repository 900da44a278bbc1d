package scenario

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"faultcheck/internal/probe"
	"faultcheck/internal/runner"
	"faultcheck/internal/stats"
	"faultcheck/internal/verdict"
)

type Status string

const (
	StatusOK       Status = "ok"       // every outcome succeeded
	StatusDegraded Status = "degraded" // some outcomes failed
	StatusNoData   Status = "no-data"  // nothing succeeded
	StatusError    Status = "error"    // the batch could not run or be aggregated
)

// Result is what one scenario produced.
type Result struct {
	Scenario  Scenario
	Status    Status
	Batch     runner.Batch
	Aggregate stats.Aggregate
	Verdict   *verdict.Verdict
	Err       error
}

type RunResult struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Results  []Result
	Summary  Summary
	Overall  *verdict.Verdict
}

// Healthy is false when any scenario ended without data or with an error.
func (r RunResult) Healthy() bool {
	for _, res := range r.Results {
		if res.Status == StatusNoData || res.Status == StatusError {
			return false
		}
	}
	return true
}

// Reporter is told about scenarios as they start and finish.
type Reporter interface {
	ScenarioStarted(s Scenario)
	ScenarioFinished(r Result)
}

// VerdictRecorder publishes verdicts, e.g. to a metrics gauge.
type VerdictRecorder interface {
	SetVerdict(scenario string, v float64)
}

// Runner executes scenarios strictly one after another.
type Runner struct {
	Driver *runner.Driver
	Log    *zap.Logger

	// Pace is the pause between scenarios unless a scenario sets Delay.
	Pace time.Duration

	// Overall, when set, is judged against the run summary.
	Overall *verdict.Expectation

	Reporter Reporter
	Verdicts VerdictRecorder

	// NewOperation builds the operation for a target. Defaults to probe.New.
	NewOperation func(probe.Target) (probe.Operation, error)
}

func NewRunner(d *runner.Driver, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if d == nil {
		d = runner.NewDriver(log, nil)
	}
	return &Runner{
		Driver:       d,
		Log:          log,
		NewOperation: probe.New,
	}
}

// Run validates every scenario before any network activity, then runs them
// in order. Only a validation failure returns an error; anything that goes
// wrong inside a scenario is recorded on its Result and the run continues.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (RunResult, error) {
	if err := ValidateAll(scenarios); err != nil {
		return RunResult{}, err
	}
	if r.Overall != nil {
		if err := r.Overall.Validate(); err != nil {
			return RunResult{}, fmt.Errorf("overall expectation: %w", err)
		}
	}

	run := RunResult{
		ID:      uuid.New().String(),
		Started: time.Now(),
		Results: make([]Result, 0, len(scenarios)),
	}
	log := r.Log.With(zap.String("run_id", run.ID))

	for i, s := range scenarios {
		if i > 0 {
			if err := r.pause(ctx, scenarios[i-1]); err != nil {
				log.Warn("pause interrupted", zap.Error(err))
			}
		}
		res := r.runOne(ctx, log, s)
		run.Results = append(run.Results, res)
	}

	run.Finished = time.Now()
	run.Summary = Summarize(run.Results)
	if r.Overall != nil {
		v := verdict.Evaluate(run.Summary, *r.Overall)
		run.Overall = &v
		log.Info("overall verdict", zap.String("status", string(v.Status)), zap.String("explanation", v.Explanation))
	}
	return run, nil
}

func (r *Runner) pause(ctx context.Context, prev Scenario) error {
	d := r.Pace
	if prev.Delay != nil {
		d = *prev.Delay
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) runOne(ctx context.Context, log *zap.Logger, s Scenario) Result {
	res := Result{Scenario: s}
	log = log.With(zap.String("scenario", s.Name))

	if r.Reporter != nil {
		r.Reporter.ScenarioStarted(s)
	}
	defer func() {
		if r.Reporter != nil {
			r.Reporter.ScenarioFinished(res)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Status, res.Err = StatusError, fmt.Errorf("not started: %w", err)
		log.Warn("scenario skipped", zap.Error(err))
		return res
	}

	newOp := r.NewOperation
	if newOp == nil {
		newOp = probe.New
	}
	op, err := newOp(s.Target)
	if err != nil {
		res.Status, res.Err = StatusError, fmt.Errorf("build operation: %w", err)
		log.Error("scenario failed", zap.Error(res.Err))
		return res
	}
	if c, ok := op.(io.Closer); ok {
		defer c.Close()
	}

	log.Info("scenario started",
		zap.Stringer("target", s.Target),
		zap.Int("requests", s.Requests),
		zap.Int("concurrency", s.Concurrency))

	batch, err := r.Driver.Run(ctx, s.batch(), op)
	if err != nil {
		res.Status, res.Err = StatusError, err
		log.Error("scenario failed", zap.Error(err))
		return res
	}
	res.Batch = batch

	agg, err := stats.Compute(batch.Outcomes, batch.Span, s.Mode)
	if err != nil {
		res.Status, res.Err = StatusError, fmt.Errorf("aggregate: %w", err)
		log.Error("scenario failed", zap.Error(res.Err))
		return res
	}
	res.Aggregate = agg

	switch {
	case agg.Succeeded == 0:
		res.Status = StatusNoData
	case agg.Failed > 0:
		res.Status = StatusDegraded
	default:
		res.Status = StatusOK
	}

	if s.Expect != nil {
		v := verdict.Evaluate(agg, *s.Expect)
		res.Verdict = &v
		if r.Verdicts != nil {
			r.Verdicts.SetVerdict(s.Name, v.Status.Score())
		}
	}

	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.Int("succeeded", agg.Succeeded),
		zap.Int("failed", agg.Failed),
		zap.Duration("span", agg.Span),
		zap.Int64("peak_inflight", batch.PeakInflight),
	}
	if res.Verdict != nil {
		fields = append(fields, zap.String("verdict", string(res.Verdict.Status)))
	}
	log.Info("scenario finished", fields...)
	return res
}
