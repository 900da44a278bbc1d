package runner

import (
	"errors"
	"fmt"
	"time"

	"faultcheck/internal/probe"
	"faultcheck/internal/stats"
)

var ErrInvalidConfig = errors.New("invalid batch config")

// Config describes one batch.
type Config struct {
	Name        string
	Requests    int           // N
	Concurrency int           // C
	Interval    time.Duration // minimum spacing between request starts
	Pause       time.Duration // wait after the previous request settles
}

func (c Config) Validate() error {
	var errs []error
	if c.Requests < 1 {
		errs = append(errs, fmt.Errorf("requests must be at least 1, got %d", c.Requests))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval %s is negative", c.Interval))
	}
	if c.Pause < 0 {
		errs = append(errs, fmt.Errorf("pause %s is negative", c.Pause))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidConfig, c.Name, errors.Join(errs...))
	}
	return nil
}

// Batch holds every outcome of a settled batch, indexed by request number.
type Batch struct {
	Outcomes     []probe.Outcome
	Started      time.Time
	Span         time.Duration
	PeakInflight int64
}

// Snapshot is sent over the channel
type Snapshot struct {
	Scenario string
	Total    int
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64
	Inflight int64
	Peak     int64
	Elapsed  time.Duration

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms float64
	P90Ms float64
	P99Ms float64

	// Failures so far: share of requests in percent and the most frequent
	// messages.
	ErrorRate float64
	TopErrors []stats.ErrorCount

	Done bool
}

// SnapshotChan is the channel type
type SnapshotChan chan Snapshot

// Recorder receives measurements as they happen.
type Recorder interface {
	ObserveOutcome(scenario string, o probe.Outcome)
	SetInflight(scenario string, n int64)
}
