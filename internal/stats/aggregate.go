// Package stats reduces batches of outcomes into summary statistics.
package stats

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"faultcheck/internal/probe"
)

var (
	ErrNoOutcomes   = errors.New("no outcomes to aggregate")
	ErrNegativeSpan = errors.New("negative wall-clock span")
)

// ThroughputMode selects what throughput counts.
type ThroughputMode string

const (
	ModeBytes ThroughputMode = "bytes" // successful bytes per second
	ModeOps   ThroughputMode = "ops"   // outcomes per second
)

// Metric names a central value a verdict can be taken on.
type Metric string

const (
	MetricThroughput    Metric = "throughput"
	MetricMeanLatency   Metric = "mean_latency"   // seconds
	MetricMedianLatency Metric = "median_latency" // seconds
	MetricP99Latency    Metric = "p99_latency"    // seconds
	MetricFailureRate   Metric = "failure_rate"   // 0-1
	MetricSuccessRate   Metric = "success_rate"   // 0-1
)

// LatencyStats covers successful outcomes only.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	Median time.Duration `json:"median"`
	P90    time.Duration `json:"p90"`
	P99    time.Duration `json:"p99"`
}

// Aggregate is derived once per settled batch. Latency is nil when nothing
// succeeded.
type Aggregate struct {
	Total       int             `json:"total"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	SuccessRate float64         `json:"success_rate"`
	Durations   []time.Duration `json:"-"`
	Latency     *LatencyStats   `json:"latency,omitempty"`
	Bytes       int64           `json:"bytes"`
	Span        time.Duration   `json:"span"`
	Mode        ThroughputMode  `json:"mode"`
	Throughput  float64         `json:"throughput"`
	Errors      map[string]int  `json:"errors,omitempty"`
}

// Compute is pure: the input slice is not modified and equal inputs give
// equal results.
func Compute(outcomes []probe.Outcome, span time.Duration, mode ThroughputMode) (Aggregate, error) {
	if len(outcomes) == 0 {
		return Aggregate{}, ErrNoOutcomes
	}
	if span < 0 {
		return Aggregate{}, ErrNegativeSpan
	}
	if mode == "" {
		mode = ModeOps
	}

	a := Aggregate{
		Total: len(outcomes),
		Span:  span,
		Mode:  mode,
	}

	durations := make([]time.Duration, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Success {
			a.Succeeded++
			a.Bytes += o.Bytes
			durations = append(durations, o.Duration)
			continue
		}
		a.Failed++
		if a.Errors == nil {
			a.Errors = make(map[string]int)
		}
		a.Errors[o.Err]++
	}

	a.SuccessRate = float64(a.Succeeded) / float64(a.Total)
	slices.Sort(durations)
	a.Durations = durations
	if len(durations) > 0 {
		a.Latency = latencyStats(durations)
	}

	if span > 0 {
		units := float64(a.Total)
		if mode == ModeBytes {
			units = float64(a.Bytes)
		}
		a.Throughput = units / span.Seconds()
	}
	return a, nil
}

// latencyStats expects a sorted, non-empty slice.
func latencyStats(sorted []time.Duration) *LatencyStats {
	var sum time.Duration
	hist := newHistogram()
	for _, d := range sorted {
		sum += d
		recordDuration(hist, d)
	}

	ls := &LatencyStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   sum / time.Duration(len(sorted)),
		Median: Median(sorted),
	}
	// hdrhistogram reports the bucket's upper edge, which can overshoot.
	ls.P90 = min(time.Duration(hist.ValueAtQuantile(90))*time.Microsecond, ls.Max)
	ls.P99 = min(time.Duration(hist.ValueAtQuantile(99))*time.Microsecond, ls.Max)
	return ls
}

// Median of a sorted slice: the middle element, or the mean of the two
// middle elements for even counts.
func Median(sorted []time.Duration) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func (a Aggregate) HasLatency() bool {
	return a.Latency != nil
}

func (a Aggregate) FailureRate() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Failed) / float64(a.Total)
}

// SuccessCount and Value let an Aggregate be judged directly.
func (a Aggregate) SuccessCount() int {
	return a.Succeeded
}

func (a Aggregate) Value(m Metric) (float64, bool) {
	switch m {
	case MetricThroughput:
		return a.Throughput, a.Succeeded > 0
	case MetricFailureRate:
		return a.FailureRate(), a.Total > 0
	case MetricSuccessRate:
		return a.SuccessRate, a.Total > 0
	}
	if a.Latency == nil {
		return 0, false
	}
	switch m {
	case MetricMeanLatency:
		return a.Latency.Mean.Seconds(), true
	case MetricMedianLatency:
		return a.Latency.Median.Seconds(), true
	case MetricP99Latency:
		return a.Latency.P99.Seconds(), true
	}
	return 0, false
}

type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// FailureBreakdown lists failure messages, most frequent first.
func (a Aggregate) FailureBreakdown() []ErrorCount {
	return sortCounts(a.Errors)
}

func sortCounts(counts map[string]int) []ErrorCount {
	out := make([]ErrorCount, 0, len(counts))
	for msg, n := range counts {
		out = append(out, ErrorCount{Message: msg, Count: n})
	}
	slices.SortFunc(out, func(x, y ErrorCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Message, y.Message)
	})
	return out
}
