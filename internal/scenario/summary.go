package scenario

import (
	"time"

	"faultcheck/internal/stats"
)

// Summary aggregates the per-scenario aggregates of a run. Latency and
// throughput figures only include scenarios that produced data.
type Summary struct {
	Scenarios   int     `json:"scenarios"`
	WithData    int     `json:"with_data"`
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	FailureRate float64 `json:"failure_rate"`

	MeanLatency   *time.Duration `json:"mean_latency,omitempty"`
	MedianLatency *time.Duration `json:"median_latency,omitempty"`

	MeanThroughput float64 `json:"mean_throughput"`
	MinThroughput  float64 `json:"min_throughput"`
	MaxThroughput  float64 `json:"max_throughput"`
}

func Summarize(results []Result) Summary {
	s := Summary{Scenarios: len(results)}

	var meanSum, medianSum time.Duration
	var tputSum float64
	for _, r := range results {
		a := r.Aggregate
		s.Total += a.Total
		s.Succeeded += a.Succeeded
		s.Failed += a.Failed
		if !a.HasLatency() {
			continue
		}

		meanSum += a.Latency.Mean
		medianSum += a.Latency.Median
		tputSum += a.Throughput
		if s.WithData == 0 || a.Throughput < s.MinThroughput {
			s.MinThroughput = a.Throughput
		}
		if a.Throughput > s.MaxThroughput {
			s.MaxThroughput = a.Throughput
		}
		s.WithData++
	}

	if s.Total > 0 {
		s.FailureRate = float64(s.Failed) / float64(s.Total)
	}
	if s.WithData > 0 {
		n := time.Duration(s.WithData)
		mean, median := meanSum/n, medianSum/n
		s.MeanLatency, s.MedianLatency = &mean, &median
		s.MeanThroughput = tputSum / float64(s.WithData)
	}
	return s
}

func (s Summary) SuccessCount() int { return s.Succeeded }

func (s Summary) Value(m stats.Metric) (float64, bool) {
	switch m {
	case stats.MetricThroughput:
		return s.MeanThroughput, s.WithData > 0
	case stats.MetricFailureRate:
		return s.FailureRate, s.Total > 0
	case stats.MetricSuccessRate:
		if s.Total == 0 {
			return 0, false
		}
		return 1 - s.FailureRate, true
	case stats.MetricMeanLatency:
		if s.MeanLatency == nil {
			return 0, false
		}
		return s.MeanLatency.Seconds(), true
	case stats.MetricMedianLatency:
		if s.MedianLatency == nil {
			return 0, false
		}
		return s.MedianLatency.Seconds(), true
	}
	return 0, false
}
