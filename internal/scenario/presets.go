package scenario

import (
	"fmt"
	"time"

	"faultcheck/internal/probe"
	"faultcheck/internal/stats"
	"faultcheck/internal/verdict"
)

type BandwidthOptions struct {
	Sizes     []int64
	Repeats   int
	LimitKBps float64
	Tolerance float64 // relative, 0.2 = 20%
}

func DefaultBandwidth() BandwidthOptions {
	return BandwidthOptions{
		Sizes:     []int64{51200, 102400, 204800},
		Repeats:   3,
		LimitKBps: 50,
		Tolerance: 0.2,
	}
}

// Bandwidth downloads each size Repeats times, one at a time. Every size is
// held to the limit and so is the average across sizes, which is returned
// as the overall expectation.
func Bandwidth(base probe.Target, o BandwidthOptions) ([]Scenario, *verdict.Expectation) {
	exp := &verdict.Expectation{
		Metric:    stats.MetricThroughput,
		Bound:     verdict.BoundUpper,
		Expected:  o.LimitKBps * 1024,
		Tolerance: verdict.Tolerance{Value: o.Tolerance, Relative: true},
		Unit:      "KB/s",
	}

	out := make([]Scenario, 0, len(o.Sizes))
	for _, size := range o.Sizes {
		t := base
		t.Path = "/bytes/{{.Size}}"
		t.Size = size
		out = append(out, Scenario{
			Name:        fmt.Sprintf("bandwidth-%dKB", size/1024),
			Target:      t,
			Requests:    o.Repeats,
			Concurrency: 1,
			Mode:        stats.ModeBytes,
			Expect:      exp,
		})
	}
	return out, exp
}

type LatencyOptions struct {
	Requests  int
	Pause     time.Duration // after each response, before the next request
	Expected  time.Duration
	Tolerance time.Duration // absolute
}

// DefaultLatency expects 500ms fixed plus 100-300ms random delay.
func DefaultLatency() LatencyOptions {
	return LatencyOptions{
		Requests:  5,
		Pause:     500 * time.Millisecond,
		Expected:  700 * time.Millisecond,
		Tolerance: 100 * time.Millisecond,
	}
}

func Latency(base probe.Target, o LatencyOptions) Scenario {
	t := base
	if t.Path == "" || t.Path == "/" {
		t.Path = "/get"
	}
	return Scenario{
		Name:        "latency",
		Target:      t,
		Requests:    o.Requests,
		Concurrency: 1,
		Pause:       o.Pause,
		Mode:        stats.ModeOps,
		Expect: &verdict.Expectation{
			Metric:    stats.MetricMeanLatency,
			Bound:     verdict.BoundWindow,
			Expected:  o.Expected.Seconds(),
			Tolerance: verdict.Tolerance{Value: o.Tolerance.Seconds()},
			Unit:      "ms",
		},
	}
}

type LossOptions struct {
	Requests    int
	Concurrency int

	// ExpectedLoss is a 0-1 failure rate; nil means report only.
	ExpectedLoss *float64
	Tolerance    float64 // absolute
}

func DefaultLoss() LossOptions {
	return LossOptions{Requests: 100, Concurrency: 10, Tolerance: 0.1}
}

func PacketLoss(base probe.Target, o LossOptions) Scenario {
	s := Scenario{
		Name:        "packet-loss",
		Target:      base,
		Requests:    o.Requests,
		Concurrency: o.Concurrency,
		Mode:        stats.ModeOps,
	}
	if o.ExpectedLoss != nil {
		s.Name = fmt.Sprintf("packet-loss-%.0f%%", *o.ExpectedLoss*100)
		s.Expect = lossExpectation(*o.ExpectedLoss, o.Tolerance)
	}
	return s
}

func lossExpectation(rate, tol float64) *verdict.Expectation {
	return &verdict.Expectation{
		Metric:    stats.MetricFailureRate,
		Bound:     verdict.BoundWindow,
		Expected:  rate,
		Tolerance: verdict.Tolerance{Value: tol},
		Unit:      "%",
	}
}

// SweepRates are the drop rates configured on consecutive proxy ports.
var SweepRates = []float64{0, 0.10, 0.25, 0.50}

const sweepPause = 2 * time.Second

// PacketLossSweep targets base.Port, base.Port+1, ... with one drop rate
// each, pausing between them.
func PacketLossSweep(base probe.Target, o LossOptions) []Scenario {
	pause := sweepPause
	out := make([]Scenario, 0, len(SweepRates))
	for i, rate := range SweepRates {
		t := base
		t.Port = base.Port + i
		out = append(out, Scenario{
			Name:        fmt.Sprintf("packet-loss-%.0f%%", rate*100),
			Target:      t,
			Requests:    o.Requests,
			Concurrency: o.Concurrency,
			Delay:       &pause,
			Mode:        stats.ModeOps,
			Expect:      lossExpectation(rate, o.Tolerance),
		})
	}
	return out
}
