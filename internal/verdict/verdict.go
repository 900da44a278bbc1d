// Package verdict judges an observed metric against an expected value and a
// tolerance band.
package verdict

import (
	"errors"
	"fmt"
	"math"

	"faultcheck/internal/stats"
)

var ErrInvalidExpectation = errors.New("invalid expectation")

type Status string

const (
	Pass         Status = "PASS"
	Fail         Status = "FAIL"
	Inconclusive Status = "INCONCLUSIVE"
)

// Bound selects which side of the band must hold.
type Bound string

const (
	BoundUpper  Bound = "upper"  // observed <= high
	BoundWindow Bound = "window" // low <= observed <= high
	BoundLower  Bound = "lower"  // observed >= low
)

type Tolerance struct {
	Value    float64 `json:"value"`
	Relative bool    `json:"relative,omitempty"` // Value is a fraction of Expected
}

// Expectation is compared in the metric's base unit (bytes/s, seconds or a
// 0-1 rate). Unit only affects how numbers are printed.
type Expectation struct {
	Metric    stats.Metric `json:"metric"`
	Bound     Bound        `json:"bound"`
	Expected  float64      `json:"expected"`
	Tolerance Tolerance    `json:"tolerance"`
	Unit      string       `json:"unit,omitempty"`
}

// Subject is anything that can report a metric for judgement.
type Subject interface {
	SuccessCount() int
	Value(m stats.Metric) (float64, bool)
}

type Verdict struct {
	Status      Status       `json:"status"`
	Metric      stats.Metric `json:"metric"`
	Observed    float64      `json:"observed"`
	Expected    float64      `json:"expected"`
	Low         float64      `json:"low"`
	High        float64      `json:"high"`
	Unit        string       `json:"unit,omitempty"`
	Explanation string       `json:"explanation"`
}

func (e Expectation) Validate() error {
	var errs []error
	switch e.Metric {
	case stats.MetricThroughput, stats.MetricMeanLatency, stats.MetricMedianLatency,
		stats.MetricP99Latency, stats.MetricFailureRate, stats.MetricSuccessRate:
	default:
		errs = append(errs, fmt.Errorf("unknown metric %q", e.Metric))
	}
	switch e.Bound {
	case BoundUpper, BoundWindow, BoundLower:
	default:
		errs = append(errs, fmt.Errorf("unknown bound %q", e.Bound))
	}
	if e.Tolerance.Value < 0 || math.IsNaN(e.Tolerance.Value) {
		errs = append(errs, fmt.Errorf("tolerance %v must not be negative", e.Tolerance.Value))
	}
	if math.IsNaN(e.Expected) || math.IsInf(e.Expected, 0) {
		errs = append(errs, fmt.Errorf("expected value %v is not finite", e.Expected))
	}
	if _, ok := unitScale[e.Unit]; !ok {
		errs = append(errs, fmt.Errorf("unknown unit %q", e.Unit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidExpectation, errors.Join(errs...))
	}
	return nil
}

// Band returns the accepted [low, high] range around Expected.
func (e Expectation) Band() (low, high float64) {
	delta := e.Tolerance.Value
	if e.Tolerance.Relative {
		delta = math.Abs(e.Expected) * e.Tolerance.Value
	}
	return e.Expected - delta, e.Expected + delta
}

// Evaluate never fails; a subject with no successful samples or no value for
// the metric is INCONCLUSIVE.
func Evaluate(s Subject, e Expectation) Verdict {
	low, high := e.Band()
	v := Verdict{
		Metric:   e.Metric,
		Expected: e.Expected,
		Low:      low,
		High:     high,
		Unit:     e.Unit,
	}

	if s.SuccessCount() == 0 {
		v.Status = Inconclusive
		v.Explanation = fmt.Sprintf("no successful samples; cannot judge %s against %s", e.Metric, e.describe(low, high))
		return v
	}
	observed, ok := s.Value(e.Metric)
	if !ok {
		v.Status = Inconclusive
		v.Explanation = fmt.Sprintf("%s unavailable; cannot judge against %s", e.Metric, e.describe(low, high))
		return v
	}
	v.Observed = observed

	var pass bool
	switch e.Bound {
	case BoundUpper:
		pass = observed <= high
	case BoundLower:
		pass = observed >= low
	default:
		pass = observed >= low && observed <= high
	}

	v.Status = Fail
	verb := "outside"
	if pass {
		v.Status = Pass
		verb = "within"
	}
	v.Explanation = fmt.Sprintf("observed %s = %s, %s %s", e.Metric, e.format(observed), verb, e.describe(low, high))
	return v
}

func (e Expectation) describe(low, high float64) string {
	tol := e.format(e.Tolerance.Value)
	if e.Tolerance.Relative {
		tol = fmt.Sprintf("%.0f%%", e.Tolerance.Value*100)
	}
	var band string
	switch e.Bound {
	case BoundUpper:
		band = "<= " + e.format(high)
	case BoundLower:
		band = ">= " + e.format(low)
	default:
		band = fmt.Sprintf("[%s, %s]", e.format(low), e.format(high))
	}
	return fmt.Sprintf("expected %s ± %s (%s %s)", e.format(e.Expected), tol, e.Bound, band)
}

var unitScale = map[string]float64{
	"":      1,
	"B/s":   1,
	"KB/s":  1024,
	"MB/s":  1024 * 1024,
	"ops/s": 1,
	"s":     1,
	"ms":    1e-3,
	"%":     1e-2,
}

func (e Expectation) format(v float64) string {
	if e.Unit == "" {
		return fmt.Sprintf("%.3f", v)
	}
	scale, ok := unitScale[e.Unit]
	if !ok {
		scale = 1
	}
	return fmt.Sprintf("%.2f %s", v/scale, e.Unit)
}

// Score maps a status to the scenario_verdict gauge value.
func (s Status) Score() float64 {
	switch s {
	case Pass:
		return 1
	case Fail:
		return 0
	default:
		return -1
	}
}
