package verdict

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faultcheck/internal/probe"
	"faultcheck/internal/stats"
)

type fixed struct {
	succeeded int
	values    map[stats.Metric]float64
}

func (f fixed) SuccessCount() int { return f.succeeded }

func (f fixed) Value(m stats.Metric) (float64, bool) {
	v, ok := f.values[m]
	return v, ok
}

func throughputSubject(kbps float64) fixed {
	return fixed{succeeded: 3, values: map[stats.Metric]float64{stats.MetricThroughput: kbps * 1024}}
}

var bandwidthLimit = Expectation{
	Metric:    stats.MetricThroughput,
	Bound:     BoundUpper,
	Expected:  50 * 1024,
	Tolerance: Tolerance{Value: 0.2, Relative: true},
	Unit:      "KB/s",
}

func TestEvaluate_BandwidthUpperBound(t *testing.T) {
	tests := []struct {
		name     string
		observed float64
		want     Status
	}{
		{"well below limit", 20, Pass},
		{"slightly over nominal", 55, Pass},
		{"exactly at band edge", 60, Pass},
		{"over band", 70, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(throughputSubject(tt.observed), bandwidthLimit)
			assert.Equal(t, tt.want, v.Status)
			assert.InDelta(t, 60*1024.0, v.High, 1e-9)
		})
	}
}

func TestEvaluate_ExplanationNamesValues(t *testing.T) {
	v := Evaluate(throughputSubject(70), bandwidthLimit)
	require.Equal(t, Fail, v.Status)
	assert.Contains(t, v.Explanation, "70.00 KB/s")
	assert.Contains(t, v.Explanation, "50.00 KB/s")
	assert.Contains(t, v.Explanation, "20%")
	assert.Contains(t, v.Explanation, "<= 60.00 KB/s")
	assert.Contains(t, v.Explanation, "outside")
}

func TestEvaluate_LatencyWindow(t *testing.T) {
	exp := Expectation{
		Metric:    stats.MetricMeanLatency,
		Bound:     BoundWindow,
		Expected:  0.7,
		Tolerance: Tolerance{Value: 0.1},
		Unit:      "ms",
	}
	subject := func(sec float64) fixed {
		return fixed{succeeded: 5, values: map[stats.Metric]float64{stats.MetricMeanLatency: sec}}
	}

	assert.Equal(t, Pass, Evaluate(subject(0.72), exp).Status)
	assert.Equal(t, Fail, Evaluate(subject(0.2), exp).Status)
	assert.Equal(t, Fail, Evaluate(subject(0.95), exp).Status)

	v := Evaluate(subject(0.72), exp)
	assert.Contains(t, v.Explanation, "[600.00 ms, 800.00 ms]")
}

func TestEvaluate_LowerBound(t *testing.T) {
	exp := Expectation{Metric: stats.MetricSuccessRate, Bound: BoundLower, Expected: 0.9, Tolerance: Tolerance{Value: 0.05}, Unit: "%"}
	ok := fixed{succeeded: 90, values: map[stats.Metric]float64{stats.MetricSuccessRate: 0.87}}
	bad := fixed{succeeded: 50, values: map[stats.Metric]float64{stats.MetricSuccessRate: 0.5}}

	assert.Equal(t, Pass, Evaluate(ok, exp).Status)
	assert.Equal(t, Fail, Evaluate(bad, exp).Status)
}

func TestEvaluate_AllFailedIsInconclusive(t *testing.T) {
	outcomes := make([]probe.Outcome, 5)
	for i := range outcomes {
		outcomes[i] = probe.Failed(i, time.Now(), time.Second, probe.KindTransport, errors.New("connection refused"))
	}
	agg, err := stats.Compute(outcomes, 5*time.Second, stats.ModeBytes)
	require.NoError(t, err)

	v := Evaluate(agg, bandwidthLimit)
	assert.Equal(t, Inconclusive, v.Status)
	assert.Contains(t, v.Explanation, "no successful samples")
}

func TestEvaluate_MissingMetricIsInconclusive(t *testing.T) {
	v := Evaluate(fixed{succeeded: 1}, bandwidthLimit)
	assert.Equal(t, Inconclusive, v.Status)
	assert.Contains(t, v.Explanation, "unavailable")
}

func TestExpectation_Validate(t *testing.T) {
	require.NoError(t, bandwidthLimit.Validate())

	err := Expectation{Metric: "jitter", Bound: "sideways", Tolerance: Tolerance{Value: -1}, Unit: "furlongs"}.Validate()
	require.ErrorIs(t, err, ErrInvalidExpectation)
	assert.Contains(t, err.Error(), `unknown metric "jitter"`)
	assert.Contains(t, err.Error(), `unknown bound "sideways"`)
	assert.Contains(t, err.Error(), "must not be negative")
	assert.Contains(t, err.Error(), `unknown unit "furlongs"`)
}

func TestStatus_Score(t *testing.T) {
	assert.Equal(t, 1.0, Pass.Score())
	assert.Equal(t, 0.0, Fail.Score())
	assert.Equal(t, -1.0, Inconclusive.Score())
}
