package stats

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"faultcheck/internal/probe"
)

func ok(d time.Duration, bytes int64) probe.Outcome {
	return probe.Succeeded(0, time.Time{}, d, bytes, 200)
}

func fail(msg string) probe.Outcome {
	return probe.Failed(0, time.Time{}, time.Second, probe.KindTransport, errors.New(msg))
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func TestCompute_MeanAndMedian(t *testing.T) {
	even, err := Compute([]probe.Outcome{ok(ms(400), 0), ok(ms(100), 0), ok(ms(300), 0), ok(ms(200), 0)}, time.Second, ModeOps)
	require.NoError(t, err)
	require.True(t, even.HasLatency())
	assert.Equal(t, ms(250), even.Latency.Mean)
	assert.Equal(t, ms(250), even.Latency.Median)
	assert.Equal(t, ms(100), even.Latency.Min)
	assert.Equal(t, ms(400), even.Latency.Max)

	odd, err := Compute([]probe.Outcome{ok(ms(300), 0), ok(ms(100), 0), ok(ms(200), 0)}, time.Second, ModeOps)
	require.NoError(t, err)
	assert.Equal(t, ms(200), odd.Latency.Median)
}

func TestCompute_BandwidthThroughput(t *testing.T) {
	outcomes := []probe.Outcome{
		ok(2*time.Second, 102400),
		ok(2*time.Second, 102400),
		ok(2*time.Second, 102400),
	}
	a, err := Compute(outcomes, 6*time.Second, ModeBytes)
	require.NoError(t, err)

	assert.Equal(t, int64(307200), a.Bytes)
	assert.InDelta(t, 51200.0, a.Throughput, 1e-9)
	assert.InDelta(t, 50.0, a.Throughput/1024, 1e-9)

	v, found := a.Value(MetricThroughput)
	assert.True(t, found)
	assert.InDelta(t, 51200.0, v, 1e-9)
}

func TestCompute_OpsThroughputCountsFailures(t *testing.T) {
	a, err := Compute([]probe.Outcome{ok(ms(10), 5), fail("reset"), fail("reset"), ok(ms(20), 5)}, 2*time.Second, ModeOps)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, a.Throughput, 1e-9)
	assert.Equal(t, 0.5, a.SuccessRate)
	assert.Equal(t, 0.5, a.FailureRate())
	assert.Equal(t, map[string]int{"reset": 2}, a.Errors)
}

func TestCompute_AllFailedHasNoLatency(t *testing.T) {
	a, err := Compute([]probe.Outcome{fail("connection refused"), fail("connection refused"), fail("timeout")}, time.Second, ModeBytes)
	require.NoError(t, err)

	assert.Equal(t, 3, a.Total)
	assert.Equal(t, 0, a.Succeeded)
	assert.False(t, a.HasLatency())
	assert.Nil(t, a.Latency)
	assert.Empty(t, a.Durations)

	_, found := a.Value(MetricMeanLatency)
	assert.False(t, found)
	_, found = a.Value(MetricThroughput)
	assert.False(t, found)

	rate, found := a.Value(MetricFailureRate)
	assert.True(t, found)
	assert.Equal(t, 1.0, rate)

	assert.Equal(t, []ErrorCount{{"connection refused", 2}, {"timeout", 1}}, a.FailureBreakdown())
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute(nil, time.Second, ModeOps)
	assert.ErrorIs(t, err, ErrNoOutcomes)

	_, err = Compute([]probe.Outcome{ok(ms(1), 0)}, -time.Second, ModeOps)
	assert.ErrorIs(t, err, ErrNegativeSpan)
}

func TestCompute_ZeroSpan(t *testing.T) {
	a, err := Compute([]probe.Outcome{ok(ms(1), 10)}, 0, ModeBytes)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Throughput)
}

func TestCompute_Percentiles(t *testing.T) {
	outcomes := make([]probe.Outcome, 0, 100)
	for i := 1; i <= 100; i++ {
		outcomes = append(outcomes, ok(ms(i), 0))
	}
	a, err := Compute(outcomes, time.Second, ModeOps)
	require.NoError(t, err)
	assert.InDelta(t, float64(ms(90)), float64(a.Latency.P90), float64(ms(1)))
	assert.InDelta(t, float64(ms(99)), float64(a.Latency.P99), float64(ms(1)))
	assert.LessOrEqual(t, a.Latency.P99, a.Latency.Max)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, time.Duration(0), Median(nil))
	assert.Equal(t, ms(5), Median([]time.Duration{ms(5)}))
	assert.Equal(t, ms(15), Median([]time.Duration{ms(10), ms(20)}))
}

func outcomeGen() *rapid.Generator[probe.Outcome] {
	return rapid.Custom(func(t *rapid.T) probe.Outcome {
		d := time.Duration(rapid.Int64Range(0, int64(5*time.Second)).Draw(t, "d"))
		if rapid.Bool().Draw(t, "success") {
			return ok(d, rapid.Int64Range(0, 1<<20).Draw(t, "bytes"))
		}
		return fail(rapid.SampledFrom([]string{"reset", "refused", "timeout"}).Draw(t, "err"))
	})
}

func TestCompute_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outcomes := rapid.SliceOfN(outcomeGen(), 1, 200).Draw(t, "outcomes")
		span := time.Duration(rapid.Int64Range(0, int64(time.Minute)).Draw(t, "span"))
		mode := rapid.SampledFrom([]ThroughputMode{ModeBytes, ModeOps}).Draw(t, "mode")
		before := slices.Clone(outcomes)

		first, err := Compute(outcomes, span, mode)
		require.NoError(t, err)
		second, err := Compute(outcomes, span, mode)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, before, outcomes)
		assert.Equal(t, first.Total, first.Succeeded+first.Failed)
		assert.Equal(t, len(outcomes), first.Total)
		assert.Len(t, first.Durations, first.Succeeded)
		assert.Equal(t, first.Succeeded > 0, first.HasLatency())
		if first.HasLatency() {
			assert.LessOrEqual(t, first.Latency.Min, first.Latency.Median)
			assert.LessOrEqual(t, first.Latency.Median, first.Latency.Max)
			assert.LessOrEqual(t, first.Latency.P90, first.Latency.Max)
		}
	})
}

func TestStats_Live(t *testing.T) {
	s := NewStats()
	s.Add(ok(ms(10), 100))
	s.Add(ok(ms(30), 100))
	s.Add(fail("reset"))
	s.Add(fail("reset"))

	assert.Equal(t, uint64(4), s.Requests.Load())
	assert.Equal(t, uint64(2), s.Success.Load())
	assert.Equal(t, uint64(200), s.Bytes.Load())
	assert.Equal(t, 50.0, s.ErrorRate())
	assert.Equal(t, map[string]int{"reset": 2}, s.GetErrorCounts())
	assert.InDelta(t, float64(ms(30)), float64(s.P99()), float64(ms(1)))
}

func TestStats_TopErrors(t *testing.T) {
	s := NewStats()
	for _, msg := range []string{"refused", "reset", "reset", "timeout", "timeout", "timeout"} {
		s.Add(fail(msg))
	}

	assert.Equal(t, []ErrorCount{{"timeout", 3}, {"reset", 2}}, s.TopErrors(2))
	assert.Len(t, s.TopErrors(10), 3)
	assert.Empty(t, NewStats().TopErrors(3))
}
