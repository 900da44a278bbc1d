package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"faultcheck/internal/probe"
)

func TestExporter_ObserveOutcome(t *testing.T) {
	e := NewExporter()

	e.ObserveOutcome("bandwidth-100KB", probe.Succeeded(0, time.Now(), 2*time.Second, 102400, 200))
	e.ObserveOutcome("bandwidth-100KB", probe.Succeeded(1, time.Now(), 2*time.Second, 102400, 200))
	e.ObserveOutcome("bandwidth-100KB", probe.Failed(2, time.Now(), time.Second, probe.KindTimeout, errors.New("timeout")))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.outcomesTotal.WithLabelValues("bandwidth-100KB", "success", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.outcomesTotal.WithLabelValues("bandwidth-100KB", "failure", "timeout")))
	assert.Equal(t, 204800.0, testutil.ToFloat64(e.bytesTotal.WithLabelValues("bandwidth-100KB")))
	assert.Equal(t, 1, testutil.CollectAndCount(e.durationSeconds))
}

func TestExporter_Gauges(t *testing.T) {
	e := NewExporter()
	e.SetInflight("loss", 7)
	e.SetVerdict("loss", -1)

	assert.Equal(t, 7.0, testutil.ToFloat64(e.inflight.WithLabelValues("loss")))
	assert.Equal(t, -1.0, testutil.ToFloat64(e.verdict.WithLabelValues("loss")))
}

func TestExporter_NilIsNoop(t *testing.T) {
	var e *Exporter
	assert.NotPanics(t, func() {
		e.ObserveOutcome("x", probe.Succeeded(0, time.Now(), time.Millisecond, 1, 200))
		e.SetInflight("x", 1)
		e.SetVerdict("x", 1)
	})
	assert.Empty(t, e.Addr())
	assert.NoError(t, e.Shutdown(context.Background()))
}

func TestExporter_Serve(t *testing.T) {
	e := NewExporter()
	require.NoError(t, e.Serve("127.0.0.1:0", zap.NewNop()))
	defer e.Shutdown(context.Background())

	e.ObserveOutcome("latency", probe.Succeeded(0, time.Now(), 700*time.Millisecond, 300, 200))

	resp, err := http.Get("http://" + e.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `faultcheck_outcomes_total{kind="none",result="success",scenario="latency"} 1`), text)
	assert.Contains(t, text, "faultcheck_operation_duration_seconds_bucket")
}
