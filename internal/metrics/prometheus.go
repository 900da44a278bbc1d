// Package metrics exports per-outcome and per-scenario measurements in the
// Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"faultcheck/internal/probe"
)

const namespace = "faultcheck"

// Exporter records measurements on a private registry. A nil *Exporter is
// valid and records nothing.
type Exporter struct {
	registry *prometheus.Registry

	outcomesTotal   *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	inflight        *prometheus.GaugeVec
	verdict         *prometheus.GaugeVec

	server *http.Server
	ln     net.Listener
}

func NewExporter() *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.outcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outcomes_total",
		Help:      "Timed operations by scenario, result and failure kind.",
	}, []string{"scenario", "result", "kind"})

	e.bytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_total",
		Help:      "Response bytes consumed by successful operations.",
	}, []string{"scenario"})

	e.durationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of successful operations.",
		Buckets:   []float64{.01, .05, .1, .25, .5, .75, 1, 2, 5, 10, 30},
	}, []string{"scenario"})

	e.inflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inflight_operations",
		Help:      "Operations admitted and not yet settled.",
	}, []string{"scenario"})

	e.verdict = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scenario_verdict",
		Help:      "Last verdict per scenario: 1 pass, 0 fail, -1 inconclusive.",
	}, []string{"scenario"})

	e.registry.MustRegister(e.outcomesTotal, e.bytesTotal, e.durationSeconds, e.inflight, e.verdict)
	return e
}

func (e *Exporter) ObserveOutcome(scenario string, o probe.Outcome) {
	if e == nil {
		return
	}
	result, kind := "failure", string(o.Kind)
	if o.Success {
		kind = "none"
		result = "success"
		e.bytesTotal.WithLabelValues(scenario).Add(float64(o.Bytes))
		e.durationSeconds.WithLabelValues(scenario).Observe(o.Duration.Seconds())
	}
	e.outcomesTotal.WithLabelValues(scenario, result, kind).Inc()
}

func (e *Exporter) SetInflight(scenario string, n int64) {
	if e == nil {
		return
	}
	e.inflight.WithLabelValues(scenario).Set(float64(n))
}

// SetVerdict stores 1 for pass, 0 for fail, -1 for inconclusive.
func (e *Exporter) SetVerdict(scenario string, v float64) {
	if e == nil {
		return
	}
	e.verdict.WithLabelValues(scenario).Set(v)
}

// Serve exposes /metrics on addr in the background.
func (e *Exporter) Serve(addr string, log *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.ln = ln
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

func (e *Exporter) Addr() string {
	if e == nil || e.ln == nil {
		return ""
	}
	return e.ln.Addr().String()
}

func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil || e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}
