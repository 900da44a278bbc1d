// Package runner drives a batch of timed operations under a concurrency
// ceiling and collects every outcome.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"faultcheck/internal/probe"
	"faultcheck/internal/stats"
)

const (
	defaultTickInterval = 200 * time.Millisecond
	snapshotTopErrors   = 3
)

// Driver runs batches. It holds no per-batch state, so one Driver can serve
// a whole run.
type Driver struct {
	Log      *zap.Logger
	Recorder Recorder

	// Updates receives progress snapshots; sends never block.
	Updates SnapshotChan

	// OnOutcome is called once per settled operation, possibly from many
	// goroutines at once.
	OnOutcome func(probe.Outcome)

	TickInterval time.Duration
}

func NewDriver(log *zap.Logger, updates SnapshotChan) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		Log:          log,
		Updates:      updates,
		TickInterval: defaultTickInterval,
	}
}

// batch is the mutable state of one Run.
type batch struct {
	cfg      Config
	started  time.Time
	stats    *stats.Stats
	inflight atomic.Int64
	peak     atomic.Int64

	// lastSettled is the UnixNano time the latest operation finished; zero
	// until one has.
	lastSettled atomic.Int64
}

// Run issues cfg.Requests operations with at most cfg.Concurrency in flight
// and waits for all of them to settle. It only returns an error for an
// invalid cfg; every per-operation problem is an Outcome.
func (d *Driver) Run(ctx context.Context, cfg Config, op probe.Operation) (Batch, error) {
	if err := cfg.Validate(); err != nil {
		return Batch{}, err
	}

	b := &batch{cfg: cfg, stats: stats.NewStats()}
	sem := semaphore.NewWeighted(int64(cfg.Concurrency))

	var limiter *rate.Limiter
	if cfg.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	}

	outcomes := make([]probe.Outcome, cfg.Requests)
	b.started = time.Now()

	tickCtx, stopTick := context.WithCancel(ctx)
	tickDone := d.startTickLoop(tickCtx, b)

	var wg sync.WaitGroup
	for i := range cfg.Requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := d.runOne(ctx, b, sem, limiter, op, i)
			outcomes[i] = o
			d.record(b, o)
		}()
	}
	wg.Wait()

	span := time.Since(b.started)
	stopTick()
	<-tickDone
	d.sendUpdate(b, true)

	return Batch{
		Outcomes:     outcomes,
		Started:      b.started,
		Span:         span,
		PeakInflight: b.peak.Load(),
	}, nil
}

func (d *Driver) runOne(ctx context.Context, b *batch, sem *semaphore.Weighted, limiter *rate.Limiter, op probe.Operation, index int) (o probe.Outcome) {
	queued := time.Now()
	if err := sem.Acquire(ctx, 1); err != nil {
		return probe.Failed(index, queued, 0, probe.KindCanceled, fmt.Errorf("not admitted: %w", err))
	}
	defer sem.Release(1)

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return probe.Failed(index, queued, 0, probe.KindCanceled, fmt.Errorf("not started: %w", err))
		}
	}
	if err := waitPause(ctx, b); err != nil {
		return probe.Failed(index, queued, 0, probe.KindCanceled, fmt.Errorf("not started: %w", err))
	}
	// Runs before the slot is released, so the next admitted operation sees it.
	defer func() {
		b.lastSettled.Store(time.Now().UnixNano())
	}()

	n := b.inflight.Add(1)
	d.setPeak(b, n)
	d.setInflight(b, n)
	defer func() {
		d.setInflight(b, b.inflight.Add(-1))
	}()

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o = probe.Failed(index, started, time.Since(started), probe.KindPanic, fmt.Errorf("operation panicked: %v", r))
		}
	}()

	o = op.Do(ctx, index)
	o.Index = index
	return o
}

func (d *Driver) setPeak(b *batch, n int64) {
	for {
		cur := b.peak.Load()
		if n <= cur || b.peak.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (d *Driver) setInflight(b *batch, n int64) {
	if d.Recorder != nil {
		d.Recorder.SetInflight(b.cfg.Name, n)
	}
}

func (d *Driver) record(b *batch, o probe.Outcome) {
	b.stats.Add(o)
	if d.Recorder != nil {
		d.Recorder.ObserveOutcome(b.cfg.Name, o)
	}
	if !o.Success {
		d.Log.Debug("operation failed",
			zap.String("scenario", b.cfg.Name),
			zap.Int("index", o.Index),
			zap.String("kind", string(o.Kind)),
			zap.Duration("duration", o.Duration),
			zap.String("error", o.Err))
	}
	if d.OnOutcome != nil {
		d.OnOutcome(o)
	}
}

// startTickLoop starts a goroutine that pushes stats updates. The returned
// channel closes once it has stopped, so the final snapshot is always last.
func (d *Driver) startTickLoop(ctx context.Context, b *batch) <-chan struct{} {
	done := make(chan struct{})
	if d.Updates == nil {
		close(done)
		return done
	}
	interval := d.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.sendUpdate(b, false)
			}
		}
	}()
	return done
}

func (d *Driver) sendUpdate(b *batch, done bool) {
	if d.Updates == nil {
		return
	}
	s := Snapshot{
		Scenario: b.cfg.Name,
		Total:    b.cfg.Requests,
		Requests: b.stats.Requests.Load(),
		Success:  b.stats.Success.Load(),
		Fail:     b.stats.Fail.Load(),
		Bytes:    b.stats.Bytes.Load(),
		Inflight: b.inflight.Load(),
		Peak:     b.peak.Load(),
		Elapsed:  time.Since(b.started),
		P50Ms:    msFloat(b.stats.P50()),
		P90Ms:    msFloat(b.stats.P90()),
		P99Ms:    msFloat(b.stats.P99()),

		ErrorRate: b.stats.ErrorRate(),
		TopErrors: b.stats.TopErrors(snapshotTopErrors),

		Done: done,
	}

	// Non-blocking send
	select {
	case d.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

func msFloat(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// waitPause holds an admitted operation until cfg.Pause has passed since the
// most recent operation settled.
func waitPause(ctx context.Context, b *batch) error {
	if b.cfg.Pause <= 0 {
		return nil
	}
	last := b.lastSettled.Load()
	if last == 0 {
		return nil
	}
	wait := time.Until(time.Unix(0, last).Add(b.cfg.Pause))
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
