package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"faultcheck/internal/probe"
)

// Stats holds real-time counters for a batch while it runs. The final
// numbers for a batch come from Compute, not from here.
type Stats struct {
	Requests atomic.Uint64
	Success  atomic.Uint64
	Fail     atomic.Uint64
	Bytes    atomic.Uint64

	// Successful durations only
	Durations *SafeHistogram

	mu     sync.Mutex
	errors map[string]int
}

func NewStats() *Stats {
	return &Stats{
		Durations: NewSafeHistogram(),
		errors:    make(map[string]int),
	}
}

func (s *Stats) Add(o probe.Outcome) {
	s.Requests.Add(1)
	if !o.Success {
		s.Fail.Add(1)
		s.mu.Lock()
		s.errors[o.Err]++
		s.mu.Unlock()
		return
	}
	s.Success.Add(1)
	s.Bytes.Add(uint64(o.Bytes))
	s.Durations.Record(o.Duration)
}

// ErrorRate is the failed share of recorded requests, 0-100.
func (s *Stats) ErrorRate() float64 {
	reqs := s.Requests.Load()
	if reqs == 0 {
		return 0
	}
	return float64(s.Fail.Load()) / float64(reqs) * 100
}

func (s *Stats) P50() time.Duration { return s.Durations.Quantile(50) }
func (s *Stats) P90() time.Duration { return s.Durations.Quantile(90) }
func (s *Stats) P99() time.Duration { return s.Durations.Quantile(99) }

// GetErrorCounts returns a copy of failure messages and their counts.
func (s *Stats) GetErrorCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// TopErrors returns at most n failure messages seen so far, most frequent
// first.
func (s *Stats) TopErrors(n int) []ErrorCount {
	top := sortCounts(s.GetErrorCounts())
	if len(top) > n {
		top = top[:n]
	}
	return top
}
