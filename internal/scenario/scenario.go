// Package scenario runs configured batches one after another and judges each
// against its expectation.
package scenario

import (
	"errors"
	"fmt"
	"time"

	"faultcheck/internal/probe"
	"faultcheck/internal/runner"
	"faultcheck/internal/stats"
	"faultcheck/internal/verdict"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is one parameterized unit of work. It is built from configuration
// before the run and never mutated.
type Scenario struct {
	Name        string
	Target      probe.Target
	Requests    int
	Concurrency int
	Interval    time.Duration // start-to-start spacing
	Pause       time.Duration // wait between one request settling and the next starting

	// Delay overrides the runner's pause after this scenario.
	Delay *time.Duration

	Mode   stats.ThroughputMode
	Expect *verdict.Expectation
}

func (s Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if err := s.batch().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Target.Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Delay != nil && *s.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay %s is negative", *s.Delay))
	}
	switch s.Mode {
	case stats.ModeBytes, stats.ModeOps:
	default:
		errs = append(errs, fmt.Errorf("unknown throughput mode %q", s.Mode))
	}
	if s.Expect != nil {
		if err := s.Expect.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidScenario, s.Name, errors.Join(errs...))
	}
	return nil
}

// ValidateAll checks every scenario and rejects duplicate names.
func ValidateAll(scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return fmt.Errorf("%w: nothing to run", ErrInvalidScenario)
	}
	var errs []error
	seen := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate name %q", ErrInvalidScenario, s.Name))
		}
		seen[s.Name] = true
	}
	return errors.Join(errs...)
}

func (s Scenario) batch() runner.Config {
	return runner.Config{
		Name:        s.Name,
		Requests:    s.Requests,
		Concurrency: s.Concurrency,
		Interval:    s.Interval,
		Pause:       s.Pause,
	}
}
