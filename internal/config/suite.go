package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"faultcheck/internal/probe"
	"faultcheck/internal/scenario"
	"faultcheck/internal/stats"
	"faultcheck/internal/verdict"
)

// Suite is the on-disk list of scenarios for `faultcheck run`.
type Suite struct {
	Pace      *Duration         `yaml:"pace"`
	Overall   *ExpectationSpec  `yaml:"overall"`
	Scenarios []ScenarioSpec    `yaml:"scenarios"`
	Headers   map[string]string `yaml:"headers"`
}

// ScenarioSpec overrides fields of the base target. Zero values inherit.
type ScenarioSpec struct {
	Name        string            `yaml:"name"`
	URL         string            `yaml:"url"`
	Scheme      string            `yaml:"scheme"`
	Host        string            `yaml:"host"`
	Port        int               `yaml:"port"`
	Path        string            `yaml:"path"`
	Size        int64             `yaml:"size"`
	Method      string            `yaml:"method"`
	VirtualHost string            `yaml:"virtual_host"`
	ServerName  string            `yaml:"server_name"`
	Insecure    *bool             `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	Timeout     *Duration         `yaml:"timeout"`

	Requests    int       `yaml:"requests"`
	Concurrency int       `yaml:"concurrency"`
	Interval    *Duration `yaml:"interval"`
	Pause       *Duration `yaml:"pause"`
	Delay       *Duration `yaml:"delay"`
	Mode        string    `yaml:"mode"`

	Expect *ExpectationSpec `yaml:"expect"`
}

type ExpectationSpec struct {
	Metric    string    `yaml:"metric"`
	Bound     string    `yaml:"bound"`
	Expected  Quantity  `yaml:"expected"`
	Tolerance Tolerance `yaml:"tolerance"`
	Unit      string    `yaml:"unit"`
}

// Duration accepts Go duration strings such as "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Quantity is a plain number or a duration, which becomes seconds.
type Quantity float64

func (q *Quantity) UnmarshalYAML(n *yaml.Node) error {
	v, err := parseQuantity(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*q = Quantity(v)
	return nil
}

func parseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d.Seconds(), nil
	}
	return 0, fmt.Errorf("%q is neither a number nor a duration", s)
}

// Tolerance is "20%" (relative) or an absolute Quantity such as "100ms".
type Tolerance verdict.Tolerance

func (t *Tolerance) UnmarshalYAML(n *yaml.Node) error {
	s := strings.TrimSpace(n.Value)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return fmt.Errorf("line %d: bad percentage %q", n.Line, s)
		}
		*t = Tolerance{Value: f / 100, Relative: true}
		return nil
	}
	v, err := parseQuantity(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*t = Tolerance{Value: v}
	return nil
}

func LoadSuite(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	defer f.Close()

	s, err := DecodeSuite(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DecodeSuite rejects unknown keys.
func DecodeSuite(r io.Reader) (*Suite, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty suite", ErrInvalidConfig)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &s, nil
}

// Build turns the suite into validated scenarios on top of base.
func (s *Suite) Build(base probe.Target) ([]scenario.Scenario, *verdict.Expectation, error) {
	out := make([]scenario.Scenario, 0, len(s.Scenarios))
	var errs []error
	for i, spec := range s.Scenarios {
		sc, err := spec.build(base, s.Headers)
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %d: %w", i+1, err))
			continue
		}
		out = append(out, sc)
	}

	var overall *verdict.Expectation
	if s.Overall != nil {
		exp := s.Overall.Expectation()
		overall = &exp
		if err := exp.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("overall: %w", err))
		}
	}

	if err := scenario.ValidateAll(out); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return out, overall, nil
}

// PaceOr returns the suite pace if set.
func (s *Suite) PaceOr(def time.Duration) time.Duration {
	if s.Pace == nil {
		return def
	}
	return time.Duration(*s.Pace)
}

func (spec ScenarioSpec) build(base probe.Target, headers map[string]string) (scenario.Scenario, error) {
	t := base
	if spec.URL != "" {
		parsed, err := probe.ParseURL(spec.URL)
		if err != nil {
			return scenario.Scenario{}, err
		}
		t.Scheme, t.Host, t.Port, t.Path = parsed.Scheme, parsed.Host, parsed.Port, parsed.Path
	}
	if spec.Scheme != "" {
		t.Scheme = probe.Scheme(strings.ToLower(spec.Scheme))
	}
	if spec.Host != "" {
		t.Host = spec.Host
	}
	if spec.Port != 0 {
		t.Port = spec.Port
	}
	if spec.Path != "" {
		t.Path = spec.Path
	}
	if spec.Method != "" {
		t.Method = spec.Method
	}
	if spec.VirtualHost != "" {
		t.VirtualHost = spec.VirtualHost
	}
	if spec.ServerName != "" {
		t.ServerName = spec.ServerName
	}
	if spec.Insecure != nil {
		t.Insecure = *spec.Insecure
	}
	if spec.Timeout != nil {
		t.Timeout = time.Duration(*spec.Timeout)
	}
	t.Size = spec.Size
	t.Headers = mergeHeaders(base.Headers, headers, spec.Headers)

	sc := scenario.Scenario{
		Name:        spec.Name,
		Target:      t,
		Requests:    spec.Requests,
		Concurrency: spec.Concurrency,
		Mode:        stats.ThroughputMode(spec.Mode),
	}
	if sc.Concurrency == 0 {
		sc.Concurrency = 1
	}
	if sc.Mode == "" {
		sc.Mode = stats.ModeOps
		if t.Size > 0 {
			sc.Mode = stats.ModeBytes
		}
	}
	if spec.Interval != nil {
		sc.Interval = time.Duration(*spec.Interval)
	}
	if spec.Pause != nil {
		sc.Pause = time.Duration(*spec.Pause)
	}
	if spec.Delay != nil {
		d := time.Duration(*spec.Delay)
		sc.Delay = &d
	}
	if spec.Expect != nil {
		exp := spec.Expect.Expectation()
		sc.Expect = &exp
	}
	return sc, nil
}

func (e ExpectationSpec) Expectation() verdict.Expectation {
	bound := verdict.Bound(e.Bound)
	if bound == "" {
		bound = verdict.BoundWindow
	}
	return verdict.Expectation{
		Metric:    stats.Metric(e.Metric),
		Bound:     bound,
		Expected:  float64(e.Expected),
		Tolerance: verdict.Tolerance(e.Tolerance),
		Unit:      e.Unit,
	}
}

func mergeHeaders(layers ...map[string]string) map[string]string {
	var out map[string]string
	for _, l := range layers {
		for k, v := range l {
			if out == nil {
				out = make(map[string]string)
			}
			out[k] = v
		}
	}
	return out
}
