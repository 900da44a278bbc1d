package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"faultcheck/internal/config"
	"faultcheck/internal/probe"
	"faultcheck/internal/scenario"
)

var bandwidthCmd = &cobra.Command{
	Use:   "bandwidth",
	Short: "Check that downloads are throttled to the configured limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base, err := cfg.BaseTarget()
		if err != nil {
			return configError(err)
		}

		o := scenario.DefaultBandwidth()
		o.Sizes = nil
		for _, n := range v.GetIntSlice("sizes") {
			o.Sizes = append(o.Sizes, int64(n))
		}
		o.Repeats = v.GetInt("repeats")
		o.LimitKBps = v.GetFloat64("limit-kbps")
		o.Tolerance = v.GetFloat64("tolerance")
		if len(o.Sizes) == 0 {
			return configError(fmt.Errorf("%w: --sizes is empty", config.ErrInvalidConfig))
		}

		scenarios, overall := scenario.Bandwidth(base, o)
		return execute(cmd.Context(), cfg, plan{Scenarios: scenarios, Overall: overall, Pace: cfg.Pace})
	},
}

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Check the injected round-trip delay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base, err := cfg.BaseTarget()
		if err != nil {
			return configError(err)
		}
		base = latencyTarget(base, v.GetBool("tls"))

		o := scenario.LatencyOptions{
			Requests:  v.GetInt("requests"),
			Pause:     v.GetDuration("interval"),
			Expected:  v.GetDuration("expected"),
			Tolerance: v.GetDuration("tolerance"),
		}
		s := scenario.Latency(base, o)
		return execute(cmd.Context(), cfg, plan{Scenarios: []scenario.Scenario{s}, Pace: cfg.Pace})
	},
}

// latencyTarget switches base to a raw TLS stream when useTLS is set. SNI
// stays whatever the config resolved (the virtual host by default); when
// that is empty the stream probe falls back to the target host.
func latencyTarget(base probe.Target, useTLS bool) probe.Target {
	if useTLS {
		base.Scheme = probe.SchemeTLS
	}
	return base
}

var lossCmd = &cobra.Command{
	Use:   "loss",
	Short: "Check the rate of dropped connections",
	Long: `Sends a burst of concurrent requests and reports the failure rate.

With --all, ports port..port+3 are expected to drop 0%, 10%, 25% and 50%
of connections respectively; each is checked against its rate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base, err := cfg.BaseTarget()
		if err != nil {
			return configError(err)
		}

		o := scenario.DefaultLoss()
		o.Requests = v.GetInt("requests")
		o.Concurrency = v.GetInt("concurrency")
		o.Tolerance = v.GetFloat64("tolerance")
		if rate := v.GetFloat64("expected-loss"); rate >= 0 {
			o.ExpectedLoss = &rate
		}

		if v.GetBool("all") {
			// A sweep is four batches; keep it short unless asked otherwise.
			if !cmd.Flags().Changed("requests") {
				o.Requests = 50
			}
			if !cmd.Flags().Changed("concurrency") {
				o.Concurrency = 5
			}
			return execute(cmd.Context(), cfg, plan{Scenarios: scenario.PacketLossSweep(base, o), Pace: cfg.Pace})
		}
		return execute(cmd.Context(), cfg, plan{Scenarios: []scenario.Scenario{scenario.PacketLoss(base, o)}, Pace: cfg.Pace})
	},
}

func init() {
	bw := scenario.DefaultBandwidth()
	sizes := make([]int, len(bw.Sizes))
	for i, n := range bw.Sizes {
		sizes[i] = int(n)
	}
	bandwidthCmd.Flags().IntSlice("sizes", sizes, "Payload sizes in bytes")
	bandwidthCmd.Flags().Int("repeats", bw.Repeats, "Downloads per size")
	bandwidthCmd.Flags().Float64("limit-kbps", bw.LimitKBps, "Configured bandwidth limit in KB/s")
	bandwidthCmd.Flags().Float64("tolerance", bw.Tolerance, "Relative tolerance, 0.2 = 20%")

	lat := scenario.DefaultLatency()
	latencyCmd.Flags().Int("requests", lat.Requests, "Number of requests")
	latencyCmd.Flags().Duration("interval", lat.Pause, "Pause after each response before the next request")
	latencyCmd.Flags().Duration("expected", lat.Expected, "Expected mean latency")
	latencyCmd.Flags().Duration("tolerance", lat.Tolerance, "Absolute tolerance around the expected latency")
	latencyCmd.Flags().Bool("tls", true, "Open a TLS stream instead of plain HTTP")

	loss := scenario.DefaultLoss()
	lossCmd.Flags().Int("requests", loss.Requests, "Number of requests")
	lossCmd.Flags().IntP("concurrency", "c", loss.Concurrency, "Requests in flight at once")
	lossCmd.Flags().Float64("expected-loss", -1, "Expected failure rate 0-1; negative reports only")
	lossCmd.Flags().Float64("tolerance", loss.Tolerance, "Absolute tolerance on the failure rate")
	lossCmd.Flags().Bool("all", false, "Sweep four ports with increasing drop rates")
}
