package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"faultcheck/internal/banner"
	"faultcheck/internal/config"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitConfig     = 1
	ExitRuntime    = 2
	ExitUnhealthy  = 3
	defaultTimeout = 30 * time.Second
)

var (
	cfgFile string

	// v is rebuilt for every invocation in PersistentPreRunE.
	v *viper.Viper
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: ExitConfig, err: err}
}

var rootCmd = &cobra.Command{
	Use:   "faultcheck",
	Short: "faultcheck - fault-injection proxy verification harness",
	Long: `
faultcheck sends real requests through a fault-injection proxy and checks
that the observed behavior matches the configured fault.

It ships three checks and a suite runner:
1. bandwidth: throttled download speed
2. latency:   injected round-trip delay
3. loss:      dropped connection rate
4. run:       every scenario in a suite file`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		v, err = config.NewViper(cfgFile)
		if err != nil {
			return configError(err)
		}
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return configError(err)
		}
		return nil
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitConfig
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.faultcheck.yaml)")

	pf.String("proxy-url", "", "Proxy URL, e.g. http://127.0.0.1:8080 (overrides scheme/host/port)")
	pf.String("scheme", "http", "Target scheme: http, https, tcp or tls")
	pf.String("host", "127.0.0.1", "Proxy host")
	pf.IntP("port", "p", 8080, "Proxy port")
	pf.String("virtual-host", "httpbin.org", "Host header sent through the proxy")
	pf.String("sni", "", "TLS server name (defaults to the virtual host)")
	pf.Bool("insecure", false, "Skip TLS certificate verification")
	pf.Duration("timeout", defaultTimeout, "Per-request timeout")
	pf.Duration("pace", 0, "Pause between scenarios")

	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.String("log-output", "stderr", "Log output: stderr, stdout or a file path")

	pf.StringP("out", "o", "", "Export prefix for <out>.csv and <out>_summary.json")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	pf.Bool("tui", false, "Show a live view while requests run")
	pf.BoolP("quiet", "q", false, "Omit per-request lines")

	rootCmd.AddCommand(bandwidthCmd, latencyCmd, lossCmd, suiteCmd, dummyCmd)
}
