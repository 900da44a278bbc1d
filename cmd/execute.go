package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"faultcheck/internal/config"
	"faultcheck/internal/logger"
	"faultcheck/internal/metrics"
	"faultcheck/internal/report"
	"faultcheck/internal/runner"
	"faultcheck/internal/scenario"
	"faultcheck/internal/tui/app"
	"faultcheck/internal/verdict"
)

// stdout receives the report.
var stdout io.Writer = os.Stdout

// plan is what a subcommand hands to execute.
type plan struct {
	Scenarios []scenario.Scenario
	Overall   *verdict.Expectation
	Pace      time.Duration
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	// The live view owns the terminal.
	if cfg.TUI && (cfg.Log.Output == "stderr" || cfg.Log.Output == "stdout") {
		return logger.Nop(), nil
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, configError(err)
	}
	return log, nil
}

// execute runs p and prints its report. It returns an exitError when the
// plan is invalid or the run is unhealthy.
func execute(ctx context.Context, cfg *config.Config, p plan) error {
	if err := scenario.ValidateAll(p.Scenarios); err != nil {
		return configError(err)
	}
	if p.Overall != nil {
		if err := p.Overall.Validate(); err != nil {
			return configError(fmt.Errorf("overall expectation: %w", err))
		}
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exporter *metrics.Exporter
	if cfg.MetricsAddr != "" {
		exporter = metrics.NewExporter()
		if err := exporter.Serve(cfg.MetricsAddr, log); err != nil {
			return configError(err)
		}
		log.Info("metrics enabled", zap.String("addr", exporter.Addr()))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = exporter.Shutdown(shutdownCtx)
		}()
	}

	var updates runner.SnapshotChan
	if cfg.TUI {
		updates = make(runner.SnapshotChan, 64)
	}
	driver := runner.NewDriver(log, updates)

	sr := scenario.NewRunner(driver, log)
	sr.Pace = p.Pace
	sr.Overall = p.Overall
	if exporter != nil {
		driver.Recorder = exporter
		sr.Verdicts = exporter
	}

	console := report.NewConsole(stdout)
	console.Quiet = cfg.Quiet

	var (
		run     scenario.RunResult
		viewErr error
	)
	if cfg.TUI {
		run, err, viewErr = runLive(ctx, sr, updates, p.Scenarios)
		if viewErr != nil {
			log.Error("live view failed; run was stopped", zap.Error(viewErr))
		}
		for _, res := range run.Results {
			console.ScenarioStarted(res.Scenario)
			console.ScenarioFinished(res)
		}
	} else {
		sr.Reporter = console
		run, err = sr.Run(ctx, p.Scenarios)
	}
	if err != nil {
		return configError(err)
	}

	console.Summary(run)

	if cfg.Out != "" {
		files, err := report.Export(run, cfg.Out)
		if err != nil {
			log.Error("export failed", zap.Error(err))
		} else {
			log.Info("report exported", zap.Strings("files", files))
		}
	}

	if viewErr != nil {
		return &exitError{code: ExitRuntime, err: viewErr}
	}
	if !run.Healthy() {
		return &exitError{code: ExitUnhealthy, err: errors.New("one or more scenarios produced no data or did not run")}
	}
	return nil
}

// program is the part of *tea.Program runLive drives.
type program interface {
	app.Sender
	Run() (tea.Model, error)
}

var newProgram = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// runLive drives the scenarios in the background while a bubbletea program
// renders their snapshots. Quitting the program cancels the run. runErr is
// the scenario runner's error; viewErr means the program itself failed, in
// which case the run is canceled and the scenarios finished so far are
// still returned.
func runLive(ctx context.Context, sr *scenario.Runner, updates runner.SnapshotChan, scenarios []scenario.Scenario) (run scenario.RunResult, runErr, viewErr error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := newProgram(app.NewModel(updates, len(scenarios), cancel))
	sr.Reporter = app.Reporter{Program: prog}

	done := make(chan struct{})
	go func() {
		defer close(done)
		run, runErr = sr.Run(ctx, scenarios)
		// The driver has sent its last snapshot once Run returns.
		close(updates)
		prog.Send(app.RunDoneMsg{})
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return run, runErr, fmt.Errorf("live view: %w", err)
	}
	<-done
	return run, runErr, nil
}
