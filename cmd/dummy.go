package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"faultcheck/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Serve a local target to put behind the proxy",
	Long: `Serves /bytes/{n}, /get, /delay/{ms}, /status/{code}, /truncate/{n} and
/error on --host:--port until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.TUI = false
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		srv, err := dummy.Start(dummy.ServerConfig{Host: cfg.Host, Port: cfg.Port}, log)
		if err != nil {
			return configError(err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log.Info("shutting down dummy server", zap.String("addr", srv.Addr()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
