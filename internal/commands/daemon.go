package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vaulttasks/internal/api"
	"vaulttasks/internal/core"
)

type engineRunner interface {
	RunCycle(ctx context.Context, now time.Time) (core.CycleReport, error)
}

func (c *CLI) newDaemonCmd() *cobra.Command {
	var addr string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the recovery scheduler loop until interrupted",
		Long: "Run the scheduler loop: every check interval the vault is re-read,\n" +
			"due tasks (including ones missed while the daemon was down) are\n" +
			"executed once each, and results are written back to the documents.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Addr = addr
			}
			if interval > 0 {
				c.cfg.CheckInterval = interval
			}

			engine, err := c.newEngine()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			serverErr := make(chan error, 1)
			var server *api.Server
			if c.cfg.Addr != "" {
				server = api.NewServer(c.cfg.Addr, c.cfg.AuthToken, engine, c.log)
				go func() {
					if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						serverErr <- err
					}
				}()
				c.log.Info().Str("addr", c.cfg.Addr).Msg("status API listening")
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

			c.log.Info().
				Str("vault", c.cfg.VaultPath).
				Dur("interval", c.cfg.CheckInterval).
				Msg("daemon started")

			// First cycle runs immediately so a restart catches up
			// without waiting an interval.
			c.runCycle(ctx, engine)

			ticker := time.NewTicker(c.cfg.CheckInterval)
			defer ticker.Stop()

		loop:
			for {
				select {
				case <-ticker.C:
					c.runCycle(ctx, engine)
				case sig := <-sigs:
					c.log.Info().Str("signal", sig.String()).Msg("received signal")
					break loop
				case err := <-serverErr:
					c.log.Error().Err(err).Msg("server error")
					break loop
				case <-ctx.Done():
					break loop
				}
			}

			cancel()
			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.cfg.ShutdownGrace)
				defer shutdownCancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					c.log.Error().Err(err).Msg("server shutdown")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Serve the status API on this address, e.g. 127.0.0.1:7080")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Override the check interval, e.g. 30s")
	return cmd
}

func (c *CLI) runCycle(ctx context.Context, engine engineRunner) {
	report, err := engine.RunCycle(ctx, time.Now())
	if err != nil {
		c.log.Error().Err(err).Msg("cycle failed")
		return
	}
	event := c.log.Info()
	if report.Due == 0 {
		event = c.log.Debug()
	}
	event.
		Int("loaded", report.Loaded).
		Int("invalid", report.Invalid).
		Int("due", report.Due).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("cycle complete")
}
