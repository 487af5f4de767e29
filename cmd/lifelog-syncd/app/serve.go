package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lifelog-labs/lifelog-sync-server/internal/scheduler"
	pkgsync "github.com/lifelog-labs/lifelog-sync-server/internal/sync"
)

// defaultGracefulTimeout bounds shutdown of telemetry and the store
const defaultGracefulTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync daemon",
	Long: `Run the sync daemon with the background scheduler.

The daemon requires a configuration file (--config) that specifies:
- The external sources to sync (fitness, calendar, file)
- Sync concurrency and history settings
- Scheduler cadence, retry ladder, and daily sync window

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	rt, err := buildRuntime(ctx, viper.GetString("config"))
	if err != nil {
		return err
	}

	sched := scheduler.New(rt.manager, rt.cfg,
		scheduler.WithSuccessCallback(func(_ pkgsync.Result) {
			// Rate-limited internally, cheap to call per run
			rt.manager.CleanupHistory()
		}),
		scheduler.WithFailureCallback(func(result pkgsync.Result) {
			slog.Warn("Scheduled sync did not complete",
				"source", result.SourceName,
				"rate_limited", result.RateLimited,
				"error", result.ErrorMessage)
		}),
	)

	schedCtx, schedCancel := context.WithCancel(ctx)
	defer schedCancel()
	go func() {
		if err := sched.Start(schedCtx); err != nil {
			slog.Error("Scheduler failed", "error", err)
		}
	}()

	slog.Info("Sync daemon started", "instance", rt.cfg.InstanceName)

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down sync daemon")

	if err := sched.Stop(); err != nil {
		slog.Error("Failed to stop scheduler", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	rt.close(shutdownCtx)

	slog.Info("Sync daemon shutdown complete")
	return nil
}
