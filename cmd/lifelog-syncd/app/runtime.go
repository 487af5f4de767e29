package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/lifelog-labs/lifelog-sync-server/internal/bridge"
	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
	"github.com/lifelog-labs/lifelog-sync-server/internal/journal"
	"github.com/lifelog-labs/lifelog-sync-server/internal/sources"
	pkgsync "github.com/lifelog-labs/lifelog-sync-server/internal/sync"
	"github.com/lifelog-labs/lifelog-sync-server/internal/telemetry"
	"github.com/lifelog-labs/lifelog-sync-server/internal/versions"
)

// runtime bundles the wired core components shared by the serve, sync, and
// status commands.
type runtime struct {
	cfg           *config.Config
	store         journal.Store
	manager       pkgsync.Manager
	meterProvider metric.MeterProvider
}

// buildRuntime loads the configuration and wires store, telemetry, registry,
// bridge, and manager, then registers every configured source.
func buildRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"instance", cfg.InstanceName,
		"sources", len(cfg.Sources))

	var store journal.Store
	if cfg.Store != nil && cfg.Store.Path != "" {
		store, err = journal.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal store: %w", err)
		}
		slog.Info("Using SQLite journal store", "path", cfg.Store.Path)
	} else {
		store = journal.NewMemoryStore()
		slog.Info("Using in-memory journal store")
	}

	var metricsCfg *config.MetricsConfig
	if cfg.Telemetry != nil {
		metricsCfg = cfg.Telemetry.Metrics
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx,
		telemetry.WithMeterServiceName(telemetry.DefaultServiceName),
		telemetry.WithMeterServiceVersion(versions.GetVersionInfo().Version),
		telemetry.WithMetricsConfig(metricsCfg),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	registry := sources.NewDefaultRegistry()

	recordBridge := bridge.New()
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		switch src.Type {
		case config.SourceTypeFitness:
			recordBridge.Register(src.Name, bridge.NewFitnessPipeline())
		case config.SourceTypeCalendar:
			recordBridge.Register(src.Name, bridge.NewCalendarPipeline())
		default:
			// File sources flow through the default pipeline
		}
	}

	manager := pkgsync.NewManager(registry, recordBridge, store, cfg.Sync,
		pkgsync.WithMetrics(syncMetrics))

	for i := range cfg.Sources {
		if err := manager.Register(ctx, &cfg.Sources[i]); err != nil {
			slog.Error("Failed to register source",
				"source", cfg.Sources[i].Name,
				"error", err)
		}
	}

	return &runtime{
		cfg:           cfg,
		store:         store,
		manager:       manager,
		meterProvider: meterProvider,
	}, nil
}

// close releases the runtime's resources
func (r *runtime) close(ctx context.Context) {
	if err := r.store.Close(); err != nil {
		slog.Error("Failed to close journal store", "error", err)
	}
	if shutdown, ok := r.meterProvider.(interface{ Shutdown(context.Context) error }); ok {
		if err := shutdown.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down meter provider", "error", err)
		}
	}
}
