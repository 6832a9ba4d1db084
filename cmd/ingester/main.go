// Command ingester publishes DMI forecast parameters as per-timestep COGs.
//
// Without SCHEDULE it runs once and exits 0, whatever the per-parameter
// outcomes. With SCHEDULE it runs on that cron expression and serves
// /healthz, /readyz, /status and /metrics on HTTP_ADDR.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/dmi"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/gdal"
	httpadapter "github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/kafka"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/netcdf"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/adapter/s3"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/config"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/observability"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/pipeline"
	"github.com/couchcryptid/dmi-forecast-ingester/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	engine := gdal.NewEngine(logger)
	deps := pipeline.Deps{
		Fetcher:     dmi.NewClient(cfg.DMIAPIKey, cfg.DMIAPIHost, cfg.HTTPTimeout, logger),
		Decoder:     netcdf.NewDecoder(filepath.Join(cfg.DataDir, pipeline.ArrayFile), logger),
		Reprojector: engine,
		Engine:      engine,
	}

	// Store and Notifier stay nil interfaces when disabled.
	if cfg.Upload {
		gw, err := s3.NewGateway(s3.Options{
			Endpoint: cfg.BucketEndpoint,
			Bucket:   cfg.BucketName,
			Key:      cfg.BucketKey,
			Secret:   cfg.BucketSecret,
		}, logger)
		if err != nil {
			logger.Error("failed to create storage gateway", "error", err)
			os.Exit(1)
		}
		deps.Store = gw
		logger.Info("uploading enabled", "endpoint", cfg.BucketEndpoint, "bucket", cfg.BucketName)
	} else {
		logger.Info("uploading disabled, outputs stay in data dir", "path", cfg.DataDir)
	}

	var notifier *kafkaadapter.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		notifier = kafkaadapter.NewNotifier(cfg, logger)
		deps.Notifier = notifier
		logger.Info("publication events enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(pipeline.OptionsFromConfig(cfg), deps, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule == "" {
		runOnce(ctx, cfg, p, logger)
	} else if err := runScheduled(ctx, cfg, p, logger); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
}

func runOnce(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) {
	report := p.Run(ctx)
	if report.Failed() > 0 {
		logger.Warn("some parameters failed", "failed", report.Failed(), "succeeded", report.Succeeded())
	}

	if cfg.PushgatewayURL == "" {
		return
	}
	if err := observability.Push(ctx, cfg.PushgatewayURL, prometheus.DefaultGatherer); err != nil {
		logger.Error("metrics push failed", "url", cfg.PushgatewayURL, "error", err)
	}
}

func runScheduled(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	sched := scheduler.New(cfg.Schedule, p, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	return nil
}
