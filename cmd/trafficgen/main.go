// cmd/trafficgen/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/FairForge/trafficgen/internal/config"
	"github.com/FairForge/trafficgen/internal/drivers"
	"github.com/FairForge/trafficgen/internal/metrics"
	"github.com/FairForge/trafficgen/internal/profile"
	"github.com/FairForge/trafficgen/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	driver, err := buildDriver(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create storage driver", zap.Error(err))
	}
	logger.Info("storage driver ready", zap.String("driver", driver.Name()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := metrics.NewMeterProvider(ctx, cfg.Metrics.OTLPEndpoint, cfg.Metrics.FlushInterval, logger)
	if err != nil {
		logger.Fatal("failed to create meter provider", zap.Error(err))
	}

	promReg := prometheus.NewRegistry()
	agg, err := metrics.NewAggregator(cfg.Metrics.BufferSize, provider.Meter("trafficgen"), promReg, logger)
	if err != nil {
		logger.Fatal("failed to create aggregator", zap.Error(err))
	}

	sched := scheduler.New(cfg, profile.DefaultRegistry(), driver, agg, logger)

	if cfg.ListenAddr != "" {
		srv := debugServer(cfg.ListenAddr, agg, sched, promReg)
		go func() {
			logger.Info("debug endpoint listening", zap.String("addr", cfg.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("debug server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	runErr := sched.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := provider.Shutdown(flushCtx); err != nil {
		logger.Warn("metrics flush on shutdown failed", zap.Error(err))
	}
	cancel()

	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr))
		os.Exit(1)
	}
}

// buildDriver assembles the storage driver chain: the configured backend,
// optionally wrapped with fault injection and a bandwidth cap.
func buildDriver(cfg *config.Config, logger *zap.Logger) (drivers.Driver, error) {
	var driver drivers.Driver
	switch cfg.Storage.Mode {
	case "local":
		if err := os.MkdirAll(cfg.Storage.LocalPath, 0o750); err != nil {
			return nil, err
		}
		driver = drivers.NewLocalDriver(cfg.Storage.LocalPath, logger)
	case "s3":
		s3Driver, err := drivers.NewS3Driver(drivers.S3Options{
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			PathStyle: cfg.Storage.PathStyle,
		}, logger)
		if err != nil {
			return nil, err
		}
		driver = s3Driver
	}

	if cfg.Traffic.FailureRate > 0 {
		driver = drivers.NewFaultDriver(driver, cfg.Traffic.FailureRate, time.Now().UnixNano(), logger)
		logger.Info("fault injection enabled", zap.Float64("rate", cfg.Traffic.FailureRate))
	}
	if cfg.Storage.BandwidthLimit > 0 {
		driver = drivers.NewThrottledDriver(driver, cfg.Storage.BandwidthLimit, logger)
		logger.Info("bandwidth cap enabled", zap.Int("bytes_per_sec", cfg.Storage.BandwidthLimit))
	}
	return driver, nil
}

func debugServer(addr string, agg *metrics.Aggregator, sched *scheduler.Scheduler, promReg *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Cumulative metrics.Snapshot `json:"cumulative"`
			Tracked    int              `json:"tracked_objects"`
		}{
			Cumulative: agg.CumulativeSnapshot(),
			Tracked:    sched.Index().Len(),
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
