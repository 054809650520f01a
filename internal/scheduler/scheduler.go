// Package scheduler owns the run lifecycle: bucket setup, starting every
// worker and background loop, and tearing it all down within the grace
// period when the run ends or a signal arrives.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/trafficgen/internal/config"
	"github.com/FairForge/trafficgen/internal/drivers"
	"github.com/FairForge/trafficgen/internal/metrics"
	"github.com/FairForge/trafficgen/internal/profile"
	"github.com/FairForge/trafficgen/internal/rate"
	"github.com/FairForge/trafficgen/internal/ttl"
	"github.com/FairForge/trafficgen/internal/worker"
)

// Scheduler coordinates one traffic-generation run.
type Scheduler struct {
	cfg      *config.Config
	registry *profile.Registry
	driver   drivers.Driver
	index    *ttl.Index
	policy   ttl.Policy
	agg      *metrics.Aggregator
	logger   *zap.Logger
}

// New assembles a scheduler from already-constructed collaborators.
func New(cfg *config.Config, registry *profile.Registry, driver drivers.Driver, agg *metrics.Aggregator, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		driver:   driver,
		index:    ttl.NewIndex(),
		policy: ttl.Policy{
			RegularTTL:    cfg.TTL.RegularTTL,
			LargeTTL:      cfg.TTL.LargeTTL,
			SizeThreshold: cfg.TTL.SizeThreshold,
		},
		agg:    agg,
		logger: logger,
	}
}

// Index exposes the TTL index, mainly for the stats endpoint.
func (s *Scheduler) Index() *ttl.Index { return s.index }

// Run executes the full lifecycle: ensure buckets, start everything, wait
// for the run duration or cancellation, then shut down gracefully. It
// returns once every component has stopped or the grace period expired.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.ensureBuckets(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The aggregator must outlive the workers: it shuts down only after
	// every producer has joined, so no final-cycle record can slip past
	// the drain.
	aggCtx, aggCancel := context.WithCancel(context.Background())
	defer aggCancel()
	go s.agg.Run(aggCtx)

	var wg sync.WaitGroup
	controller := rate.NewController(
		s.cfg.Traffic.BaseRatePerMin,
		s.cfg.Traffic.OffPeakFactor,
		s.cfg.Traffic.JitterFraction,
	)

	for _, p := range s.registry.All() {
		w := worker.New(p, worker.Options{
			Driver:      s.driver,
			Controller:  controller,
			Backoff:     rate.NewBackoff(s.cfg.Traffic.BackoffBase, s.cfg.Traffic.BackoffMax),
			Index:       s.index,
			Policy:      s.policy,
			Aggregator:  s.agg,
			UploadRatio: s.cfg.Traffic.UploadRatio,
			OpTimeout:   s.cfg.Storage.OpTimeout,
			Logger:      s.logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(runCtx)
		}()
	}

	sweeper := ttl.NewSweeper(s.index, s.driver, s.policy,
		s.cfg.TTL.SweepInterval, s.cfg.TTL.SweepMaxRetry,
		s.cfg.Storage.OpTimeout, s.agg, s.logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(runCtx)
	}()

	reporter := NewReporter(s.agg, s.cfg.Metrics.ReportInterval, s.logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(runCtx)
	}()

	s.logger.Info("run started",
		zap.Int("workers", s.registry.Len()),
		zap.Duration("duration", s.cfg.RunDuration),
		zap.String("driver", s.driver.Name()))

	timer := time.NewTimer(s.cfg.RunDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.logger.Info("run duration elapsed, shutting down")
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	}

	cancel()
	if !waitWithTimeout(&wg, s.cfg.Traffic.GraceTimeout) {
		s.logger.Warn("grace period expired with workers still running",
			zap.Duration("grace", s.cfg.Traffic.GraceTimeout))
	}
	aggCancel()
	s.agg.Wait()

	reporter.ReportFinal()
	s.logger.Info("run finished", zap.Int("objects_still_tracked", s.index.Len()))
	return nil
}

// ensureBuckets creates every profile's bucket up front. Any failure here
// is fatal; a run with a missing bucket would only produce noise.
func (s *Scheduler) ensureBuckets(ctx context.Context) error {
	seen := make(map[string]bool)
	for _, p := range s.registry.All() {
		if seen[p.Bucket] {
			continue
		}
		seen[p.Bucket] = true
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.Storage.OpTimeout)
		err := s.driver.EnsureBucket(opCtx, p.Bucket)
		cancel()
		if err != nil {
			return fmt.Errorf("scheduler: ensure bucket %s: %w", p.Bucket, err)
		}
		s.logger.Debug("bucket ready", zap.String("bucket", p.Bucket))
	}
	return nil
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
