package ttl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/trafficgen/internal/drivers"
	"github.com/FairForge/trafficgen/internal/metrics"
)

// Sweeper periodically deletes expired objects from storage and removes
// them from the index. Deletes are idempotent at the driver level, so an
// object already gone counts as a confirmed delete.
type Sweeper struct {
	index      *Index
	driver     drivers.Driver
	policy     Policy
	interval   time.Duration
	maxRetries int
	opTimeout  time.Duration
	agg        *metrics.Aggregator
	logger     *zap.Logger
	now        func() time.Time
}

// NewSweeper creates a sweeper over the given index and driver.
func NewSweeper(index *Index, driver drivers.Driver, policy Policy, interval time.Duration, maxRetries int, opTimeout time.Duration, agg *metrics.Aggregator, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		index:      index,
		driver:     driver,
		policy:     policy,
		interval:   interval,
		maxRetries: maxRetries,
		opTimeout:  opTimeout,
		agg:        agg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep deletes everything past its TTL in a single pass. Failed deletes
// stay in the index for the next pass; entries that exhaust their retry
// budget are pruned so a poisoned object cannot wedge the sweeper forever.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired := s.index.Expired(s.policy, s.now())
	if len(expired) == 0 {
		return
	}
	s.logger.Debug("sweeping expired objects", zap.Int("count", len(expired)))

	for _, obj := range expired {
		if ctx.Err() != nil {
			return
		}
		s.sweepOne(ctx, obj)
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, obj TrackedObject) {
	// In-flight deletes run to completion or time out; cancellation is
	// observed between entries in Sweep.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	start := s.now()
	err := s.driver.Delete(opCtx, obj.Bucket, obj.Key)
	cancel()
	elapsed := time.Since(start)

	if err == nil {
		s.index.Remove(obj.Bucket, obj.Key)
		s.agg.Record(metrics.OperationRecord{
			UserID:   obj.UserID,
			Op:       metrics.OpDelete,
			Bytes:    obj.Size,
			Duration: elapsed,
		})
		return
	}

	retries, ok := s.index.IncrementRetry(obj.Bucket, obj.Key)
	if !ok {
		// Removed concurrently; nothing left to do.
		return
	}
	s.agg.Record(metrics.OperationRecord{
		UserID:   obj.UserID,
		Op:       metrics.OpDelete,
		Duration: elapsed,
		ErrKind:  "sweep",
	})
	if retries >= s.maxRetries {
		s.index.Remove(obj.Bucket, obj.Key)
		s.logger.Warn("abandoning unsweepable object",
			zap.String("bucket", obj.Bucket),
			zap.String("key", obj.Key),
			zap.Int("retries", retries),
			zap.Error(err))
		return
	}
	s.logger.Debug("sweep delete failed, will retry",
		zap.String("bucket", obj.Bucket),
		zap.String("key", obj.Key),
		zap.Int("retries", retries),
		zap.Error(err))
}
