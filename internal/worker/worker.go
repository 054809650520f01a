// Package worker runs one goroutine per simulated user, turning that
// user's profile into a stream of storage operations.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/trafficgen/internal/drivers"
	"github.com/FairForge/trafficgen/internal/metrics"
	"github.com/FairForge/trafficgen/internal/profile"
	"github.com/FairForge/trafficgen/internal/rate"
	"github.com/FairForge/trafficgen/internal/ttl"
)

// Worker drives storage traffic for a single user profile. Each worker
// owns its rng and backoff; the only shared state it touches is the TTL
// index and the metrics aggregator, both safe for concurrent use.
type Worker struct {
	profile     profile.UserProfile
	driver      drivers.Driver
	controller  *rate.Controller
	backoff     *rate.Backoff
	index       *ttl.Index
	policy      ttl.Policy
	agg         *metrics.Aggregator
	uploadRatio float64
	opTimeout   time.Duration
	logger      *zap.Logger
	rng         *rand.Rand
	now         func() time.Time
}

// Options carries the shared collaborators a worker needs.
type Options struct {
	Driver      drivers.Driver
	Controller  *rate.Controller
	Backoff     *rate.Backoff
	Index       *ttl.Index
	Policy      ttl.Policy
	Aggregator  *metrics.Aggregator
	UploadRatio float64
	OpTimeout   time.Duration
	Logger      *zap.Logger
}

// New creates a worker for the given profile.
func New(p profile.UserProfile, opts Options) *Worker {
	return &Worker{
		profile:     p,
		driver:      opts.Driver,
		controller:  opts.Controller,
		backoff:     opts.Backoff,
		index:       opts.Index,
		policy:      opts.Policy,
		agg:         opts.Aggregator,
		uploadRatio: opts.UploadRatio,
		opTimeout:   opts.OpTimeout,
		logger:      opts.Logger.With(zap.String("user", p.ID)),
		rng:         rand.New(rand.NewSource(rngSeed(p.ID, time.Now().UnixNano()))),
		now:         time.Now,
	}
}

// rngSeed mixes the full user ID into the seed so workers created in the
// same instant still draw decorrelated streams.
func rngSeed(userID string, now int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return now ^ int64(h.Sum64())
}

// Run executes the worker loop until ctx is canceled. Each cycle performs
// one operation, then sleeps for the profile's next interval; a failure
// streak substitutes the backoff delay for the interval.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started",
		zap.String("bucket", w.profile.Bucket),
		zap.Float64("activity", w.profile.ActivityMultiplier))

	for {
		if ctx.Err() != nil {
			return
		}
		w.cycle(ctx)

		delay := w.controller.NextInterval(w.profile, w.now())
		if w.backoff.Failures() > 0 {
			delay = w.backoff.Delay()
		}
		if !sleep(ctx, delay) {
			w.logger.Info("worker stopping")
			return
		}
	}
}

func (w *Worker) cycle(ctx context.Context) {
	if w.rng.Float64() < w.uploadRatio {
		w.upload(ctx)
		return
	}
	w.download(ctx)
}

func (w *Worker) upload(ctx context.Context) {
	t := w.profile.PickFileType(w.rng)
	spec := profile.Spec(t)
	size := spec.PickSize(w.rng)
	ext := spec.PickExtension(w.rng)
	key := objectKey(w.profile.ID, t, w.now().Unix(), uuid.NewString()[:8], ext)
	payload := newPayload(t, size, w.rng.Int63())

	// Bound the call by the op timeout only: a shutdown broadcast must not
	// abort an in-flight transfer, the loop observes cancellation between
	// cycles.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opTimeout)
	start := w.now()
	err := w.driver.Put(opCtx, w.profile.Bucket, key, payload, size)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		w.fail(metrics.OpUpload, string(t), key, elapsed, err)
		return
	}

	w.index.Add(ttl.TrackedObject{
		UserID:    w.profile.ID,
		Bucket:    w.profile.Bucket,
		Key:       key,
		Size:      size,
		CreatedAt: w.now(),
		Class:     w.policy.ClassOf(size),
	})
	w.succeed(metrics.OpUpload, string(t), size, elapsed)
	w.logger.Debug("uploaded object",
		zap.String("key", key),
		zap.Int64("bytes", size),
		zap.Duration("took", elapsed))
}

func (w *Worker) download(ctx context.Context) {
	owned := w.index.OwnedBy(w.profile.ID)
	if len(owned) == 0 {
		// Nothing to read yet; the next cycle will likely upload.
		return
	}
	obj := owned[w.rng.Intn(len(owned))]

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opTimeout)
	defer cancel()
	start := w.now()
	body, err := w.driver.Get(opCtx, obj.Bucket, obj.Key)
	if err != nil {
		w.fail(metrics.OpDownload, fileTypeOf(obj.Key), obj.Key, time.Since(start), err)
		return
	}
	n, err := io.Copy(io.Discard, body)
	_ = body.Close()
	elapsed := time.Since(start)
	if err != nil {
		w.fail(metrics.OpDownload, fileTypeOf(obj.Key), obj.Key, elapsed, err)
		return
	}
	if n != obj.Size {
		w.fail(metrics.OpDownload, fileTypeOf(obj.Key), obj.Key, elapsed,
			fmt.Errorf("short read: got %d bytes, want %d", n, obj.Size))
		return
	}

	w.succeed(metrics.OpDownload, fileTypeOf(obj.Key), n, elapsed)
	w.logger.Debug("downloaded object",
		zap.String("key", obj.Key),
		zap.Int64("bytes", n),
		zap.Duration("took", elapsed))
}

func (w *Worker) succeed(op metrics.Op, fileType string, bytes int64, elapsed time.Duration) {
	w.backoff.Success()
	w.agg.Record(metrics.OperationRecord{
		UserID:   w.profile.ID,
		Op:       op,
		FileType: fileType,
		Bytes:    bytes,
		Duration: elapsed,
	})
}

func (w *Worker) fail(op metrics.Op, fileType, key string, elapsed time.Duration, err error) {
	w.backoff.Failure()
	w.agg.Record(metrics.OperationRecord{
		UserID:   w.profile.ID,
		Op:       op,
		FileType: fileType,
		Duration: elapsed,
		ErrKind:  errKind(err),
	})
	w.logger.Warn("operation failed",
		zap.String("op", string(op)),
		zap.String("key", key),
		zap.Int("streak", w.backoff.Failures()),
		zap.Error(err))
}

// errKind buckets an error for the metrics dimension.
func errKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, drivers.ErrInjected):
		return "injected"
	default:
		return "storage"
	}
}

// fileTypeOf recovers the file type segment from an object key
// (<user>/<type>/<name>).
func fileTypeOf(key string) string {
	var start int
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			if start > 0 {
				return key[start:i]
			}
			start = i + 1
		}
	}
	return "unknown"
}

// sleep waits for d or until ctx is canceled; it reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
