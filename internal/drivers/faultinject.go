package drivers

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"

	"go.uber.org/zap"
)

// ErrInjected is the failure returned by the fault-injecting driver. The
// worker treats it exactly like a transient storage error.
var ErrInjected = errors.New("drivers: injected failure")

// FaultDriver fails a configurable fraction of operations so that error
// paths (backoff, error counters, TTL retry) produce signal during
// observability validation.
type FaultDriver struct {
	backend Driver
	rate    float64
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFaultDriver wraps backend, failing each Put/Get/Delete with
// probability rate in [0,1].
func NewFaultDriver(backend Driver, rate float64, seed int64, logger *zap.Logger) *FaultDriver {
	return &FaultDriver{
		backend: backend,
		rate:    rate,
		logger:  logger,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (f *FaultDriver) inject() bool {
	if f.rate <= 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Float64() < f.rate
}

// Put stores an object, unless a fault fires first.
func (f *FaultDriver) Put(ctx context.Context, bucket, key string, data io.Reader, size int64) error {
	if f.inject() {
		f.logger.Debug("injected put failure", zap.String("bucket", bucket), zap.String("key", key))
		return ErrInjected
	}
	return f.backend.Put(ctx, bucket, key, data, size)
}

// Get retrieves an object, unless a fault fires first.
func (f *FaultDriver) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if f.inject() {
		f.logger.Debug("injected get failure", zap.String("bucket", bucket), zap.String("key", key))
		return nil, ErrInjected
	}
	return f.backend.Get(ctx, bucket, key)
}

// Delete removes an object, unless a fault fires first.
func (f *FaultDriver) Delete(ctx context.Context, bucket, key string) error {
	if f.inject() {
		f.logger.Debug("injected delete failure", zap.String("bucket", bucket), zap.String("key", key))
		return ErrInjected
	}
	return f.backend.Delete(ctx, bucket, key)
}

// List delegates to the backend; listing is not part of the failure model.
func (f *FaultDriver) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	return f.backend.List(ctx, bucket, prefix)
}

// EnsureBucket delegates to the backend. Bucket setup happens before the
// run starts and must not be poisoned by injected faults.
func (f *FaultDriver) EnsureBucket(ctx context.Context, bucket string) error {
	return f.backend.EnsureBucket(ctx, bucket)
}

// Name returns the driver name.
func (f *FaultDriver) Name() string {
	return "fault-" + f.backend.Name()
}
