package drivers

import (
	"context"
	"io"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ThrottledDriver caps upload bandwidth across the whole run. The traffic
// generator paces itself already; the cap is for shared lab environments
// where a media-heavy persona could otherwise saturate the link.
type ThrottledDriver struct {
	backend Driver
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewThrottledDriver wraps backend with a bytes-per-second upload limit.
func NewThrottledDriver(backend Driver, bytesPerSecond int, logger *zap.Logger) *ThrottledDriver {
	return &ThrottledDriver{
		backend: backend,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
		logger:  logger,
	}
}

// throttledReader wraps an io.Reader with rate limiting.
type throttledReader struct {
	reader  io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	if burst := tr.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := tr.reader.Read(p)
	if n > 0 {
		if waitErr := tr.limiter.WaitN(tr.ctx, n); waitErr != nil {
			return 0, waitErr
		}
	}
	return n, err
}

// Put stores an object through the bandwidth limiter.
func (t *ThrottledDriver) Put(ctx context.Context, bucket, key string, data io.Reader, size int64) error {
	throttled := &throttledReader{reader: data, limiter: t.limiter, ctx: ctx}
	return t.backend.Put(ctx, bucket, key, throttled, size)
}

// Get delegates to the backend.
func (t *ThrottledDriver) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return t.backend.Get(ctx, bucket, key)
}

// Delete delegates to the backend.
func (t *ThrottledDriver) Delete(ctx context.Context, bucket, key string) error {
	return t.backend.Delete(ctx, bucket, key)
}

// List delegates to the backend.
func (t *ThrottledDriver) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	return t.backend.List(ctx, bucket, prefix)
}

// EnsureBucket delegates to the backend.
func (t *ThrottledDriver) EnsureBucket(ctx context.Context, bucket string) error {
	return t.backend.EnsureBucket(ctx, bucket)
}

// Name returns the driver name.
func (t *ThrottledDriver) Name() string {
	return "throttled-" + t.backend.Name()
}
