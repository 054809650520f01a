package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/FairForge/trafficgen/internal/config"
	"github.com/FairForge/trafficgen/internal/drivers"
	"github.com/FairForge/trafficgen/internal/metrics"
	"github.com/FairForge/trafficgen/internal/profile"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.RunDuration = 300 * time.Millisecond
	cfg.Storage.Mode = "local"
	cfg.Storage.OpTimeout = 5 * time.Second
	cfg.Traffic.BaseRatePerMin = 6000 // ~10ms between ops
	cfg.Traffic.JitterFraction = 0
	cfg.Traffic.GraceTimeout = 5 * time.Second
	cfg.Metrics.ReportInterval = 100 * time.Millisecond
	return cfg
}

func testRegistry(t *testing.T) *profile.Registry {
	t.Helper()
	reg, err := profile.NewRegistry([]profile.UserProfile{
		{
			ID: "alice-dev", Bucket: "dev-bucket",
			Peak:               profile.PeakWindow{Start: 0, End: 23},
			ActivityMultiplier: 1.0,
			Preferences:        map[profile.FileType]float64{profile.TypeCode: 1.0},
		},
		{
			ID: "bob-marketing", Bucket: "marketing-assets",
			Peak:               profile.PeakWindow{Start: 0, End: 23},
			ActivityMultiplier: 1.0,
			Preferences:        map[profile.FileType]float64{profile.TypeDocuments: 1.0},
		},
	})
	require.NoError(t, err)
	return reg
}

func newTestAggregator(t *testing.T) *metrics.Aggregator {
	t.Helper()
	meter := sdkmetric.NewMeterProvider().Meter("test")
	agg, err := metrics.NewAggregator(4096, meter, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	return agg
}

func TestScheduler_RunCompletesAfterDuration(t *testing.T) {
	cfg := testConfig()
	driver := drivers.NewMemoryDriver()
	agg := newTestAggregator(t)
	s := New(cfg, testRegistry(t), driver, agg, zap.NewNop())

	start := time.Now()
	require.NoError(t, s.Run(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, cfg.RunDuration)
	assert.Less(t, elapsed, cfg.RunDuration+cfg.Traffic.GraceTimeout)

	snap := agg.CumulativeSnapshot()
	assert.Positive(t, snap.Totals.Operations)
	assert.Positive(t, snap.PerUser["alice-dev"].Operations)
	assert.Positive(t, snap.PerUser["bob-marketing"].Operations)
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.RunDuration = time.Hour
	driver := drivers.NewMemoryDriver()
	s := New(cfg, testRegistry(t), driver, newTestAggregator(t), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(cfg.Traffic.GraceTimeout + time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestScheduler_NamespaceIsolation(t *testing.T) {
	cfg := testConfig()
	driver := drivers.NewMemoryDriver()
	s := New(cfg, testRegistry(t), driver, newTestAggregator(t), zap.NewNop())
	require.NoError(t, s.Run(context.Background()))

	// Every object in a bucket carries its owner's prefix.
	devKeys, err := driver.List(context.Background(), "dev-bucket", "")
	require.NoError(t, err)
	for _, key := range devKeys {
		assert.Contains(t, key, "alice-dev/")
	}
	mktKeys, err := driver.List(context.Background(), "marketing-assets", "")
	require.NoError(t, err)
	for _, key := range mktKeys {
		assert.Contains(t, key, "bob-marketing/")
	}
}

type slowPutDriver struct {
	drivers.Driver
	delay time.Duration
}

func (d slowPutDriver) Put(ctx context.Context, bucket, key string, data io.Reader, size int64) error {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.Driver.Put(ctx, bucket, key, data, size)
}

func TestScheduler_FinalCycleRecordsReachSummary(t *testing.T) {
	// Uploads still in flight when the run duration elapses finish during
	// the grace period; their records must appear in the cumulative
	// totals, not vanish or count as drops.
	cfg := testConfig()
	cfg.RunDuration = 50 * time.Millisecond
	cfg.Traffic.UploadRatio = 1.0
	driver := slowPutDriver{Driver: drivers.NewMemoryDriver(), delay: 150 * time.Millisecond}
	agg := newTestAggregator(t)
	s := New(cfg, testRegistry(t), driver, agg, zap.NewNop())

	require.NoError(t, s.Run(context.Background()))

	snap := agg.CumulativeSnapshot()
	assert.Positive(t, snap.Totals.Operations)
	assert.Equal(t, int64(0), snap.Totals.Errors)
	assert.Equal(t, int64(0), snap.Dropped)
}

type brokenBucketDriver struct{ drivers.Driver }

func (brokenBucketDriver) EnsureBucket(ctx context.Context, bucket string) error {
	return errors.New("access denied")
}

func (brokenBucketDriver) Name() string { return "broken" }

func TestScheduler_BucketFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	s := New(cfg, testRegistry(t), brokenBucketDriver{drivers.NewMemoryDriver()}, newTestAggregator(t), zap.NewNop())

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure bucket")
}

func TestReporter_FinalSummaryUsesCumulative(t *testing.T) {
	agg := newTestAggregator(t)
	go func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		agg.Run(ctx)
	}()
	agg.Record(metrics.OperationRecord{UserID: "alice-dev", Op: metrics.OpUpload, Bytes: 10, Duration: time.Millisecond})
	agg.Wait()

	r := NewReporter(agg, time.Minute, zap.NewNop())
	r.report()
	// The interval reset must not erase the cumulative view the final
	// summary reads.
	assert.Equal(t, int64(1), agg.CumulativeSnapshot().Totals.Operations)
	r.ReportFinal()
}
