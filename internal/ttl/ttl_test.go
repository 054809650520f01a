package ttl

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/FairForge/trafficgen/internal/drivers"
	"github.com/FairForge/trafficgen/internal/metrics"
)

var testPolicy = Policy{
	RegularTTL:    3 * time.Hour,
	LargeTTL:      60 * time.Minute,
	SizeThreshold: 100 * 1024 * 1024,
}

func newTestAggregator(t *testing.T) *metrics.Aggregator {
	t.Helper()
	meter := sdkmetric.NewMeterProvider().Meter("test")
	agg, err := metrics.NewAggregator(1024, meter, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	return agg
}

func drain(agg *metrics.Aggregator) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agg.Run(ctx)
}

func putObject(t *testing.T, d drivers.Driver, bucket, key string, size int) {
	t.Helper()
	require.NoError(t, d.EnsureBucket(context.Background(), bucket))
	payload := bytes.Repeat([]byte("x"), size)
	require.NoError(t, d.Put(context.Background(), bucket, key, bytes.NewReader(payload), int64(size)))
}

func TestPolicy_Classification(t *testing.T) {
	assert.Equal(t, ClassRegular, testPolicy.ClassOf(1024))
	assert.Equal(t, ClassRegular, testPolicy.ClassOf(100*1024*1024-1))
	assert.Equal(t, ClassLarge, testPolicy.ClassOf(100*1024*1024))
	assert.Equal(t, ClassLarge, testPolicy.ClassOf(500*1024*1024))

	assert.Equal(t, 3*time.Hour, testPolicy.TTLFor(ClassRegular))
	assert.Equal(t, 60*time.Minute, testPolicy.TTLFor(ClassLarge))
}

func TestIndex_OwnedBy(t *testing.T) {
	idx := NewIndex()
	base := time.Now()
	idx.Add(TrackedObject{UserID: "alice-dev", Bucket: "dev-bucket", Key: "alice-dev/a", CreatedAt: base})
	idx.Add(TrackedObject{UserID: "alice-dev", Bucket: "dev-bucket", Key: "alice-dev/b", CreatedAt: base})
	idx.Add(TrackedObject{UserID: "bob-marketing", Bucket: "marketing", Key: "bob-marketing/c", CreatedAt: base})

	assert.Len(t, idx.OwnedBy("alice-dev"), 2)
	assert.Len(t, idx.OwnedBy("bob-marketing"), 1)
	assert.Empty(t, idx.OwnedBy("carol-data"))
	assert.Equal(t, 3, idx.Len())

	idx.Remove("dev-bucket", "alice-dev/a")
	assert.Len(t, idx.OwnedBy("alice-dev"), 1)

	// Removing again is a no-op.
	idx.Remove("dev-bucket", "alice-dev/a")
	assert.Equal(t, 2, idx.Len())
}

func TestIndex_Expired(t *testing.T) {
	idx := NewIndex()
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	idx.Add(TrackedObject{Bucket: "b", Key: "fresh", CreatedAt: base, Class: ClassRegular})
	idx.Add(TrackedObject{Bucket: "b", Key: "stale", CreatedAt: base.Add(-4 * time.Hour), Class: ClassRegular})
	idx.Add(TrackedObject{Bucket: "b", Key: "large-fresh", CreatedAt: base.Add(-30 * time.Minute), Class: ClassLarge})
	idx.Add(TrackedObject{Bucket: "b", Key: "large-stale", CreatedAt: base.Add(-61 * time.Minute), Class: ClassLarge})

	expired := idx.Expired(testPolicy, base)
	keys := make(map[string]bool)
	for _, obj := range expired {
		keys[obj.Key] = true
	}
	assert.Len(t, expired, 2)
	assert.True(t, keys["stale"])
	assert.True(t, keys["large-stale"])
}

func TestSweeper_DeletesExpiredLargeObject(t *testing.T) {
	// A 150MB object must be gone between 60 and 65 minutes after upload
	// with a 60-minute large TTL and a 5-minute sweep interval.
	driver := drivers.NewMemoryDriver()
	idx := NewIndex()
	agg := newTestAggregator(t)

	const size = 150 * 1024 * 1024
	// The driver only sees a tiny payload; the index carries the real size.
	putObject(t, driver, "backup-primary", "david-backup/archives/big.tar.gz", 16)

	uploaded := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	idx.Add(TrackedObject{
		UserID:    "david-backup",
		Bucket:    "backup-primary",
		Key:       "david-backup/archives/big.tar.gz",
		Size:      size,
		CreatedAt: uploaded,
		Class:     testPolicy.ClassOf(size),
	})

	sw := NewSweeper(idx, driver, testPolicy, 5*time.Minute, 3, 10*time.Second, agg, zap.NewNop())

	// Last pass before expiry leaves the object alone.
	sw.now = func() time.Time { return uploaded.Add(55 * time.Minute) }
	sw.Sweep(context.Background())
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 1, driver.ObjectCount("backup-primary"))

	// First pass at or after expiry removes it.
	sw.now = func() time.Time { return uploaded.Add(60 * time.Minute) }
	sw.Sweep(context.Background())
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, driver.ObjectCount("backup-primary"))

	drain(agg)
	snap := agg.CumulativeSnapshot()
	assert.Equal(t, int64(1), snap.Totals.Deletes)
	assert.Equal(t, int64(size), snap.Totals.Bytes)
	assert.Equal(t, int64(1), snap.PerUser["david-backup"].Deletes)
}

func TestSweeper_AlreadyDeletedIsConfirmed(t *testing.T) {
	// The object never made it to storage (or was deleted out of band);
	// the driver's idempotent delete still confirms removal.
	driver := drivers.NewMemoryDriver()
	require.NoError(t, driver.EnsureBucket(context.Background(), "dev-bucket"))
	idx := NewIndex()
	agg := newTestAggregator(t)

	created := time.Now().Add(-4 * time.Hour)
	idx.Add(TrackedObject{
		UserID: "alice-dev", Bucket: "dev-bucket", Key: "alice-dev/gone.go",
		Size: 512, CreatedAt: created, Class: ClassRegular,
	})

	sw := NewSweeper(idx, driver, testPolicy, 5*time.Minute, 3, 10*time.Second, agg, zap.NewNop())
	sw.Sweep(context.Background())
	assert.Equal(t, 0, idx.Len())

	// Sweeping again with nothing expired is a quiet no-op.
	sw.Sweep(context.Background())

	drain(agg)
	snap := agg.CumulativeSnapshot()
	assert.Equal(t, int64(1), snap.Totals.Deletes)
	assert.Equal(t, int64(0), snap.Totals.Errors)
}

func TestSweeper_RetriesThenPrunes(t *testing.T) {
	backend := drivers.NewMemoryDriver()
	require.NoError(t, backend.EnsureBucket(context.Background(), "dev-bucket"))
	// rate=1 fails every delete.
	driver := drivers.NewFaultDriver(backend, 1.0, 1, zap.NewNop())
	idx := NewIndex()
	agg := newTestAggregator(t)

	idx.Add(TrackedObject{
		UserID: "alice-dev", Bucket: "dev-bucket", Key: "alice-dev/stuck.go",
		Size: 512, CreatedAt: time.Now().Add(-4 * time.Hour), Class: ClassRegular,
	})

	sw := NewSweeper(idx, driver, testPolicy, 5*time.Minute, 3, 10*time.Second, agg, zap.NewNop())

	sw.Sweep(context.Background())
	obj, ok := idx.Get("dev-bucket", "alice-dev/stuck.go")
	require.True(t, ok)
	assert.Equal(t, 1, obj.Retries)

	sw.Sweep(context.Background())
	obj, _ = idx.Get("dev-bucket", "alice-dev/stuck.go")
	assert.Equal(t, 2, obj.Retries)

	// Third failure exhausts the budget; the entry is pruned.
	sw.Sweep(context.Background())
	assert.Equal(t, 0, idx.Len())

	// A further sweep finds nothing.
	sw.Sweep(context.Background())

	drain(agg)
	snap := agg.CumulativeSnapshot()
	assert.Equal(t, int64(3), snap.Totals.Deletes)
	assert.Equal(t, int64(3), snap.Totals.Errors)
	assert.Equal(t, int64(3), snap.Errors["sweep"])
}

type slowDeleteDriver struct {
	drivers.Driver
	delay time.Duration
}

func (d slowDeleteDriver) Delete(ctx context.Context, bucket, key string) error {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.Driver.Delete(ctx, bucket, key)
}

func TestSweeper_InFlightDeleteSurvivesCancel(t *testing.T) {
	// Cancellation mid-delete must not abort the call; the sweeper only
	// observes it between entries.
	backend := drivers.NewMemoryDriver()
	putObject(t, backend, "dev-bucket", "alice-dev/code/old.go", 16)
	driver := slowDeleteDriver{Driver: backend, delay: 100 * time.Millisecond}
	idx := NewIndex()
	agg := newTestAggregator(t)

	idx.Add(TrackedObject{
		UserID: "alice-dev", Bucket: "dev-bucket", Key: "alice-dev/code/old.go",
		Size: 16, CreatedAt: time.Now().Add(-4 * time.Hour), Class: ClassRegular,
	})

	sw := NewSweeper(idx, driver, testPolicy, 5*time.Minute, 3, 10*time.Second, agg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Sweep(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, backend.ObjectCount("dev-bucket"))

	drain(agg)
	snap := agg.CumulativeSnapshot()
	assert.Equal(t, int64(1), snap.Totals.Deletes)
	assert.Equal(t, int64(0), snap.Totals.Errors)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	driver := drivers.NewMemoryDriver()
	idx := NewIndex()
	agg := newTestAggregator(t)
	sw := NewSweeper(idx, driver, testPolicy, 10*time.Millisecond, 3, time.Second, agg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
