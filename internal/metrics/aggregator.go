package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type state struct {
	totals  Counts
	perUser map[string]Counts
	errors  map[string]int64
}

func newState() *state {
	return &state{
		perUser: make(map[string]Counts),
		errors:  make(map[string]int64),
	}
}

func (s *state) apply(r OperationRecord) {
	s.totals.apply(r)
	u := s.perUser[r.UserID]
	u.apply(r)
	s.perUser[r.UserID] = u
	if r.Failed() {
		s.errors[r.ErrKind]++
	}
}

func (s *state) snapshot(now time.Time, dropped int64) Snapshot {
	snap := Snapshot{
		Taken:   now,
		Totals:  s.totals,
		PerUser: make(map[string]Counts, len(s.perUser)),
		Errors:  make(map[string]int64, len(s.errors)),
		Dropped: dropped,
	}
	for k, v := range s.perUser {
		snap.PerUser[k] = v
	}
	for k, v := range s.errors {
		snap.Errors[k] = v
	}
	return snap
}

// Aggregator collects OperationRecords from all workers and the sweeper.
// Record never blocks: records flow through a bounded channel and are
// dropped (and counted) when the consumer cannot keep up. A single
// goroutine owns the aggregate state; interval counters reset on snapshot
// while cumulative totals persist for the final summary.
type Aggregator struct {
	logger  *zap.Logger
	records chan OperationRecord
	dropped atomic.Int64
	closed  atomic.Bool
	done    chan struct{}

	mu         sync.Mutex
	interval   *state
	cumulative *state

	opsTotal   metric.Int64Counter
	bytesTotal metric.Int64Counter
	opDuration metric.Float64Histogram

	promOps      *prometheus.CounterVec
	promBytes    *prometheus.CounterVec
	promErrors   *prometheus.CounterVec
	promDuration *prometheus.HistogramVec
	promDropped  prometheus.Counter
}

// NewAggregator creates an aggregator with the given record buffer size.
// meter feeds the OTLP export path; reg feeds the local /metrics endpoint.
func NewAggregator(bufferSize int, meter metric.Meter, reg prometheus.Registerer, logger *zap.Logger) (*Aggregator, error) {
	opsTotal, err := meter.Int64Counter("trafficgen.operations.total",
		metric.WithDescription("Storage operations performed, by user, kind and outcome"))
	if err != nil {
		return nil, err
	}
	bytesTotal, err := meter.Int64Counter("trafficgen.bytes.total",
		metric.WithDescription("Bytes transferred by successful operations"))
	if err != nil {
		return nil, err
	}
	opDuration, err := meter.Float64Histogram("trafficgen.operation.duration",
		metric.WithDescription("Storage operation duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	factory := promauto.With(reg)
	a := &Aggregator{
		logger:     logger,
		records:    make(chan OperationRecord, bufferSize),
		done:       make(chan struct{}),
		interval:   newState(),
		cumulative: newState(),
		opsTotal:   opsTotal,
		bytesTotal: bytesTotal,
		opDuration: opDuration,
		promOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficgen_operations_total",
			Help: "Storage operations performed.",
		}, []string{"user", "op", "file_type", "outcome"}),
		promBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficgen_bytes_total",
			Help: "Bytes transferred by successful operations.",
		}, []string{"user", "op"}),
		promErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficgen_errors_total",
			Help: "Failed operations by error kind.",
		}, []string{"user", "op", "kind"}),
		promDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trafficgen_operation_duration_seconds",
			Help:    "Storage operation duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		promDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "trafficgen_records_dropped_total",
			Help: "Operation records dropped under backpressure.",
		}),
	}
	return a, nil
}

// Record submits an operation record. It never blocks: when the buffer is
// full, or the consumer has already shut down, the record is dropped and
// the drop counted, so data loss stays observable.
func (a *Aggregator) Record(rec OperationRecord) {
	if a.closed.Load() {
		a.dropped.Add(1)
		a.promDropped.Inc()
		return
	}
	select {
	case a.records <- rec:
	default:
		a.dropped.Add(1)
		a.promDropped.Inc()
	}
}

// Run consumes records until ctx is canceled, then drains whatever is
// still buffered so shutdown does not lose accepted records. The caller
// must stop all producers before canceling ctx; records submitted after
// the drain count as dropped.
func (a *Aggregator) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case rec := <-a.records:
			a.apply(ctx, rec)
		case <-ctx.Done():
			a.closed.Store(true)
			for {
				select {
				case rec := <-a.records:
					a.apply(context.Background(), rec)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has finished draining.
func (a *Aggregator) Wait() { <-a.done }

func (a *Aggregator) apply(ctx context.Context, rec OperationRecord) {
	a.mu.Lock()
	a.interval.apply(rec)
	a.cumulative.apply(rec)
	a.mu.Unlock()

	outcome := "success"
	if rec.Failed() {
		outcome = "failure"
	}

	attrs := metric.WithAttributes(
		attribute.String("user", rec.UserID),
		attribute.String("op", string(rec.Op)),
		attribute.String("file_type", rec.FileType),
		attribute.String("outcome", outcome),
	)
	a.opsTotal.Add(ctx, 1, attrs)
	a.opDuration.Record(ctx, rec.Duration.Seconds(), metric.WithAttributes(
		attribute.String("op", string(rec.Op)),
	))

	a.promOps.WithLabelValues(rec.UserID, string(rec.Op), rec.FileType, outcome).Inc()
	a.promDuration.WithLabelValues(string(rec.Op)).Observe(rec.Duration.Seconds())

	if rec.Failed() {
		a.promErrors.WithLabelValues(rec.UserID, string(rec.Op), rec.ErrKind).Inc()
		return
	}
	a.bytesTotal.Add(ctx, rec.Bytes, metric.WithAttributes(
		attribute.String("user", rec.UserID),
		attribute.String("op", string(rec.Op)),
	))
	a.promBytes.WithLabelValues(rec.UserID, string(rec.Op)).Add(float64(rec.Bytes))
}

// IntervalSnapshot returns counters accumulated since the previous call
// and resets them. Cumulative totals are unaffected.
func (a *Aggregator) IntervalSnapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := a.interval.snapshot(time.Now().UTC(), a.dropped.Load())
	a.interval = newState()
	return snap
}

// CumulativeSnapshot returns run-wide totals.
func (a *Aggregator) CumulativeSnapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cumulative.snapshot(time.Now().UTC(), a.dropped.Load())
}

// Dropped reports how many records were lost to backpressure.
func (a *Aggregator) Dropped() int64 { return a.dropped.Load() }
