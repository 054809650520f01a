package scheduler

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/trafficgen/internal/metrics"
)

// Reporter logs periodic traffic summaries from interval snapshots. Each
// report covers only the activity since the previous one; cumulative
// totals are logged once at the end of the run.
type Reporter struct {
	agg      *metrics.Aggregator
	interval time.Duration
	logger   *zap.Logger
}

// NewReporter creates a reporter over the aggregator.
func NewReporter(agg *metrics.Aggregator, interval time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{agg: agg, interval: interval, logger: logger}
}

// Run emits a report every interval until ctx is canceled, then emits one
// final interval report so the tail of the run is not lost.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.report()
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	snap := r.agg.IntervalSnapshot()
	r.logger.Info("traffic report",
		zap.Int64("operations", snap.Totals.Operations),
		zap.Int64("uploads", snap.Totals.Uploads),
		zap.Int64("downloads", snap.Totals.Downloads),
		zap.Int64("deletes", snap.Totals.Deletes),
		zap.Int64("errors", snap.Totals.Errors),
		zap.Int64("bytes", snap.Totals.Bytes),
		zap.Int64("dropped_records", snap.Dropped))

	for _, user := range sortedUsers(snap.PerUser) {
		c := snap.PerUser[user]
		r.logger.Info("user activity",
			zap.String("user", user),
			zap.Int64("operations", c.Operations),
			zap.Int64("errors", c.Errors),
			zap.Int64("bytes", c.Bytes))
	}
}

// ReportFinal logs the run-wide cumulative summary.
func (r *Reporter) ReportFinal() {
	snap := r.agg.CumulativeSnapshot()
	r.logger.Info("run summary",
		zap.Int64("operations", snap.Totals.Operations),
		zap.Int64("uploads", snap.Totals.Uploads),
		zap.Int64("downloads", snap.Totals.Downloads),
		zap.Int64("deletes", snap.Totals.Deletes),
		zap.Int64("errors", snap.Totals.Errors),
		zap.Int64("bytes", snap.Totals.Bytes),
		zap.Int64("dropped_records", snap.Dropped))
	for _, user := range sortedUsers(snap.PerUser) {
		c := snap.PerUser[user]
		r.logger.Info("user summary",
			zap.String("user", user),
			zap.Int64("operations", c.Operations),
			zap.Int64("uploads", c.Uploads),
			zap.Int64("downloads", c.Downloads),
			zap.Int64("errors", c.Errors),
			zap.Int64("bytes", c.Bytes))
	}
}

func sortedUsers(m map[string]metrics.Counts) []string {
	users := make([]string, 0, len(m))
	for u := range m {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
