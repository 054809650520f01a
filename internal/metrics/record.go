// Package metrics aggregates per-operation business measurements and
// exports them: periodically over OTLP for the observability stack under
// test, and on a local Prometheus registry for the debug endpoint.
package metrics

import "time"

// Op is the kind of storage operation a record describes.
type Op string

const (
	OpUpload   Op = "upload"
	OpDownload Op = "download"
	OpDelete   Op = "delete"
)

// OperationRecord is one completed storage operation. Records are
// ephemeral; they exist only to feed the aggregator.
type OperationRecord struct {
	UserID   string
	Op       Op
	FileType string
	Bytes    int64
	Duration time.Duration
	ErrKind  string // empty on success
}

// Failed reports whether the operation failed.
func (r OperationRecord) Failed() bool { return r.ErrKind != "" }

// Counts is a set of aggregate counters, either per user or run-wide.
type Counts struct {
	Operations int64
	Uploads    int64
	Downloads  int64
	Deletes    int64
	Errors     int64
	Bytes      int64
}

func (c *Counts) apply(r OperationRecord) {
	c.Operations++
	switch r.Op {
	case OpUpload:
		c.Uploads++
	case OpDownload:
		c.Downloads++
	case OpDelete:
		c.Deletes++
	}
	if r.Failed() {
		c.Errors++
	} else {
		c.Bytes += r.Bytes
	}
}

// Snapshot is a point-in-time view of aggregated counters.
type Snapshot struct {
	Taken   time.Time
	Totals  Counts
	PerUser map[string]Counts
	Errors  map[string]int64
	Dropped int64
}
