package distq

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting per-round metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordForward is called after the query-forwarding step.
	// exports and imports are the row counts on this rank.
	RecordForward(exports, imports int, duration time.Duration)

	// RecordReturn is called after the result-return step.
	RecordReturn(exports, imports int, duration time.Duration)

	// RecordTruncate is called after result truncation.
	// before and after are total candidate counts across the batch.
	RecordTruncate(before, after int, duration time.Duration)

	// RecordRound is called once per resolution round.
	// err is nil if the round succeeded.
	RecordRound(queries int, duration time.Duration, err error)
}

// NoopMetrics discards all metrics. It is the default collector.
type NoopMetrics struct{}

func (NoopMetrics) RecordForward(exports, imports int, duration time.Duration) {}
func (NoopMetrics) RecordReturn(exports, imports int, duration time.Duration)  {}
func (NoopMetrics) RecordTruncate(before, after int, duration time.Duration)   {}
func (NoopMetrics) RecordRound(queries int, duration time.Duration, err error) {}

// BasicMetrics is a lock-free in-memory collector suitable for tests and
// lightweight monitoring.
type BasicMetrics struct {
	Rounds        atomic.Int64
	RoundErrors   atomic.Int64
	QueriesTotal  atomic.Int64
	RowsForwarded atomic.Int64
	RowsReturned  atomic.Int64
	RowsDiscarded atomic.Int64
}

func (m *BasicMetrics) RecordForward(exports, imports int, duration time.Duration) {
	m.RowsForwarded.Add(int64(exports))
}

func (m *BasicMetrics) RecordReturn(exports, imports int, duration time.Duration) {
	m.RowsReturned.Add(int64(exports))
}

func (m *BasicMetrics) RecordTruncate(before, after int, duration time.Duration) {
	m.RowsDiscarded.Add(int64(before - after))
}

func (m *BasicMetrics) RecordRound(queries int, duration time.Duration, err error) {
	m.Rounds.Add(1)
	m.QueriesTotal.Add(int64(queries))
	if err != nil {
		m.RoundErrors.Add(1)
	}
}
