package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters for the aggregation core.
// Counters are atomic because fetch goroutines report bytes while the
// aggregator loop reports everything else.
type Metrics struct {
	tradesIngested  uint64
	tradesPublished uint64
	tradesPruned    uint64
	queueDrops      uint64
	queueClosed     uint64

	fetches      uint64
	fetchErrors  uint64
	fetchedBytes uint64
	fetchedSpan  uint64
}

// Snapshot is a point-in-time view of the metrics values.
type Snapshot struct {
	TradesIngested  uint64
	TradesPublished uint64
	TradesPruned    uint64
	QueueDrops      uint64
	QueueClosed     uint64
	Fetches         uint64
	FetchErrors     uint64
	FetchedBytes    uint64
	FetchedSpan     time.Duration
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// AddIngested counts trades accepted into the pending queue.
func (m *Metrics) AddIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.tradesIngested, uint64(n))
}

// AddPublished counts trades emitted in instant/queued batches.
func (m *Metrics) AddPublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.tradesPublished, uint64(n))
}

// AddPruned counts trades cut by the retention sweep.
func (m *Metrics) AddPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.tradesPruned, uint64(n))
}

// IncQueueDrop records a bus overflow drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncFetch records a started backfill fetch.
func (m *Metrics) IncFetch() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fetches, 1)
}

// IncFetchError records a failed backfill fetch.
func (m *Metrics) IncFetchError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fetchErrors, 1)
}

// AddFetchedBytes accumulates downloaded history bytes.
func (m *Metrics) AddFetchedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.fetchedBytes, uint64(n))
}

// AddFetchedSpan accumulates the covered history span.
func (m *Metrics) AddFetchedSpan(span time.Duration) {
	if m == nil || span <= 0 {
		return
	}
	atomic.AddUint64(&m.fetchedSpan, uint64(span))
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		TradesIngested:  atomic.LoadUint64(&m.tradesIngested),
		TradesPublished: atomic.LoadUint64(&m.tradesPublished),
		TradesPruned:    atomic.LoadUint64(&m.tradesPruned),
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		QueueClosed:     atomic.LoadUint64(&m.queueClosed),
		Fetches:         atomic.LoadUint64(&m.fetches),
		FetchErrors:     atomic.LoadUint64(&m.fetchErrors),
		FetchedBytes:    atomic.LoadUint64(&m.fetchedBytes),
		FetchedSpan:     time.Duration(atomic.LoadUint64(&m.fetchedSpan)),
	}
}
