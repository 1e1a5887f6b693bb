package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.AddIngested(3)
	m.AddPublished(2)
	m.AddPruned(1)
	m.IncQueueDrop()
	m.IncFetch()
	m.IncFetchError()
	m.AddFetchedBytes(1024)
	m.AddFetchedSpan(time.Minute)

	snap := m.Snapshot()
	assert.Equal(t, uint64(3), snap.TradesIngested)
	assert.Equal(t, uint64(2), snap.TradesPublished)
	assert.Equal(t, uint64(1), snap.TradesPruned)
	assert.Equal(t, uint64(1), snap.QueueDrops)
	assert.Equal(t, uint64(1), snap.Fetches)
	assert.Equal(t, uint64(1), snap.FetchErrors)
	assert.Equal(t, uint64(1024), snap.FetchedBytes)
	assert.Equal(t, time.Minute, snap.FetchedSpan)
}

func TestMetricsIgnoresNonPositive(t *testing.T) {
	m := NewMetrics()
	m.AddIngested(0)
	m.AddIngested(-1)
	m.AddFetchedBytes(0)
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddIngested(1)
	m.IncQueueDrop()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}
