package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePublishAndRun(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.TryPublish(Event{Kind: KindConnected, Exchange: "binance"}))
	require.NoError(t, q.TryPublish(Event{Kind: KindClean, MinTimestamp: 1000}))
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []Event
	q.Run(ctx, func(e Event) {
		got = append(got, e)
	})

	require.Len(t, got, 2)
	assert.Equal(t, KindConnected, got[0].Kind)
	assert.Equal(t, "binance", got[0].Exchange)
	assert.Equal(t, int64(1000), got[1].MinTimestamp)
}

func TestQueueOverflowDropsInsteadOfBlocking(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(Event{Kind: KindConnected}))
	err := q.TryPublish(Event{Kind: KindDisconnected})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueClosedRejectsPublish(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	assert.ErrorIs(t, q.TryPublish(Event{Kind: KindConnected}), ErrQueueClosed)
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(8)
	require.NoError(t, q.TryPublish(Event{Kind: KindFetchStart, Span: 60000}))
	require.NoError(t, q.TryPublish(Event{Kind: KindFetchEnd, Span: 60000}))

	events := q.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, KindFetchStart, events[0].Kind)
	assert.Empty(t, q.Drain())
}
