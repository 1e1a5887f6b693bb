package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/pkg/exception"
)

func TestSyntheticValidatePair(t *testing.T) {
	events := make(chan Event, 8)
	s := NewSynthetic(t.Context(), events, SyntheticConfig{
		ID:    "synthetic",
		Pairs: []string{"BTCUSD"},
	})

	require.NoError(t, s.ValidatePair(t.Context(), "btcusd"))
	e := <-events
	assert.Equal(t, EventMatch, e.Kind)
	assert.Equal(t, "BTCUSD", e.Pair)

	assert.ErrorIs(t, s.ValidatePair(t.Context(), "ETHUSD"), exception.ErrPairNotMatched)
	assert.ErrorIs(t, s.ValidatePair(t.Context(), ""), exception.ErrNoPair)
}

func TestSyntheticEmitsTradesUntilDisconnect(t *testing.T) {
	events := make(chan Event, 64)
	s := NewSynthetic(t.Context(), events, SyntheticConfig{
		Interval:  time.Millisecond,
		BasePrice: 50,
		Volume:    2,
	})
	require.NoError(t, s.ValidatePair(t.Context(), "BTCUSD"))
	<-events // match

	s.Connect()

	deadline := time.After(time.Second)
	var open bool
	var trades int
	for trades == 0 {
		select {
		case e := <-events:
			switch e.Kind {
			case EventOpen:
				open = true
			case EventLiveTrades:
				require.Len(t, e.Trades, 1)
				assert.Equal(t, "synthetic", e.Trades[0].Exchange)
				assert.Equal(t, float64(2), e.Trades[0].Volume)
				assert.NotZero(t, e.Trades[0].Timestamp)
				trades++
			}
		case <-deadline:
			t.Fatal("no trades generated")
		}
	}
	assert.True(t, open)
	assert.NotZero(t, s.Price())

	s.Disconnect()
	deadline = time.After(time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == EventClose {
				return
			}
		case <-deadline:
			t.Fatal("no close event after disconnect")
		}
	}
}
