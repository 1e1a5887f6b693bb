package history

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func testRequest(now int64) Request {
	return Request{
		Pair:      "BTCUSD",
		Actives:   []string{"binance", "bitstamp"},
		Timeframe: 10_000,
		Range:     3_600_000,
		Now:       now,
	}
}

func TestBuildURL(t *testing.T) {
	b := New(Config{URLTemplate: "http://api/history/{from}/{to}/{timeframe}/{pair}/{exchanges}"})
	url := b.BuildURL(testRequest(0), 1000, 2000)
	assert.Equal(t, "http://api/history/1000/2000/10000/btcusd/binance+bitstamp", url)
}

func TestCanFetch(t *testing.T) {
	assert.False(t, New(Config{}).CanFetch("BTCUSD"), "no endpoint configured")

	b := New(Config{URLTemplate: "http://api/{from}", SupportedPairs: []string{"BTCUSD"}})
	assert.True(t, b.CanFetch("btcusd"))
	assert.False(t, b.CanFetch("ETHUSD"))
	assert.False(t, b.CanFetch(""))

	open := New(Config{URLTemplate: "http://api/{from}"})
	assert.True(t, open.CanFetch("ANYPAIR"))
}

func TestPlanRoundsBoundsUpToTimeframe(t *testing.T) {
	b := New(Config{URLTemplate: "http://api/{from}-{to}"})
	now := int64(1_000_005_000)

	req := testRequest(now)
	req.Earliest = now - 600_000

	plan, ok := b.Plan(req)
	require.True(t, ok)
	assert.Zero(t, plan.From%req.Timeframe)
	assert.Zero(t, plan.To%req.Timeframe)
	assert.GreaterOrEqual(t, plan.From, now-req.Range)
	assert.GreaterOrEqual(t, plan.To, req.Earliest)
}

func TestPlanNoopsWhenExhaustedUntilReset(t *testing.T) {
	b := New(Config{URLTemplate: "http://api/{from}-{to}"})
	b.Complete(Completion{Err: assert.AnError})
	require.True(t, b.Exhausted())

	_, ok := b.Plan(testRequest(1_000_000_000))
	assert.False(t, ok)

	b.Reset()
	_, ok = b.Plan(testRequest(1_000_000_000))
	assert.True(t, ok)
}

func TestPlanSkipsShortSpanAfterFirstFetch(t *testing.T) {
	b := New(Config{URLTemplate: "http://api/{from}-{to}"})
	now := int64(1_000_000_000)

	// first fetch goes through even below the minimum span
	req := testRequest(now)
	req.Range = 30_000
	plan, ok := b.Plan(req)
	require.True(t, ok)

	b.Start(t.Context(), plan, nil, func(Completion) {})
	b.Complete(Completion{From: plan.From, To: plan.To})

	req.Now = now + 5_000
	_, ok = b.Plan(req)
	assert.False(t, ok, "short span must be skipped once a fetch happened")
}

func TestPlanDeduplicatesIdenticalURL(t *testing.T) {
	b := New(Config{URLTemplate: "http://api/{from}-{to}"})
	req := testRequest(1_000_000_000)

	plan, ok := b.Plan(req)
	require.True(t, ok)
	b.Start(t.Context(), plan, nil, func(Completion) {})
	b.Complete(Completion{From: plan.From, To: plan.To})

	_, ok = b.Plan(req)
	assert.False(t, ok, "identical resolved URL must not refetch")
}

func TestPlanBlocksWhileInFlight(t *testing.T) {
	b := New(Config{URLTemplate: "http://api/{from}-{to}"})
	req := testRequest(1_000_000_000)

	plan, ok := b.Plan(req)
	require.True(t, ok)
	b.Start(t.Context(), plan, nil, func(Completion) {})
	require.True(t, b.InFlight())

	_, ok = b.Plan(req)
	assert.False(t, ok)
}

func TestFetchDecodesAndReportsProgress(t *testing.T) {
	payload := `{"results":[["bitstamp","500","9.5","2","1"],["binance",1500,11,1,0,"liquidation"]]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	b := New(Config{URLTemplate: srv.URL + "?from={from}&to={to}"})
	req := testRequest(1_000_000_000)
	plan, ok := b.Plan(req)
	require.True(t, ok)

	var loaded atomic.Int64
	done := make(chan Completion, 1)
	b.Start(t.Context(), plan,
		func(l, _ int64) { loaded.Store(l) },
		func(c Completion) { done <- c },
	)

	select {
	case c := <-done:
		require.NoError(t, c.Err)
		require.Len(t, c.Trades, 2)
		assert.Equal(t, "bitstamp", c.Trades[0].Exchange)
		assert.Equal(t, int64(500), c.Trades[0].Timestamp)
		assert.InDelta(t, 9.5, c.Trades[0].Price, 1e-9)
		assert.Equal(t, enum.SideUp, c.Trades[0].Side)
		assert.Equal(t, enum.SideDown, c.Trades[1].Side)
		assert.Equal(t, "liquidation", c.Trades[1].Type)
		assert.Equal(t, int64(len(payload)), loaded.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not complete")
	}
}

func TestFetchErrorCarriesRemoteMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"range too wide"}`))
	}))
	defer srv.Close()

	b := New(Config{URLTemplate: srv.URL + "?from={from}&to={to}"})
	plan, ok := b.Plan(testRequest(1_000_000_000))
	require.True(t, ok)

	done := make(chan Completion, 1)
	b.Start(t.Context(), plan, nil, func(c Completion) { done <- c })

	select {
	case c := <-done:
		require.Error(t, c.Err)
		assert.Contains(t, c.Err.Error(), "range too wide")

		b.Complete(c)
		assert.True(t, b.Exhausted(), "any fetch error means no more history")
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not complete")
	}
}
