package connector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func TestNormalizeBinanceTrade(t *testing.T) {
	payload := []byte(`{"e":"trade","s":"BTCUSDT","p":"43250.10","q":"0.250","T":1700000000123,"m":true}`)

	var raw binanceTrade
	require.NoError(t, json.Unmarshal(payload, &raw))

	trade, err := normalizeBinanceTrade(raw)
	require.NoError(t, err)

	assert.Equal(t, "binance", trade.Exchange)
	assert.Equal(t, int64(1700000000123), trade.Timestamp)
	assert.InDelta(t, 43250.10, trade.Price, 1e-9)
	assert.InDelta(t, 0.25, trade.Volume, 1e-9)
	assert.Equal(t, enum.SideDown, trade.Side, "buyer-maker executions count as sells")
}

func TestNormalizeBinanceTradeTakerBuy(t *testing.T) {
	var raw binanceTrade
	require.NoError(t, json.Unmarshal([]byte(`{"e":"trade","p":"1.5","q":"3","T":1,"m":false}`), &raw))

	trade, err := normalizeBinanceTrade(raw)
	require.NoError(t, err)
	assert.Equal(t, enum.SideUp, trade.Side)
}
