package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadResolvesFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"pair": "btcusd",
		"timeframe": 10000,
		"chart": {"visible": true, "range": 3600000},
		"flushInterval": 1000,
		"pruneInterval": 60000,
		"exchanges": [
			{"name": "binance"},
			{"name": "paper", "kind": "synthetic", "disabled": true,
			 "synthetic": {"pairs": ["BTCUSD"], "basePrice": 100, "volume": 2, "interval": 250}}
		],
		"history": {
			"url": "http://api/history/{from}/{to}/{timeframe}/{pair}/{exchanges}",
			"supportedPairs": ["btcusd"],
			"timeout": 15000
		}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSD", loaded.Aggregator.Settings.Pair)
	assert.Equal(t, int64(10000), loaded.Aggregator.Settings.Timeframe)
	assert.True(t, loaded.Aggregator.Settings.ChartVisible)
	assert.Equal(t, time.Second, loaded.Aggregator.FlushInterval)
	assert.Equal(t, time.Minute, loaded.Aggregator.PruneInterval)
	assert.Equal(t, map[string]bool{"binance": false, "paper": true}, loaded.Aggregator.Settings.Disabled)

	require.Len(t, loaded.Exchanges, 2)
	assert.Equal(t, KindBinance, loaded.Exchanges[0].Kind)
	assert.Equal(t, KindSynthetic, loaded.Exchanges[1].Kind)
	assert.Equal(t, "paper", loaded.Exchanges[1].Synthetic.ID)
	assert.Equal(t, 250*time.Millisecond, loaded.Exchanges[1].Synthetic.Interval)

	assert.Equal(t, []string{"BTCUSD"}, loaded.History.SupportedPairs)
	assert.Equal(t, 15*time.Second, loaded.History.Timeout)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"zero timeframe", `{"timeframe": 0, "exchanges": [{"name": "binance"}]}`},
		{"no exchanges", `{"timeframe": 10000, "exchanges": []}`},
		{"unknown kind", `{"timeframe": 10000, "exchanges": [{"name": "x", "kind": "teleport"}]}`},
		{"duplicate exchange", `{"timeframe": 10000, "exchanges": [{"name": "binance"}, {"name": "binance"}]}`},
		{"nameless synthetic", `{"timeframe": 10000, "exchanges": [{"kind": "synthetic"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
