package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"main/internal/aggregator"
	"main/internal/connector"
	"main/internal/history"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Pair          string           `json:"pair"`
	Timeframe     int64            `json:"timeframe"` // ms
	Chart         ChartConfig      `json:"chart"`
	Exchanges     []ExchangeConfig `json:"exchanges"`
	History       HistoryConfig    `json:"history"`
	FlushInterval int64            `json:"flushInterval"` // ms
	PruneInterval int64            `json:"pruneInterval"` // ms
	EventBuffer   int              `json:"eventBuffer"`
}

// ChartConfig controls retention lookback.
type ChartConfig struct {
	Visible bool  `json:"visible"`
	Range   int64 `json:"range"` // ms
}

// ExchangeConfig describes one connector entry.
type ExchangeConfig struct {
	Name      string           `json:"name"`
	Kind      string           `json:"kind"`
	Disabled  bool             `json:"disabled"`
	Synthetic *SyntheticConfig `json:"synthetic"`
}

// SyntheticConfig tunes a generated feed entry.
type SyntheticConfig struct {
	Pairs     []string `json:"pairs"`
	BasePrice float64  `json:"basePrice"`
	Volume    float64  `json:"volume"`
	Spread    float64  `json:"spread"`
	Interval  int64    `json:"interval"` // ms
}

// HistoryConfig describes the remote backfill endpoint.
type HistoryConfig struct {
	URL            string   `json:"url"`
	SupportedPairs []string `json:"supportedPairs"`
	Timeout        int64    `json:"timeout"` // ms
}

const (
	KindBinance   = "binance"
	KindSynthetic = "synthetic"
)

// ExchangeSpec is a resolved connector definition.
type ExchangeSpec struct {
	Name      string
	Kind      string
	Disabled  bool
	Synthetic connector.SyntheticConfig
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Aggregator aggregator.Config
	History    history.Config
	Exchanges  []ExchangeSpec
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	if cfg.Timeframe <= 0 {
		return Loaded{}, fmt.Errorf("timeframe must be > 0")
	}
	if cfg.Chart.Range < 0 {
		return Loaded{}, fmt.Errorf("chart range must be >= 0")
	}
	if len(cfg.Exchanges) == 0 {
		return Loaded{}, fmt.Errorf("no exchanges configured")
	}

	specs := make([]ExchangeSpec, 0, len(cfg.Exchanges))
	seen := make(map[string]bool, len(cfg.Exchanges))
	disabled := make(map[string]bool, len(cfg.Exchanges))
	for _, exchange := range cfg.Exchanges {
		spec, err := resolveExchange(exchange)
		if err != nil {
			return Loaded{}, err
		}
		if seen[spec.Name] {
			return Loaded{}, fmt.Errorf("duplicate exchange: %s", spec.Name)
		}
		seen[spec.Name] = true
		disabled[spec.Name] = spec.Disabled
		specs = append(specs, spec)
	}

	loaded := Loaded{
		Aggregator: aggregator.Config{
			FlushInterval: time.Duration(cfg.FlushInterval) * time.Millisecond,
			PruneInterval: time.Duration(cfg.PruneInterval) * time.Millisecond,
			EventBuffer:   cfg.EventBuffer,
			Settings: aggregator.Settings{
				Pair:         strings.ToUpper(cfg.Pair),
				Timeframe:    cfg.Timeframe,
				ChartVisible: cfg.Chart.Visible,
				ChartRange:   cfg.Chart.Range,
				Disabled:     disabled,
			},
		},
		History: history.Config{
			URLTemplate:    cfg.History.URL,
			SupportedPairs: upperAll(cfg.History.SupportedPairs),
			Timeout:        time.Duration(cfg.History.Timeout) * time.Millisecond,
		},
		Exchanges: specs,
	}
	return loaded, nil
}

func resolveExchange(cfg ExchangeConfig) (ExchangeSpec, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if kind == "" {
		kind = strings.ToLower(strings.TrimSpace(cfg.Name))
	}

	switch kind {
	case KindBinance:
		name := cfg.Name
		if name == "" {
			name = KindBinance
		}
		return ExchangeSpec{Name: name, Kind: KindBinance, Disabled: cfg.Disabled}, nil

	case KindSynthetic:
		if cfg.Name == "" {
			return ExchangeSpec{}, fmt.Errorf("synthetic exchange needs a name")
		}
		spec := ExchangeSpec{Name: cfg.Name, Kind: KindSynthetic, Disabled: cfg.Disabled}
		spec.Synthetic = connector.SyntheticConfig{ID: cfg.Name}
		if cfg.Synthetic != nil {
			spec.Synthetic = connector.SyntheticConfig{
				ID:        cfg.Name,
				Pairs:     cfg.Synthetic.Pairs,
				BasePrice: cfg.Synthetic.BasePrice,
				Volume:    cfg.Synthetic.Volume,
				Spread:    cfg.Synthetic.Spread,
				Interval:  time.Duration(cfg.Synthetic.Interval) * time.Millisecond,
			}
		}
		return spec, nil

	default:
		return ExchangeSpec{}, fmt.Errorf("unknown exchange kind: %s", cfg.Kind)
	}
}

func upperAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(v)
	}
	return out
}
