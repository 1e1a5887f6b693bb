package bus

import (
	"time"

	"main/internal/model"
)

type Kind uint8

const (
	_kind_beg Kind = iota
	KindConnected
	KindDisconnected
	KindPairing
	KindAlert
	KindTradesInstant
	KindTradesQueued
	KindHistorical
	KindFetchStart
	KindFetchEnd
	KindLoadingProgress
	KindClean
	_kind_end
)

func (k Kind) IsAvailable() bool {
	return k > _kind_beg && k < _kind_end
}

type AlertType uint8

const (
	_alert_type_beg AlertType = iota
	AlertInfo
	AlertError
	_alert_type_end
)

// Alert is a user-facing notification. ID is stable per concern so a
// consumer can replace a previous alert with the same ID.
type Alert struct {
	ID      string
	Type    AlertType
	Title   string
	Message string
	Delay   time.Duration
}

// Progress reports bytes downloaded during a backfill fetch.
type Progress struct {
	Loaded   int64
	Total    int64
	Progress float64
}

// Event is the unit passed through the in-memory bus. Kind selects which
// of the payload fields are meaningful. Trade slices are owned by the bus
// after publish; publishers must not retain or mutate them.
type Event struct {
	Kind Kind

	Exchange string // Connected, Disconnected

	Pair            string // Pairing
	CanFetchHistory bool   // Pairing

	Alert Alert // Alert

	Trades     []model.Trade // TradesInstant, TradesQueued, Historical
	UpVolume   float64       // TradesInstant, TradesQueued
	DownVolume float64       // TradesInstant, TradesQueued
	From       int64         // Historical
	To         int64         // Historical

	Span int64 // FetchStart, FetchEnd (ms of history covered)

	Progress Progress // LoadingProgress

	MinTimestamp int64 // Clean
}
