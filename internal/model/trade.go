package model

import (
	"sort"

	"main/internal/model/enum"
)

// Trade is a single normalized execution from one exchange.
// Timestamp is in epoch milliseconds and is the global ordering key;
// ties keep arrival order.
type Trade struct {
	Exchange  string
	Timestamp int64
	Price     float64
	Volume    float64
	Side      enum.Side
	Type      string
}

// SortByTimestamp orders trades ascending by timestamp, keeping the
// original order of equal timestamps.
func SortByTimestamp(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp < trades[j].Timestamp
	})
}

// CeilTimestamp rounds ts up to the next multiple of step.
func CeilTimestamp(ts, step int64) int64 {
	if step <= 0 {
		return ts
	}
	q := ts / step
	if ts%step != 0 {
		q++
	}
	return q * step
}
