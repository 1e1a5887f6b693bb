package store

import (
	"github.com/yanun0323/logs"

	"main/internal/model"
)

// Store holds the retained trade window, ordered ascending by timestamp.
// It is owned by the aggregator loop and must not be shared; consumers
// only ever see copies published on the bus.
type Store struct {
	trades      []model.Trade
	firstPrices map[string]float64
}

// New allocates an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) Len() int {
	return len(s.trades)
}

// First returns the earliest retained trade.
func (s *Store) First() (model.Trade, bool) {
	if len(s.trades) == 0 {
		return model.Trade{}, false
	}
	return s.trades[0], true
}

// Last returns the most recent retained trade.
func (s *Store) Last() (model.Trade, bool) {
	if len(s.trades) == 0 {
		return model.Trade{}, false
	}
	return s.trades[len(s.trades)-1], true
}

// Span returns the covered time range in milliseconds.
func (s *Store) Span() int64 {
	if len(s.trades) < 2 {
		return 0
	}
	return s.trades[len(s.trades)-1].Timestamp - s.trades[0].Timestamp
}

// Trades returns a copy of the retained window.
func (s *Store) Trades() []model.Trade {
	out := make([]model.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// Clear drops every retained trade. The cached first prices survive so
// they remain answerable while a new window builds up.
func (s *Store) Clear() {
	s.trades = s.trades[:0]
}

// Append adds live trades at the end of the window in the given order.
func (s *Store) Append(trades []model.Trade) {
	s.trades = append(s.trades, trades...)
}

// Merge folds a backfill batch into the window without touching existing
// elements. An empty store adopts the batch as-is. Otherwise only the
// edges grow: records at or before the first retained timestamp are
// prepended, records at or after the last are appended, and records
// strictly inside the current range are dropped.
func (s *Store) Merge(batch []model.Trade) (prepended, appended int) {
	if len(batch) == 0 {
		return 0, 0
	}

	if len(s.trades) == 0 {
		logs.Infof("store adopted %d historical trades", len(batch))
		s.trades = append(s.trades, batch...)
		return len(batch), 0
	}

	first := s.trades[0].Timestamp
	last := s.trades[len(s.trades)-1].Timestamp

	var head, tail []model.Trade
	for _, trade := range batch {
		switch {
		case trade.Timestamp <= first:
			head = append(head, trade)
		case trade.Timestamp >= last:
			tail = append(tail, trade)
		}
	}

	if len(head) > 0 {
		logs.Infof("store prepend %d historical trades", len(head))
		s.trades = append(head, s.trades...)
	}
	if len(tail) > 0 {
		logs.Infof("store append %d historical trades", len(tail))
		s.trades = append(s.trades, tail...)
	}

	return len(head), len(tail)
}

// PruneBefore removes the leading trades with timestamp at or below min
// and returns how many were cut. The window is sorted, so the first
// trade past the bound marks the cut point.
func (s *Store) PruneBefore(min int64) int {
	i := 0
	for ; i < len(s.trades); i++ {
		if s.trades[i].Timestamp > min {
			break
		}
	}
	if i == 0 {
		return 0
	}
	s.trades = append(s.trades[:0], s.trades[i:]...)
	return i
}

// FirstPrices walks the window forward collecting the first observed
// price per known exchange, stopping once every known exchange has one.
// Exchanges never seen in the window are omitted. While the window is
// empty the previous complete answer is returned.
func (s *Store) FirstPrices(known []string) map[string]float64 {
	if len(s.trades) == 0 {
		return s.firstPrices
	}

	want := make(map[string]bool, len(known))
	for _, id := range known {
		want[id] = true
	}
	if len(want) == 0 {
		return map[string]float64{}
	}

	prices := make(map[string]float64, len(want))
	for _, trade := range s.trades {
		if !want[trade.Exchange] {
			continue
		}
		if _, seen := prices[trade.Exchange]; seen {
			continue
		}
		prices[trade.Exchange] = trade.Price
		if len(prices) == len(want) {
			break
		}
	}

	s.firstPrices = prices
	return prices
}
