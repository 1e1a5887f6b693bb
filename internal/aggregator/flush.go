package aggregator

import (
	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
)

func (a *Aggregator) handleLiveTrades(state *ExchangeState, trades []model.Trade) {
	if len(trades) == 0 {
		return
	}

	state.LastTimestamp = trades[0].Timestamp

	model.SortByTimestamp(trades)
	state.LastPrice = trades[len(trades)-1].Price

	a.queue = append(a.queue, trades...)
	a.metrics.AddIngested(len(trades))

	a.publishBatch(bus.KindTradesInstant, trades)
}

// handleFlush drains the pending queue on the fixed cadence: retained
// first when the chart is visible, then published as one batch.
func (a *Aggregator) handleFlush() {
	if len(a.queue) == 0 {
		return
	}

	drained := a.queue
	a.queue = nil

	if a.settings.ChartVisible {
		a.store.Append(drained)
	}

	a.publishBatch(bus.KindTradesQueued, drained)
}

// publishBatch filters to the active exchange set, sums volume per side
// over the filtered trades and publishes batch plus aggregates.
func (a *Aggregator) publishBatch(kind bus.Kind, trades []model.Trade) {
	var upVolume, downVolume float64
	out := make([]model.Trade, 0, len(trades))
	for _, trade := range trades {
		if !a.isActive(trade.Exchange) {
			continue
		}
		if trade.Side.IsUp() {
			upVolume += trade.Volume
		} else {
			downVolume += trade.Volume
		}
		out = append(out, trade)
	}

	a.metrics.AddPublished(len(out))
	a.publish(bus.Event{
		Kind:       kind,
		Trades:     out,
		UpVolume:   upVolume,
		DownVolume: downVolume,
	})
}

// Injection is a manually specified trade for testing or demo purposes.
// Zero fields fall back: first registered exchange, volume 1, side up,
// and the exchange's last known price.
type Injection struct {
	Exchange string
	Price    float64
	Volume   float64
	Side     enum.Side
	Type     string
}

func (a *Aggregator) handleInject(inj Injection) {
	if inj.Exchange == "" {
		if len(a.order) == 0 {
			return
		}
		inj.Exchange = a.order[0]
	}
	if inj.Volume <= 0 {
		inj.Volume = 1
	}
	if !inj.Side.IsAvailable() {
		inj.Side = enum.SideUp
	}
	if inj.Price <= 0 {
		if state := a.states[inj.Exchange]; state != nil && state.LastPrice > 0 {
			inj.Price = state.LastPrice
		} else if conn := a.connectors[inj.Exchange]; conn != nil {
			inj.Price = conn.Price()
		}
	}

	trade := model.Trade{
		Exchange:  inj.Exchange,
		Timestamp: a.now().UnixMilli(),
		Price:     inj.Price,
		Volume:    inj.Volume,
		Side:      inj.Side,
		Type:      inj.Type,
	}

	a.queue = append(a.queue, trade)
	a.metrics.AddIngested(1)
	a.publishBatch(bus.KindTradesInstant, []model.Trade{trade})
}
