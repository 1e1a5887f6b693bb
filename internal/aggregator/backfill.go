package aggregator

import (
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/history"
	"main/internal/model"
)

func (a *Aggregator) handleFetchRange(lookback int64, forceReset bool) {
	if forceReset {
		a.backfill.ClearExhaustion()
	}
	if a.loading {
		return
	}

	req := history.Request{
		Pair:      a.settings.Pair,
		Actives:   a.settings.Actives,
		Timeframe: a.settings.Timeframe,
		Range:     lookback,
		Now:       a.now().UnixMilli(),
	}
	if first, ok := a.store.First(); ok {
		req.Earliest = first.Timestamp
	}

	plan, ok := a.backfill.Plan(req)
	if !ok {
		return
	}

	a.loading = true
	a.metrics.IncFetch()
	a.publish(bus.Event{Kind: bus.KindFetchStart, Span: plan.To - plan.From})

	a.backfill.Start(a.runCtx, plan, a.reportProgress, a.deliverCompletion)
}

// reportProgress runs on the fetch goroutine; the bus is the only thing
// it touches and publishing is safe from any goroutine.
func (a *Aggregator) reportProgress(loaded, total int64) {
	progress := bus.Progress{Loaded: loaded, Total: total}
	if total > 0 {
		progress.Progress = float64(loaded) / float64(total)
	}
	a.publish(bus.Event{Kind: bus.KindLoadingProgress, Progress: progress})
}

func (a *Aggregator) deliverCompletion(c history.Completion) {
	select {
	case a.completions <- c:
	case <-a.runCtx.Done():
	}
}

func (a *Aggregator) handleCompletion(c history.Completion) {
	a.backfill.Complete(c)
	a.loading = false
	a.metrics.AddFetchedBytes(c.Bytes)
	a.metrics.AddFetchedSpan(time.Duration(c.Span()) * time.Millisecond)

	// fetch-end always goes out last so consumers can clear loading
	// indicators after processing the result
	defer a.publish(bus.Event{Kind: bus.KindFetchEnd, Span: c.Span()})

	if c.Pair != a.settings.Pair {
		logs.Infof("discarding backfill for stale pair %s", c.Pair)
		return
	}

	if c.Err != nil {
		a.metrics.IncFetchError()
		a.publishAlert(bus.Alert{
			ID:      "fetch_error",
			Type:    bus.AlertError,
			Title:   "Unable to retrieve history",
			Message: c.Err.Error(),
		})
		return
	}

	if len(c.Trades) == 0 {
		return
	}

	a.store.Merge(c.Trades)
	a.publish(bus.Event{
		Kind:   bus.KindHistorical,
		Trades: c.Trades,
		From:   c.From,
		To:     c.To,
	})
}

// handlePrune cuts trades that fell out of the lookback window. It
// never runs mid-backfill.
func (a *Aggregator) handlePrune() {
	if a.loading {
		return
	}

	var required int64
	if a.settings.ChartVisible && a.settings.ChartRange > 0 {
		required = a.settings.ChartRange * 2
	}

	min := model.CeilTimestamp(a.now().UnixMilli()-required, a.settings.Timeframe)
	removed := a.store.PruneBefore(min)
	a.metrics.AddPruned(removed)

	logs.Infof("removed %d trade(s) older than %s", removed, time.UnixMilli(min).UTC())

	a.publish(bus.Event{Kind: bus.KindClean, MinTimestamp: min})
}
