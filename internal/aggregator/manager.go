package aggregator

import (
	"fmt"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/connector"
	"main/pkg/exception"
)

type validation struct {
	pair    string
	valid   []string
	invalid []string
}

func (a *Aggregator) handleSetPair(pair string) error {
	a.handleDisconnectAll()

	pair = normalizePair(pair)
	if pair == "" && a.settings.Pair == "" {
		a.publishAlert(bus.Alert{
			ID:      "server_status",
			Type:    bus.AlertError,
			Title:   "No pair",
			Message: "Type the name of the pair you want to watch in the pair section of the settings panel",
		})
		return exception.ErrNoPair
	}
	if pair != "" {
		a.settings.Pair = pair
	}

	a.queue = nil
	a.store.Clear()
	for _, state := range a.states {
		state.Valid = false
		state.MatchedPair = ""
		state.LastTimestamp = 0
	}
	a.backfill.Reset()

	target := a.settings.Pair
	logs.Infof("connecting to %s", target)

	a.publishAlert(bus.Alert{
		ID:      "server_status",
		Type:    bus.AlertInfo,
		Title:   "Loading",
		Message: "Fetching products...",
	})

	a.validatePairAsync(target)
	return nil
}

// validatePairAsync fans validation out to every connector and fans the
// partition back in as a single message. One connector failing never
// cancels its siblings.
func (a *Aggregator) validatePairAsync(pair string) {
	conns := make([]connector.Connector, 0, len(a.order))
	for _, id := range a.order {
		conns = append(conns, a.connectors[id])
	}
	ctx := a.runCtx

	go func() {
		var (
			mu      sync.Mutex
			valid   []string
			invalid []string
			wg      sync.WaitGroup
		)
		for _, conn := range conns {
			wg.Add(1)
			go func(conn connector.Connector) {
				defer wg.Done()
				err := conn.ValidatePair(ctx, pair)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					invalid = append(invalid, conn.ID())
					return
				}
				valid = append(valid, conn.ID())
			}(conn)
		}
		wg.Wait()

		select {
		case a.validations <- validation{pair: pair, valid: valid, invalid: invalid}:
		case <-ctx.Done():
		}
	}()
}

func (a *Aggregator) handleValidated(v validation) {
	if v.pair != a.settings.Pair {
		logs.Infof("discarding validation result for stale pair %s", v.pair)
		return
	}

	for _, id := range v.valid {
		if state := a.states[id]; state != nil {
			state.Valid = true
		}
	}
	for _, id := range v.invalid {
		if state := a.states[id]; state != nil {
			state.Valid = false
		}
	}

	if len(v.valid) == 0 {
		a.publishAlert(bus.Alert{
			ID:      "server_status",
			Type:    bus.AlertError,
			Title:   "No match",
			Message: fmt.Sprintf("%q did not matched with any active pairs", v.pair),
		})
		return
	}

	a.publishAlert(bus.Alert{
		ID:      "server_status",
		Type:    bus.AlertInfo,
		Title:   "Loading",
		Message: fmt.Sprintf("%d exchange(s) matched %s", len(v.valid), v.pair),
	})

	if a.confirmedPair != v.pair {
		a.publish(bus.Event{
			Kind:            bus.KindPairing,
			Pair:            v.pair,
			CanFetchHistory: a.backfill.CanFetch(v.pair),
		})
		a.confirmedPair = v.pair
	}

	logs.Infof("%d exchange(s) successfully matched with %s", len(v.valid), v.pair)

	connectable := make([]string, 0, len(v.valid))
	for _, id := range v.valid {
		if !a.settings.Disabled[id] {
			connectable = append(connectable, id)
		}
	}

	a.publishAlert(bus.Alert{
		ID:      "server_status",
		Type:    bus.AlertInfo,
		Title:   "Loading",
		Message: fmt.Sprintf("Subscribing to %s on %d exchange(s)", v.pair, len(connectable)),
		Delay:   5 * time.Second,
	})

	// a multi-connect is not sequenced: every connect fires, and each
	// connector's failure stays its own
	for _, id := range connectable {
		state := a.states[id]
		state.ShouldBeConnected = true
		a.connectors[id].Connect()
	}
}

func (a *Aggregator) handleDisconnectAll() {
	for _, id := range a.order {
		state := a.states[id]
		state.ShouldBeConnected = false
		a.connectors[id].Disconnect()
	}
}

func (a *Aggregator) handleConnectorEvent(e connector.Event) {
	state := a.states[e.Exchange]
	if state == nil {
		return
	}

	switch e.Kind {
	case connector.EventLiveTrades:
		a.handleLiveTrades(state, e.Trades)

	case connector.EventOpen:
		logs.Infof("%s opened", e.Exchange)
		state.Connected = true
		a.publish(bus.Event{Kind: bus.KindConnected, Exchange: e.Exchange})

	case connector.EventClose:
		logs.Infof("%s closed", e.Exchange)
		state.Connected = false
		a.publish(bus.Event{Kind: bus.KindDisconnected, Exchange: e.Exchange})
		if state.ShouldBeConnected && !a.settings.Disabled[e.Exchange] {
			a.connectors[e.Exchange].Reconnect(a.settings.Pair)
		}

	case connector.EventMatch:
		logs.Infof("%s matched %s", e.Exchange, e.Pair)
		state.MatchedPair = e.Pair

	case connector.EventError:
		logs.Errorf("%s reported an error: %+v", e.Exchange, e.Err)
	}
}
