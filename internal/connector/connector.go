package connector

import (
	"context"

	"main/internal/model"
)

type EventKind uint8

const (
	_event_beg EventKind = iota
	EventLiveTrades
	EventOpen
	EventClose
	EventMatch
	EventError
	_event_end
)

func (k EventKind) IsAvailable() bool {
	return k > _event_beg && k < _event_end
}

// Event is delivered by a connector on the shared fan-in channel given
// at construction. The aggregator loop is the single consumer.
type Event struct {
	Exchange string
	Kind     EventKind
	Trades   []model.Trade // EventLiveTrades
	Pair     string        // EventMatch
	Err      error         // EventError
}

// Connector adapts one external trade source to a uniform contract.
//
// ValidatePair may be called concurrently with the lifecycle methods;
// Connect, Disconnect and Reconnect are only ever called by the owning
// loop. Connect and Reconnect must not block: connection setup failures
// surface as EventError followed by EventClose.
type Connector interface {
	ID() string
	Price() float64
	ValidatePair(ctx context.Context, pair string) error
	Connect()
	Disconnect()
	Reconnect(pair string)
}
