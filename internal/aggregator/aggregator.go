package aggregator

import (
	"context"
	"strings"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/connector"
	"main/internal/history"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/store"
	"main/pkg/exception"
)

// Settings is the externally owned configuration snapshot the core
// reads. Mutations only ever happen on the loop, through commands.
type Settings struct {
	Pair         string
	Timeframe    int64 // ms bucket size
	ChartVisible bool
	ChartRange   int64 // ms lookback
	Actives      []string
	Disabled     map[string]bool
}

// ExchangeState is the manager's view of one connector.
type ExchangeState struct {
	ID                string
	Valid             bool
	ShouldBeConnected bool
	Connected         bool
	MatchedPair       string
	LastTimestamp     int64
	LastPrice         float64
}

// Config tunes the core cadence.
type Config struct {
	FlushInterval time.Duration
	PruneInterval time.Duration
	EventBuffer   int
	Settings      Settings
}

func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = time.Minute
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 1024
	}
	if c.Settings.Timeframe <= 0 {
		c.Settings.Timeframe = 10_000
	}
	return c
}

// Aggregator is the single-loop core: it owns the pending queue, the
// retention store and every connector's lifecycle. Connector goroutines
// and fetch goroutines only ever send messages; the loop mutates.
type Aggregator struct {
	cfg      Config
	bus      *bus.Queue
	store    *store.Store
	backfill *history.Backfill
	metrics  *obs.Metrics

	connectors map[string]connector.Connector
	order      []string
	states     map[string]*ExchangeState

	events      chan connector.Event
	commands    chan func()
	validations chan validation
	completions chan history.Completion

	queue         []model.Trade
	settings      Settings
	confirmedPair string
	loading       bool

	runCtx context.Context
	now    func() time.Time
}

// New builds the core around its owned store and event bus.
func New(cfg Config, queue *bus.Queue, st *store.Store, backfill *history.Backfill, metrics *obs.Metrics) *Aggregator {
	cfg = cfg.withDefaults()
	settings := cfg.Settings
	if settings.Disabled == nil {
		settings.Disabled = map[string]bool{}
	}
	return &Aggregator{
		cfg:         cfg,
		bus:         queue,
		store:       st,
		backfill:    backfill,
		metrics:     metrics,
		connectors:  make(map[string]connector.Connector),
		states:      make(map[string]*ExchangeState),
		events:      make(chan connector.Event, cfg.EventBuffer),
		commands:    make(chan func(), 64),
		validations: make(chan validation, 1),
		completions: make(chan history.Completion, 1),
		settings:    settings,
		runCtx:      context.Background(),
		now:         time.Now,
	}
}

// Events returns the fan-in channel connectors deliver on.
func (a *Aggregator) Events() chan<- connector.Event {
	return a.events
}

// Register adds a connector to the managed set. Call before Run.
func (a *Aggregator) Register(conn connector.Connector) error {
	if conn == nil {
		return exception.ErrNilConnector
	}
	id := conn.ID()
	if _, exists := a.connectors[id]; exists {
		return exception.ErrInvalidArgument
	}
	a.connectors[id] = conn
	a.order = append(a.order, id)
	a.states[id] = &ExchangeState{ID: id}
	return nil
}

// Run drives the loop until the context is done.
func (a *Aggregator) Run(ctx context.Context) {
	a.runCtx = ctx
	logs.Infof("aggregator running with %d exchange(s)", len(a.connectors))

	flush := time.NewTicker(a.cfg.FlushInterval)
	defer flush.Stop()
	prune := time.NewTicker(a.cfg.PruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case fn := <-a.commands:
			fn()
		case e := <-a.events:
			a.handleConnectorEvent(e)
		case v := <-a.validations:
			a.handleValidated(v)
		case c := <-a.completions:
			a.handleCompletion(c)
		case <-flush.C:
			a.handleFlush()
		case <-prune.C:
			a.handlePrune()
		}
	}
}

// do enqueues a command and waits until the loop executed it.
func (a *Aggregator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		fn()
		close(done)
	}
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetPair switches every connector to a new pair. An empty pair with no
// previously confirmed pair emits an alert and returns ErrNoPair.
func (a *Aggregator) SetPair(ctx context.Context, pair string) error {
	var result error
	if err := a.do(ctx, func() { result = a.handleSetPair(pair) }); err != nil {
		return err
	}
	return result
}

// DisconnectAll disconnects every owned connector; idempotent.
func (a *Aggregator) DisconnectAll(ctx context.Context) error {
	return a.do(ctx, a.handleDisconnectAll)
}

// FetchRange requests a historical backfill covering the given lookback.
func (a *Aggregator) FetchRange(ctx context.Context, lookback int64, forceReset bool) error {
	return a.do(ctx, func() { a.handleFetchRange(lookback, forceReset) })
}

// InjectTrade feeds a synthetic trade through the live path.
func (a *Aggregator) InjectTrade(ctx context.Context, inj Injection) error {
	return a.do(ctx, func() { a.handleInject(inj) })
}

// Prune runs a retention sweep outside the periodic cadence.
func (a *Aggregator) Prune(ctx context.Context) error {
	return a.do(ctx, a.handlePrune)
}

// SetActives replaces the active exchange id set.
func (a *Aggregator) SetActives(ctx context.Context, actives []string) error {
	ids := append([]string(nil), actives...)
	return a.do(ctx, func() { a.settings.Actives = ids })
}

// SetExchangeDisabled flips the administrative disabled flag.
func (a *Aggregator) SetExchangeDisabled(ctx context.Context, id string, disabled bool) error {
	return a.do(ctx, func() { a.settings.Disabled[id] = disabled })
}

// SetChart updates chart visibility and lookback range.
func (a *Aggregator) SetChart(ctx context.Context, visible bool, lookback int64) error {
	return a.do(ctx, func() {
		a.settings.ChartVisible = visible
		a.settings.ChartRange = lookback
	})
}

// FirstPrices returns the first retained price per known exchange.
func (a *Aggregator) FirstPrices(ctx context.Context) (map[string]float64, error) {
	var prices map[string]float64
	if err := a.do(ctx, func() { prices = a.store.FirstPrices(a.order) }); err != nil {
		return nil, err
	}
	return prices, nil
}

// ExchangeStates returns a snapshot of the manager's view.
func (a *Aggregator) ExchangeStates(ctx context.Context) ([]ExchangeState, error) {
	var out []ExchangeState
	if err := a.do(ctx, func() {
		out = make([]ExchangeState, 0, len(a.order))
		for _, id := range a.order {
			out = append(out, *a.states[id])
		}
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Aggregator) publish(e bus.Event) {
	switch err := a.bus.TryPublish(e); err {
	case nil:
	case bus.ErrQueueFull:
		a.metrics.IncQueueDrop()
		logs.Warnf("event bus full, dropped %v", e.Kind)
	case bus.ErrQueueClosed:
		a.metrics.IncQueueClosed()
	default:
		logs.Errorf("publish event, err: %+v", err)
	}
}

func (a *Aggregator) publishAlert(alert bus.Alert) {
	a.publish(bus.Event{Kind: bus.KindAlert, Alert: alert})
}

func (a *Aggregator) isActive(id string) bool {
	for _, active := range a.settings.Actives {
		if active == id {
			return true
		}
	}
	return false
}

func normalizePair(pair string) string {
	return strings.ToUpper(strings.TrimSpace(pair))
}
