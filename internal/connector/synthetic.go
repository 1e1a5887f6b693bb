package connector

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// SyntheticConfig controls the generated feed.
type SyntheticConfig struct {
	ID        string
	Pairs     []string
	BasePrice float64
	Volume    float64
	Spread    float64
	Interval  time.Duration
}

func (c SyntheticConfig) withDefaults() SyntheticConfig {
	if c.ID == "" {
		c.ID = "synthetic"
	}
	if c.BasePrice <= 0 {
		c.BasePrice = 100
	}
	if c.Volume <= 0 {
		c.Volume = 1
	}
	if c.Spread < 0 {
		c.Spread = 0
	}
	if c.Interval <= 0 {
		c.Interval = 250 * time.Millisecond
	}
	return c
}

// Synthetic produces a deterministic trade feed without touching the
// network. It drives cmd/replay and the aggregator tests.
type Synthetic struct {
	ctx    context.Context
	events chan<- Event
	cfg    SyntheticConfig

	mu     sync.Mutex
	pair   string
	cancel context.CancelFunc
	index  int64

	price atomic.Uint64 // float64 bits
}

// NewSynthetic creates a synthetic connector delivering events on the
// given channel.
func NewSynthetic(ctx context.Context, events chan<- Event, cfg SyntheticConfig) *Synthetic {
	cfg = cfg.withDefaults()
	s := &Synthetic{
		ctx:    ctx,
		events: events,
		cfg:    cfg,
	}
	s.price.Store(math.Float64bits(cfg.BasePrice))
	return s
}

func (s *Synthetic) ID() string {
	return s.cfg.ID
}

func (s *Synthetic) Price() float64 {
	return math.Float64frombits(s.price.Load())
}

// ValidatePair matches against the configured pair list; an empty list
// accepts every non-empty pair.
func (s *Synthetic) ValidatePair(ctx context.Context, pair string) error {
	pair = strings.ToUpper(pair)
	if pair == "" {
		return exception.ErrNoPair
	}

	if len(s.cfg.Pairs) > 0 {
		found := false
		for _, candidate := range s.cfg.Pairs {
			if strings.EqualFold(candidate, pair) {
				found = true
				break
			}
		}
		if !found {
			return exception.ErrPairNotMatched
		}
	}

	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()

	s.events <- Event{Exchange: s.cfg.ID, Kind: EventMatch, Pair: pair}
	return nil
}

// Connect starts the generator goroutine.
func (s *Synthetic) Connect() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Synthetic) run(ctx context.Context) {
	s.events <- Event{Exchange: s.cfg.ID, Kind: EventOpen}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.events <- Event{Exchange: s.cfg.ID, Kind: EventClose}
			return
		case now := <-ticker.C:
			s.events <- Event{Exchange: s.cfg.ID, Kind: EventLiveTrades, Trades: []model.Trade{s.next(now)}}
		}
	}
}

// next walks the price up and down around the base, alternating sides.
func (s *Synthetic) next(now time.Time) model.Trade {
	s.mu.Lock()
	s.index++
	index := s.index
	s.mu.Unlock()

	offset := float64(index%8) * s.cfg.Spread
	price := s.cfg.BasePrice + offset
	side := enum.SideUp
	if index%2 == 0 {
		side = enum.SideDown
		price = s.cfg.BasePrice - offset
	}
	s.price.Store(math.Float64bits(price))

	return model.Trade{
		Exchange:  s.cfg.ID,
		Timestamp: now.UnixMilli(),
		Price:     price,
		Volume:    s.cfg.Volume,
		Side:      side,
	}
}

// Disconnect stops the generator; the goroutine emits the close event.
func (s *Synthetic) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Reconnect restarts the generator for the given pair.
func (s *Synthetic) Reconnect(pair string) {
	s.Disconnect()
	if pair != "" {
		s.mu.Lock()
		s.pair = strings.ToUpper(pair)
		s.mu.Unlock()
	}
	s.Connect()
}
