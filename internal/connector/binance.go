package connector

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	_binanceID              = "binance"
	_binanceBaseWsUrl       = "wss://data-stream.binance.vision/ws"
	_binanceExchangeInfoUrl = "https://api.binance.com/api/v3/exchangeInfo?symbol=%s"
)

// Binance streams live trades over the public binance websocket.
type Binance struct {
	ctx    context.Context
	events chan<- Event
	client *http.Client

	mu   sync.Mutex
	pair string
	wss  *ws.WebSocket

	price atomic.Uint64 // float64 bits
}

// NewBinance creates a binance connector delivering events on the given
// channel.
func NewBinance(ctx context.Context, events chan<- Event) *Binance {
	return &Binance{
		ctx:    ctx,
		events: events,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (repo *Binance) ID() string {
	return _binanceID
}

func (repo *Binance) Price() float64 {
	return math.Float64frombits(repo.price.Load())
}

// ValidatePair checks the pair against the exchange product list and
// records the matched symbol.
func (repo *Binance) ValidatePair(ctx context.Context, pair string) error {
	symbol := strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
	if symbol == "" {
		return exception.ErrNoPair
	}

	url := fmt.Sprintf(_binanceExchangeInfoUrl, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build exchange info request")
	}
	resp, err := repo.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "fetch exchange info")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return exception.ErrPairNotMatched
	}

	repo.mu.Lock()
	repo.pair = symbol
	repo.mu.Unlock()

	repo.events <- Event{Exchange: _binanceID, Kind: EventMatch, Pair: symbol}
	return nil
}

// Connect opens the websocket and subscribes the trade stream. Setup
// runs in its own goroutine; failures surface as EventError + EventClose.
func (repo *Binance) Connect() {
	repo.mu.Lock()
	pair := repo.pair
	repo.mu.Unlock()
	if pair == "" {
		repo.events <- Event{Exchange: _binanceID, Kind: EventError, Err: exception.ErrNoPair}
		return
	}

	wss := ws.New(repo.ctx, _binanceBaseWsUrl)
	repo.mu.Lock()
	if repo.wss != nil {
		repo.wss.Close()
	}
	repo.wss = wss
	repo.mu.Unlock()

	go repo.run(wss, pair)
}

func (repo *Binance) run(wss *ws.WebSocket, pair string) {
	if err := wss.Start(repo.ctx); err != nil {
		repo.events <- Event{Exchange: _binanceID, Kind: EventError, Err: errors.Wrap(err, "start wss")}
		repo.events <- Event{Exchange: _binanceID, Kind: EventClose}
		return
	}

	if err := repo.subscribeTrades(wss, pair); err != nil {
		repo.events <- Event{Exchange: _binanceID, Kind: EventError, Err: err}
		wss.Close()
		repo.events <- Event{Exchange: _binanceID, Kind: EventClose}
		return
	}

	logs.Infof("binance subscribed %s", pair)
	repo.events <- Event{Exchange: _binanceID, Kind: EventOpen}

	repo.observeTrades(wss)
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func (repo *Binance) subscribeTrades(wss *ws.WebSocket, pair string) error {
	appendIntoRegister := true
	if err := wss.SendAndWait(repo.ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@trade", strings.ToLower(pair)),
				},
				ID: 1,
			}

			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp binanceSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type binanceTrade struct {
	EventType  string          `json:"e"`
	Symbol     string          `json:"s"`
	Price      decimal.Decimal `json:"p"`
	Quantity   decimal.Decimal `json:"q"`
	TradeTime  int64           `json:"T"`
	BuyerMaker bool            `json:"m"`
}

func (repo *Binance) observeTrades(wss *ws.WebSocket) {
	ch, cancel := wss.Subscribe()
	defer cancel()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-repo.ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				repo.events <- Event{Exchange: _binanceID, Kind: EventClose}
				return
			}

			resp, ok := ws.ReadMessage[binanceTrade](m)
			if !ok || resp.EventType != "trade" {
				continue
			}

			trade, err := normalizeBinanceTrade(resp)
			if err != nil {
				logs.Errorf("normalize binance trade, err: %+v", err)
				continue
			}

			repo.price.Store(math.Float64bits(trade.Price))
			repo.events <- Event{Exchange: _binanceID, Kind: EventLiveTrades, Trades: []model.Trade{trade}}
		}
	}
}

func normalizeBinanceTrade(raw binanceTrade) (model.Trade, error) {
	price, err := strconv.ParseFloat(raw.Price.String(), 64)
	if err != nil {
		return model.Trade{}, errors.Wrap(err, "parse price")
	}
	volume, err := strconv.ParseFloat(raw.Quantity.String(), 64)
	if err != nil {
		return model.Trade{}, errors.Wrap(err, "parse quantity")
	}

	// the buyer being the maker means the aggressor sold
	side := enum.SideUp
	if raw.BuyerMaker {
		side = enum.SideDown
	}

	return model.Trade{
		Exchange:  _binanceID,
		Timestamp: raw.TradeTime,
		Price:     price,
		Volume:    volume,
		Side:      side,
	}, nil
}

// Disconnect closes the websocket. The observe goroutine emits the
// close event when its subscription channel shuts.
func (repo *Binance) Disconnect() {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.wss != nil {
		repo.wss.Close()
		repo.wss = nil
	}
}

// Reconnect tears the socket down and dials again for the given pair.
func (repo *Binance) Reconnect(pair string) {
	repo.Disconnect()

	symbol := strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
	if symbol != "" {
		repo.mu.Lock()
		repo.pair = symbol
		repo.mu.Unlock()
	}

	repo.Connect()
}
