package history

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
)

const _defaultMinSpan = 60_000 // ms

// Config describes the remote history endpoint. URLTemplate carries the
// {from} {to} {timeframe} {pair} {exchanges} placeholders. An empty
// template disables backfill entirely.
type Config struct {
	URLTemplate    string
	SupportedPairs []string
	MinSpan        int64
	Timeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinSpan <= 0 {
		c.MinSpan = _defaultMinSpan
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Request carries the loop-side state a fetch decision needs.
type Request struct {
	Pair      string
	Actives   []string
	Timeframe int64
	Range     int64
	Now       int64
	Earliest  int64 // earliest retained timestamp, 0 when the store is empty
}

// Plan is a fetch the backfill decided to issue.
type Plan struct {
	Pair string
	URL  string
	From int64
	To   int64
}

// Completion is delivered back to the owning loop when a fetch ends.
type Completion struct {
	Pair   string
	Trades []model.Trade
	From   int64
	To     int64
	Bytes  int64
	Err    error
}

// Span returns the history range the fetch covered in milliseconds.
func (c Completion) Span() int64 {
	return c.To - c.From
}

// Backfill fetches bounded ranges of past trades. All exported methods
// except the fetch goroutine it spawns must be called from the owning
// loop; the goroutine only touches the HTTP client and its callbacks.
type Backfill struct {
	cfg    Config
	client *http.Client

	lastURL     string
	exhausted   bool
	inFlight    bool
	fetchedOnce bool
}

// New creates a backfill against the configured endpoint.
func New(cfg Config) *Backfill {
	cfg = cfg.withDefaults()
	return &Backfill{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// CanFetch reports whether the endpoint is configured and supports the
// pair. An empty allowlist supports every pair.
func (b *Backfill) CanFetch(pair string) bool {
	if b == nil || b.cfg.URLTemplate == "" || pair == "" {
		return false
	}
	if len(b.cfg.SupportedPairs) == 0 {
		return true
	}
	for _, candidate := range b.cfg.SupportedPairs {
		if strings.EqualFold(candidate, pair) {
			return true
		}
	}
	return false
}

// Exhausted reports whether a prior fetch signaled no more history.
func (b *Backfill) Exhausted() bool {
	return b != nil && b.exhausted
}

// InFlight reports whether a fetch is currently running.
func (b *Backfill) InFlight() bool {
	return b != nil && b.inFlight
}

// Reset clears all per-pair state. Called on pair change.
func (b *Backfill) Reset() {
	if b == nil {
		return
	}
	b.exhausted = false
	b.lastURL = ""
	b.fetchedOnce = false
}

// ClearExhaustion re-enables fetching without forgetting the last URL.
func (b *Backfill) ClearExhaustion() {
	if b == nil {
		return
	}
	b.exhausted = false
}

// BuildURL resolves the endpoint template for a concrete range.
func (b *Backfill) BuildURL(req Request, from, to int64) string {
	url := b.cfg.URLTemplate
	url = strings.Replace(url, "{from}", formatInt(from), 1)
	url = strings.Replace(url, "{to}", formatInt(to), 1)
	url = strings.Replace(url, "{timeframe}", formatInt(req.Timeframe), 1)
	url = strings.Replace(url, "{pair}", strings.ToLower(req.Pair), 1)
	url = strings.Replace(url, "{exchanges}", strings.Join(req.Actives, "+"), 1)
	return url
}

// Plan decides whether a fetch is needed. It returns false when a fetch
// is running, the endpoint cannot serve the pair, history is exhausted,
// the span is below the minimum (unless nothing was fetched for this
// pair yet), or the resolved URL equals the previously issued one.
func (b *Backfill) Plan(req Request) (Plan, bool) {
	if b == nil || b.inFlight || b.exhausted || !b.CanFetch(req.Pair) {
		return Plan{}, false
	}

	earliest := req.Earliest
	if earliest == 0 {
		earliest = req.Now
	}

	from := model.CeilTimestamp(req.Now-req.Range, req.Timeframe)
	to := model.CeilTimestamp(earliest, req.Timeframe)

	if from >= earliest {
		return Plan{}, false
	}
	if to-from < b.cfg.MinSpan && b.fetchedOnce {
		return Plan{}, false
	}

	url := b.BuildURL(req, from, to)
	if url == b.lastURL {
		return Plan{}, false
	}

	return Plan{Pair: req.Pair, URL: url, From: from, To: to}, true
}

// Start launches the fetch goroutine for a plan. progress is invoked
// from that goroutine as bytes arrive; deliver is invoked exactly once
// with the completion, success or not.
func (b *Backfill) Start(ctx context.Context, plan Plan, progress func(loaded, total int64), deliver func(Completion)) {
	b.inFlight = true
	b.fetchedOnce = true
	b.lastURL = plan.URL

	logs.Infof("backfill fetch %s -> %s", time.UnixMilli(plan.From).UTC(), time.UnixMilli(plan.To).UTC())

	go func() {
		trades, bytes, err := b.fetch(ctx, plan.URL, progress)
		deliver(Completion{
			Pair:   plan.Pair,
			Trades: trades,
			From:   plan.From,
			To:     plan.To,
			Bytes:  bytes,
			Err:    err,
		})
	}()
}

// Complete folds a finished fetch back into the loop-side state. Any
// error marks history as exhausted for the current pair.
func (b *Backfill) Complete(c Completion) {
	if b == nil {
		return
	}
	b.inFlight = false
	if c.Err != nil {
		b.exhausted = true
	}
}

func (b *Backfill) fetch(ctx context.Context, url string, progress func(loaded, total int64)) ([]model.Trade, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build history request")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "fetch history")
	}
	defer resp.Body.Close()

	reader := &progressReader{
		r:      resp.Body,
		total:  resp.ContentLength,
		report: progress,
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, reader.loaded, errors.Wrap(err, "read history body")
	}

	if resp.StatusCode != http.StatusOK {
		if msg := decodeRemoteError(body); msg != "" {
			return nil, reader.loaded, errors.New(msg)
		}
		return nil, reader.loaded, errors.Errorf("history endpoint returned %s", resp.Status)
	}

	trades, err := decodeResults(body)
	if err != nil {
		return nil, reader.loaded, err
	}
	return trades, reader.loaded, nil
}

type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	report func(loaded, total int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.loaded += int64(n)
		if p.report != nil {
			p.report(p.loaded, p.total)
		}
	}
	return n, err
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
