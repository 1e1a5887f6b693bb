package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/aggregator"
	"main/internal/bus"
	"main/internal/connector"
	"main/internal/history"
	"main/internal/obs"
	"main/internal/store"
)

// replay drives the aggregation core with synthetic feeds only. Handy
// for watching flush batches and retention without touching a live
// exchange.
func main() {
	if err := run(); err != nil {
		log.Printf("replay: %v", err)
		os.Exit(1)
	}
}

func run() error {
	pair := flag.String("pair", "BTCUSDT", "Trading pair")
	feeds := flag.Int("feeds", 3, "Number of synthetic feeds")
	interval := flag.Duration("interval", 200*time.Millisecond, "Emit interval per feed")
	timeframe := flag.Duration("timeframe", 10*time.Second, "Bucket size")
	duration := flag.Duration("duration", 30*time.Second, "How long to run (0 runs until interrupted)")
	flag.Parse()

	if *feeds <= 0 {
		return fmt.Errorf("feeds must be positive, got %d", *feeds)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	queue := bus.NewQueue(256)
	st := store.New()
	metrics := obs.NewMetrics()
	agg := aggregator.New(aggregator.Config{
		Settings: aggregator.Settings{
			Pair:         *pair,
			Timeframe:    timeframe.Milliseconds(),
			ChartVisible: true,
			ChartRange:   5 * time.Minute.Milliseconds(),
		},
	}, queue, st, history.New(history.Config{}), metrics)

	for i := 0; i < *feeds; i++ {
		conn := connector.NewSynthetic(ctx, agg.Events(), connector.SyntheticConfig{
			ID:        fmt.Sprintf("feed-%d", i+1),
			BasePrice: 100 + float64(i)*25,
			Interval:  *interval,
		})
		if err := agg.Register(conn); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		queue.Run(ctx, printEvent)
	}()
	go func() {
		defer wg.Done()
		agg.Run(ctx)
	}()

	if err := agg.SetPair(ctx, *pair); err != nil {
		return err
	}

	actives := make([]string, 0, *feeds)
	for i := 0; i < *feeds; i++ {
		actives = append(actives, fmt.Sprintf("feed-%d", i+1))
	}
	if err := agg.SetActives(ctx, actives); err != nil {
		return err
	}

	<-ctx.Done()
	queue.Close()
	wg.Wait()

	snap := metrics.Snapshot()
	logs.Infof("done: ingested=%d published=%d pruned=%d stored=%d",
		snap.TradesIngested, snap.TradesPublished, snap.TradesPruned, st.Len())
	return nil
}

func printEvent(e bus.Event) {
	switch e.Kind {
	case bus.KindConnected:
		logs.Infof("%s connected", e.Exchange)
	case bus.KindDisconnected:
		logs.Infof("%s disconnected", e.Exchange)
	case bus.KindTradesQueued:
		logs.Infof("tick: %d trade(s), up %.4f, down %.4f", len(e.Trades), e.UpVolume, e.DownVolume)
	case bus.KindClean:
		logs.Infof("retention cut at %s", time.UnixMilli(e.MinTimestamp).UTC())
	case bus.KindAlert:
		logs.Infof("[%s] %s", e.Alert.ID, e.Alert.Title)
	}
}
