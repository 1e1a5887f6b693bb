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

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/aggregator"
	"main/internal/bus"
	"main/internal/connector"
	"main/internal/history"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Printf("aggregator: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty disables profiling)")
	statsInterval := flag.Duration("stats-interval", 15*time.Second, "Metrics print interval")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trade-aggregator",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	buffer := loaded.Aggregator.EventBuffer
	if buffer <= 0 {
		buffer = 1024
	}
	queue := bus.NewQueue(buffer)
	st := store.New()
	metrics := obs.NewMetrics()
	backfill := history.New(loaded.History)
	agg := aggregator.New(loaded.Aggregator, queue, st, backfill, metrics)

	for _, spec := range loaded.Exchanges {
		var conn connector.Connector
		switch spec.Kind {
		case ops.KindBinance:
			conn = connector.NewBinance(ctx, agg.Events())
		case ops.KindSynthetic:
			conn = connector.NewSynthetic(ctx, agg.Events(), spec.Synthetic)
		default:
			return fmt.Errorf("unknown exchange kind: %s", spec.Kind)
		}
		if err := agg.Register(conn); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		queue.Run(ctx, newEventHandler(ctx, agg, loaded))
	}()
	go func() {
		defer wg.Done()
		agg.Run(ctx)
	}()

	if err := agg.SetPair(ctx, loaded.Aggregator.Settings.Pair); err != nil {
		logs.Errorf("set pair, err: %+v", err)
	}

	ticker := time.NewTicker(*statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			queue.Close()
			wg.Wait()
			return nil
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("ingested=%d published=%d pruned=%d drops=%d fetches=%d fetchedBytes=%d",
				snap.TradesIngested, snap.TradesPublished, snap.TradesPruned,
				snap.QueueDrops, snap.Fetches, snap.FetchedBytes)
		}
	}
}

// newEventHandler logs bus traffic and keeps the active exchange set in
// sync with connection state. It also kicks the first backfill once a
// pair is confirmed.
func newEventHandler(ctx context.Context, agg *aggregator.Aggregator, loaded ops.Loaded) func(bus.Event) {
	connected := map[string]bool{}

	syncActives := func() {
		actives := make([]string, 0, len(connected))
		for id, up := range connected {
			if up {
				actives = append(actives, id)
			}
		}
		if err := agg.SetActives(ctx, actives); err != nil {
			logs.Errorf("sync actives, err: %+v", err)
		}
	}

	return func(e bus.Event) {
		switch e.Kind {
		case bus.KindConnected:
			connected[e.Exchange] = true
			syncActives()

		case bus.KindDisconnected:
			connected[e.Exchange] = false
			syncActives()

		case bus.KindPairing:
			logs.Infof("pairing confirmed: %s (history: %t)", e.Pair, e.CanFetchHistory)
			if e.CanFetchHistory && loaded.Aggregator.Settings.ChartRange > 0 {
				go func() {
					if err := agg.FetchRange(ctx, loaded.Aggregator.Settings.ChartRange, true); err != nil {
						logs.Errorf("fetch range, err: %+v", err)
					}
				}()
			}

		case bus.KindAlert:
			switch e.Alert.Type {
			case bus.AlertError:
				logs.Warnf("[%s] %s: %s", e.Alert.ID, e.Alert.Title, e.Alert.Message)
			default:
				logs.Infof("[%s] %s: %s", e.Alert.ID, e.Alert.Title, e.Alert.Message)
			}

		case bus.KindTradesQueued:
			if len(e.Trades) > 0 {
				logs.Infof("flushed %d trade(s), up %.4f, down %.4f", len(e.Trades), e.UpVolume, e.DownVolume)
			}

		case bus.KindHistorical:
			logs.Infof("merged %d historical trade(s) covering %s -> %s",
				len(e.Trades), time.UnixMilli(e.From).UTC(), time.UnixMilli(e.To).UTC())

		case bus.KindLoadingProgress:
			if e.Progress.Total > 0 {
				logs.Infof("history download %.0f%%", e.Progress.Progress*100)
			}

		case bus.KindClean:
			logs.Infof("retention cut at %s", time.UnixMilli(e.MinTimestamp).UTC())
		}
	}
}
