// streamtest connects to the live price feed and prints decoded ticks
// to the console. Useful for verifying connectivity and channel names
// without running the full server.
//
// Usage: go run ./cmd/streamtest --config configs/pulseboard.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkozlov/pulseboard/internal/config"
	"github.com/dkozlov/pulseboard/internal/stream"
)

func main() {
	configPath := flag.String("config", "configs/pulseboard.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print 24h change alongside prices")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	mgr := stream.NewManager(stream.ManagerConfig{
		URL:                  cfg.Stream.URL,
		SubscribeTimeout:     cfg.Stream.SubscribeTimeout,
		ReconnectBaseDelay:   cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Stream.ReconnectMaxDelay,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		MessageBufferSize:    cfg.Stream.MessageBufferSize,
	}, cfg.Instruments, logger)
	mgr.Start(ctx)

	logger.Info("streaming", "url", cfg.Stream.URL, "instruments", len(cfg.Instruments))

	count := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("done", "ticks", count)
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := mgr.Stop(stopCtx); err != nil {
				logger.Warn("stop incomplete", "error", err)
			}
			return
		case <-mgr.Exhausted():
			logger.Error("reconnect attempts exhausted")
			os.Exit(1)
		case tick := <-mgr.Ticks():
			count++
			if *verbose && tick.PercentChange24h != nil {
				fmt.Printf("%s  %-10s %14.4f  %+.2f%%\n",
					tick.EventTime.Format(time.TimeOnly), tick.Symbol, tick.Price, *tick.PercentChange24h)
			} else {
				fmt.Printf("%s  %-10s %14.4f\n",
					tick.EventTime.Format(time.TimeOnly), tick.Symbol, tick.Price)
			}
		}
	}
}
