package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkozlov/pulseboard/internal/api"
	"github.com/dkozlov/pulseboard/internal/cache"
	"github.com/dkozlov/pulseboard/internal/config"
	"github.com/dkozlov/pulseboard/internal/hub"
	"github.com/dkozlov/pulseboard/internal/poller"
	"github.com/dkozlov/pulseboard/internal/reconcile"
	"github.com/dkozlov/pulseboard/internal/server"
	"github.com/dkozlov/pulseboard/internal/stream"
	"github.com/dkozlov/pulseboard/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/pulseboard.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting pulseboard",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"instruments", len(cfg.Instruments),
		"cities", len(cfg.Cities),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Shared cache over all proxy endpoints
	ttls := cache.DefaultTTLs()
	if cfg.Cache.LiveTTL > 0 {
		ttls.Live = cfg.Cache.LiveTTL
	}
	if cfg.Cache.HistoricalTTL > 0 {
		ttls.Historical = cfg.Cache.HistoricalTTL
	}
	if cfg.Cache.NewsTTL > 0 {
		ttls.News = cfg.Cache.NewsTTL
	}
	responseCache := cache.New(ttls, logger)

	// Upstream REST clients
	clientOpts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.Upstream.Timeout),
		api.WithRetries(cfg.Upstream.MaxRetries, time.Second),
	}
	coinGecko := api.NewCoinGecko(cfg.Upstream.CoinGeckoURL, clientOpts...)
	openWeather := api.NewOpenWeather(cfg.Upstream.OpenWeatherURL, cfg.Upstream.OpenWeatherKey, clientOpts...)
	newsData := api.NewNewsData(cfg.Upstream.NewsDataURL, cfg.Upstream.NewsDataKey, clientOpts...)

	// Reconciled price state
	reconciler := reconcile.New(reconcile.Config{
		AlertThreshold: cfg.Alerts.Threshold,
	}, logger)

	// Browser fanout
	browserHub := hub.New(cfg.Instruments, logger)

	// Snapshot poller feeding the reconciler
	snapPoller := poller.New(poller.Config{
		Interval: cfg.Poller.Interval,
		Timeout:  cfg.Poller.Timeout,
	}, coinGecko, reconciler, cfg.Instruments, logger).WithCache(responseCache)

	if err := snapPoller.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	// Live stream feeding the reconciler
	streamMgr := stream.NewManager(stream.ManagerConfig{
		URL:                  cfg.Stream.URL,
		SubscribeTimeout:     cfg.Stream.SubscribeTimeout,
		ReconnectBaseDelay:   cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Stream.ReconnectMaxDelay,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		MessageBufferSize:    cfg.Stream.MessageBufferSize,
	}, cfg.Instruments, logger)
	streamMgr.Start(ctx)

	// Pump ticks and alerts from the pipeline to the browsers
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tick, ok := <-streamMgr.Ticks():
				if !ok {
					return
				}
				reconciler.ApplyTick(tick)
				if price, ok := reconciler.Get(tick.Symbol); ok {
					browserHub.BroadcastUpdate(price)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case move, ok := <-reconciler.Moves():
				if !ok {
					return
				}
				browserHub.BroadcastAlert(move)
			}
		}
	}()

	// On stream exhaustion, yield authority back to snapshots
	go func() {
		select {
		case <-ctx.Done():
		case <-streamMgr.Exhausted():
			reconciler.MarkDegraded()
		}
	}()

	// HTTP frontend
	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, server.Deps{
		Weather: openWeather,
		Crypto:  coinGecko,
		News:    newsData,
		Cache:   responseCache,
		Health: server.Health{
			StreamState: func() string { return streamMgr.State().String() },
			PriceCount:  func() int { return len(reconciler.Current()) },
			ClientCount: browserHub.ClientCount,
		},
		Instruments: cfg.Instruments,
		Cities:      cfg.Cities,
		WSHandler:   browserHub,
	}, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	logger.Info("pulseboard running", "port", cfg.Server.Port)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
		cancel()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	browserHub.Close()

	if err := streamMgr.Stop(shutdownCtx); err != nil {
		logger.Warn("stream shutdown incomplete", "error", err)
	}
	if err := snapPoller.Stop(shutdownCtx); err != nil {
		logger.Warn("poller shutdown incomplete", "error", err)
	}

	logger.Info("pulseboard stopped")
}
