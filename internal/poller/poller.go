package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dkozlov/pulseboard/internal/api"
	"github.com/dkozlov/pulseboard/internal/cache"
	"github.com/dkozlov/pulseboard/internal/model"
)

// PriceSource fetches current USD quotes for a set of coin ids.
type PriceSource interface {
	SimplePrices(ctx context.Context, ids []string) (map[string]api.SimplePrice, error)
}

// SnapshotSink receives each fetched snapshot batch.
type SnapshotSink interface {
	ApplySnapshot(prices map[string]model.InstrumentPrice)
}

// SnapshotSinkFunc is a function adapter for SnapshotSink.
type SnapshotSinkFunc func(map[string]model.InstrumentPrice)

func (f SnapshotSinkFunc) ApplySnapshot(prices map[string]model.InstrumentPrice) {
	f(prices)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 5m)
	Timeout  time.Duration // Per-poll timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Timeout:  10 * time.Second,
	}
}

// Poller periodically fetches price snapshots over REST and hands them
// to the sink. It is the fallback price path when the live stream is
// down and the source of the initial state at startup.
type Poller struct {
	cfg         Config
	source      PriceSource
	sink        SnapshotSink
	cache       *cache.Cache
	instruments []model.Instrument
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, source PriceSource, sink SnapshotSink, instruments []model.Instrument, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Poller{
		cfg:         cfg,
		source:      source,
		sink:        sink,
		instruments: instruments,
		logger:      logger.With("component", "poller"),
	}
}

// WithCache makes each successful poll refresh the cached snapshot
// payload for its request signature.
func (p *Poller) WithCache(c *cache.Cache) *Poller {
	p.cache = c
	return p
}

// Start begins the polling loop. The first poll runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started",
		"interval", p.cfg.Interval,
		"instruments", len(p.instruments),
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll fetches one snapshot batch and applies it to the sink. Fetch
// failures are logged and the previous state is left in place.
func (p *Poller) poll() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	ids := make([]string, 0, len(p.instruments))
	bySymbol := make(map[string]string, len(p.instruments))
	for _, inst := range p.instruments {
		ids = append(ids, inst.ID)
		bySymbol[inst.ID] = inst.Symbol()
	}

	quotes, err := p.source.SimplePrices(ctx, ids)
	if err != nil {
		p.logger.Warn("snapshot fetch failed", "error", err, "duration", time.Since(start))
		return
	}

	prices := make(map[string]model.InstrumentPrice, len(quotes))
	for id, quote := range quotes {
		symbol, ok := bySymbol[id]
		if !ok {
			p.logger.Debug("ignoring quote for unconfigured coin", "id", id)
			continue
		}
		prices[symbol] = model.InstrumentPrice{
			Symbol:           symbol,
			Price:            quote.USD,
			PercentChange24h: quote.USDChange24h,
			LastUpdated:      quote.FetchedAt,
			Source:           model.SourceSnapshot,
		}
	}

	if len(prices) == 0 {
		p.logger.Warn("snapshot contained no configured instruments")
		return
	}

	if p.cache != nil {
		if payload, err := json.Marshal(prices); err == nil {
			p.cache.Put(cache.Key("snapshot", ids...), payload, cache.ClassLive)
		}
	}

	p.sink.ApplySnapshot(prices)

	p.logger.Debug("snapshot applied",
		"instruments", len(prices),
		"duration", time.Since(start),
	)
}
