package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkozlov/pulseboard/internal/api"
	"github.com/dkozlov/pulseboard/internal/cache"
	"github.com/dkozlov/pulseboard/internal/model"
)

// mockPriceSource implements PriceSource for testing.
type mockPriceSource struct {
	mu     sync.Mutex
	calls  int
	quotes map[string]api.SimplePrice
	err    error
}

func (m *mockPriceSource) SimplePrices(ctx context.Context, ids []string) (map[string]api.SimplePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.quotes, nil
}

func (m *mockPriceSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type batchCollector struct {
	mu      sync.Mutex
	batches []map[string]model.InstrumentPrice
}

func (c *batchCollector) ApplySnapshot(prices map[string]model.InstrumentPrice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, prices)
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *batchCollector) last() map[string]model.InstrumentPrice {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batches) == 0 {
		return nil
	}
	return c.batches[len(c.batches)-1]
}

var testInstruments = []model.Instrument{
	{ID: "bitcoin", Pair: "btcusdt"},
	{ID: "ethereum", Pair: "ethusdt"},
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPoller_ImmediateFirstPoll(t *testing.T) {
	change := 2.5
	source := &mockPriceSource{
		quotes: map[string]api.SimplePrice{
			"bitcoin":  {ID: "bitcoin", USD: 50000, USDChange24h: &change, FetchedAt: time.Now()},
			"ethereum": {ID: "ethereum", USD: 3000, FetchedAt: time.Now()},
		},
	}
	sink := &batchCollector{}

	p := New(Config{Interval: time.Hour, Timeout: time.Second}, source, sink, testInstruments, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	waitFor(t, func() bool { return sink.count() >= 1 })

	batch := sink.last()
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batch))
	}

	btc, ok := batch["BTCUSDT"]
	if !ok {
		t.Fatal("expected BTCUSDT keyed by canonical symbol")
	}
	if btc.Price != 50000 {
		t.Errorf("price = %v, want 50000", btc.Price)
	}
	if btc.Source != model.SourceSnapshot {
		t.Errorf("source = %v, want snapshot", btc.Source)
	}
	if btc.PercentChange24h == nil || *btc.PercentChange24h != 2.5 {
		t.Errorf("percent change = %v, want 2.5", btc.PercentChange24h)
	}
}

func TestPoller_PollsOnInterval(t *testing.T) {
	source := &mockPriceSource{
		quotes: map[string]api.SimplePrice{
			"bitcoin": {ID: "bitcoin", USD: 50000, FetchedAt: time.Now()},
		},
	}
	sink := &batchCollector{}

	p := New(Config{Interval: 20 * time.Millisecond, Timeout: time.Second}, source, sink, testInstruments, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	waitFor(t, func() bool { return sink.count() >= 3 })
}

func TestPoller_FetchFailureLeavesStateAlone(t *testing.T) {
	source := &mockPriceSource{err: errors.New("upstream down")}
	sink := &batchCollector{}

	p := New(Config{Interval: time.Hour, Timeout: time.Second}, source, sink, testInstruments, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	waitFor(t, func() bool { return source.callCount() >= 1 })

	if sink.count() != 0 {
		t.Errorf("sink received %d batches, want 0 on fetch failure", sink.count())
	}
}

func TestPoller_IgnoresUnconfiguredCoins(t *testing.T) {
	source := &mockPriceSource{
		quotes: map[string]api.SimplePrice{
			"bitcoin": {ID: "bitcoin", USD: 50000, FetchedAt: time.Now()},
			"solana":  {ID: "solana", USD: 150, FetchedAt: time.Now()},
		},
	}
	sink := &batchCollector{}

	p := New(Config{Interval: time.Hour, Timeout: time.Second}, source, sink, testInstruments, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	waitFor(t, func() bool { return sink.count() >= 1 })

	batch := sink.last()
	if len(batch) != 1 {
		t.Errorf("batch size = %d, want 1", len(batch))
	}
	if _, ok := batch["SOLUSDT"]; ok {
		t.Error("unconfigured coin should not appear in the batch")
	}
}

func TestPoller_RefreshesCache(t *testing.T) {
	source := &mockPriceSource{
		quotes: map[string]api.SimplePrice{
			"bitcoin": {ID: "bitcoin", USD: 50000, FetchedAt: time.Now()},
		},
	}
	sink := &batchCollector{}
	c := cache.New(cache.DefaultTTLs(), nil)

	p := New(Config{Interval: time.Hour, Timeout: time.Second}, source, sink, testInstruments, nil).WithCache(c)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	waitFor(t, func() bool { return sink.count() >= 1 })

	key := cache.Key("snapshot", "bitcoin", "ethereum")
	if _, ok := c.Get(key); !ok {
		t.Errorf("expected cache entry for %q after poll", key)
	}
}

func TestPoller_StopUnblocks(t *testing.T) {
	source := &mockPriceSource{
		quotes: map[string]api.SimplePrice{
			"bitcoin": {ID: "bitcoin", USD: 50000, FetchedAt: time.Now()},
		},
	}

	p := New(Config{Interval: time.Hour, Timeout: time.Second}, source, &batchCollector{}, testInstruments, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
