package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkozlov/pulseboard/internal/model"
)

var testInstruments = []model.Instrument{
	{ID: "bitcoin", Pair: "btcusdt"},
	{ID: "ethereum", Pair: "ethusdt"},
}

// fakeClient implements Client without a network connection. Control
// messages sent through it are acked automatically unless ackSubscribes
// is false.
type fakeClient struct {
	mu            sync.Mutex
	connected     bool
	sent          [][]byte
	ackSubscribes bool

	messages chan TimestampedMessage
	errs     chan error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		connected:     true,
		ackSubscribes: true,
		messages:      make(chan TimestampedMessage, 100),
		errs:          make(chan error, 1),
	}
}

func (c *fakeClient) Connect(ctx context.Context) error { return nil }

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *fakeClient) Send(data []byte) error {
	c.mu.Lock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	ack := c.ackSubscribes
	c.mu.Unlock()

	if !ack {
		return nil
	}

	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}

	frame, _ := json.Marshal(map[string]any{"result": nil, "id": cmd.ID})
	c.messages <- TimestampedMessage{Data: frame, ReceivedAt: time.Now()}
	return nil
}

func (c *fakeClient) Messages() <-chan TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                { return c.errs }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) pushFrame(data string) {
	c.messages <- TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now()}
}

func (c *fakeClient) failConnection() {
	c.errs <- errors.New("connection reset")
}

func (c *fakeClient) sentCommands(t *testing.T) []command {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	cmds := make([]command, 0, len(c.sent))
	for _, data := range c.sent {
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			t.Fatalf("sent frame is not a command: %v", err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// fakeDialer hands out fakeClients sequentially and records dial count.
type fakeDialer struct {
	mu      sync.Mutex
	clients []*fakeClient
	dials   int
	err     error
}

func (d *fakeDialer) dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.err != nil {
		return nil, d.err
	}

	cl := newFakeClient()
	d.clients = append(d.clients, cl)
	return cl, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) client(i int) *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.clients) {
		return nil
	}
	return d.clients[i]
}

func testManagerConfig() ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.URL = "ws://fake"
	cfg.SubscribeTimeout = time.Second
	cfg.ReconnectBaseDelay = 5 * time.Millisecond
	cfg.ReconnectMaxDelay = 50 * time.Millisecond
	cfg.MaxReconnectAttempts = 3
	return cfg
}

func waitForState(t *testing.T, mgr *Manager, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mgr.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", mgr.State(), want)
}

func TestManager_ConnectAndSubscribe(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := NewManager(testManagerConfig(), testInstruments, nil, WithDialFunc(dialer.dial))

	mgr.Start(context.Background())
	defer mgr.Stop(context.Background())

	waitForState(t, mgr, StateConnected)

	// Wait for the subscribe command to go out
	deadline := time.Now().Add(time.Second)
	var cmds []command
	for time.Now().Before(deadline) {
		cmds = dialer.client(0).sentCommands(t)
		if len(cmds) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if len(cmds) != 1 {
		t.Fatalf("sent %d commands, want 1", len(cmds))
	}
	if cmds[0].Method != "SUBSCRIBE" {
		t.Errorf("method = %q, want SUBSCRIBE", cmds[0].Method)
	}
	wantChannels := []string{"btcusdt@ticker", "ethusdt@ticker"}
	if len(cmds[0].Params) != len(wantChannels) {
		t.Fatalf("params = %v, want %v", cmds[0].Params, wantChannels)
	}
	for i, ch := range wantChannels {
		if cmds[0].Params[i] != ch {
			t.Errorf("param %d = %q, want %q", i, cmds[0].Params[i], ch)
		}
	}
}

func TestManager_DecodesTickerFrames(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := NewManager(testManagerConfig(), testInstruments, nil, WithDialFunc(dialer.dial))

	mgr.Start(context.Background())
	defer mgr.Stop(context.Background())

	waitForState(t, mgr, StateConnected)

	dialer.client(0).pushFrame(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","c":"50000.50","P":"2.75"}`)

	select {
	case tick := <-mgr.Ticks():
		if tick.Symbol != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", tick.Symbol)
		}
		if tick.Price != 50000.50 {
			t.Errorf("price = %v, want 50000.50", tick.Price)
		}
		if tick.PercentChange24h == nil || *tick.PercentChange24h != 2.75 {
			t.Errorf("percent change = %v, want 2.75", tick.PercentChange24h)
		}
		if !tick.EventTime.Equal(time.UnixMilli(1700000000000)) {
			t.Errorf("event time = %v, want %v", tick.EventTime, time.UnixMilli(1700000000000))
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for tick")
	}
}

func TestManager_DropsMalformedFrames(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := NewManager(testManagerConfig(), testInstruments, nil, WithDialFunc(dialer.dial))

	mgr.Start(context.Background())
	defer mgr.Stop(context.Background())

	waitForState(t, mgr, StateConnected)

	cl := dialer.client(0)
	cl.pushFrame(`not json at all`)
	cl.pushFrame(`{"e":"someOtherEvent","s":"BTCUSDT"}`)
	cl.pushFrame(`{"e":"24hrTicker","s":"BTCUSDT","c":"not-a-number"}`)
	cl.pushFrame(`{"e":"24hrTicker","s":"BTCUSDT","c":"-1.0"}`)
	cl.pushFrame(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","c":"42000.00","P":"1.0"}`)

	// Only the last, well-formed frame should come through
	select {
	case tick := <-mgr.Ticks():
		if tick.Price != 42000.00 {
			t.Errorf("price = %v, want 42000.00", tick.Price)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for tick")
	}

	select {
	case tick := <-mgr.Ticks():
		t.Errorf("unexpected extra tick: %+v", tick)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_AckResolvesDuringSubscribe(t *testing.T) {
	cfg := testManagerConfig()
	cfg.SubscribeTimeout = 5 * time.Second

	dialer := &fakeDialer{}
	mgr := NewManager(cfg, testInstruments, nil, WithDialFunc(dialer.dial))

	start := time.Now()
	mgr.Start(context.Background())
	defer mgr.Stop(context.Background())

	waitForState(t, mgr, StateConnected)

	// The fake acks the SUBSCRIBE as soon as it is sent. If frames were
	// not being consumed while the subscribe waits, this tick would sit
	// behind the un-correlated ack for the full subscribe timeout.
	dialer.client(0).pushFrame(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","c":"50000.50","P":"2.75"}`)

	select {
	case <-mgr.Ticks():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for tick")
	}

	if elapsed := time.Since(start); elapsed >= cfg.SubscribeTimeout {
		t.Errorf("tick arrived after %v, want well before the %v subscribe timeout", elapsed, cfg.SubscribeTimeout)
	}
}

func TestManager_RedialPassesThroughConnecting(t *testing.T) {
	dialer := &fakeDialer{}
	gate := make(chan struct{})
	var dials int32
	dial := func(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error) {
		if atomic.AddInt32(&dials, 1) > 1 {
			// Hold the redial in flight so the state is observable
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return dialer.dial(ctx, cfg, logger)
	}

	mgr := NewManager(testManagerConfig(), testInstruments, nil, WithDialFunc(dial))

	mgr.Start(context.Background())
	defer mgr.Stop(context.Background())

	waitForState(t, mgr, StateConnected)

	dialer.client(0).failConnection()

	waitForState(t, mgr, StateConnecting)
	close(gate)
	waitForState(t, mgr, StateConnected)
}

func TestManager_ResubscribesAfterReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := NewManager(testManagerConfig(), testInstruments, nil, WithDialFunc(dialer.dial))

	mgr.Start(context.Background())
	defer mgr.Stop(context.Background())

	waitForState(t, mgr, StateConnected)

	dialer.client(0).failConnection()

	// The manager should dial again and resubscribe on the new connection
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if dialer.dialCount() >= 2 && mgr.State() == StateConnected {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if dialer.dialCount() < 2 {
		t.Fatalf("dialed %d times, want at least 2", dialer.dialCount())
	}

	second := dialer.client(1)
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(second.sentCommands(t)) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cmds := second.sentCommands(t)
	if len(cmds) == 0 || cmds[0].Method != "SUBSCRIBE" {
		t.Fatalf("second connection commands = %v, want a SUBSCRIBE", cmds)
	}
}

func TestManager_ExhaustsReconnectAttempts(t *testing.T) {
	dialer := &fakeDialer{err: fmt.Errorf("dial refused")}
	mgr := NewManager(testManagerConfig(), testInstruments, nil, WithDialFunc(dialer.dial))

	mgr.Start(context.Background())
	defer mgr.Stop(context.Background())

	select {
	case <-mgr.Exhausted():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for exhaustion signal")
	}

	if got := mgr.State(); got != StateDisconnected {
		t.Errorf("state = %v, want %v", got, StateDisconnected)
	}

	// Initial dial plus MaxReconnectAttempts retries
	if dialer.dialCount() != 4 {
		t.Errorf("dialed %d times, want 4", dialer.dialCount())
	}
}

func TestManager_StopSendsUnsubscribe(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := NewManager(testManagerConfig(), testInstruments, nil, WithDialFunc(dialer.dial))

	mgr.Start(context.Background())
	waitForState(t, mgr, StateConnected)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := mgr.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	cmds := dialer.client(0).sentCommands(t)
	var sawUnsubscribe bool
	for _, cmd := range cmds {
		if cmd.Method == "UNSUBSCRIBE" {
			sawUnsubscribe = true
		}
	}
	if !sawUnsubscribe {
		t.Errorf("commands = %v, want an UNSUBSCRIBE on shutdown", cmds)
	}
}

func TestBackoff(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	for attempt, w := range want {
		if got := Backoff(base, max, attempt); got != w {
			t.Errorf("Backoff(attempt=%d) = %v, want %v", attempt, got, w)
		}
	}

	// Huge attempt counts must not overflow past the cap
	if got := Backoff(base, max, 100); got != max {
		t.Errorf("Backoff(attempt=100) = %v, want %v", got, max)
	}
}
