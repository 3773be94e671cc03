package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkozlov/pulseboard/internal/model"
)

// Manager maintains the live price feed: it dials the WebSocket,
// subscribes the configured instrument channels, decodes ticker frames
// into ticks, and reconnects with exponential backoff when the
// connection drops. Once the attempt cap is reached it signals
// exhaustion and stays down until restarted.
type Manager struct {
	cfg         ManagerConfig
	instruments []model.Instrument
	logger      *slog.Logger
	dial        DialFunc

	client   Client
	clientMu sync.RWMutex

	state atomic.Int32

	// Pending control-message acks, keyed by request id.
	pendingMu sync.Mutex
	pending   map[int64]chan ackFrame
	cmdID     atomic.Int64

	ticks     chan model.PriceTick
	exhausted chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithDialFunc overrides the transport dialer.
func WithDialFunc(dial DialFunc) ManagerOption {
	return func(m *Manager) {
		m.dial = dial
	}
}

// NewManager creates a Stream Manager for the given instruments.
func NewManager(cfg ManagerConfig, instruments []model.Instrument, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = DefaultManagerConfig().MessageBufferSize
	}

	m := &Manager{
		cfg:         cfg,
		instruments: instruments,
		logger:      logger.With("component", "stream_manager"),
		dial:        dialClient,
		pending:     make(map[int64]chan ackFrame),
		ticks:       make(chan model.PriceTick, cfg.MessageBufferSize),
		exhausted:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins the connect/subscribe/read lifecycle.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.ctx, m.cancel = context.WithCancel(ctx)

		m.wg.Add(1)
		go m.run()
	})
}

// Stop unsubscribes, closes the connection, and waits for goroutines
// to drain or the context to expire.
func (m *Manager) Stop(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		m.logger.Info("stopping stream manager")

		if m.State() == StateConnected {
			if uerr := m.unsubscribeAll(ctx); uerr != nil {
				m.logger.Warn("unsubscribe on shutdown failed", "error", uerr)
			}
		}

		if m.cancel != nil {
			m.cancel()
		}
		m.closeClient()

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Info("stream manager stopped")
		case <-ctx.Done():
			err = fmt.Errorf("shutdown timeout: %w", ctx.Err())
		}
	})
	return err
}

// Ticks returns the decoded price tick channel.
func (m *Manager) Ticks() <-chan model.PriceTick {
	return m.ticks
}

// Exhausted is closed once the reconnect attempt cap is reached.
func (m *Manager) Exhausted() <-chan struct{} {
	return m.exhausted
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	return ConnectionState(m.state.Load())
}

func (m *Manager) setState(s ConnectionState) {
	old := ConnectionState(m.state.Swap(int32(s)))
	if old != s {
		m.logger.Info("connection state changed", "from", old.String(), "to", s.String())
	}
}

// run drives the connection lifecycle until the context is canceled or
// reconnect attempts are exhausted.
func (m *Manager) run() {
	defer m.wg.Done()

	attempt := 0

	for {
		select {
		case <-m.ctx.Done():
			m.setState(StateDisconnected)
			return
		default:
		}

		m.setState(StateConnecting)

		clientCfg := DefaultClientConfig()
		clientCfg.URL = m.cfg.URL
		clientCfg.BufferSize = m.cfg.MessageBufferSize

		cl, err := m.dial(m.ctx, clientCfg, m.logger)
		if err != nil {
			m.logger.Warn("dial failed", "error", err, "attempt", attempt)
			if !m.delayReconnect(&attempt) {
				return
			}
			continue
		}

		m.clientMu.Lock()
		m.client = cl
		m.clientMu.Unlock()

		m.setState(StateConnected)
		attempt = 0

		// Frames must be consumed before subscribing or the ack can
		// never be correlated with its pending command.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			m.readFrames(cl)
		}()

		// Subscribe failures are logged but do not tear down the
		// connection; the feed stays up and later reconnects will
		// retry the full channel set.
		if err := m.subscribeAll(m.ctx); err != nil {
			m.logger.Error("subscribe failed", "error", err)
		}

		<-readDone
		m.closeClient()

		select {
		case <-m.ctx.Done():
			m.setState(StateDisconnected)
			return
		default:
		}

		if !m.delayReconnect(&attempt) {
			return
		}
	}
}

// delayReconnect sleeps the backoff delay for the current attempt and
// advances the counter. It returns false once attempts are exhausted or
// the context is canceled.
func (m *Manager) delayReconnect(attempt *int) bool {
	delay := Backoff(m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay, *attempt)
	*attempt++

	if *attempt > m.cfg.MaxReconnectAttempts {
		m.logger.Error("reconnect attempts exhausted, degrading to snapshot-only",
			"attempts", m.cfg.MaxReconnectAttempts,
		)
		m.setState(StateDisconnected)
		close(m.exhausted)
		return false
	}

	m.setState(StateReconnecting)
	m.logger.Info("reconnecting", "attempt", *attempt, "delay", delay)

	select {
	case <-m.ctx.Done():
		m.setState(StateDisconnected)
		return false
	case <-time.After(delay):
		return true
	}
}

// readFrames consumes messages and errors from the client until the
// connection fails or the context is canceled.
func (m *Manager) readFrames(cl Client) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case err, ok := <-cl.Errors():
			if !ok {
				return
			}
			m.logger.Warn("connection error", "error", err)
			return
		case msg, ok := <-cl.Messages():
			if !ok {
				return
			}
			m.handleFrame(msg)
		}
	}
}

// handleFrame routes a raw frame to ack correlation or tick decoding.
func (m *Manager) handleFrame(msg TimestampedMessage) {
	// Control acks carry an "id" field; data frames never do.
	if bytes.Contains(msg.Data, []byte(`"id":`)) {
		var ack ackFrame
		if err := json.Unmarshal(msg.Data, &ack); err != nil || ack.ID == nil {
			m.logger.Warn("malformed ack frame dropped", "error", err)
			return
		}

		m.pendingMu.Lock()
		ch, ok := m.pending[*ack.ID]
		if ok {
			delete(m.pending, *ack.ID)
		}
		m.pendingMu.Unlock()

		if ok {
			ch <- ack
		}
		return
	}

	tick, err := parseTick(msg.Data)
	if err != nil {
		m.logger.Warn("malformed data frame dropped", "error", err)
		return
	}

	select {
	case m.ticks <- tick:
	default:
		m.logger.Warn("tick buffer full, dropping tick", "symbol", tick.Symbol)
	}
}

// parseTick decodes a 24hrTicker frame into a PriceTick.
func parseTick(data []byte) (model.PriceTick, error) {
	var frame tickerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return model.PriceTick{}, fmt.Errorf("decode frame: %w", err)
	}
	if frame.EventType != "24hrTicker" {
		return model.PriceTick{}, fmt.Errorf("unexpected event type %q", frame.EventType)
	}

	price, err := strconv.ParseFloat(frame.LastPrice, 64)
	if err != nil {
		return model.PriceTick{}, fmt.Errorf("parse last price %q: %w", frame.LastPrice, err)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return model.PriceTick{}, fmt.Errorf("invalid last price %v", price)
	}

	tick := model.PriceTick{
		Symbol:    frame.Symbol,
		Price:     price,
		EventTime: time.UnixMilli(frame.EventTime),
	}

	if frame.PriceChangePct != "" {
		if pct, err := strconv.ParseFloat(frame.PriceChangePct, 64); err == nil {
			tick.PercentChange24h = &pct
		}
	}

	return tick, nil
}

// subscribeAll subscribes every configured instrument channel in one
// control message and waits for the ack.
func (m *Manager) subscribeAll(ctx context.Context) error {
	return m.sendCommand(ctx, "SUBSCRIBE", m.channels())
}

// unsubscribeAll tears down all channel subscriptions.
func (m *Manager) unsubscribeAll(ctx context.Context) error {
	return m.sendCommand(ctx, "UNSUBSCRIBE", m.channels())
}

func (m *Manager) channels() []string {
	channels := make([]string, 0, len(m.instruments))
	for _, inst := range m.instruments {
		channels = append(channels, inst.Channel())
	}
	return channels
}

// sendCommand sends a control message and waits for its ack, correlated
// by request id.
func (m *Manager) sendCommand(ctx context.Context, method string, params []string) error {
	m.clientMu.RLock()
	cl := m.client
	m.clientMu.RUnlock()

	if cl == nil || !cl.IsConnected() {
		return ErrNotConnected
	}

	id := m.cmdID.Add(1)
	cmd := command{Method: method, Params: params, ID: id}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", strings.ToLower(method), err)
	}

	ackCh := make(chan ackFrame, 1)
	m.pendingMu.Lock()
	m.pending[id] = ackCh
	m.pendingMu.Unlock()

	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
	}()

	if err := cl.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", strings.ToLower(method), err)
	}

	m.logger.Debug("control message sent", "method", method, "channels", len(params), "id", id)

	timeout := m.cfg.SubscribeTimeout
	if timeout <= 0 {
		timeout = DefaultManagerConfig().SubscribeTimeout
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return ErrSubscribeTimeout
	case ack := <-ackCh:
		if ack.Error != nil {
			return fmt.Errorf("%s rejected: %d %s", strings.ToLower(method), ack.Error.Code, ack.Error.Message)
		}
		return nil
	}
}

func (m *Manager) closeClient() {
	m.clientMu.Lock()
	cl := m.client
	m.client = nil
	m.clientMu.Unlock()

	if cl != nil {
		cl.Close()
	}
}
