package reconcile

import (
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/dkozlov/pulseboard/internal/model"
)

// Config holds Reconciler configuration.
type Config struct {
	// AlertThreshold is the fractional price change (e.g., 0.005 for
	// 0.5%) that emits a SignificantMove.
	AlertThreshold float64

	// MoveBufferSize is the buffer of the significant-move channel.
	MoveBufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AlertThreshold: 0.005,
		MoveBufferSize: 100,
	}
}

// Reconciler merges the two price sources into one authoritative view.
// Live stream ticks win over periodic snapshots: a snapshot never
// overwrites a stream value unless that value has gone stale, and a
// tick never overwrites a newer stream value.
type Reconciler struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	prices map[string]model.InstrumentPrice

	moves chan model.SignificantMove
}

// New creates a Reconciler.
func New(cfg Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = DefaultConfig().AlertThreshold
	}
	if cfg.MoveBufferSize <= 0 {
		cfg.MoveBufferSize = DefaultConfig().MoveBufferSize
	}

	return &Reconciler{
		cfg:    cfg,
		logger: logger.With("component", "reconciler"),
		prices: make(map[string]model.InstrumentPrice),
		moves:  make(chan model.SignificantMove, cfg.MoveBufferSize),
	}
}

// Moves returns the significant-move channel.
func (r *Reconciler) Moves() <-chan model.SignificantMove {
	return r.moves
}

// ApplySnapshot merges a batch of snapshot prices. A snapshot value
// only lands where no fresher stream value holds the slot.
func (r *Reconciler) ApplySnapshot(prices map[string]model.InstrumentPrice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := 0
	for symbol, incoming := range prices {
		existing, ok := r.prices[symbol]
		if ok && existing.Source == model.SourceStream && !existing.Stale {
			continue
		}

		if ok {
			prev := existing.Price
			incoming.PreviousPrice = &prev
		}
		incoming.Source = model.SourceSnapshot
		incoming.Stale = false
		r.prices[symbol] = incoming
		applied++
	}

	r.logger.Debug("snapshot applied", "received", len(prices), "applied", applied)
}

// ApplyTick merges one stream tick. Non-positive and non-finite prices
// are rejected, as are ticks older than the stream value already held.
func (r *Reconciler) ApplyTick(tick model.PriceTick) {
	if tick.Price <= 0 || math.IsNaN(tick.Price) || math.IsInf(tick.Price, 0) {
		r.logger.Warn("rejected tick with invalid price", "symbol", tick.Symbol, "price", tick.Price)
		return
	}

	r.mu.Lock()

	existing, ok := r.prices[tick.Symbol]
	if ok && existing.Source == model.SourceStream && !existing.Stale &&
		!tick.EventTime.After(existing.LastUpdated) {
		r.mu.Unlock()
		r.logger.Debug("rejected stale tick",
			"symbol", tick.Symbol,
			"event_time", tick.EventTime,
			"held", existing.LastUpdated,
		)
		return
	}

	updated := model.InstrumentPrice{
		Symbol:           tick.Symbol,
		Price:            tick.Price,
		PercentChange24h: tick.PercentChange24h,
		LastUpdated:      tick.EventTime,
		Source:           model.SourceStream,
	}

	var move *model.SignificantMove
	if ok {
		prev := existing.Price
		updated.PreviousPrice = &prev

		// The first tick after startup has no meaningful baseline.
		if prev > 0 {
			change := (tick.Price - prev) / prev
			if math.Abs(change) >= r.cfg.AlertThreshold {
				move = &model.SignificantMove{
					ID:            uuid.New().String(),
					Symbol:        tick.Symbol,
					Price:         tick.Price,
					PreviousPrice: prev,
					ChangePercent: change,
					At:            tick.EventTime,
				}
			}
		}
	}

	r.prices[tick.Symbol] = updated
	r.mu.Unlock()

	if move != nil {
		select {
		case r.moves <- *move:
		default:
			r.logger.Warn("move buffer full, dropping alert", "symbol", move.Symbol)
		}
	}
}

// Current returns a copy of the reconciled price state.
func (r *Reconciler) Current() map[string]model.InstrumentPrice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]model.InstrumentPrice, len(r.prices))
	for symbol, price := range r.prices {
		out[symbol] = price
	}
	return out
}

// Get returns the reconciled price for one symbol.
func (r *Reconciler) Get(symbol string) (model.InstrumentPrice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	price, ok := r.prices[symbol]
	return price, ok
}

// MarkDegraded flags every stream-sourced value as stale so that
// subsequent snapshots regain authority. Called when the streaming
// subsystem exhausts its reconnect attempts.
func (r *Reconciler) MarkDegraded() {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0
	for symbol, price := range r.prices {
		if price.Source == model.SourceStream && !price.Stale {
			price.Stale = true
			r.prices[symbol] = price
			marked++
		}
	}

	r.logger.Warn("stream degraded, stream values marked stale", "marked", marked)
}
