package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrSubscribeTimeout = errors.New("subscribe timeout")
	ErrAlreadyClosed    = errors.New("already closed")

	// ErrConnectionExhausted is surfaced once the reconnect attempt cap is
	// reached; the pipeline then degrades to snapshot-only refresh.
	ErrConnectionExhausted = errors.New("reconnect attempts exhausted")
)

// ConnectionState is the Stream Manager's connection lifecycle state.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the state name for logging and health reporting.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// TimestampedMessage wraps raw frame data with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// command is a control message sent to the feed (Binance wire format).
type command struct {
	Method string   `json:"method"` // "SUBSCRIBE" or "UNSUBSCRIBE"
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// ackFrame is a control-message acknowledgment, correlated by request id.
// Data frames never carry an "id" field, which is how the two shapes are
// told apart.
type ackFrame struct {
	Result json.RawMessage `json:"result"`
	ID     *int64          `json:"id"`
	Error  *wireError      `json:"error"`
}

// wireError is the error block of a failed control message.
type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// tickerFrame is a Binance 24hrTicker data frame. Only the fields the
// reconciler consumes are decoded.
type tickerFrame struct {
	EventType      string `json:"e"` // "24hrTicker"
	EventTime      int64  `json:"E"` // Milliseconds since epoch
	Symbol         string `json:"s"` // e.g. "BTCUSDT"
	LastPrice      string `json:"c"`
	PriceChangePct string `json:"P"` // 24h change percent
}

// ClientConfig configures a WebSocket transport client.
type ClientConfig struct {
	URL              string        // Feed URL (e.g., wss://stream.binance.com:9443/ws)
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingTimeout      time.Duration // Max time without ping before the connection is stale (0 disables)
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingTimeout:      10 * time.Minute,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Stream Manager.
type ManagerConfig struct {
	URL                  string        // Feed URL
	SubscribeTimeout     time.Duration // Timeout waiting for a subscribe ack
	ReconnectBaseDelay   time.Duration // Base delay for exponential backoff
	ReconnectMaxDelay    time.Duration // Backoff delay cap
	MaxReconnectAttempts int           // Attempt cap before degrading to snapshot-only
	MessageBufferSize    int           // Buffer size for the outgoing tick channel
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SubscribeTimeout:     10 * time.Second,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 10,
		MessageBufferSize:    1000,
	}
}

// DialFunc opens a connected transport. Tests inject fakes here so the
// state machine runs without a network.
type DialFunc func(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error)

// Backoff computes the reconnect delay for the given attempt:
// min(base * 2^attempt, max).
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt > 62 {
		return max
	}
	delay := base << uint(attempt)
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}
