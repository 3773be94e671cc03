package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dkozlov/pulseboard/internal/model"
)

const (
	writeTimeout   = 5 * time.Second
	sendBufferSize = 64
)

// priceUpdate is the per-tick event pushed to browsers.
type priceUpdate struct {
	Type      string   `json:"type"`
	Crypto    string   `json:"crypto"`
	Price     float64  `json:"price"`
	Change24h *float64 `json:"change_24h"`
}

// priceAlert is the significant-move event pushed to browsers.
type priceAlert struct {
	Type     string  `json:"type"`
	Crypto   string  `json:"crypto"`
	Price    float64 `json:"price"`
	Previous float64 `json:"previous"`
	Change   float64 `json:"change"`
}

// errorEvent acknowledges a rejected control message.
type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// controlMessage is a client-to-server control frame.
type controlMessage struct {
	Action string `json:"action"`
	Crypto string `json:"crypto"`
}

// client is one connected browser.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	subs   map[string]bool // coin ids; empty means all
	closed bool
}

// trySend queues a frame without blocking. It reports false when the
// buffer is full or the client is already closed.
func (c *client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) subscribedTo(coinID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return true
	}
	return c.subs[coinID]
}

func (c *client) subscribe(coinID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[coinID] = true
}

// Hub fans reconciled price events out to connected browsers. Clients
// with no subscriptions receive everything; a subscribe_crypto control
// message narrows the feed to the named coins.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// Pair symbol -> coin id, from the configured instrument list.
	coinBySymbol map[string]string
	knownCoins   map[string]bool

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// New creates a Hub for the given instruments.
func New(instruments []model.Instrument, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	coinBySymbol := make(map[string]string, len(instruments))
	knownCoins := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		coinBySymbol[inst.Symbol()] = inst.ID
		knownCoins[inst.ID] = true
	}

	return &Hub{
		logger:       logger.With("component", "hub"),
		coinBySymbol: coinBySymbol,
		knownCoins:   knownCoins,
		clients:      make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl.id] = cl
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", "client_id", cl.id, "clients", count)

	go h.writeLoop(cl)
	h.readLoop(cl)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastUpdate pushes a reconciled price to subscribed clients.
func (h *Hub) BroadcastUpdate(price model.InstrumentPrice) {
	coinID, ok := h.coinBySymbol[price.Symbol]
	if !ok {
		return
	}

	data, err := json.Marshal(priceUpdate{
		Type:      "price_update",
		Crypto:    coinID,
		Price:     price.Price,
		Change24h: price.PercentChange24h,
	})
	if err != nil {
		return
	}

	h.broadcast(coinID, data)
}

// BroadcastAlert pushes a significant move to subscribed clients.
func (h *Hub) BroadcastAlert(move model.SignificantMove) {
	coinID, ok := h.coinBySymbol[move.Symbol]
	if !ok {
		return
	}

	data, err := json.Marshal(priceAlert{
		Type:     "price_alert",
		Crypto:   coinID,
		Price:    move.Price,
		Previous: move.PreviousPrice,
		Change:   move.ChangePercent,
	})
	if err != nil {
		return
	}

	h.broadcast(coinID, data)
}

// Close disconnects every client and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, cl := range clients {
		cl.closeSend()
	}
}

// broadcast delivers one frame to every client subscribed to the coin.
// Clients whose buffers are full are dropped rather than blocking the
// price pipeline.
func (h *Hub) broadcast(coinID string, data []byte) {
	h.mu.RLock()
	var slow []*client
	for _, cl := range h.clients {
		if !cl.subscribedTo(coinID) {
			continue
		}
		if !cl.trySend(data) {
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.logger.Warn("dropping slow client", "client_id", cl.id)
		h.drop(cl)
	}
}

// drop removes a client and closes its send channel.
func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl.id]
	if ok {
		delete(h.clients, cl.id)
	}
	h.mu.Unlock()

	if ok {
		cl.closeSend()
	}
}

// writeLoop serializes all writes to one client connection.
func (h *Hub) writeLoop(cl *client) {
	defer cl.conn.Close()

	for data := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	cl.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

// readLoop consumes control messages until the client disconnects.
// Malformed and unknown messages answer with an error event, never a
// disconnect.
func (h *Hub) readLoop(cl *client) {
	defer h.drop(cl)

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			h.logger.Info("client disconnected", "client_id", cl.id)
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(cl, "malformed control message")
			continue
		}

		switch msg.Action {
		case "subscribe_crypto":
			if !h.knownCoins[msg.Crypto] {
				h.sendError(cl, "unknown cryptocurrency: "+msg.Crypto)
				continue
			}
			cl.subscribe(msg.Crypto)
			h.logger.Debug("client subscribed", "client_id", cl.id, "crypto", msg.Crypto)
		default:
			h.sendError(cl, "unknown action: "+msg.Action)
		}
	}
}

func (h *Hub) sendError(cl *client, message string) {
	data, err := json.Marshal(errorEvent{Type: "error", Message: message})
	if err != nil {
		return
	}
	cl.trySend(data)
}
