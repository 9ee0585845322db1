package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/metrics"
	"github.com/hylo-so/hylo-engine/internal/store"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	idleTimeout  = 2 * pongWait
)

// InitialFunc renders the current value of a topic for a new subscriber.
type InitialFunc func(ctx context.Context) (any, error)

// Hub relays bus events to websocket clients by topic.
type Hub struct {
	cache    *store.Cache
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	initial  map[string]InitialFunc

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	lastActive atomic.Int64

	sendMu sync.Mutex
	closed bool

	mu     sync.RWMutex
	topics map[string]bool
}

type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Topics    []string        `json:"topics,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type SubscriptionRequest struct {
	Type   string   `json:"type"` // "subscribe", "unsubscribe"
	Topics []string `json:"topics"`
}

// NewHub accepts upgrades from allowedOrigins. Requests without an Origin
// header are always accepted and "*" accepts any origin.
func NewHub(cache *store.Cache, allowedOrigins []string, logger *zap.SugaredLogger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	h := &Hub{
		cache:   cache,
		logger:  logger,
		metrics: m,
		initial: make(map[string]InitialFunc),
		clients: make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// SetInitial registers fn to render topic for clients that subscribe to it.
// Call before Run.
func (h *Hub) SetInitial(topic string, fn InitialFunc) {
	h.initial[topic] = fn
}

// Run relays bus events until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	sub := h.cache.Subscribe(ctx, Channels()...)
	defer sub.Close()

	cleanup := time.NewTicker(30 * time.Second)
	defer cleanup.Stop()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("WebSocket hub shutting down")
			h.closeAll()
			return
		case msg, ok := <-msgs:
			if !ok {
				h.logger.Warnw("Event subscription closed")
				h.closeAll()
				return
			}
			h.Broadcast(TopicFor(msg.Channel), json.RawMessage(msg.Payload))
		case <-cleanup.C:
			h.cleanupInactiveClients(time.Now().Add(-idleTimeout))
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends data to every client subscribed to topic. Clients that
// cannot keep up are disconnected.
func (h *Hub) Broadcast(topic string, data json.RawMessage) {
	payload, err := json.Marshal(Message{
		Type:      "update",
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Errorw("Failed to marshal WebSocket message", "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if c.isSubscribed(topic) && !c.enqueue(payload) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Debugw("Dropping slow client", "topic", topic)
		h.unregister(c)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncrementConnections(context.Background())
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
		h.metrics.DecrementConnections(context.Background())
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) cleanupInactiveClients(cutoff time.Time) {
	h.mu.RLock()
	var idle []*Client
	for c := range h.clients {
		if c.lastActive.Load() < cutoff.UnixNano() {
			idle = append(idle, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range idle {
		h.logger.Debugw("Cleaned up inactive client")
		h.unregister(c)
	}
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		topics: make(map[string]bool),
	}
	c.touch()
	// Topics may also be chosen up front: /v1/ws?topics=state,price
	if q := r.URL.Query()["topics"]; len(q) > 0 {
		c.subscribe(r.Context(), ParseTopics(splitTopics(q)))
	}

	h.register(c)
	go c.writePump()
	go c.readPump()
}

func (c *Client) touch() { c.lastActive.Store(time.Now().UnixNano()) }

func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// enqueue reports false when the client is closed or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
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

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debugw("WebSocket read error", "error", err)
			}
			return
		}
		c.touch()
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var req SubscriptionRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.reply(Message{Type: "error", Error: "invalid message"})
		return
	}

	topics := ParseTopics(req.Topics)
	switch req.Type {
	case "subscribe":
		c.subscribe(context.Background(), topics)
		c.reply(Message{Type: "subscribed", Topics: c.subscribed()})
	case "unsubscribe":
		c.mu.Lock()
		for _, t := range topics {
			delete(c.topics, t)
		}
		c.mu.Unlock()
		c.reply(Message{Type: "unsubscribed", Topics: topics})
	case "ping":
		c.reply(Message{Type: "pong"})
	default:
		c.reply(Message{Type: "error", Error: "unknown message type " + req.Type})
	}
}

// subscribe adds topics and queues the current value of each topic that has
// an initial renderer.
func (c *Client) subscribe(ctx context.Context, topics []string) {
	c.mu.Lock()
	for _, t := range topics {
		c.topics[t] = true
	}
	c.mu.Unlock()

	for _, t := range topics {
		fn, ok := c.hub.initial[t]
		if !ok {
			continue
		}
		v, err := fn(ctx)
		if err != nil {
			c.hub.logger.Debugw("No initial value for topic", "topic", t, "error", err)
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		c.reply(Message{Type: "snapshot", Topic: t, Data: data})
	}
}

func (c *Client) subscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (c *Client) reply(m Message) {
	m.Timestamp = time.Now().Unix()
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func splitTopics(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

func (c *Client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic] || c.topics[TopicAll]
}
