package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/components/internal/ir"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 4096
)

// ConnectionError reports an event addressed to a connection the hub does
// not know.
type ConnectionError struct {
	ConnectionID string
}

func (e *ConnectionError) Error() string {
	if e.ConnectionID == "" {
		return "telemetry event has no connection"
	}
	return fmt.Sprintf("telemetry connection %q not found", e.ConnectionID)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub's logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithSocketStage sets the stage reported in echo replies.
func WithSocketStage(stage string) HubOption {
	return func(h *Hub) {
		h.stage = stage
	}
}

// WithConnectionIDs overrides connection id generation.
func WithConnectionIDs(next func() string) HubOption {
	return func(h *Hub) {
		h.newID = next
	}
}

// Hub is the server side of the telemetry socket. Each accepted connection
// gets an id, announced in the echo reply, that events are routed by.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	upgrader websocket.Upgrader
	logger   *slog.Logger
	stage    string
	newID    func() string
}

// NewHub creates a hub with no connections.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: slog.Default(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and holds the connection until the peer
// goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade telemetry socket", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameSize)

	var hello Frame
	if err := conn.ReadJSON(&hello); err != nil || hello.Action != ActionDefault {
		h.logger.Debug("telemetry handshake rejected", "action", hello.Action, "error", err)
		_ = conn.Close()
		return
	}

	c := newClient(h.newID(), conn, h.logger)
	echo, err := json.Marshal(Frame{
		Event: ir.EventEcho,
		Data:  mustJSON(ir.Socket{ConnectionID: c.id, DomainName: r.Host, Stage: h.stage}),
	})
	if err != nil {
		_ = conn.Close()
		return
	}
	c.queue.Enqueue(echo)

	h.register(c)
	go c.writeLoop()
	c.readLoop(func() { h.unregister(c) })
}

// Send routes ev to the connection named by ev.Socket.
func (h *Hub) Send(ctx context.Context, ev ir.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ev.Socket.Live() {
		return &ConnectionError{}
	}

	h.mu.RLock()
	c, ok := h.clients[ev.Socket.ConnectionID]
	h.mu.RUnlock()
	if !ok {
		return &ConnectionError{ConnectionID: ev.Socket.ConnectionID}
	}

	frame, err := frameFor(ev)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if !c.queue.Enqueue(data) {
		return &ConnectionError{ConnectionID: c.id}
	}
	return nil
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Debug("telemetry connection opened", "connection_id", c.id)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.Close()
	h.logger.Debug("telemetry connection closed", "connection_id", c.id)
}

type client struct {
	id     string
	conn   *websocket.Conn
	queue  *frameQueue
	logger *slog.Logger
	once   sync.Once
}

func newClient(id string, conn *websocket.Conn, logger *slog.Logger) *client {
	return &client{
		id:     id,
		conn:   conn,
		queue:  newFrameQueue(),
		logger: logger,
	}
}

func (c *client) writeLoop() {
	for {
		msg, ok := c.queue.Dequeue()
		if !ok {
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.logger.Error("write telemetry frame", "connection_id", c.id, "error", err)
			return
		}
	}
}

// readLoop discards client frames until the connection fails.
func (c *client) readLoop(onClose func()) {
	defer onClose()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) Close() {
	c.once.Do(func() {
		c.queue.Close()
		_ = c.conn.Close()
	})
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
