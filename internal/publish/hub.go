package publish

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sectorwatch/sectorwatch/internal/config"
	"github.com/sectorwatch/sectorwatch/internal/eventbus"
	"github.com/sectorwatch/sectorwatch/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SnapshotSource returns the latest committed snapshot, or nil.
type SnapshotSource func() *models.Snapshot

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
}

// Hub maintains the set of active WebSocket clients and relays event bus
// messages to them. Slow clients miss messages instead of stalling others.
type Hub struct {
	bus      *eventbus.EventBus
	current  SnapshotSource
	upgrader websocket.Upgrader
	logger   *slog.Logger
	buffer   int

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

var _ Publisher = (*Hub)(nil)

func NewHub(bus *eventbus.EventBus, current SnapshotSource, cfg config.WebSocketConfig, logger *slog.Logger) *Hub {
	buffer := cfg.BufferSize
	if buffer < 1 {
		buffer = 16
	}

	h := &Hub{
		bus:        bus,
		current:    current,
		logger:     logger.With("component", "ws_hub"),
		buffer:     buffer,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(cfg.AllowedOrigins) > 0 {
		origins := slices.Clone(cfg.AllowedOrigins)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		}
	}

	return h
}

// Run relays bus events to clients until ctx is cancelled or the bus closes.
func (h *Hub) Run(ctx context.Context) {
	events := h.bus.SubscribeMultiple(eventbus.TopicStatusSnapshot, eventbus.TopicTopologyChanged)
	defer h.closeAll()

	h.logger.Info("websocket hub started",
		"snapshot_subscribers", h.bus.SubscriberCount(eventbus.TopicStatusSnapshot),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "client_id", client.id, "clients", n)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "client_id", client.id, "clients", n)
		case event, ok := <-events:
			if !ok {
				return
			}
			h.relay(event)
		}
	}
}

func (h *Hub) relay(event eventbus.Event) {
	msgType := TypeStatusSnapshot
	if event.Topic == eventbus.TopicTopologyChanged {
		msgType = TypeTopologyChanged
	}

	message, err := encode(msgType, event.Payload)
	if err != nil {
		h.logger.Error("failed to encode websocket message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			h.logger.Warn("websocket client is slow, dropping message", "client_id", client.id, "type", msgType)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(h.done)
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.logger.Info("websocket hub stopped")
}

func (h *Hub) PublishSnapshot(ctx context.Context, snap *models.Snapshot) error {
	_, err := h.bus.Publish(ctx, eventbus.TopicStatusSnapshot, snap)
	return err
}

func (h *Hub) PublishTopologyChange(ctx context.Context, links []models.Link) error {
	if links == nil {
		links = []models.Link{}
	}
	_, err := h.bus.Publish(ctx, eventbus.TopicTopologyChanged, links)
	return err
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams messages to the peer. The current
// snapshot, if any, is sent first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.buffer),
	}

	if snap := h.current(); snap != nil {
		if msg, err := encode(TypeStatusSnapshot, snap); err == nil {
			client.send <- msg
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound messages; reading is required to process
// control frames.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket client closed unexpectedly", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// writePump sends one websocket frame per message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
