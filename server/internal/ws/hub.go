package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection timings and limits.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingEvery      = pongWait * 9 / 10 // must stay below pongWait
	clientQueue    = 32
	maxInboundSize = 512
)

// EventAlerts carries the full current alert list. Every client receives
// it regardless of its event filter.
const EventAlerts = "alerts"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients. Seq increases by one for
// every message the hub publishes, so a client can spot drops.
type Message struct {
	Seq   uint64 `json:"seq"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub fans plant events out to connected dashboards.
type Hub struct {
	snapshot func() any
	interval time.Duration

	mu      sync.RWMutex
	seq     uint64
	clients map[*conn]struct{}
}

// conn is one connected dashboard. A nil events set accepts every event.
type conn struct {
	ws     *websocket.Conn
	out    chan []byte
	events map[string]bool
}

func (c *conn) wants(event string) bool {
	return c.events == nil || event == EventAlerts || c.events[event]
}

// New creates a Hub. snapshot produces the alert list sent on connect and
// on every tick; it may be nil, in which case the hub only relays Publish.
func New(snapshot func() any, interval time.Duration) *Hub {
	return &Hub{
		snapshot: snapshot,
		interval: interval,
		clients:  make(map[*conn]struct{}),
	}
}

// Run re-sends the alert snapshot every interval until ctx is cancelled,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()

	if h.interval <= 0 || h.snapshot == nil {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Publish(EventAlerts, h.snapshot())
		}
	}
}

// ServeHTTP upgrades the request and serves the client until it goes away.
// ?events=sensor,anomaly limits what the client is sent; alert snapshots
// are always delivered, starting with one on connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // the upgrader already replied
	}
	c := &conn{
		ws:     ws,
		out:    make(chan []byte, clientQueue),
		events: parseEvents(r.URL.Query().Get("events")),
	}

	var current any
	if h.snapshot != nil {
		current = h.snapshot()
	}
	h.mu.Lock()
	if h.snapshot != nil {
		if msg, err := h.encodeLocked(EventAlerts, current); err == nil {
			c.out <- msg
		}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	slog.Debug("ws: client connected", "remote", r.RemoteAddr, "clients", h.Count())
	go c.writeLoop()
	c.readLoop()
	h.drop(c)
}

// Publish sends event to every client that accepts it. A client whose queue
// is full is disconnected. Data that cannot be encoded is logged and dropped.
func (h *Hub) Publish(event string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg, err := h.encodeLocked(event, data)
	if err != nil {
		slog.Error("ws: encode event", "event", event, "err", err)
		return
	}
	for c := range h.clients {
		if !c.wants(event) {
			continue
		}
		select {
		case c.out <- msg:
		default:
			h.removeLocked(c)
			slog.Warn("ws: client too slow, disconnected", "remote", c.ws.RemoteAddr().String(), "event", event)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) encodeLocked(event string, data any) ([]byte, error) {
	msg, err := json.Marshal(Message{Seq: h.seq + 1, Event: event, Data: data})
	if err != nil {
		return nil, err
	}
	h.seq++
	return msg, nil
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

// removeLocked forgets c and closes its queue, which ends its writeLoop.
func (h *Hub) removeLocked(c *conn) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.out)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func parseEvents(s string) map[string]bool {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			set[e] = true
		}
	}
	return set
}

// writeLoop forwards queued messages and keeps the connection alive with
// pings. It closes the socket when the queue is closed or a write fails.
func (c *conn) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	defer c.ws.Close()

	for {
		select {
		case msg, ok := <-c.out:
			if !ok {
				c.write(websocket.CloseMessage, nil) //nolint:errcheck
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) write(kind int, payload []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return c.ws.WriteMessage(kind, payload)
}

// readLoop discards inbound frames so pongs and close frames are handled,
// and returns once the peer is gone.
func (c *conn) readLoop() {
	c.ws.SetReadLimit(maxInboundSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			return
		}
	}
}
