// Package broadcast pushes sentiment updates to dashboard websocket
// clients. One hub goroutine owns the client set; publishers never block
// on a slow client.
package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"smartmoney-sentiment/internal/domain"
	"smartmoney-sentiment/internal/observability"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second
	// pongWait is how long a client may stay silent before the read pump
	// gives up on it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-client outbound queue. Updates beyond it are
	// dropped for that client; the next update catches it up.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from arbitrary origins in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope is the wire frame for every push.
type envelope struct {
	Type string         `json:"type"`
	Data *domain.Result `json:"data"`
}

// Hub fans sentiment updates out to connected websocket clients. Create
// with NewHub and start Run in its own goroutine before serving.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	mu   sync.RWMutex
	last []byte // most recent frame, replayed to new clients

	metrics *observability.Metrics
	logger  *log.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics wires the client gauge.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithLogger sets the hub logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates a hub. Run must be started for it to do anything.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendBuffer),
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// PublishSentiment serialises the result once and queues it for fan-out.
// Never blocks: if the hub is backed up the frame is dropped, the next
// cycle's result supersedes it anyway.
func (h *Hub) PublishSentiment(res *domain.Result) {
	frame, err := json.Marshal(envelope{Type: "sentiment", Data: res})
	if err != nil {
		h.logger.Printf("marshal sentiment frame: %v", err)
		return
	}

	h.mu.Lock()
	h.last = frame
	h.mu.Unlock()

	select {
	case h.broadcast <- frame:
	default:
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})
	defer func() {
		for c := range clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			h.setClientGauge(len(clients))
			h.logger.Printf("ws client connected (%d total)", len(clients))
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.setClientGauge(len(clients))
				h.logger.Printf("ws client disconnected (%d total)", len(clients))
			}
		case frame := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- frame:
				default:
					// Slow client: skip this update, keep the connection.
				}
			}
		}
	}
}

func (h *Hub) setClientGauge(n int) {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}

// ServeWS upgrades the request and attaches the client to the hub. New
// clients immediately receive the most recent sentiment frame so the
// dashboard renders without waiting for the next cycle.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws upgrade failed: %v", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.RLock()
	last := h.last
	h.mu.RUnlock()
	if last != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, last); err != nil {
			conn.Close()
			return
		}
	}

	h.register <- c
	go c.writePump()
	go c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump drains inbound frames; the protocol is push-only, reads exist
// to surface disconnects and answer pings.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
