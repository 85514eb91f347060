// Package watch streams solver.Progress snapshots from a running Trainer to
// remote dashboards over a websocket: a read-only telemetry channel, never
// the solver's control plane, grounded on the teacher's
// internal/server/connection.go per-connection send-channel/writePump
// pattern and sdk/ws_client.go's dial convention for the companion client in
// cmd/solver-watch.
package watch

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdem-solver/sdk/solver"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster fans out solver.Progress snapshots to every connected
// cmd/solver-watch client.
type Broadcaster struct {
	logger *log.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewBroadcaster builds a Broadcaster ready to serve connections at its
// ServeHTTP handler and publish progress snapshots to them.
func NewBroadcaster(logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{logger: logger, clients: make(map[*client]struct{})}
}

// ServeHTTP upgrades the request to a websocket and registers the connection
// as a progress subscriber until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	go b.writePump(c)
	go b.readPump(c)
}

func (b *Broadcaster) readPump(c *client) {
	defer b.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

// Publish encodes p as JSON and pushes it to every connected client,
// skipping this message for any client whose send buffer is full rather than
// blocking training; the client stays connected.
func (b *Broadcaster) Publish(p solver.Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		b.logger.Error("marshal progress", "err", err)
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			b.logger.Warn("dropping slow watch client")
		}
	}
}
