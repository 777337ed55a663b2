package changefeed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

type client struct {
	conn   *websocket.Conn
	send   chan ChangeEvent
	scopes map[string]struct{}
}

// Hub fans ChangeEvents out to connected sockets by scope intersection.
// Slow consumers are disconnected rather than allowed to block the fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	bufferSize int
	upgrader   websocket.Upgrader
	logg       *logger.Logger
}

// NewHub builds a hub using the configured per-connection send buffer.
func NewHub(cfg config.ChangefeedConfig, logg *logger.Logger) *Hub {
	bufferSize := cfg.SendBufferSize
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Hub{
		clients:    map[*client]struct{}{},
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logg: logg,
	}
}

// Broadcast delivers the event to every client whose scope set intersects
// the event's scopes. Clients with a full send buffer are dropped.
func (h *Hub) Broadcast(ctx context.Context, event ChangeEvent) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.matches(event.Scopes) {
			continue
		}
		select {
		case c.send <- event:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logg.Warn(ctx, "changefeed.client.dropped_slow")
		h.remove(c)
	}
}

// ClientCount reports the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and pumps events filtered by the caller's
// scope keys until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, scopes []string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		conn:   conn,
		send:   make(chan ChangeEvent, h.bufferSize),
		scopes: map[string]struct{}{},
	}
	for _, scope := range scopes {
		c.scopes[scope] = struct{}{}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = map[*client]struct{}{}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		_ = c.conn.Close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	if ok {
		close(c.send)
		_ = c.conn.Close()
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to
// process control frames and to notice closed connections.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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

func (c *client) matches(scopes []string) bool {
	for _, scope := range scopes {
		if _, ok := c.scopes[scope]; ok {
			return true
		}
	}
	return false
}
