// internal/web/websocket.go
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"lanmap/internal/discovery"
	"lanmap/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // LAN tool, served on the same network it maps
	},
}

// Hub tracks connected clients and relays discovery events to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*WSClient]bool
	metrics *metrics.Collector
}

func NewHub(metricsCollector *metrics.Collector) *Hub {
	return &Hub{
		clients: make(map[*WSClient]bool),
		metrics: metricsCollector,
	}
}

// Run pumps the discovery event stream into the broadcast path until the
// context ends.
func (h *Hub) Run(ctx context.Context, bus *discovery.Bus) {
	events, cancel := bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(event)
		}
	}
}

type WSClient struct {
	conn *websocket.Conn
	send chan discovery.Event
	hub  *Hub
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade websocket")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan discovery.Event, 256),
		hub:  s.hub,
	}

	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.metrics.RecordWebSocketConnection(1)
}

func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		h.metrics.RecordWebSocketConnection(-1)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(event discovery.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			// Slow client: drop it rather than stall the run.
			close(client.send)
			delete(h.clients, client)
			h.metrics.RecordWebSocketConnection(-1)
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
