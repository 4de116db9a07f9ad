package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/dkoutsos/agentsim/internal/model"
	"github.com/dkoutsos/agentsim/internal/natsbus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks the set of connected observers and fans serialized events out
// to them. Delivery is at-most-once: a failed write closes and removes the
// connection without retry, and never affects delivery to the others.
// gorilla/websocket allows one writer per connection, so every registered
// connection carries a write lock shared by the fan-out and echo paths.
type Hub struct {
	clients   map[*websocket.Conn]*sync.Mutex
	broadcast chan []byte
	mu        sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]*sync.Mutex),
		broadcast: make(chan []byte, 256),
	}
}

// Run drains the broadcast channel until ctx is cancelled, preserving the
// order messages were submitted in.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg []byte) {
	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for c, wl := range h.clients {
		conns[c] = wl
	}
	h.mu.RUnlock()

	var dead []*websocket.Conn
	for c, wl := range conns {
		wl.Lock()
		err := c.WriteMessage(websocket.TextMessage, msg)
		wl.Unlock()
		if err != nil {
			c.Close()
			dead = append(dead, c)
		}
	}
	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			delete(h.clients, c)
		}
		h.mu.Unlock()
	}
}

// Broadcast submits a message for fan-out. Never blocks the caller; if the
// buffer is full the message is dropped.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("websocket broadcast channel full, dropping event")
	}
}

// Send delivers a message to exactly one observer. No-op if the connection
// is not registered; a failed write prunes the connection silently.
func (h *Hub) Send(conn *websocket.Conn, msg []byte) {
	h.mu.RLock()
	wl, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	wl.Lock()
	err := conn.WriteMessage(websocket.TextMessage, msg)
	wl.Unlock()
	if err != nil {
		conn.Close()
		h.Unregister(conn)
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &sync.Mutex{}
}

// Unregister removes a connection. No-op if it is already gone.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	simulationID := r.PathValue("session_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "simulation", simulationID, "error", err)
		return
	}

	s.hub.Register(conn)
	slog.Info("observer connected", "simulation", simulationID)
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
		slog.Info("observer disconnected", "simulation", simulationID)
	}()

	// Inbound messages carry no command semantics; echo them back.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.hub.Send(conn, []byte("You sent: "+string(data)))
	}
}

// subscribeEvents forwards every simulation event on the bus to the hub as
// raw JSON, keeping publish order.
func (s *Server) subscribeEvents() error {
	if s.bus == nil {
		return nil
	}
	client, err := natsbus.NewClient(s.bus)
	if err != nil {
		return fmt.Errorf("web server nats client: %w", err)
	}
	s.nats = client

	_, err = client.Subscribe(natsbus.TopicEventsSimulation, func(msg *nats.Msg) {
		var ev model.SimulationEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("invalid event payload on bus", "error", err)
			return
		}
		s.hub.Broadcast(msg.Data)
	})
	return err
}
