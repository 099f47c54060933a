// Package push fans session events out to websocket subscribers.
package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/metrics"
)

const sendBuffer = 64

// Publisher delivers session events to live clients.
type Publisher interface {
	Publish(event domain.PushEvent)
}

// Connection is one websocket subscriber bound to a session.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.Mutex
}

type sessionMessage struct {
	sessionID string
	data      []byte
}

// Hub tracks subscribers per session. Its lock guards connection bookkeeping only.
type Hub struct {
	connections map[string]*Connection
	sessions    map[string]map[string]*Connection

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan sessionMessage
	done       chan struct{}

	mu sync.RWMutex
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]*Connection),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan sessionMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.sessions[conn.SessionID] == nil {
				h.sessions[conn.SessionID] = make(map[string]*Connection)
			}
			h.sessions[conn.SessionID][conn.ID] = conn
			h.mu.Unlock()
			metrics.PushConnections.Inc()
			log.Debug().Str("conn_id", conn.ID).Str("session_id", conn.SessionID).Msg("push connection registered")

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Connection
			for _, conn := range h.sessions[msg.sessionID] {
				select {
				case conn.Send <- msg.data:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range slow {
				log.Warn().Str("conn_id", conn.ID).Msg("push buffer full, dropping connection")
				h.remove(conn)
			}
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if subs := h.sessions[conn.SessionID]; subs != nil {
		delete(subs, conn.ID)
		if len(subs) == 0 {
			delete(h.sessions, conn.SessionID)
		}
	}
	close(conn.Send)
	metrics.PushConnections.Dec()
	log.Debug().Str("conn_id", conn.ID).Msg("push connection unregistered")
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		h.remove(c)
	}
}

// NewConnection creates a connection bound to sessionID.
func (h *Hub) NewConnection(ws *websocket.Conn, sessionID string) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Conn:      ws,
		Send:      make(chan []byte, sendBuffer),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues an event for the session's subscribers. It never blocks the
// caller; events are dropped when the queue is full.
func (h *Hub) Publish(event domain.PushEvent) {
	if event.Ts == 0 {
		event.Ts = time.Now().UnixMilli()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("session_id", event.SessionID).Msg("failed to encode push event")
		return
	}
	select {
	case h.broadcast <- sessionMessage{sessionID: event.SessionID, data: data}:
	default:
		log.Warn().Str("session_id", event.SessionID).Str("type", string(event.Type)).Msg("push queue full, event dropped")
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasSubscribers reports whether a session has any active connections.
func (h *Hub) HasSubscribers(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}
