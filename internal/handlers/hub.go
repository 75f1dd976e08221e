// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/blindtest/internal/game"
	"github.com/jason-s-yu/blindtest/internal/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is the outbound buffer per connection.
const DefaultQueueSize = 32

// Connection is one accepted websocket client.
type Connection struct {
	ID      string
	Remote  string
	OutChan chan []byte

	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub tracks live connections and delivers events to them. It implements
// game.Notifier; every write is a non-blocking enqueue.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	logger    *logrus.Logger
	metrics   *metrics.Metrics
	QueueSize int
}

var _ game.Notifier = (*Hub)(nil)

func NewHub(logger *logrus.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		conns:     make(map[string]*Connection),
		logger:    logger,
		metrics:   m,
		QueueSize: DefaultQueueSize,
	}
}

// Register assigns a fresh connection id to ws and starts tracking it.
func (h *Hub) Register(ws *websocket.Conn, remote string, cancel context.CancelFunc) *Connection {
	conn := &Connection{
		ID:      uuid.NewString(),
		Remote:  remote,
		OutChan: make(chan []byte, h.QueueSize),
		ws:      ws,
		cancel:  cancel,
	}
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
	h.metrics.IncConnections()
	return conn
}

// Unregister stops tracking id and closes its queue. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	conn, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
		close(conn.OutChan)
	}
	h.mu.Unlock()
	if ok {
		h.metrics.DecConnections()
	}
}

// Count is the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast delivers ev to each of members.
func (h *Hub) Broadcast(members []string, ev game.Event) {
	data, err := json.Marshal(outbound{Event: string(ev.Type), Data: ev.Data})
	if err != nil {
		h.logger.Errorf("marshal %s event: %v", ev.Type, err)
		return
	}
	for _, id := range members {
		h.deliver(id, data, string(ev.Type))
	}
}

// Send delivers ev to a single connection.
func (h *Hub) Send(connID string, ev game.Event) {
	h.Broadcast([]string{connID}, ev)
}

// Reply sends a gateway-level frame (ack or error) to connID, echoing id.
func (h *Hub) Reply(connID, event string, id *int64, data interface{}) {
	frame, err := json.Marshal(outbound{Event: event, ID: id, Data: data})
	if err != nil {
		h.logger.Errorf("marshal %s reply: %v", event, err)
		return
	}
	h.deliver(connID, frame, event)
}

func (h *Hub) deliver(connID string, data []byte, event string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case conn.OutChan <- data:
	default:
		h.logger.WithFields(logrus.Fields{"conn": connID, "event": event}).
			Warn("outbound queue full, dropped message")
	}
}

// CloseAll closes every connection with code. It waits for the close handshakes.
func (h *Hub) CloseAll(code websocket.StatusCode, reason string) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			if c.ws != nil {
				_ = c.ws.Close(code, reason)
			}
			if c.cancel != nil {
				c.cancel()
			}
		}(c)
	}
	wg.Wait()
}
