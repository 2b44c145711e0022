package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/event"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// SnapshotFunc produces the current session views for a newly connected
// client.
type SnapshotFunc func() ([]event.View, error)

// Broadcaster fans session snapshots and due alerts out to connected
// WebSocket clients.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	snapshot SnapshotFunc
	log      *zap.Logger
}

func NewBroadcaster(snapshot SnapshotFunc, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		snapshot: snapshot,
		log:      log,
	}
}

// AddClient registers a connection and primes it with a snapshot so the
// observer renders current state before the first push arrives.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	if views, err := b.snapshot(); err == nil {
		data, _ := json.Marshal(Message{
			Type:    MsgSnapshot,
			Payload: SnapshotPayload{Sessions: views},
		})
		select {
		case c.send <- data:
		default:
			// Client too slow, drop the snapshot
		}
	} else {
		b.log.Warn("snapshot for new client failed", zap.Error(err))
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// BroadcastAlerts pushes freshly due alerts to every client.
func (b *Broadcaster) BroadcastAlerts(alerts []alert.Alert) {
	if len(alerts) == 0 {
		return
	}
	b.broadcast(Message{Type: MsgAlerts, Payload: AlertsPayload{Alerts: alerts}})
}

// BroadcastSnapshot pushes the full session set with derived statuses.
func (b *Broadcaster) BroadcastSnapshot(views []event.View) {
	b.broadcast(Message{Type: MsgSnapshot, Payload: SnapshotPayload{Sessions: views}})
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error("broadcast marshal failed", zap.Error(err))
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			b.log.Warn("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
