package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/event"
)

func dialTestWS(t *testing.T, b *Broadcaster) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		b.AddClient(conn)
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

func TestNewClientReceivesSnapshot(t *testing.T) {
	views := []event.View{{
		Session: event.Session{ID: 1, Location: "Lab1", Instructor: "Ana"},
		Status:  event.Active,
	}}
	b := NewBroadcaster(func() ([]event.View, error) { return views, nil }, zap.NewNop())

	conn := dialTestWS(t, b)

	msg := readMessage(t, conn)
	if msg.Type != MsgSnapshot {
		t.Fatalf("first message type = %s, want snapshot", msg.Type)
	}
	payload, _ := json.Marshal(msg.Payload)
	var snap SnapshotPayload
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("snapshot payload: %v", err)
	}
	if len(snap.Sessions) != 1 || snap.Sessions[0].ID != 1 || snap.Sessions[0].Status != event.Active {
		t.Errorf("snapshot = %+v", snap.Sessions)
	}
}

func TestBroadcastAlertsReachesClients(t *testing.T) {
	b := NewBroadcaster(func() ([]event.View, error) { return nil, nil }, zap.NewNop())

	conn := dialTestWS(t, b)
	readMessage(t, conn) // initial snapshot

	// Wait for registration before broadcasting.
	deadline := time.Now().Add(time.Second)
	for b.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	b.BroadcastAlerts([]alert.Alert{{
		Kind:    alert.KindWarning,
		Offset:  10,
		Session: event.Session{ID: 7, Location: "Lab1"},
	}})

	msg := readMessage(t, conn)
	if msg.Type != MsgAlerts {
		t.Fatalf("message type = %s, want alerts", msg.Type)
	}
	payload, _ := json.Marshal(msg.Payload)
	var alerts AlertsPayload
	if err := json.Unmarshal(payload, &alerts); err != nil {
		t.Fatalf("alerts payload: %v", err)
	}
	if len(alerts.Alerts) != 1 || alerts.Alerts[0].Session.ID != 7 {
		t.Errorf("alerts = %+v", alerts.Alerts)
	}
}

func TestBroadcastAlertsSkipsEmpty(t *testing.T) {
	b := NewBroadcaster(func() ([]event.View, error) { return nil, nil }, zap.NewNop())
	// Must not panic or send anything with no clients and no alerts.
	b.BroadcastAlerts(nil)
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", b.ClientCount())
	}
}

func TestRemoveClientTwice(t *testing.T) {
	b := NewBroadcaster(func() ([]event.View, error) { return nil, nil }, zap.NewNop())
	conn := dialTestWS(t, b)
	readMessage(t, conn)

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	b.mu.RLock()
	var c *client
	for cl := range b.clients {
		c = cl
	}
	b.mu.RUnlock()
	if c == nil {
		t.Fatal("no registered client")
	}

	b.RemoveClient(c)
	b.RemoveClient(c) // second removal must be a no-op, not a double close
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", b.ClientCount())
	}
}
