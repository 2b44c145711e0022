package poller

import (
	"context"
	"encoding/json"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/event"
	"github.com/Carlos-paez/formaciones/internal/ws"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// WSClient listens for server pushes so due alerts surface between polls.
type WSClient struct {
	url  string
	conn *websocket.Conn
}

// NewWSClient creates a client for the given WebSocket URL
// (e.g. "ws://127.0.0.1:8080/ws").
func NewWSClient(url string) *WSClient {
	return &WSClient{url: url}
}

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSSnapshotMsg delivers a pushed session snapshot.
type WSSnapshotMsg struct{ Sessions []event.View }

// WSAlertsMsg delivers pushed due alerts.
type WSAlertsMsg struct{ Alerts []alert.Alert }

// Listen returns a Bubble Tea command that dials with exponential backoff
// until connected or ctx is cancelled.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				delay *= 2
				if delay > reconnectMaxDelay {
					delay = reconnectMaxDelay
				}
				continue
			}

			c.conn = conn
			return WSConnectedMsg{}
		}
	}
}

// ReadNext returns a command that blocks for the next server push. The model
// re-issues it after each message; a failed read yields WSDisconnectedMsg and the
// model calls Listen again.
func (c *WSClient) ReadNext() tea.Cmd {
	conn := c.conn
	return func() tea.Msg {
		if conn == nil {
			return WSDisconnectedMsg{}
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return WSDisconnectedMsg{Err: err}
		}

		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			// Unknown frame; keep listening.
			return WSConnectedMsg{}
		}
		payload, err := json.Marshal(msg.Payload)
		if err != nil {
			return WSConnectedMsg{}
		}

		switch msg.Type {
		case ws.MsgSnapshot:
			var snap ws.SnapshotPayload
			if err := json.Unmarshal(payload, &snap); err != nil {
				return WSConnectedMsg{}
			}
			return WSSnapshotMsg{Sessions: snap.Sessions}
		case ws.MsgAlerts:
			var alerts ws.AlertsPayload
			if err := json.Unmarshal(payload, &alerts); err != nil {
				return WSConnectedMsg{}
			}
			return WSAlertsMsg{Alerts: alerts.Alerts}
		default:
			return WSConnectedMsg{}
		}
	}
}

// Close tears down the connection, unblocking any pending read.
func (c *WSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
