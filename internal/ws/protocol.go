package ws

import (
	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/event"
)

type MessageType string

const (
	// MsgSnapshot carries the full session set with derived statuses.
	MsgSnapshot MessageType = "snapshot"
	// MsgAlerts carries alerts that just became due.
	MsgAlerts MessageType = "alerts"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Sessions []event.View `json:"sessions"`
}

type AlertsPayload struct {
	Alerts []alert.Alert `json:"alerts"`
}
