// Package event defines the session record, its time-of-day representation
// and the pure status classification shared by the server and the poller.
package event

import "time"

// Session is one scheduled equipment-loan event. ID and CreatedAt are
// assigned by the store on creation and immutable afterwards.
type Session struct {
	ID         int64     `json:"id"`
	Location   string    `json:"location"`
	Instructor string    `json:"instructor"`
	StartTime  ClockTime `json:"startTime"`
	EndTime    ClockTime `json:"endTime"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StatusAt returns the derived lifecycle state of the session at now.
func (s Session) StatusAt(now ClockTime) Status {
	return Classify(now, s.StartTime, s.EndTime)
}

// View is a session together with its status derived at a given instant.
// It is the wire shape for list responses and snapshot pushes.
type View struct {
	Session
	Status Status `json:"status"`
}

// Views derives the status of every session at now, preserving order.
func Views(sessions []Session, now ClockTime) []View {
	views := make([]View, len(sessions))
	for i, s := range sessions {
		views[i] = View{Session: s, Status: s.StatusAt(now)}
	}
	return views
}
