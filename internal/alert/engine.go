// Package alert derives due alert conditions from wall-clock time and
// suppresses repeated deliveries of the same condition.
package alert

import (
	"fmt"
	"sort"

	"github.com/Carlos-paez/formaciones/internal/event"
)

// Kind classifies an alert.
type Kind string

const (
	KindWarning  Kind = "warning"
	KindFinished Kind = "finished"
)

// Alert is one due condition for one session at one evaluation tick.
type Alert struct {
	Kind             Kind          `json:"kind"`
	Offset           int           `json:"offset"` // minutes before end; 0 for finished
	MinutesRemaining int           `json:"minutesRemaining,omitempty"`
	Session          event.Session `json:"event"`
	Message          string        `json:"message"`
}

// Engine evaluates which boundaries are due at a given instant. It is
// stateless; duplicate suppression across ticks belongs to Dedup.
type Engine struct {
	offsets   []int // warning offsets in minutes before end, ascending
	tolerance int   // due window width in minutes
}

// NewEngine builds an engine with the given warning offsets (minutes before
// end) and tolerance. The tolerance widens each boundary's due window so a
// boundary cannot be missed between polling ticks, provided ticks come more
// often than once per tolerance minute.
func NewEngine(offsets []int, tolerance int) *Engine {
	sorted := make([]int, 0, len(offsets))
	for _, o := range offsets {
		if o > 0 {
			sorted = append(sorted, o)
		}
	}
	sort.Ints(sorted)
	if tolerance < 1 {
		tolerance = 1
	}
	return &Engine{offsets: sorted, tolerance: tolerance}
}

// Offsets returns the configured warning offsets, ascending.
func (e *Engine) Offsets() []int {
	out := make([]int, len(e.offsets))
	copy(out, e.offsets)
	return out
}

// Evaluate returns the alerts due at now for the given sessions. Sessions are
// visited in input order, so repeated evaluations inside one tick produce a
// stable sequence. Per session at most one warning fires — the smallest due
// offset, i.e. the boundary closest to the end — while the finished boundary
// is evaluated independently and may fire in addition.
func (e *Engine) Evaluate(now event.ClockTime, sessions []event.Session) []Alert {
	var due []Alert
	for _, sess := range sessions {
		for _, offset := range e.offsets {
			if !e.boundaryDue(now, sess.EndTime, offset) {
				continue
			}
			due = append(due, warningAlert(now, sess, offset))
			break
		}
		if e.boundaryDue(now, sess.EndTime, 0) {
			due = append(due, finishedAlert(sess))
		}
	}
	return due
}

// boundaryDue reports whether the boundary at offset minutes before end is
// inside its due window at now. The trigger time wraps modulo the day, so an
// offset reaching past midnight (end 00:05, offset 10) triggers at 23:55 the
// "previous" evening of the circular day.
func (e *Engine) boundaryDue(now, end event.ClockTime, offset int) bool {
	trigger := (int(end) - offset) % event.MinutesPerDay
	if trigger < 0 {
		trigger += event.MinutesPerDay
	}
	elapsed := (int(now) - trigger + event.MinutesPerDay) % event.MinutesPerDay
	return elapsed <= e.tolerance
}

func warningAlert(now event.ClockTime, sess event.Session, offset int) Alert {
	remaining := (int(sess.EndTime) - int(now) + event.MinutesPerDay) % event.MinutesPerDay
	return Alert{
		Kind:             KindWarning,
		Offset:           offset,
		MinutesRemaining: remaining,
		Session:          sess,
		Message: fmt.Sprintf("The session at %s with instructor %s ends in %d minutes.",
			sess.Location, sess.Instructor, remaining),
	}
}

func finishedAlert(sess event.Session) Alert {
	return Alert{
		Kind:    KindFinished,
		Session: sess,
		Message: fmt.Sprintf("The session at %s with instructor %s has ended. The loaned equipment needs reconfiguring.",
			sess.Location, sess.Instructor),
	}
}
