package event

import "encoding/json"

// Status is the derived lifecycle state of a session. It is never persisted;
// it is recomputed from the session's time window on every read so it can
// never go stale against the wall clock.
type Status int

const (
	Pending Status = iota
	Active
	Finished
)

var statusNames = map[Status]string{
	Pending:  "pending",
	Active:   "active",
	Finished: "finished",
}

var statusFromName = map[string]Status{
	"pending":  Pending,
	"active":   Active,
	"finished": Finished,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// Classify maps an instant to the lifecycle state of a (start, end) window.
// Times are compared as plain minutes since midnight; a window whose end is
// numerically smaller than its start (crossing midnight) gets no special
// treatment and reads as finished for most of the day.
func Classify(now, start, end ClockTime) Status {
	switch {
	case now >= end:
		return Finished
	case now >= start:
		return Active
	default:
		return Pending
	}
}
