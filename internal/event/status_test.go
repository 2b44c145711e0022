package event

import (
	"encoding/json"
	"testing"
)

func TestClassify(t *testing.T) {
	start := ClockTime(9 * 60)
	end := ClockTime(10 * 60)

	tests := []struct {
		name string
		now  ClockTime
		want Status
	}{
		{"well before start", ClockTime(8 * 60), Pending},
		{"minute before start", start - 1, Pending},
		{"exactly at start", start, Active},
		{"mid window", ClockTime(9*60 + 30), Active},
		{"minute before end", end - 1, Active},
		{"exactly at end", end, Finished},
		{"after end", ClockTime(11 * 60), Finished},
		{"midnight", ClockTime(0), Pending},
	}

	for _, tt := range tests {
		if got := Classify(tt.now, start, end); got != tt.want {
			t.Errorf("%s: Classify(%v) = %v, want %v", tt.name, tt.now, got, tt.want)
		}
	}
}

// Once a window reads finished it must stay finished for every later instant
// of the same day.
func TestClassifyMonotonicFinished(t *testing.T) {
	start := ClockTime(9 * 60)
	end := ClockTime(10 * 60)

	finishedSeen := false
	for now := ClockTime(0); now < MinutesPerDay; now++ {
		got := Classify(now, start, end)
		if got == Finished {
			finishedSeen = true
		} else if finishedSeen && now >= end {
			t.Fatalf("Classify(%v) = %v after being finished at %v", now, got, end)
		}
	}
	if !finishedSeen {
		t.Fatal("window never classified as finished")
	}
}

// An inverted window (end before start) is treated as finished as soon as
// now >= end, matching the permissive store behaviour.
func TestClassifyInvertedWindow(t *testing.T) {
	start := ClockTime(22 * 60)
	end := ClockTime(2 * 60)

	if got := Classify(ClockTime(12*60), start, end); got != Finished {
		t.Errorf("Classify(noon, 22:00, 02:00) = %v, want Finished", got)
	}
	if got := Classify(ClockTime(1*60), start, end); got != Pending {
		t.Errorf("Classify(01:00, 22:00, 02:00) = %v, want Pending", got)
	}
}

func TestStatusJSON(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Pending, `"pending"`},
		{Active, `"active"`},
		{Finished, `"finished"`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.status)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", tt.status, err)
		}
		if string(data) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.status, data, tt.want)
		}

		var back Status
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if back != tt.status {
			t.Errorf("round trip of %v = %v", tt.status, back)
		}
	}
}

func TestViewsDeriveStatus(t *testing.T) {
	sessions := []Session{
		{ID: 1, StartTime: ClockTime(9 * 60), EndTime: ClockTime(10 * 60)},
		{ID: 2, StartTime: ClockTime(11 * 60), EndTime: ClockTime(12 * 60)},
	}

	views := Views(sessions, ClockTime(9*60+30))
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2", len(views))
	}
	if views[0].Status != Active {
		t.Errorf("views[0].Status = %v, want Active", views[0].Status)
	}
	if views[1].Status != Pending {
		t.Errorf("views[1].Status = %v, want Pending", views[1].Status)
	}
	if views[0].ID != 1 || views[1].ID != 2 {
		t.Error("Views did not preserve order")
	}
}
