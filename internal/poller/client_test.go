package poller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/event"
)

func TestEvents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]event.View{
			{Session: event.Session{ID: 1, Location: "Lab1"}, Status: event.Active},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	views, err := c.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(views) != 1 || views[0].ID != 1 || views[0].Status != event.Active {
		t.Errorf("views = %+v", views)
	}
}

func TestAlertsUnwrapsPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"alerts": []alert.Alert{{Kind: alert.KindWarning, Offset: 10, MinutesRemaining: 10}},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	alerts, err := c.Alerts()
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Kind != alert.KindWarning {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestCreateEventValidationEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(CreateResult{Success: false, Message: "invalid location: required"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	res, err := c.CreateEvent("", "Ana", "09:00", "10:00")
	if err != nil {
		t.Fatalf("CreateEvent returned transport error for expected failure: %v", err)
	}
	if res.Success || res.Message == "" {
		t.Errorf("result = %+v, want failure with message", res)
	}
}

func TestDeleteEventNotFoundEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(DeleteResult{
			Success: false, Message: "no event with id 9", AvailableIDs: []int64{1, 2},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	res, err := c.DeleteEvent(9)
	if err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if res.Success {
		t.Error("NotFound reported success")
	}
	if len(res.AvailableIDs) != 2 {
		t.Errorf("AvailableIDs = %v", res.AvailableIDs)
	}
}

// A poll that exceeds the client timeout fails instead of hanging; the
// caller falls back to its next scheduled tick.
func TestRequestTimeoutBounded(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	c := NewClient(ts.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := c.Events()
	if err == nil {
		t.Fatal("Events succeeded against a stalled server")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v, want bounded by client timeout", elapsed)
	}
}

func TestServerErrorIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	if _, err := c.Events(); err == nil {
		t.Error("Events against failing server returned nil error")
	}
	if _, err := c.Alerts(); err == nil {
		t.Error("Alerts against failing server returned nil error")
	}
}
