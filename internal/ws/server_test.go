package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/config"
	"github.com/Carlos-paez/formaciones/internal/event"
	"github.com/Carlos-paez/formaciones/internal/store"
	"github.com/Carlos-paez/formaciones/internal/watch"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *httptest.Server) {
	t.Helper()
	log := zap.NewNop()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "events.db"), log)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	engine := alert.NewEngine(cfg.Alerts.WarningOffsets, cfg.Alerts.ToleranceMinutes)
	dedup := alert.NewDedup(cfg.Alerts.DedupCapacity, cfg.Alerts.DedupMaxAge)

	broadcaster := NewBroadcaster(func() ([]event.View, error) {
		sessions, err := st.List(context.Background())
		if err != nil {
			return nil, err
		}
		return event.Views(sessions, event.At(time.Now())), nil
	}, log)

	watcher := watch.New(cfg, st, engine, dedup, broadcaster, log)
	srv := NewServer(st, broadcaster, engine, watcher, log)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return srv, st, ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestCreateAndList(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", createRequest{
		Location: "Lab1", Instructor: "Ana", StartTime: "09:00", EndTime: "10:00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[createResponse](t, resp)
	if !created.Success || created.ID <= 0 {
		t.Fatalf("create response = %+v", created)
	}

	listResp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	views := decode[[]event.View](t, listResp)
	if len(views) != 1 {
		t.Fatalf("list returned %d events, want 1", len(views))
	}
	if views[0].ID != created.ID || views[0].Location != "Lab1" {
		t.Errorf("listed view = %+v", views[0])
	}
	if views[0].Status != event.Pending && views[0].Status != event.Active && views[0].Status != event.Finished {
		t.Errorf("view carries no derived status: %+v", views[0])
	}
}

func TestCreateValidationError(t *testing.T) {
	_, st, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/events", createRequest{
		Location: "", Instructor: "Ana", StartTime: "09:00", EndTime: "10:00",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decode[createResponse](t, resp)
	if body.Success {
		t.Error("validation failure reported success")
	}

	if n, _ := st.Count(context.Background()); n != 0 {
		t.Errorf("Count = %d after rejected create, want 0", n)
	}
}

func TestCreateMalformedJSON(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/events", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDeleteFlow(t *testing.T) {
	_, _, ts := newTestServer(t)

	created := decode[createResponse](t, postJSON(t, ts.URL+"/api/events", createRequest{
		Location: "Lab1", Instructor: "Ana", StartTime: "09:00", EndTime: "10:00",
	}))

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/events/%d", ts.URL, created.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	del := decode[deleteResponse](t, resp)
	if !del.Success || del.DeletedID != created.ID {
		t.Fatalf("delete response = %+v", del)
	}

	// Second delete: NotFound, with diagnostics rather than a second success.
	req, _ = http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/events/%d", ts.URL, created.ID), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
	again := decode[deleteResponse](t, resp)
	if again.Success {
		t.Error("second delete reported success")
	}
}

func TestDeleteNotFoundListsAvailableIDs(t *testing.T) {
	_, _, ts := newTestServer(t)

	created := decode[createResponse](t, postJSON(t, ts.URL+"/api/events", createRequest{
		Location: "Lab1", Instructor: "Ana", StartTime: "09:00", EndTime: "10:00",
	}))

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/events/999", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body := decode[deleteResponse](t, resp)
	if len(body.AvailableIDs) != 1 || body.AvailableIDs[0] != created.ID {
		t.Errorf("AvailableIDs = %v, want [%d]", body.AvailableIDs, created.ID)
	}
}

func TestDeleteIDFromQueryAndBody(t *testing.T) {
	_, _, ts := newTestServer(t)

	first := decode[createResponse](t, postJSON(t, ts.URL+"/api/events", createRequest{
		Location: "Lab1", Instructor: "Ana", StartTime: "09:00", EndTime: "10:00",
	}))
	second := decode[createResponse](t, postJSON(t, ts.URL+"/api/events", createRequest{
		Location: "Lab2", Instructor: "Luis", StartTime: "11:00", EndTime: "12:00",
	}))

	// Query string form.
	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/events/?id=%d", ts.URL, first.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if del := decode[deleteResponse](t, resp); !del.Success {
		t.Errorf("query-form delete failed: %+v", del)
	}

	// JSON body form.
	body, _ := json.Marshal(map[string]int64{"id": second.ID})
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/events/", bytes.NewReader(body))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if del := decode[deleteResponse](t, resp); !del.Success {
		t.Errorf("body-form delete failed: %+v", del)
	}
}

func TestDeleteMalformedID(t *testing.T) {
	_, _, ts := newTestServer(t)

	for _, path := range []string{"/api/events/abc", "/api/events/-4", "/api/events/"} {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("DELETE %s status = %d, want 400", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	health := decode[watch.Health](t, resp)
	if health.Status != watch.StatusHealthy {
		t.Errorf("health status = %s, want healthy", health.Status)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, _, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

// Full lifecycle: create, observe derived status, watch the warning and
// finished boundaries come due, then delete.
func TestEventLifecycle(t *testing.T) {
	srv, _, ts := newTestServer(t)

	created := decode[createResponse](t, postJSON(t, ts.URL+"/api/events", createRequest{
		Location: "Lab1", Instructor: "Ana", StartTime: "09:00", EndTime: "10:00",
	}))
	if !created.Success {
		t.Fatalf("create failed: %+v", created)
	}

	at := func(h, m int) func() time.Time {
		return func() time.Time { return time.Date(2025, 3, 14, h, m, 0, 0, time.Local) }
	}

	srv.now = at(8, 30)
	listResp, _ := http.Get(ts.URL + "/api/events")
	views := decode[[]event.View](t, listResp)
	if len(views) != 1 || views[0].Status != event.Pending {
		t.Fatalf("at 08:30 views = %+v, want one pending", views)
	}

	srv.now = at(9, 50)
	alertsResp, _ := http.Get(ts.URL + "/api/alerts")
	payload := decode[AlertsPayload](t, alertsResp)
	if len(payload.Alerts) != 1 {
		t.Fatalf("at 09:50 alerts = %+v, want one", payload.Alerts)
	}
	if a := payload.Alerts[0]; a.Kind != alert.KindWarning || a.Offset != 10 || a.Session.ID != created.ID {
		t.Errorf("at 09:50 alert = %+v, want Warning(10) for event %d", a, created.ID)
	}

	srv.now = at(10, 0)
	alertsResp, _ = http.Get(ts.URL + "/api/alerts")
	payload = decode[AlertsPayload](t, alertsResp)
	if len(payload.Alerts) != 1 || payload.Alerts[0].Kind != alert.KindFinished {
		t.Fatalf("at 10:00 alerts = %+v, want one finished", payload.Alerts)
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/events/%d", ts.URL, created.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if del := decode[deleteResponse](t, resp); !del.Success {
		t.Fatalf("delete failed: %+v", del)
	}

	listResp, _ = http.Get(ts.URL + "/api/events")
	if views := decode[[]event.View](t, listResp); len(views) != 0 {
		t.Errorf("after delete list = %+v, want empty", views)
	}
}
