// Package poller is the client side of the tracker: a bounded-timeout HTTP
// client for the events/alerts API and a WebSocket listener for live pushes.
package poller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/event"
	"github.com/Carlos-paez/formaciones/internal/watch"
	"github.com/Carlos-paez/formaciones/internal/ws"
)

// CreateResult is the server's create envelope.
type CreateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

// DeleteResult is the server's delete envelope. AvailableIDs is populated on
// NotFound as a diagnostic.
type DeleteResult struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	DeletedID    int64   `json:"deletedId,omitempty"`
	AvailableIDs []int64 `json:"availableIds,omitempty"`
}

// Client talks to the tracker's REST API. Every call is bounded by the
// configured timeout; a timed-out poll surfaces as an error the caller drops
// in favour of its next scheduled tick.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client targeting baseURL (e.g. "http://127.0.0.1:8080").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Events fetches the session list with derived statuses.
func (c *Client) Events() ([]event.View, error) {
	var views []event.View
	if err := c.get("/api/events", &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Alerts fetches the alerts currently due. Deduplication is the caller's
// job; the server reports everything inside the due window.
func (c *Client) Alerts() ([]alert.Alert, error) {
	var payload ws.AlertsPayload
	if err := c.get("/api/alerts", &payload); err != nil {
		return nil, err
	}
	return payload.Alerts, nil
}

// Health fetches the server health summary.
func (c *Client) Health() (*watch.Health, error) {
	var h watch.Health
	if err := c.get("/api/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// CreateEvent submits a new session. A rejected create (validation) comes
// back as a result with Success=false, not an error; errors are reserved for
// transport and server failures.
func (c *Client) CreateEvent(location, instructor, start, end string) (*CreateResult, error) {
	body := map[string]string{
		"location":   location,
		"instructor": instructor,
		"startTime":  start,
		"endTime":    end,
	}
	var res CreateResult
	if err := c.post("/api/events", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteEvent deletes by id. NotFound comes back as a result with
// Success=false and the available ids.
func (c *Client) DeleteEvent(id int64) (*DeleteResult, error) {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/events/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res DeleteResult
	if err := decodeEnvelope(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(path string, out any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

// decodeEnvelope decodes success and expected-failure envelopes alike;
// 4xx responses still carry a meaningful body. Anything undecodable or 5xx
// without an envelope is a transport-level error.
func decodeEnvelope(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %d: %s", resp.Request.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return nil
}
