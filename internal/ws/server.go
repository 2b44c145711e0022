// Package ws exposes the HTTP API and the WebSocket push channel.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/event"
	"github.com/Carlos-paez/formaciones/internal/store"
	"github.com/Carlos-paez/formaciones/internal/watch"
)

type Server struct {
	store       *store.Store
	broadcaster *Broadcaster
	engine      *alert.Engine
	watcher     *watch.Watcher
	log         *zap.Logger
	now         func() time.Time
}

func NewServer(st *store.Store, broadcaster *Broadcaster, engine *alert.Engine, watcher *watch.Watcher, log *zap.Logger) *Server {
	return &Server{
		store:       st,
		broadcaster: broadcaster,
		engine:      engine,
		watcher:     watcher,
		log:         log,
		now:         time.Now,
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/events/", s.handleEventByID)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/health", s.handleHealth)
}

// Response envelopes mirror the contract the original clients consumed.

type createRequest struct {
	Location   string `json:"location"`
	Instructor string `json:"instructor"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

type createResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

type deleteResponse struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	DeletedID    int64   `json:"deletedId,omitempty"`
	AvailableIDs []int64 `json:"availableIds,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.listEvents(w, r)
	case http.MethodPost:
		s.createEvent(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, createResponse{Success: false, Message: "method not allowed"})
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error("list failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load events"})
		return
	}
	writeJSON(w, http.StatusOK, event.Views(sessions, event.At(s.now())))
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, createResponse{Success: false, Message: "invalid JSON payload"})
		return
	}

	sess, err := s.store.Create(r.Context(), req.Location, req.Instructor, req.StartTime, req.EndTime)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, createResponse{Success: false, Message: verr.Error()})
			return
		}
		s.log.Error("create failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, createResponse{Success: false, Message: "could not save the event"})
		return
	}

	writeJSON(w, http.StatusOK, createResponse{
		Success: true,
		Message: "event saved",
		ID:      sess.ID,
	})
}

func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete, http.MethodPost:
		s.deleteEvent(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, deleteResponse{Success: false, Message: "method not allowed"})
	}
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := resolveID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, deleteResponse{Success: false, Message: err.Error()})
		return
	}

	deletedID, err := s.store.Delete(r.Context(), id)
	if err != nil {
		var nf *store.NotFoundError
		switch {
		case errors.As(err, &nf):
			writeJSON(w, http.StatusNotFound, deleteResponse{
				Success:      false,
				Message:      fmt.Sprintf("no event with id %d", id),
				AvailableIDs: nf.AvailableIDs,
			})
		default:
			s.log.Error("delete failed", zap.Int64("id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, deleteResponse{Success: false, Message: "could not delete the event"})
		}
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Success:   true,
		Message:   "event deleted",
		DeletedID: deletedID,
	})
}

// resolveID extracts the event id from the URL path, the query string or a
// JSON body, in that order. The original endpoint accepted all three.
func resolveID(r *http.Request) (int64, error) {
	if raw := strings.TrimPrefix(r.URL.Path, "/api/events/"); raw != "" {
		id, err := strconv.ParseInt(strings.Trim(raw, "/"), 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid event id %q", raw)
		}
		return id, nil
	}
	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid event id %q", raw)
		}
		return id, nil
	}
	var body struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.ID > 0 {
		return body.ID, nil
	}
	return 0, errors.New("event id missing or not a positive integer")
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sessions, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error("alert check failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not check alerts"})
		return
	}

	// Evaluation only; duplicate suppression is the caller's concern, so a
	// late or retried poll still sees everything currently due.
	due := s.engine.Evaluate(event.At(s.now()), sessions)
	if due == nil {
		due = []alert.Alert{}
	}
	writeJSON(w, http.StatusOK, AlertsPayload{Alerts: due})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	writeJSON(w, http.StatusOK, s.watcher.Health(r.Context()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	s.log.Info("ws client connected", zap.String("remote", r.RemoteAddr))
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.log.Info("ws client disconnected", zap.String("remote", r.RemoteAddr))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// ListenAndServe starts the HTTP server for the given mux.
func ListenAndServe(host string, port int, mux *http.ServeMux, log *zap.Logger) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Info("server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}
