// Package httpapi exposes the coordinator over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sirupsen/logrus"

	courier "github.com/inboxkit/courier"
	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/limits"
	"github.com/inboxkit/courier/version"
)

type ServerConfig struct {
	// APIKeys maps every accepted API key to the user it authenticates.
	APIKeys      map[string]string
	MaxBodyBytes int64

	// CountsInterval is how often event streams are sent fresh counters. Never if zero.
	CountsInterval time.Duration
}

type Server struct {
	coordinator *courier.Coordinator
	schema      *jsonschema.Schema

	cfg     ServerConfig
	cfgLock sync.RWMutex
}

func NewServer(coordinator *courier.Coordinator, cfg ServerConfig) (*Server, error) {
	schema, err := compileActionSchema()
	if err != nil {
		return nil, err
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return &Server{
		coordinator: coordinator,
		schema:      schema,
		cfg:         cfg,
	}, nil
}

// SetAPIKeys replaces the accepted API keys.
func (s *Server) SetAPIKeys(keys map[string]string) {
	s.cfgLock.Lock()
	defer s.cfgLock.Unlock()

	s.cfg.APIKeys = keys
}

func (s *Server) config() ServerConfig {
	s.cfgLock.RLock()
	defer s.cfgLock.RUnlock()

	return s.cfg
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Version: version.Current.Version.String(),
			Pending: s.coordinator.PendingByType(),
		})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "mail" {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}

	var route string

	switch {
	case len(parts) == 2 && parts[1] == "count" && r.Method == http.MethodGet:
		route = "count"
	case len(parts) == 2 && parts[1] == "busy" && r.Method == http.MethodGet:
		route = "busy"
	case len(parts) == 2 && parts[1] == "events" && r.Method == http.MethodGet:
		route = "events"
	case len(parts) == 2 && parts[1] == "actions" && r.Method == http.MethodPost:
		route = "submit"
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "undo" && r.Method == http.MethodPost:
		route = "undo_last"
	case len(parts) == 3 && parts[1] == "actions" && r.Method == http.MethodDelete:
		route = "undo"
	case len(parts) == 2 && r.Method == http.MethodGet:
		route = "thread"
	case len(parts) == 3 && parts[2] == "read" && r.Method == http.MethodPost:
		route = "read"
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}

	userID, ok := s.authorize(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or unknown API key")
		return
	}

	switch route {
	case "count":
		s.handleCount(w, r, userID)
	case "busy":
		s.handleBusy(w, r, userID)
	case "events":
		s.handleEvents(w, r, userID)
	case "submit":
		s.handleSubmit(w, r, userID)
	case "undo_last":
		s.handleUndoLast(w, r, userID)
	case "undo":
		s.handleUndo(w, r, userID, courier.ActionID(parts[2]))
	case "thread":
		s.handleThread(w, r, userID, driver.ThreadID(parts[1]))
	case "read":
		s.handleRead(w, r, userID, driver.ThreadID(parts[1]))
	}
}

func (s *Server) authorize(r *http.Request) (string, bool) {
	key := r.Header.Get("X-Api-Key")

	if key == "" {
		key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	if key == "" {
		return "", false
	}

	s.cfgLock.RLock()
	defer s.cfgLock.RUnlock()

	userID, ok := s.cfg.APIKeys[key]

	return userID, ok && userID != ""
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request, userID string, threadID driver.ThreadID) {
	thread, err := s.coordinator.FetchThread(r.Context(), userID, threadID)
	if err != nil {
		writeMailError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, threadResponse{
		Thread:  thread,
		Pending: s.pending(userID, threadID),
		Busy:    s.coordinator.Busy(userID, threadID),
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request, userID string, threadID driver.ThreadID) {
	if err := s.coordinator.MarkAsRead(r.Context(), userID, threadID); err != nil {
		writeMailError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request, userID string) {
	counts, err := s.coordinator.RefreshCounts(r.Context(), userID)
	if err != nil {
		writeMailError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (s *Server) handleBusy(w http.ResponseWriter, _ *http.Request, userID string) {
	threadIDs := s.coordinator.BusyThreads(userID)

	if threadIDs == nil {
		threadIDs = []driver.ThreadID{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"threadIds": threadIDs})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, userID string) {
	body, ok := s.readRequestBody(w, r)
	if !ok {
		return
	}

	if err := validateAction(s.schema, body); err != nil {
		writeMailError(w, err)
		return
	}

	var req actionRequest

	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	params, err := req.params()
	if err != nil {
		writeMailError(w, err)
		return
	}

	id, err := s.coordinator.Submit(r.Context(), userID, req.ThreadIDs, params)
	if err != nil {
		writeMailError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"actionId": id})
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request, userID string, id courier.ActionID) {
	if err := s.coordinator.UndoFor(userID, id); err != nil {
		writeMailError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"actionId": id})
}

func (s *Server) handleUndoLast(w http.ResponseWriter, _ *http.Request, userID string) {
	id, err := s.coordinator.UndoLast(userID)
	if err != nil {
		writeMailError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"actionId": id})
}

// pending lists the action types not yet settled on the thread.
func (s *Server) pending(userID string, threadID driver.ThreadID) []courier.ActionType {
	res := []courier.ActionType{}

	for _, typ := range courier.ActionTypes {
		if s.coordinator.Pending(userID, threadID, typ) {
			res = append(res, typ)
		}
	}

	return res
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config().MaxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit")
			return nil, false
		}

		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")

		return nil, false
	}

	return body, true
}

type healthResponse struct {
	Status  string                     `json:"status"`
	Version string                     `json:"version"`
	Pending map[courier.ActionType]int `json:"pending"`
}

type threadResponse struct {
	driver.Thread

	Pending []courier.ActionType `json:"pending"`
	Busy    bool                 `json:"busy"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Reconnect bool   `json:"reconnect,omitempty"`
}

// writeMailError maps coordinator and driver errors onto HTTP statuses.
func writeMailError(w http.ResponseWriter, err error) {
	switch {
	case courier.IsNoConnection(err):
		writeError(w, http.StatusUnauthorized, "no_connection", "no provider connected")

	case courier.IsReconnectRequired(err):
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Code:      "reconnect_required",
			Message:   "the provider connection must be re-established",
			Reconnect: true,
		})

	case courier.IsNotFound(err), errors.Is(err, courier.ErrNoSuchAction):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, limits.ErrMaxPendingActionsReached):
		writeError(w, http.StatusTooManyRequests, "limit_exceeded", err.Error())

	case courier.IsInvalidRequest(err), errors.Is(err, limits.ErrMaxThreadsPerActionReached):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())

	case errors.Is(err, courier.ErrConflict), errors.Is(err, courier.ErrNotCancellable):
		writeError(w, http.StatusConflict, "conflict", err.Error())

	case errors.Is(err, courier.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())

	default:
		logrus.WithError(err).Error("Mail request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "provider request failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
