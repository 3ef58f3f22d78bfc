package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"butterfly/internal/errors"
	"butterfly/internal/expansion"
	"butterfly/internal/session"
)

// maxRequestBody bounds JSON request bodies
const maxRequestBody = 1 << 20

// Sessions is the part of session.Manager the handler needs
type Sessions interface {
	Create(ctx context.Context, req session.CreateRequest) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Close(id string) error
	List() []string
}

// SessionHandler serves the session API
type SessionHandler struct {
	sessions Sessions
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions Sessions, log *zap.SugaredLogger) *SessionHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SessionHandler{sessions: sessions, timeout: 10 * time.Second, log: log}
}

// Register mounts every route on mux
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("GET /api/sessions", h.ListSessions)
	mux.HandleFunc("POST /api/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.DeleteSession)

	mux.HandleFunc("POST /api/sessions/{id}/nodes/{node}/click", h.Click)
	mux.HandleFunc("POST /api/sessions/{id}/nodes/{node}/hover", h.Hover)
	mux.HandleFunc("DELETE /api/sessions/{id}/nodes/{node}/hover", h.Unhover)

	mux.HandleFunc("GET /api/sessions/{id}/events", h.Events)
	mux.HandleFunc("GET /api/sessions/{id}/ws", h.WebSocket)
}

// Health reports liveness
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"status": "ok", "sessions": len(h.sessions.List())}, http.StatusOK)
}

// ListSessions returns the ids of running sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{"sessions": h.sessions.List()}, http.StatusOK)
}

// CreateSession seeds a new session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Create(ctx, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	view, err := s.Snapshot(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+s.ID())
	writeJSON(w, view, http.StatusCreated)
}

// GetSession returns the session snapshot
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := s.Snapshot(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, view, http.StatusOK)
}

// DeleteSession stops a session
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Click expands a node. 202 means a fetch was dispatched; 200 means the
// click was absorbed because the node is expanding or already expanded.
func (h *SessionHandler) Click(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := s.Click(ctx, r.PathValue("node"))
	if err != nil {
		h.fail(w, err)
		return
	}
	code := http.StatusOK
	if res.Outcome == expansion.OutcomeDispatched {
		code = http.StatusAccepted
	}
	writeJSON(w, res, code)
}

// Hover shows a node in the info panel
func (h *SessionHandler) Hover(w http.ResponseWriter, r *http.Request) {
	h.pointer(w, r, (*session.Session).Hover)
}

// Unhover ends a hover
func (h *SessionHandler) Unhover(w http.ResponseWriter, r *http.Request) {
	h.pointer(w, r, (*session.Session).Unhover)
}

func (h *SessionHandler) pointer(w http.ResponseWriter, r *http.Request, fn func(*session.Session, context.Context, string) error) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := fn(s, ctx, r.PathValue("node")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events streams session events over SSE
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Hub().ServeHTTP(w, r)
}

// WebSocket attaches a bidirectional client
func (h *SessionHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Hub().ServeWS(w, r)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "Invalid session ID", "Session ID is required", http.StatusBadRequest)
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		h.fail(w, errors.Wrap(err, "lookup"))
		return nil, false
	}
	return s, true
}
