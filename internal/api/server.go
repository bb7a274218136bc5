// Package api is the HTTP surface: task CRUD, chat, event inspection and
// operational endpoints, all scoped by bearer-token user identity.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"todoflow/internal/auth"
	"todoflow/pkg/chat"
	"todoflow/pkg/event"
	"todoflow/pkg/metrics"
	"todoflow/pkg/task"
)

// Deps holds the collaborators the server routes requests to.
type Deps struct {
	Tasks     task.Store
	Chat      *chat.Service
	ChatStore chat.Store
	Auth      *auth.Manager
	Publisher event.Publisher
	// Bus is set only with the in-process backend; it enables the event
	// inspection and live-stream endpoints.
	Bus *event.Bus
	// DevTokenEndpoint exposes POST /api/auth/token. Development only.
	DevTokenEndpoint bool
	EventBackend     string
	Logger           zerolog.Logger
}

// Server is the HTTP API server.
type Server struct {
	deps    Deps
	log     zerolog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a new Server.
func New(d Deps) *Server {
	s := &Server{
		deps: d,
		log:  d.Logger,
		mux:  http.NewServeMux(),
	}
	s.routes()
	s.handler = chain(s.mux, withRequestID, withRecover(d.Logger), withAccessLog(d.Logger))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("POST /api/{user}/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/{user}/tasks", s.handleTaskList)
	s.mux.HandleFunc("GET /api/{user}/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PUT /api/{user}/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("PATCH /api/{user}/tasks/{id}/complete", s.handleTaskToggle)
	s.mux.HandleFunc("DELETE /api/{user}/tasks/{id}", s.handleTaskDelete)

	// Chat
	s.mux.HandleFunc("POST /api/{user}/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/{user}/chat/conversations", s.handleConversationList)
	s.mux.HandleFunc("GET /api/{user}/chat/conversations/{id}/messages", s.handleConversationMessages)

	// Event inspection, in-process backend only
	if s.deps.Bus != nil {
		s.mux.HandleFunc("GET /api/events", s.handleEventList)
		s.mux.HandleFunc("GET /api/events/stream", s.handleEventStream)
	}

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.Handle("GET /metrics", metrics.Handler())

	if s.deps.DevTokenEndpoint {
		s.mux.HandleFunc("POST /api/auth/token", s.handleDevToken)
	}
}

// authenticate verifies the bearer token and returns its subject. Used
// directly by endpoints that are not bound to a {user} path segment and
// scope their response to the verified caller instead.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return "", false
	}
	sub, err := s.deps.Auth.VerifyToken(strings.TrimPrefix(header, prefix))
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return "", false
	}
	return sub, true
}

// authorize verifies the bearer token and checks its subject against the
// {user} path segment. Cross-user access fails with 403, never a silent
// empty result.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	sub, ok := s.authenticate(w, r)
	if !ok {
		return "", false
	}
	if user := r.PathValue("user"); sub != user {
		writeError(w, http.StatusForbidden, "cannot access another user's tasks")
		return "", false
	}
	return sub, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "todoflow"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"service":       "todoflow",
		"event_backend": s.deps.EventBackend,
	})
}

func (s *Server) handleDevToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	token, err := s.deps.Auth.CreateToken(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// encode errors mean the client went away; nothing useful to do
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
