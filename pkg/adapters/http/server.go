package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/parley/internal/host"
	"github.com/aretw0/parley/internal/logging"
	presentation "github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the sessions of a host.Host over HTTP.
type Server struct {
	host    *host.Host
	logger  *slog.Logger
	version string
	peers   http.Handler
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithPeers mounts the websocket endpoint peers connect to at /ws.
func WithPeers(h http.Handler) Option {
	return func(s *Server) {
		s.peers = h
	}
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for h.
func NewHandler(h *host.Host, opts ...Option) http.Handler {
	s := &Server{host: h, logger: logging.NewNop(), version: "dev"}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.peers != nil {
		r.Handle("/ws", s.peers)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", s.SubscribeReloads)
		r.Get("/graphs", s.ListGraphs)
		r.Get("/graphs/{name}", s.GetGraph)
		r.Get("/graphs/{name}/validate", s.ValidateGraph)

		r.Get("/sessions", s.ListSessions)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Post("/", s.StartSession)
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/select", s.SelectOption)
			r.Post("/skip", s.Skip)
			r.Post("/close", s.CloseSession)
			r.Post("/state", s.SetState)
			r.Get("/graph", s.GetSessionGraph)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":      "parley-http",
		"version":  strings.TrimSpace(s.version),
		"sessions": len(s.host.Sessions()),
	})
}

// ListGraphs handles GET /v1/graphs.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	names, err := s.host.Loader().ListGraphs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"graphs": names})
}

// GetGraph handles GET /v1/graphs/{name}. ?format=mermaid renders a diagram.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.host.Loader().Graph(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "mermaid" {
		s.writeMermaid(w, presentation.GenerateMermaid(g, nil))
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

type finding struct {
	Node   domain.GUID `json:"node"`
	Title  string      `json:"title,omitempty"`
	Reason string      `json:"reason"`
}

// ValidateGraph handles GET /v1/graphs/{name}/validate.
func (s *Server) ValidateGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.host.Loader().Graph(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = validator.New(validator.WithRows(s.host.Rows())).Validate(r.Context(), g)
	if err == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"valid": true})
		return
	}
	var findings []finding
	for _, e := range domain.Errors(err) {
		var ve *domain.ValidationError
		if errors.As(e, &ve) {
			findings = append(findings, finding{Node: ve.Node, Title: ve.Title, Reason: ve.Reason})
			continue
		}
		findings = append(findings, finding{Reason: e.Error()})
	}
	s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"valid": false, "findings": findings})
}

// ListSessions handles GET /v1/sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": s.host.Sessions()})
}

// StartRequest is the body of POST /v1/sessions/{id}. The first participant
// is the main one.
type StartRequest struct {
	Graph        string   `json:"graph"`
	Initiator    string   `json:"initiator"`
	Participants []string `json:"participants"`
}

// StartSession handles POST /v1/sessions/{id}.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.handle(w, r, http.StatusCreated, ports.Request{
		SessionID:    chi.URLParam(r, "id"),
		Kind:         ports.RequestStart,
		Graph:        body.Graph,
		Initiator:    body.Initiator,
		Participants: body.Participants,
	})
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := s.host.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.host.Forget(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectRequest is the body of POST /v1/sessions/{id}/select. Node wins over
// Index, which is the 1-based position among the offered options.
type SelectRequest struct {
	Node  string `json:"node,omitempty"`
	Index int    `json:"index,omitempty"`
}

// SelectOption handles POST /v1/sessions/{id}/select.
func (s *Server) SelectOption(w http.ResponseWriter, r *http.Request) {
	var body SelectRequest
	if !s.decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")

	var (
		node domain.GUID
		err  error
	)
	if body.Node != "" {
		node, err = domain.ParseGUID(body.Node)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid node %q", body.Node)))
			return
		}
	} else if node, err = s.host.Option(id, body.Index); err != nil {
		s.writeError(w, err)
		return
	}
	s.handle(w, r, http.StatusOK, ports.Request{SessionID: id, Kind: ports.RequestSelect, Node: node})
}

// Skip handles POST /v1/sessions/{id}/skip.
func (s *Server) Skip(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, ports.Request{SessionID: chi.URLParam(r, "id"), Kind: ports.RequestSkip})
}

// CloseSession handles POST /v1/sessions/{id}/close.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, ports.Request{SessionID: chi.URLParam(r, "id"), Kind: ports.RequestClose})
}

// StateRequest is the body of POST /v1/sessions/{id}/state.
type StateRequest struct {
	State domain.ManagerState `json:"state"`
}

// SetState handles POST /v1/sessions/{id}/state.
func (s *Server) SetState(w http.ResponseWriter, r *http.Request) {
	var body StateRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.handle(w, r, http.StatusOK, ports.Request{SessionID: chi.URLParam(r, "id"), Kind: ports.RequestSetState, State: body.State})
}

// GetSessionGraph handles GET /v1/sessions/{id}/graph, a diagram of the
// running graph with the traversal overlaid.
func (s *Server) GetSessionGraph(w http.ResponseWriter, r *http.Request) {
	mgr, err := s.host.Manager(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	g := mgr.Graph()
	if g == nil {
		s.writeJSON(w, http.StatusConflict, errorBody("session has no running graph"))
		return
	}
	s.writeMermaid(w, presentation.GenerateMermaid(g, presentation.OverlayFromContext(mgr.Context())))
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request, status int, req ports.Request) {
	snap, err := s.host.Handle(r.Context(), req)
	if err != nil {
		s.logger.Warn("request failed", "session_id", req.SessionID, "kind", req.Kind, "err", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, status, snap)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// statusFor maps domain failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrGraphNotFound),
		errors.Is(err, domain.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrManagerActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrInvalidContext),
		errors.Is(err, domain.ErrInvalidParticipant),
		errors.Is(err, domain.ErrCannotStart),
		errors.Is(err, domain.ErrInvalidNode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorBody(err.Error()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeMermaid(w http.ResponseWriter, diagram string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(diagram))
}
