package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/parley/internal/host"
	"github.com/aretw0/parley/internal/logging"
	presentation "github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionResponse is the structured result of every session tool.
type SessionResponse struct {
	View  host.View `json:"view" jsonschema_description:"The session after the call"`
	Error string    `json:"error,omitempty" jsonschema_description:"Why the request was rejected, if it was"`
}

// ValidationResponse is the structured result of validate_graph.
type ValidationResponse struct {
	Graph    string   `json:"graph"`
	Valid    bool     `json:"valid"`
	Findings []string `json:"findings,omitempty" jsonschema_description:"Every violation found"`
}

// Server exposes the sessions of a host.Host as MCP tools.
type Server struct {
	host      *host.Host
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(h *host.Host, version string, opts ...Option) *Server {
	s := &Server{
		host:      h,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("parley-mcp", strings.TrimSpace(version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	session := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to act on"))

	s.mcpServer.AddTool(mcp.NewTool("start_dialogue",
		mcp.WithDescription("Start a dialogue graph in a new or idle session."),
		session,
		mcp.WithString("graph", mcp.Required(), mcp.Description("Name of the dialogue graph")),
		mcp.WithString("initiator", mcp.Required(), mcp.Description("Participant starting the dialogue, usually the player")),
		mcp.WithString("participants", mcp.Description("Comma-separated participant IDs; the first is the main participant")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("select_option",
		mcp.WithDescription("Answer a pending choice by 1-based option index or node GUID."),
		session,
		mcp.WithNumber("index", mcp.Description("1-based position of the option")),
		mcp.WithString("node", mcp.Description("GUID of the option node; wins over index")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSelect))

	s.mcpServer.AddTool(mcp.NewTool("skip_row",
		mcp.WithDescription("Skip the row being played, or release a row waiting for input."),
		session,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.request(ports.RequestSkip)))

	s.mcpServer.AddTool(mcp.NewTool("close_dialogue",
		mcp.WithDescription("Close the running dialogue of a session."),
		session,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.request(ports.RequestClose)))

	s.mcpServer.AddTool(mcp.NewTool("get_context",
		mcp.WithDescription("Describe a session: speaker, text, options and traversed path."),
		session,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleContext))

	s.mcpServer.AddTool(mcp.NewTool("validate_graph",
		mcp.WithDescription("Lint a dialogue graph and list every violation."),
		mcp.WithString("graph", mcp.Required(), mcp.Description("Name of the dialogue graph")),
		mcp.WithOutputSchema[ValidationResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("render_graph",
		mcp.WithDescription("Render a dialogue graph as a Mermaid diagram, with the traversal of a session overlaid when given."),
		mcp.WithString("graph", mcp.Description("Name of the dialogue graph")),
		mcp.WithString("session_id", mcp.Description("Session whose running graph and traversal to render")),
	), s.handleRender)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// respond turns a rejected request into a structured error the agent can read.
func (s *Server) respond(ctx context.Context, sessionID string, cause error) (SessionResponse, error) {
	view, err := s.host.View(ctx, sessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	resp := SessionResponse{View: view}
	if cause != nil {
		resp.Error = cause.Error()
	}
	return resp, nil
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	req := ports.Request{
		SessionID: stringArg(args, "session_id"),
		Kind:      ports.RequestStart,
		Graph:     stringArg(args, "graph"),
		Initiator: stringArg(args, "initiator"),
	}
	for _, p := range strings.Split(stringArg(args, "participants"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			req.Participants = append(req.Participants, p)
		}
	}
	if req.Graph == "" {
		return SessionResponse{}, errors.New("graph is required")
	}
	if req.Initiator == "" {
		return SessionResponse{}, errors.New("initiator is required")
	}
	_, err := s.host.Handle(ctx, req)
	if err != nil {
		s.logger.Warn("MCP start rejected", "session_id", req.SessionID, "err", err)
	}
	return s.respond(ctx, req.SessionID, err)
}

func (s *Server) handleSelect(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	sessionID := stringArg(args, "session_id")
	var (
		node domain.GUID
		err  error
	)
	if raw := stringArg(args, "node"); raw != "" {
		if node, err = domain.ParseGUID(raw); err != nil {
			return SessionResponse{}, fmt.Errorf("invalid node %q: %w", raw, err)
		}
	} else {
		index, _ := args["index"].(float64)
		if node, err = s.host.Option(sessionID, int(index)); err != nil {
			return s.respond(ctx, sessionID, err)
		}
	}
	_, err = s.host.Handle(ctx, ports.Request{SessionID: sessionID, Kind: ports.RequestSelect, Node: node})
	return s.respond(ctx, sessionID, err)
}

func (s *Server) request(kind ports.RequestKind) func(context.Context, mcp.CallToolRequest, map[string]any) (SessionResponse, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
		sessionID := stringArg(args, "session_id")
		_, err := s.host.Handle(ctx, ports.Request{SessionID: sessionID, Kind: kind})
		if errors.Is(err, domain.ErrSessionNotFound) {
			return SessionResponse{}, err
		}
		return s.respond(ctx, sessionID, err)
	}
}

func (s *Server) handleContext(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	return s.respond(ctx, stringArg(args, "session_id"), nil)
}

func (s *Server) handleValidate(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (ValidationResponse, error) {
	name := stringArg(args, "graph")
	g, err := s.host.Loader().Graph(ctx, name)
	if err != nil {
		return ValidationResponse{}, fmt.Errorf("load graph: %w", err)
	}
	resp := ValidationResponse{Graph: name, Valid: true}
	err = validator.New(validator.WithRows(s.host.Rows())).Validate(ctx, g)
	if err == nil {
		return resp, nil
	}
	resp.Valid = false
	for _, e := range domain.Errors(err) {
		resp.Findings = append(resp.Findings, e.Error())
	}
	if len(resp.Findings) == 0 {
		resp.Findings = []string{err.Error()}
	}
	return resp, nil
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if sessionID := stringArg(args, "session_id"); sessionID != "" {
		mgr, err := s.host.Manager(sessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if g := mgr.Graph(); g != nil {
			return mcp.NewToolResultText(presentation.GenerateMermaid(g, presentation.OverlayFromContext(mgr.Context()))), nil
		}
	}
	name := stringArg(args, "graph")
	if name == "" {
		return mcp.NewToolResultError("graph or a running session_id is required"), nil
	}
	g, err := s.host.Loader().Graph(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load graph: %v", err)), nil
	}
	return mcp.NewToolResultText(presentation.GenerateMermaid(g, nil)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("parley://graphs", "Available dialogue graphs",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.host.Loader().ListGraphs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list graphs: %w", err)
		}
		jsonBytes, _ := json.Marshal(names)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "parley://graphs",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("parley://sessions", "Sessions hosted by this server",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, _ := json.Marshal(s.host.Sessions())
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "parley://sessions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
