// Package mcpserver exposes a user's practice history as Model Context
// Protocol tools, so assistants can review past sessions with them.
//
// Every HTTP request is authenticated by the caller's bearer token and gets
// a server whose tools only see that user's sessions.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/echocoach/internal/auth"
	"github.com/MrWong99/echocoach/pkg/store"
)

const (
	serverName    = "echocoach"
	serverVersion = "1.0.0"

	toolListSessions     = "list_sessions"
	toolSessionResponses = "session_responses"
)

// History is the read-only view of the interview service used by the tools.
type History interface {
	SessionHistory(ctx context.Context, userID string) ([]store.Session, error)
	Session(ctx context.Context, id, userID string) (*store.Session, error)
	SessionResponses(ctx context.Context, sessionID string) ([]store.Response, error)
}

// Handler serves the streamable MCP endpoint.
type Handler struct {
	history  History
	verifier *auth.Verifier
	onError  func(w http.ResponseWriter, r *http.Request, err error)
}

// New returns a Handler. onError writes authentication failures.
func New(history History, verifier *auth.Verifier, onError func(w http.ResponseWriter, r *http.Request, err error)) *Handler {
	return &Handler{history: history, verifier: verifier, onError: onError}
}

// HTTPHandler returns the authenticated streamable HTTP handler. It runs
// stateless so each request carries its own credentials.
func (h *Handler) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		u, ok := auth.FromContext(r.Context())
		if !ok {
			return nil
		}
		return h.Server(u.ID)
	}, &mcp.StreamableHTTPOptions{Stateless: true})
	return h.verifier.Middleware(h.onError)(streamable)
}

// ListSessionsInput is the (empty) argument object of list_sessions.
type ListSessionsInput struct{}

// ListSessionsOutput lists the caller's sessions, newest first.
type ListSessionsOutput struct {
	Sessions []store.Session `json:"sessions"`
}

// SessionResponsesInput selects a session.
type SessionResponsesInput struct {
	SessionID string `json:"session_id" jsonschema:"id of one of the caller's sessions"`
}

// SessionResponsesOutput holds the scored answers of one session.
type SessionResponsesOutput struct {
	Session   store.Session    `json:"session"`
	Responses []store.Response `json:"responses"`
}

// Server builds an MCP server whose tools are scoped to userID.
func (h *Handler) Server(userID string) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        toolListSessions,
		Description: "List your interview practice sessions with their status and average scores.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ ListSessionsInput) (*mcp.CallToolResult, ListSessionsOutput, error) {
		sessions, err := h.history.SessionHistory(ctx, userID)
		if err != nil {
			return nil, ListSessionsOutput{}, fmt.Errorf("list sessions: %w", err)
		}
		if sessions == nil {
			sessions = []store.Session{}
		}
		return nil, ListSessionsOutput{Sessions: sessions}, nil
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        toolSessionResponses,
		Description: "Show the transcribed answers, scores and coaching feedback of one practice session.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SessionResponsesInput) (*mcp.CallToolResult, SessionResponsesOutput, error) {
		if in.SessionID == "" {
			return nil, SessionResponsesOutput{}, errors.New("session_id is required")
		}
		sess, err := h.history.Session(ctx, in.SessionID, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, SessionResponsesOutput{}, fmt.Errorf("session %q not found", in.SessionID)
			}
			return nil, SessionResponsesOutput{}, fmt.Errorf("get session: %w", err)
		}
		responses, err := h.history.SessionResponses(ctx, sess.ID)
		if err != nil {
			return nil, SessionResponsesOutput{}, fmt.Errorf("list responses: %w", err)
		}
		if responses == nil {
			responses = []store.Response{}
		}
		return nil, SessionResponsesOutput{Session: *sess, Responses: responses}, nil
	})

	return s
}
