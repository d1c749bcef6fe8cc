// Package server wires the protocol core (dispatcher, registries,
// session manager) into one runnable unit and exposes it over both the
// stdio and streamable-HTTP transports. Ground: the teacher's
// cmd/mcplexer/main.go assembling a gateway.Server plus api.NewRouter
// from a single Config value.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcpcore/mcpcore/internal/audit"
	"github.com/mcpcore/mcpcore/internal/auth"
	"github.com/mcpcore/mcpcore/internal/bridge"
	"github.com/mcpcore/mcpcore/internal/completion"
	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/oauthserver"
	"github.com/mcpcore/mcpcore/internal/prompts"
	"github.com/mcpcore/mcpcore/internal/resources"
	"github.com/mcpcore/mcpcore/internal/rpc"
	"github.com/mcpcore/mcpcore/internal/session"
	"github.com/mcpcore/mcpcore/internal/tools"
)

// Info identifies this server to clients during initialize.
type Info struct {
	Name         string
	Version      string
	Instructions string
}

// Server is the assembled MCP protocol core: the registries a tool/
// resource/prompt/completion author populates, the dispatcher those
// registries are wired onto, and the session manager both transports
// share.
type Server struct {
	Info Info

	Tools       *tools.Service
	Resources   *resources.Service
	Prompts     *prompts.Service
	Completions *completion.Service

	Sessions   *session.Manager
	Dispatcher *rpc.Dispatcher

	Auth  *auth.Validator     // optional; nil disables bearer validation
	OAuth *oauthserver.Server // optional; nil disables the demo AS

	AllowOrigins []string

	// Auditor is nil-safe: a nil *audit.Logger simply skips recording,
	// exactly as the teacher's handler gates h.auditor.
	Auditor *audit.Logger
}

// New creates a Server with empty registries and a fresh session
// manager, and registers every dispatcher method spec.md §6 names.
// Callers populate Tools/Resources/Prompts/Completions before serving
// traffic. A zero idleTimeout falls back to session.DefaultIdleTimeout.
func New(info Info, idleTimeout time.Duration) *Server {
	if idleTimeout <= 0 {
		idleTimeout = session.DefaultIdleTimeout
	}
	s := &Server{
		Info:        info,
		Tools:       tools.NewService(),
		Resources:   resources.NewService(),
		Prompts:     prompts.NewService(),
		Completions: completion.NewService(),
		Sessions:    session.NewManager(idleTimeout),
		Dispatcher:  rpc.NewDispatcher(),
	}
	s.registerMethods()
	return s
}

func (s *Server) registerMethods() {
	s.Dispatcher.Handle("initialize", s.handleInitialize)
	s.Dispatcher.Handle("tools/list", s.handleToolsList)
	s.Dispatcher.Handle("tools/call", s.handleToolsCall)
	s.Dispatcher.Handle("resources/list", s.handleResourcesList)
	s.Dispatcher.Handle("resources/read", s.handleResourcesRead)
	s.Dispatcher.Handle("prompts/list", s.handlePromptsList)
	s.Dispatcher.Handle("prompts/get", s.handlePromptsGet)
	s.Dispatcher.Handle("completion/complete", s.handleCompletionComplete)
	s.Dispatcher.HandleNotification("notifications/initialized", s.handleInitialized)
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
	sess, rpcErr := bridge.FromContext(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var p jsonrpc.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("invalid initialize params: %v", err), nil)
		}
	}

	sess.NegotiatedVersion = jsonrpc.NegotiateVersion(p.ProtocolVersion)
	sess.ClientCapabilities = p.Capabilities

	result := jsonrpc.InitializeResult{
		ProtocolVersion: sess.NegotiatedVersion,
		Capabilities:    s.capabilities(),
		ServerInfo:      jsonrpc.ServerInfo{Name: s.Info.Name, Version: s.Info.Version},
		Instructions:    s.Info.Instructions,
	}
	return mustMarshal(result)
}

// capabilities advertises a feature only once at least one entry is
// registered for it, matching the completion service's own HasHandlers
// gating (spec.md §4.5) generalized to every advertised capability.
func (s *Server) capabilities() jsonrpc.ServerCapabilities {
	var caps jsonrpc.ServerCapabilities
	if len(s.Tools.List()) > 0 {
		caps.Tools = &jsonrpc.ToolCapability{}
	}
	if len(s.Resources.List()) > 0 {
		caps.Resources = &jsonrpc.ResourceCapability{}
	}
	if len(s.Prompts.List()) > 0 {
		caps.Prompts = &jsonrpc.PromptCapability{}
	}
	if s.Completions.HasHandlers() {
		caps.Completions = &struct{}{}
	}
	return caps
}

func (s *Server) handleInitialized(ctx context.Context, params json.RawMessage) {
	sess, rpcErr := bridge.FromContext(ctx)
	if rpcErr != nil {
		return
	}
	slog.Info("session initialized", "session_id", sess.ID, "protocol_version", sess.NegotiatedVersion)
}

func (s *Server) handleToolsList(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
	return mustMarshal(jsonrpc.ListToolsResult{Tools: s.Tools.List()})
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
	var req jsonrpc.CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err), nil)
	}
	result, rpcErr := s.Tools.Call(ctx, req.Name, req.Arguments)
	s.recordAudit(ctx, "tool_call", req.Name, rpcErr == nil)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return mustMarshal(result)
}

// recordAudit is a no-op when no auditor is configured, matching the
// teacher's nil-checked h.auditor.
func (s *Server) recordAudit(ctx context.Context, kind, subject string, success bool) {
	if s.Auditor == nil {
		return
	}
	sessionID := ""
	if sess, rpcErr := bridge.FromContext(ctx); rpcErr == nil {
		sessionID = sess.ID
	}
	s.Auditor.Record(sessionID, kind, subject, success, nil)
}

func (s *Server) handleResourcesList(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
	return mustMarshal(jsonrpc.ListResourcesResult{Resources: s.Resources.List()})
}

func (s *Server) handleResourcesRead(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
	var req jsonrpc.ReadResourceParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("invalid resources/read params: %v", err), nil)
	}
	result, rpcErr := s.Resources.Read(ctx, req.URI)
	s.recordAudit(ctx, "resource_read", req.URI, rpcErr == nil)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return mustMarshal(result)
}

func (s *Server) handlePromptsList(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
	return mustMarshal(jsonrpc.ListPromptsResult{Prompts: s.Prompts.List()})
}

func (s *Server) handlePromptsGet(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
	var req jsonrpc.GetPromptParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("invalid prompts/get params: %v", err), nil)
	}
	result, rpcErr := s.Prompts.Get(ctx, req.Name, req.Arguments)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return mustMarshal(result)
}

func (s *Server) handleCompletionComplete(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
	var req jsonrpc.CompleteParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("invalid completion/complete params: %v", err), nil)
	}
	result, rpcErr := s.Completions.Complete(ctx, req.Ref, req.Argument)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return mustMarshal(result)
}

// mustMarshal JSON-encodes v, turning a marshal failure (which would
// only ever indicate a handler bug, never bad client input) into an
// InternalError rather than a panic.
func mustMarshal(v any) (json.RawMessage, *jsonrpc.RPCError) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, fmt.Sprintf("marshal result: %v", err), nil)
	}
	return b, nil
}
