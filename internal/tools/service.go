// Package tools implements the tool registry and invocation service:
// insertion-ordered listing and a handler dispatch that never lets a
// handler panic or error escape as a JSON-RPC error — tool failures
// always become a CallToolResult with isError set, per the MCP error
// taxonomy split between protocol errors and tool-execution errors.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
)

// Handler executes one tool call given its raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error)

type entry struct {
	descriptor jsonrpc.Tool
	handler    Handler
}

// Service is the tool registry, guarded by a single RWMutex per the
// codebase-wide convention of one lock per shared registry.
type Service struct {
	mu    sync.RWMutex
	order []string
	tools map[string]entry
}

// NewService creates an empty tool registry.
func NewService() *Service {
	return &Service{tools: make(map[string]entry)}
}

// Register adds or replaces a tool. Re-registering an existing name keeps
// its original position in listing order.
func (s *Service) Register(descriptor jsonrpc.Tool, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[descriptor.Name]; !exists {
		s.order = append(s.order, descriptor.Name)
	}
	s.tools[descriptor.Name] = entry{descriptor: descriptor, handler: handler}
}

// List returns tool descriptors in registration order.
func (s *Service) List() []jsonrpc.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]jsonrpc.Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name].descriptor)
	}
	return out
}

// Call invokes the named tool. A missing tool is an InvalidParams
// protocol error (the client asked for something that doesn't exist);
// anything the handler itself does wrong — a panic, a returned error —
// is coerced into a successful-at-the-protocol-level CallToolResult with
// isError: true, since tool execution failures are domain data, not
// transport failures.
func (s *Service) Call(ctx context.Context, name string, args json.RawMessage) (*jsonrpc.CallToolResult, *jsonrpc.RPCError) {
	if name == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "missing required field: name", nil)
	}

	s.mu.RLock()
	e, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("Tool not found: %s", name), nil)
	}

	result, stack, execErr := invoke(ctx, e.handler, args)
	if execErr != nil {
		return &jsonrpc.CallToolResult{
			Content: []jsonrpc.ToolContent{
				{Type: "text", Text: execErr.Error()},
				{Type: "text", Text: stack},
			},
			IsError: true,
		}, nil
	}
	return result, nil
}

// invoke runs handler, converting a panic into an error so one bad tool
// cannot bring down the server process or leave a session hanging. The
// returned stack is only meaningful when err is non-nil: a recovered
// panic's stack trace, or an empty string for an ordinary returned error
// (there is no useful stack to show past the handler's own return).
func invoke(ctx context.Context, h Handler, args json.RawMessage) (result *jsonrpc.CallToolResult, stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack = string(debug.Stack())
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	result, err = h(ctx, args)
	return result, stack, err
}
