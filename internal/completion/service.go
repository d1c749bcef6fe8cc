// Package completion implements the completion/complete service: handlers
// keyed by reference kind plus identifier, the capability is advertised
// only once at least one handler is registered. Ground: the downstream
// instance manager's struct-as-map-key idiom (InstanceKey{ServerID,
// AuthScopeID}), reused here as the completion lookup key.
package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
)

// Handler returns completion candidates for one argument value prefix.
type Handler func(ctx context.Context, argument jsonrpc.CompletionArgument) (*jsonrpc.CompletionValues, error)

type key struct {
	kind string // "ref/prompt" or "ref/resource"
	id   string // prompt name or resource URI template
}

// Service is the completion handler registry.
type Service struct {
	mu       sync.RWMutex
	handlers map[key]Handler
}

// NewService creates an empty completion registry.
func NewService() *Service {
	return &Service{handlers: make(map[key]Handler)}
}

// RegisterPrompt registers a completion handler for a prompt argument.
func (s *Service) RegisterPrompt(promptName string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[key{kind: "ref/prompt", id: strings.TrimSpace(promptName)}] = h
}

// RegisterResource registers a completion handler for a resource URI
// template argument.
func (s *Service) RegisterResource(uriTemplate string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[key{kind: "ref/resource", id: strings.TrimSpace(uriTemplate)}] = h
}

// HasHandlers reports whether any completion handler has been registered
// at all, which gates whether the server advertises the completions
// capability during initialize.
func (s *Service) HasHandlers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers) > 0
}

// Complete resolves completion candidates for ref/argument. Per spec.md
// §4.5, a reference with no registered handler is InvalidParams — the
// client asked to complete something this server never advertised,
// distinct from the handler itself reporting an internal failure.
func (s *Service) Complete(ctx context.Context, ref jsonrpc.CompletionReference, argument jsonrpc.CompletionArgument) (*jsonrpc.CompleteResult, *jsonrpc.RPCError) {
	kind := strings.TrimSpace(ref.Type)
	id := strings.TrimSpace(ref.Name)
	if kind == "ref/resource" {
		id = strings.TrimSpace(ref.URI)
	}
	if kind != "ref/prompt" && kind != "ref/resource" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("invalid reference type: %s", ref.Type), nil)
	}
	s.mu.RLock()
	h, ok := s.handlers[key{kind: kind, id: id}]
	s.mu.RUnlock()
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("no completion handler registered for %s %q", kind, id), nil)
	}
	values, err := h(ctx, argument)
	if err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, fmt.Sprintf("completion failed: %v", err), nil)
	}
	return &jsonrpc.CompleteResult{Completion: *values}, nil
}
