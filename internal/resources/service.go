// Package resources implements the resource registry: insertion-ordered
// listing and URI-keyed reads. No teacher analog exists (mcplexer never
// served resources); the shape is grounded in the same single-RWMutex
// registry convention the rest of this codebase uses.
package resources

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
)

// Handler returns the content of the resource it's registered under.
type Handler func(ctx context.Context, uri string) (*jsonrpc.ReadResourceResult, error)

type entry struct {
	descriptor jsonrpc.Resource
	handler    Handler
}

// Service is the resource registry. Lookup keys are the URI's lowercase
// form (spec.md §3: "uri (unique, case-insensitive)"); the descriptor
// itself always retains the caller's original casing.
type Service struct {
	mu    sync.RWMutex
	order []string
	items map[string]entry
}

// NewService creates an empty resource registry.
func NewService() *Service {
	return &Service{items: make(map[string]entry)}
}

func normalizeURI(uri string) string {
	return strings.ToLower(uri)
}

// Register adds or replaces a resource by URI.
func (s *Service) Register(descriptor jsonrpc.Resource, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeURI(descriptor.URI)
	if _, exists := s.items[key]; !exists {
		s.order = append(s.order, key)
	}
	s.items[key] = entry{descriptor: descriptor, handler: handler}
}

// List returns resource descriptors in registration order.
func (s *Service) List() []jsonrpc.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]jsonrpc.Resource, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.items[key].descriptor)
	}
	return out
}

// Read fetches the content of uri. An empty uri is InvalidParams (spec.md
// §4.5: "resources/read requires a non-empty uri"); an unknown URI is
// ResourceNotFound, distinct from tool-call errors since there is no
// handler to invoke.
func (s *Service) Read(ctx context.Context, uri string) (*jsonrpc.ReadResourceResult, *jsonrpc.RPCError) {
	if uri == "" {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "missing required field: uri", nil)
	}
	s.mu.RLock()
	e, ok := s.items[normalizeURI(uri)]
	s.mu.RUnlock()
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeResourceNotFound, fmt.Sprintf("resource not found: %s", uri), nil)
	}
	result, err := e.handler(ctx, uri)
	if err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return result, nil
}
