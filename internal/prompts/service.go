// Package prompts implements the prompt registry: insertion-ordered
// listing and name-keyed rendering with argument substitution.
package prompts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
)

// Handler renders one prompt given the caller-supplied arguments.
type Handler func(ctx context.Context, args map[string]string) (*jsonrpc.GetPromptResult, error)

type entry struct {
	descriptor jsonrpc.Prompt
	handler    Handler
}

// Service is the prompt registry. Lookup keys are the prompt name's
// lowercase form (spec.md §3: "name (unique, case-insensitive)"); the
// descriptor itself always retains the caller's original casing.
type Service struct {
	mu    sync.RWMutex
	order []string
	items map[string]entry
}

// NewService creates an empty prompt registry.
func NewService() *Service {
	return &Service{items: make(map[string]entry)}
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}

// Register adds or replaces a prompt by name.
func (s *Service) Register(descriptor jsonrpc.Prompt, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeName(descriptor.Name)
	if _, exists := s.items[key]; !exists {
		s.order = append(s.order, key)
	}
	s.items[key] = entry{descriptor: descriptor, handler: handler}
}

// List returns prompt descriptors in registration order.
func (s *Service) List() []jsonrpc.Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]jsonrpc.Prompt, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.items[key].descriptor)
	}
	return out
}

// Descriptor returns the registered descriptor for name. The completion
// service does not consult it; completion handlers are looked up by
// reference alone.
func (s *Service) Descriptor(name string) (jsonrpc.Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[normalizeName(name)]
	return e.descriptor, ok
}

// Get renders the named prompt, checking that every required argument is
// present before invoking the handler.
func (s *Service) Get(ctx context.Context, name string, args map[string]string) (*jsonrpc.GetPromptResult, *jsonrpc.RPCError) {
	s.mu.RLock()
	e, ok := s.items[normalizeName(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodePromptNotFound, fmt.Sprintf("prompt not found: %s", name), nil)
	}
	for _, a := range e.descriptor.Arguments {
		if a.Required {
			if _, present := args[a.Name]; !present {
				return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("missing required argument: %s", a.Name), nil)
			}
		}
	}
	result, err := e.handler(ctx, args)
	if err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return result, nil
}
