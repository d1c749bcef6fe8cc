// Package bridge implements server-initiated requests: elicitation and
// sampling calls a tool handler makes back to the connected client,
// riding on the same session's pending-request table used for ordinary
// protocol correlation. Adapted from the teacher's approval-gate
// two-phase blocking-call idiom, generalized from "wait for human
// approval" to "wait for any client-side response".
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/session"
)

type sessionKey struct{}

// WithSession attaches the active session to ctx. The dispatcher does
// this immediately before invoking a tool/resource/prompt handler so the
// handler can reach back to its own client without being passed the
// session explicitly through every call signature.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session attached by WithSession, or an
// InternalError if none is present. Per the fail-fast design decision,
// a handler invoked outside of any session's call chain (e.g. a
// background-triggered tool) cannot perform elicitation or sampling —
// there's no client to ask.
func FromContext(ctx context.Context) (*session.Session, *jsonrpc.RPCError) {
	s, ok := ctx.Value(sessionKey{}).(*session.Session)
	if !ok || s == nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError,
			"no active session in context: elicitation/sampling requires a client call chain", nil)
	}
	return s, nil
}

// Elicit sends an elicitation/create request to the session's client and
// blocks for its response.
func Elicit(ctx context.Context, params jsonrpc.ElicitParams) (*jsonrpc.ElicitResult, error) {
	raw, err := send(ctx, "elicitation/create", params)
	if err != nil {
		return nil, err
	}
	var result jsonrpc.ElicitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode elicitation result: %w", err)
	}
	return &result, nil
}

// CreateMessage sends a sampling/createMessage request to the session's
// client and blocks for its response.
func CreateMessage(ctx context.Context, params jsonrpc.CreateMessageParams) (*jsonrpc.CreateMessageResult, error) {
	raw, err := send(ctx, "sampling/createMessage", params)
	if err != nil {
		return nil, err
	}
	var result jsonrpc.CreateMessageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode sampling result: %w", err)
	}
	return &result, nil
}

func send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s, rpcErr := FromContext(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}

	id, wait := s.Pending.Send(ctx, 0)
	frame, err := json.Marshal(jsonrpc.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprintf("%q", id)),
		Method:  method,
		Params:  paramsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}
	if err := s.Send(append(frame, '\n')); err != nil {
		return nil, fmt.Errorf("send %s request: %w", method, err)
	}
	return wait()
}
