// Package rpc holds the protocol dispatcher and the pending-request table
// that correlates server-initiated requests (elicitation, sampling) with
// their eventual client response.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcpcore/mcpcore/internal/jsonrpc"
)

// DefaultRequestTimeout is how long a server-initiated request waits for a
// client response before the pending table resolves it as a timeout.
const DefaultRequestTimeout = 60 * time.Second

type rpcResult struct {
	result json.RawMessage
	err    *jsonrpc.RPCError
}

// PendingTable tracks in-flight server-initiated requests. Exactly one of
// {matching response, timeout, cancellation, transport close} removes and
// resolves each entry; entries are never resolved twice. Adapted from the
// request/response correlation map used for human-approval gates, here
// generalized to any server-initiated JSON-RPC request kind.
type PendingTable struct {
	mu      sync.Mutex
	pending map[string]chan rpcResult
}

// NewPendingTable creates an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{pending: make(map[string]chan rpcResult)}
}

// Send registers a new pending request under a fresh ID and returns at
// once. The returned wait func blocks until a response arrives, the
// context is cancelled, or timeout elapses. The caller is responsible for
// actually writing the request frame to the transport using the returned
// id before calling wait; Send itself does no I/O.
func (t *PendingTable) Send(ctx context.Context, timeout time.Duration) (id string, wait func() (json.RawMessage, error)) {
	id = uuid.NewString()
	ch := make(chan rpcResult, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		t.mu.Lock()
		_, stillPending := t.pending[id]
		delete(t.pending, id)
		t.mu.Unlock()
		if stillPending {
			ch <- rpcResult{err: jsonrpc.NewError(jsonrpc.CodeRequestTimeout, "request timed out", nil)}
		}
	})

	wait = func() (json.RawMessage, error) {
		defer timer.Stop()
		select {
		case res := <-ch:
			if res.err != nil {
				return nil, fmt.Errorf("%s", res.err.Message)
			}
			return res.result, nil
		case <-ctx.Done():
			t.mu.Lock()
			delete(t.pending, id)
			t.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	return id, wait
}

// Resolve delivers a response frame to the pending request matching id.
// Returns false if no such request is outstanding (already resolved,
// timed out, or unknown id) — the caller should treat this as a
// harmless late or duplicate response.
func (t *PendingTable) Resolve(id string, result json.RawMessage, rpcErr *jsonrpc.RPCError) bool {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- rpcResult{result: result, err: rpcErr}
	return true
}

// CloseAll resolves every outstanding request as failed, used when the
// owning transport/session is torn down so no Send call leaks forever.
func (t *PendingTable) CloseAll(reason string) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]chan rpcResult)
	t.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcResult{err: jsonrpc.NewError(jsonrpc.CodeInternalError, reason, nil)}
	}
}

// Len reports the number of currently outstanding requests, for tests and
// diagnostics.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
