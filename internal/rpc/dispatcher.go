package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
)

// Handler processes one inbound request's params and returns the JSON to
// place in Response.Result, or an RPCError to place in Response.Error.
type Handler func(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError)

// NotificationHandler processes one inbound notification; it returns no
// response since notifications never get one.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// Dispatcher holds the method table for one MCP server instance. Methods
// are registered once at wire-up time in internal/server and looked up by
// name for every inbound frame — a map table rather than the teacher's
// switch statement, since this server's method set is much larger.
type Dispatcher struct {
	handlers      map[string]Handler
	notifications map[string]NotificationHandler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers:      make(map[string]Handler),
		notifications: make(map[string]NotificationHandler),
	}
}

// Handle registers a request handler for method.
func (d *Dispatcher) Handle(method string, h Handler) {
	d.handlers[method] = h
}

// HandleNotification registers a notification handler for method.
func (d *Dispatcher) HandleNotification(method string, h NotificationHandler) {
	d.notifications[method] = h
}

// Dispatch classifies and routes one inbound frame. It returns nil for
// notifications (no response expected). A frame that cannot be parsed
// gets a ParseError response with a null id, as JSON-RPC requires.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) *jsonrpc.Response {
	kind, err := jsonrpc.Classify(raw)
	if err != nil {
		return &jsonrpc.Response{
			JSONRPC: "2.0",
			Error:   jsonrpc.NewError(jsonrpc.CodeParseError, "invalid JSON: "+err.Error(), nil),
		}
	}

	switch kind {
	case jsonrpc.FrameNotification:
		var n jsonrpc.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil
		}
		if h, ok := d.notifications[n.Method]; ok {
			h(ctx, n.Params)
		}
		return nil

	case jsonrpc.FrameRequest:
		var req jsonrpc.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return &jsonrpc.Response{
				JSONRPC: "2.0",
				Error:   jsonrpc.NewError(jsonrpc.CodeParseError, "invalid JSON: "+err.Error(), nil),
			}
		}
		resp := &jsonrpc.Response{JSONRPC: "2.0", ID: req.ID}
		h, ok := d.handlers[req.Method]
		if !ok {
			resp.Error = jsonrpc.NewError(jsonrpc.CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method), nil)
			return resp
		}
		result, rpcErr := h(ctx, req.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
		return resp

	default:
		// FrameResponse frames are not this dispatcher's concern; the
		// transport routes them straight to the pending-request table.
		return nil
	}
}
