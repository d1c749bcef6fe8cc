package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
)

func TestServiceListOrder(t *testing.T) {
	s := NewService()
	s.Register(jsonrpc.Tool{Name: "b"}, func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error) {
		return nil, nil
	})
	s.Register(jsonrpc.Tool{Name: "a"}, func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error) {
		return nil, nil
	})

	list := s.List()
	if len(list) != 2 || list[0].Name != "b" || list[1].Name != "a" {
		t.Fatalf("List() = %v, want insertion order [b a]", list)
	}
}

func TestServiceCallUnknownTool(t *testing.T) {
	s := NewService()
	_, rpcErr := s.Call(context.Background(), "missing", nil)
	if rpcErr == nil || rpcErr.Code != jsonrpc.CodeInvalidParams {
		t.Fatalf("Call() unknown tool = %v, want InvalidParams", rpcErr)
	}
}

func TestServiceCallHandlerError(t *testing.T) {
	s := NewService()
	s.Register(jsonrpc.Tool{Name: "fail"}, func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error) {
		return nil, errors.New("boom")
	})

	result, rpcErr := s.Call(context.Background(), "fail", nil)
	if rpcErr != nil {
		t.Fatalf("Call() returned protocol error %v, want CallToolResult.IsError", rpcErr)
	}
	if !result.IsError {
		t.Error("result.IsError = false, want true")
	}
}

func TestServiceCallPanicRecovered(t *testing.T) {
	s := NewService()
	s.Register(jsonrpc.Tool{Name: "panics"}, func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error) {
		panic("kaboom")
	})

	result, rpcErr := s.Call(context.Background(), "panics", nil)
	if rpcErr != nil {
		t.Fatalf("Call() returned protocol error %v, want CallToolResult.IsError", rpcErr)
	}
	if !result.IsError {
		t.Error("result.IsError = false after a panicking handler")
	}
}
