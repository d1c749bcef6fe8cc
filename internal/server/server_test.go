package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mcpcore/mcpcore/internal/bridge"
	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/session"
)

func newTestServer() *Server {
	return New(Info{Name: "mcpcore-test", Version: "0.0.0"}, 0)
}

func withSession(s *Server) (context.Context, *session.Session) {
	sess := s.Sessions.Create(session.TransportStdio, nil)
	return bridge.WithSession(context.Background(), sess), sess
}

func TestHandleInitializeNegotiatesVersionAndCapabilities(t *testing.T) {
	s := newTestServer()
	s.Tools.Register(jsonrpc.Tool{Name: "echo", InputSchema: json.RawMessage(`{}`)}, nil)
	ctx, sess := withSession(s)

	params, _ := json.Marshal(jsonrpc.InitializeParams{ProtocolVersion: "2025-06-18"})
	raw, rpcErr := s.handleInitialize(ctx, params)
	if rpcErr != nil {
		t.Fatalf("handleInitialize() error = %v", rpcErr)
	}

	var result jsonrpc.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}
	if result.ProtocolVersion != "2025-06-18" {
		t.Errorf("ProtocolVersion = %q", result.ProtocolVersion)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability to be advertised once a tool is registered")
	}
	if result.Capabilities.Resources != nil {
		t.Error("expected no resources capability with an empty registry")
	}
	if sess.NegotiatedVersion != "2025-06-18" {
		t.Errorf("session NegotiatedVersion = %q", sess.NegotiatedVersion)
	}
}

func TestHandleInitializeFallsBackToLatestForUnknownVersion(t *testing.T) {
	s := newTestServer()
	ctx, _ := withSession(s)

	params, _ := json.Marshal(jsonrpc.InitializeParams{ProtocolVersion: "1999-01-01"})
	raw, rpcErr := s.handleInitialize(ctx, params)
	if rpcErr != nil {
		t.Fatal(rpcErr)
	}
	var result jsonrpc.InitializeResult
	_ = json.Unmarshal(raw, &result)
	if result.ProtocolVersion != jsonrpc.LatestProtocolVersion {
		t.Errorf("ProtocolVersion = %q, want fallback to latest", result.ProtocolVersion)
	}
}

func TestHandleToolsListAndCall(t *testing.T) {
	s := newTestServer()
	s.Tools.Register(jsonrpc.Tool{Name: "echo", InputSchema: json.RawMessage(`{}`)},
		func(ctx context.Context, args json.RawMessage) (*jsonrpc.CallToolResult, error) {
			return &jsonrpc.CallToolResult{Content: []jsonrpc.ToolContent{{Type: "text", Text: "hi"}}}, nil
		})
	ctx, _ := withSession(s)

	listRaw, rpcErr := s.handleToolsList(ctx, nil)
	if rpcErr != nil {
		t.Fatal(rpcErr)
	}
	var list jsonrpc.ListToolsResult
	_ = json.Unmarshal(listRaw, &list)
	if len(list.Tools) != 1 || list.Tools[0].Name != "echo" {
		t.Fatalf("Tools = %+v", list.Tools)
	}

	callParams, _ := json.Marshal(jsonrpc.CallToolRequest{Name: "echo"})
	callRaw, rpcErr := s.handleToolsCall(ctx, callParams)
	if rpcErr != nil {
		t.Fatal(rpcErr)
	}
	var result jsonrpc.CallToolResult
	_ = json.Unmarshal(callRaw, &result)
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Fatalf("result = %+v", result)
	}
}

func TestHandleToolsCallUnknownToolIsInvalidParams(t *testing.T) {
	s := newTestServer()
	ctx, _ := withSession(s)

	params, _ := json.Marshal(jsonrpc.CallToolRequest{Name: "missing"})
	_, rpcErr := s.handleToolsCall(ctx, params)
	if rpcErr == nil || rpcErr.Code != jsonrpc.CodeInvalidParams {
		t.Fatalf("handleToolsCall() = %v, want InvalidParams", rpcErr)
	}
}

func TestHandleResourcesAndPrompts(t *testing.T) {
	s := newTestServer()
	s.Resources.Register(jsonrpc.Resource{URI: "demo://greeting", Name: "greeting"},
		func(ctx context.Context, uri string) (*jsonrpc.ReadResourceResult, error) {
			return &jsonrpc.ReadResourceResult{Contents: []jsonrpc.ResourceContent{{URI: uri, Text: "hello"}}}, nil
		})
	s.Prompts.Register(jsonrpc.Prompt{Name: "greet"},
		func(ctx context.Context, args map[string]string) (*jsonrpc.GetPromptResult, error) {
			return &jsonrpc.GetPromptResult{Messages: []jsonrpc.PromptMessage{{Role: "user", Content: jsonrpc.ToolContent{Type: "text", Text: "hi"}}}}, nil
		})
	ctx, _ := withSession(s)

	readParams, _ := json.Marshal(jsonrpc.ReadResourceParams{URI: "demo://greeting"})
	readRaw, rpcErr := s.handleResourcesRead(ctx, readParams)
	if rpcErr != nil {
		t.Fatal(rpcErr)
	}
	var readResult jsonrpc.ReadResourceResult
	_ = json.Unmarshal(readRaw, &readResult)
	if len(readResult.Contents) != 1 || readResult.Contents[0].Text != "hello" {
		t.Fatalf("result = %+v", readResult)
	}

	getParams, _ := json.Marshal(jsonrpc.GetPromptParams{Name: "greet"})
	getRaw, rpcErr := s.handlePromptsGet(ctx, getParams)
	if rpcErr != nil {
		t.Fatal(rpcErr)
	}
	var getResult jsonrpc.GetPromptResult
	_ = json.Unmarshal(getRaw, &getResult)
	if len(getResult.Messages) != 1 {
		t.Fatalf("result = %+v", getResult)
	}
}

func TestCapabilitiesOmittedWithEmptyRegistries(t *testing.T) {
	s := newTestServer()
	caps := s.capabilities()
	if caps.Tools != nil || caps.Resources != nil || caps.Prompts != nil || caps.Completions != nil {
		t.Errorf("capabilities = %+v, want all nil for empty registries", caps)
	}
}
