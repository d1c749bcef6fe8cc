package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/rpc"
	"github.com/mcpcore/mcpcore/internal/session"
)

func TestSSEHandshakeIssuesSessionID(t *testing.T) {
	d := rpc.NewDispatcher()
	srv := &SSEServer{Manager: session.NewManager(0), Dispatcher: d}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.ServeHTTP(rec, req)
		close(done)
	}()
	<-done

	if rec.Header().Get(SessionIDHeader) == "" {
		t.Fatal("handshake response missing Mcp-Session-Id header")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestSSEPostDispatchesAndStreamsResponse(t *testing.T) {
	d := rpc.NewDispatcher()
	d.Handle("ping", func(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
		return json.RawMessage(`{"pong":true}`), nil
	})
	mgr := session.NewManager(0)
	srv := &SSEServer{Manager: mgr, Dispatcher: d}

	sender := newChannelSender()
	sess := mgr.Create(session.TransportSSE, sender)

	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", body)
	req.Header.Set(SessionIDHeader, sess.ID)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(SessionIDHeader) != sess.ID {
		t.Errorf("Mcp-Session-Id = %q, want %q", rec.Header().Get(SessionIDHeader), sess.ID)
	}

	select {
	case frame := <-sender.frames:
		if !strings.Contains(string(frame), `"pong":true`) {
			t.Errorf("streamed frame = %s", frame)
		}
	default:
		t.Fatal("expected the response to be queued onto the SSE stream")
	}
}

func TestSSEPostUnknownSession(t *testing.T) {
	d := rpc.NewDispatcher()
	srv := &SSEServer{Manager: session.NewManager(0), Dispatcher: d}

	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", body)
	req.Header.Set(SessionIDHeader, "nonexistent")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSSEPostLegacySessionIDQueryParam(t *testing.T) {
	d := rpc.NewDispatcher()
	d.Handle("ping", func(ctx context.Context, params json.RawMessage) (json.RawMessage, *jsonrpc.RPCError) {
		return json.RawMessage(`{"pong":true}`), nil
	})
	mgr := session.NewManager(0)
	srv := &SSEServer{Manager: mgr, Dispatcher: d}
	sess := mgr.Create(session.TransportSSE, newChannelSender())

	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp?sessionId="+sess.ID, body)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestSSEPostRequiresProtocolVersionHeaderAfterInitialize(t *testing.T) {
	d := rpc.NewDispatcher()
	mgr := session.NewManager(0)
	srv := &SSEServer{Manager: mgr, Dispatcher: d}
	sess := mgr.Create(session.TransportSSE, newChannelSender())
	sess.NegotiatedVersion = "2025-06-18"

	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", body)
	req.Header.Set(SessionIDHeader, sess.ID)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing MCP-Protocol-Version header") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSSEOriginRejected(t *testing.T) {
	d := rpc.NewDispatcher()
	srv := &SSEServer{Manager: session.NewManager(0), Dispatcher: d, AllowOrigins: []string{"https://allowed.example"}}

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_origin") {
		t.Errorf("body = %s, want invalid_origin", rec.Body.String())
	}
}

func TestParseOrigins(t *testing.T) {
	origins := ParseOrigins("https://a.example, https://b.example ,")
	if len(origins) != 2 {
		t.Fatalf("ParseOrigins() = %v", origins)
	}
}
