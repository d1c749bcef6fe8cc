package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/mcpcore/mcpcore/internal/bridge"
	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/rpc"
	"github.com/mcpcore/mcpcore/internal/session"
)

// ProtocolVersionHeader and SessionIDHeader are the MCP streamable-HTTP
// transport's required headers.
const (
	ProtocolVersionHeader = "MCP-Protocol-Version"
	SessionIDHeader       = "Mcp-Session-Id"
)

// channelSender delivers outbound frames through a single-consumer queue,
// ground: the audit bus's per-subscriber buffered-channel fan-out, here
// scoped to exactly one SSE session instead of N subscribers. The queue
// guarantees writes to the underlying http.ResponseWriter happen from one
// goroutine only, satisfying the spec's single-writer-per-session rule
// without an explicit mutex.
type channelSender struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newChannelSender() *channelSender {
	return &channelSender{frames: make(chan []byte, 64), closed: make(chan struct{})}
}

func (c *channelSender) Send(frame []byte) error {
	select {
	case c.frames <- frame:
		return nil
	case <-c.closed:
		return fmt.Errorf("sse session closed")
	}
}

// Close is idempotent: both the handler's own deferred cleanup and the
// connection manager's forced CloseAll can race to call it.
func (c *channelSender) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// SSEServer serves the streamable-HTTP MCP transport: GET /mcp opens an
// SSE stream, POST /mcp carries one JSON-RPC request/notification per
// call, DELETE /mcp terminates a session.
type SSEServer struct {
	Manager     *session.Manager
	Dispatcher  *rpc.Dispatcher
	AllowOrigins []string // empty means allow all, logged once at startup
}

// ServeHTTP implements http.Handler for the /mcp endpoint family.
func (s *SSEServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.originAllowed(r) {
		writeRPCHTTPError(w, http.StatusForbidden, "invalid_origin", "origin not allowed")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleStream(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// writeRPCHTTPError writes the non-RPC JSON error shape spec.md §7
// mandates for transport-level rejections: {"error": ..., "message": ...}.
func writeRPCHTTPError(w http.ResponseWriter, status int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errCode, "message": message})
}

func (s *SSEServer) originAllowed(r *http.Request) bool {
	if len(s.AllowOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.AllowOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

func (s *SSEServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sender := newChannelSender()
	sess := s.Manager.Create(session.TransportSSE, sender)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(SessionIDHeader, sess.ID)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ":\n\n")
	flusher.Flush()

	ctx := r.Context()
	defer s.Manager.Disconnect(sess.ID)
	defer sender.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sender.closed:
			return
		case frame := <-sender.frames:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handlePost implements the streamable-HTTP POST ingress: every inbound
// frame is dispatched and its response (if any) is written to the
// session's SSE stream, never to the POST response body — the POST
// itself only ever acknowledges receipt (spec.md §4.2 "POST responses").
func (s *SSEServer) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		// Legacy clients that predate the Mcp-Session-Id header pass the
		// session id as a query parameter instead.
		sessionID = r.URL.Query().Get("sessionId")
	}
	sess, ok := s.Manager.Get(sessionID)
	if !ok {
		writeRPCHTTPError(w, http.StatusNotFound, "not_found", "unknown or expired session")
		return
	}

	if sess.NegotiatedVersion != "" {
		got := r.Header.Get(ProtocolVersionHeader)
		if got == "" {
			writeRPCHTTPError(w, http.StatusBadRequest, "invalid_request", "Missing MCP-Protocol-Version header")
			return
		}
		if got != sess.NegotiatedVersion {
			writeRPCHTTPError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("MCP-Protocol-Version %q does not match negotiated version %q", got, sess.NegotiatedVersion))
			return
		}
	}

	body := http.MaxBytesReader(w, r.Body, 1<<20)
	var raw json.RawMessage
	dec := json.NewDecoder(body)
	if err := dec.Decode(&raw); err != nil {
		writeRPCHTTPError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	sess.RecordReceive(len(raw))

	s.acknowledge(w, sess)

	kind, err := jsonrpc.Classify(raw)
	if err == nil && kind == jsonrpc.FrameResponse {
		routeResponse(sess, raw)
		return
	}

	ctx := bridge.WithSession(r.Context(), sess)
	resp := s.Dispatcher.Dispatch(ctx, raw)
	if resp == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("marshal response", "error", err)
		return
	}
	if err := sess.Send(data); err != nil {
		slog.Warn("failed to queue response to session stream", "session", sess.ID, "error", err)
	}
}

// acknowledge writes the 202 Accepted the streamable-HTTP transport
// returns for every POST, request or notification alike, echoing the
// session and negotiated-protocol headers.
func (s *SSEServer) acknowledge(w http.ResponseWriter, sess *session.Session) {
	w.Header().Set(SessionIDHeader, sess.ID)
	if sess.NegotiatedVersion != "" {
		w.Header().Set(ProtocolVersionHeader, sess.NegotiatedVersion)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *SSEServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionIDHeader)
	s.Manager.Disconnect(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// LogOriginPolicy emits the one-time startup warning required when the
// origin allow-list is empty (Open Question (a): permitted but logged).
func (s *SSEServer) LogOriginPolicy() {
	if len(s.AllowOrigins) == 0 {
		slog.Warn("SSE transport has no Origin allow-list configured; all origins are accepted")
	}
}

// ParseOrigins splits a comma-separated origin list (the format of
// MCPCORE_ALLOW_ORIGINS) into a trimmed allow-list, skipping empty/invalid
// entries.
func ParseOrigins(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := url.Parse(part); err != nil {
			continue
		}
		out = append(out, part)
	}
	return out
}
