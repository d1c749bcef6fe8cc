// Package transport implements the two wire transports MCP clients use:
// stdio (line-delimited JSON-RPC over a process's standard streams) and
// SSE (Server-Sent Events over HTTP). Ground: the teacher's
// gateway.Server.run bufio.Scanner line loop and mutex-guarded write
// path, generalized to dispatch inbound Response frames to a session's
// pending-request table in addition to ordinary request/notification
// dispatch.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mcpcore/mcpcore/internal/bridge"
	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/rpc"
	"github.com/mcpcore/mcpcore/internal/session"
)

const maxLineSize = 1024 * 1024

// writerSender serializes writes to an io.Writer behind one mutex, the
// single-consumer discipline every transport in this package follows so
// concurrent outbound frames (a response and a server-initiated request)
// never interleave mid-line.
type writerSender struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func (s *writerSender) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stdio session closed")
	}
	if len(frame) == 0 || frame[len(frame)-1] != '\n' {
		frame = append(frame, '\n')
	}
	_, err := s.w.Write(frame)
	return err
}

// Close marks the sender closed so further Send calls fail fast. The
// stdio transport has no independent signal to interrupt a blocking
// Scan() the way the SSE transport's channel select does; a forced
// CloseAll still bounds its wait on this session's Done() channel and
// gives up after its per-session timeout, per spec.md §4.3.
func (s *writerSender) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// StdioServer runs the dispatcher over one stdio-style connection (a real
// process's stdin/stdout, or any reader/writer pair for tests). Exactly
// one Session is created for the lifetime of the connection.
type StdioServer struct {
	Manager    *session.Manager
	Dispatcher *rpc.Dispatcher
}

// Run reads newline-delimited JSON-RPC frames from r until EOF, ctx
// cancellation, or a read error, dispatching each line and writing any
// response to w.
func (t *StdioServer) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	sender := &writerSender{w: w}
	sess := t.Manager.Create(session.TransportStdio, sender)
	defer t.Manager.Disconnect(sess.ID)

	sessCtx := bridge.WithSession(ctx, sess)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		sess.RecordReceive(len(line))

		kind, err := jsonrpc.Classify(line)
		if err == nil && kind == jsonrpc.FrameResponse {
			routeResponse(sess, line)
			continue
		}

		resp := t.Dispatcher.Dispatch(sessCtx, line)
		if resp == nil {
			continue
		}
		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error("marshal response", "error", err)
			continue
		}
		if err := sess.Send(append(data, '\n')); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

func routeResponse(sess *session.Session, line []byte) {
	var resp jsonrpc.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return
	}
	var id string
	_ = json.Unmarshal(resp.ID, &id)
	sess.Pending.Resolve(id, resp.Result, resp.Error)
}
