// Package session implements the connection manager: the registry of
// active MCP sessions, their negotiated capabilities, and idle-timeout
// eviction. Adapted from the teacher's per-process session manager,
// generalized from one session per process to a concurrent registry
// since this server accepts many simultaneous SSE sessions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mcpcore/mcpcore/internal/jsonrpc"
	"github.com/mcpcore/mcpcore/internal/rpc"
)

// Transport distinguishes the two transport kinds a session may run over.
type Transport int

const (
	TransportStdio Transport = iota
	TransportSSE
)

func (t Transport) String() string {
	if t == TransportStdio {
		return "stdio"
	}
	return "sse"
}

// Metrics tracks per-session traffic counters, updated by Send and
// RecordReceive. The status CLI subcommand does not report them.
type Metrics struct {
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
}

// Sender is whatever knows how to deliver one outbound JSON-RPC frame to
// the session's client. The SSE and stdio transports each implement this
// over their own wire. Close is idempotent and signals the transport's
// serving loop to unwind; it does not itself block for that to happen.
type Sender interface {
	Send(frame []byte) error
	Close()
}

// Session is one negotiated MCP connection: a transport, its pending
// server-initiated requests, and the metadata the dispatcher consults for
// capability gating.
type Session struct {
	ID                 string
	Transport          Transport
	ClientPID          *int
	NegotiatedVersion  string
	ClientCapabilities jsonrpc.ClientCapabilities
	CreatedAt          time.Time
	mu                 sync.Mutex
	lastActivity       time.Time
	sender             Sender
	Pending            *rpc.PendingTable
	Metrics            Metrics
	metadata           map[string]string
	closeOnce          sync.Once
	closed             chan struct{}
}

// SetMetadata records a string key/value on the session, used by the
// auth resource server to attach a validated bearer token's userId and
// claim_<k> entries (spec.md §4.8) without growing the Session struct
// per auth scheme.
func (s *Session) SetMetadata(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata == nil {
		s.metadata = make(map[string]string)
	}
	s.metadata[key] = value
}

// Metadata returns the value stored under key, if any.
func (s *Session) Metadata(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.metadata[key]
	return v, ok
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the last time this session sent or received a frame.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Send delivers an outbound frame through the session's transport sender
// and records metrics. Safe for concurrent use: the underlying Sender is
// responsible for its own write serialization (a single-consumer queue
// per session, see internal/transport).
func (s *Session) Send(frame []byte) error {
	if err := s.sender.Send(frame); err != nil {
		return err
	}
	s.mu.Lock()
	s.Metrics.MessagesSent++
	s.Metrics.BytesSent += uint64(len(frame))
	s.mu.Unlock()
	return nil
}

// RecordReceive updates inbound metrics and the idle-timeout clock. The
// transport calls this for every frame it reads off the wire.
func (s *Session) RecordReceive(n int) {
	s.touch()
	s.mu.Lock()
	s.Metrics.MessagesReceived++
	s.Metrics.BytesReceived += uint64(n)
	s.mu.Unlock()
}

// MarkClosed signals that this session's serving loop has unwound. Safe
// to call more than once (the transport's own deferred cleanup and the
// connection manager's forced shutdown path can both race to call it).
func (s *Session) MarkClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Done returns a channel that's closed once MarkClosed has run, so a
// caller can wait (with its own timeout) for this session's transport
// loop to actually finish.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Manager is the connection manager: a concurrent registry keyed by
// session id, with idle-timeout eviction. Ground: the teacher's
// sessionManager, generalized to a multi-session map guarded by one
// sync.RWMutex since the teacher ran exactly one session per stdio process.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
}

// DefaultIdleTimeout is the inactivity window after which SweepIdle
// evicts a session.
const DefaultIdleTimeout = 30 * time.Minute

// NewManager creates a Manager with the given idle timeout (DefaultIdleTimeout
// if zero).
func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
	}
}

// Create registers a new session with the given transport and sender,
// returning the Session for the caller to drive `initialize` negotiation
// on.
func (m *Manager) Create(transport Transport, sender Sender) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		Transport:    transport,
		CreatedAt:    time.Now(),
		lastActivity: time.Now(),
		sender:       sender,
		Pending:      rpc.NewPendingTable(),
		closed:       make(chan struct{}),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Disconnect removes a session and resolves any pending server-initiated
// requests it still owned as failed, so no caller blocks forever waiting
// on a transport that is gone.
func (m *Manager) Disconnect(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Pending.CloseAll("session disconnected")
		s.MarkClosed()
	}
}

// closeSender signals the session's transport to stop delivering frames.
// Idempotent and nil-safe: tests and a handful of call sites construct a
// Session with no sender at all.
func (s *Session) closeSender() {
	if s.sender != nil {
		s.sender.Close()
	}
}

// Count reports the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepIdle evicts sessions that have been inactive longer than the
// manager's idle timeout, ground: the approval manager's ExpireStale
// sweep idiom. Nothing in this repository calls it on a schedule, so idle
// sessions are evicted only when a caller runs SweepIdle. It removes the
// registry entry and fails pending requests; it does not close the
// session's sender.
func (m *Manager) SweepIdle() []string {
	now := time.Now()
	var evictedIDs []string
	var evictedSessions []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.idleTimeout {
			evictedIDs = append(evictedIDs, id)
			evictedSessions = append(evictedSessions, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range evictedSessions {
		s.Pending.CloseAll("session idle timeout")
	}
	return evictedIDs
}

// closeAllPerSessionTimeout bounds how long CloseAll waits for any one
// session's transport loop to unwind on its own before disconnecting it
// anyway, per spec.md §4.3 ("bounded-wait ≤10s per session").
const closeAllPerSessionTimeout = 10 * time.Second

// CloseAll signals every session's transport to stop and waits, in
// parallel and bounded by ctx and a ≤10s per-session timeout, for each
// one to actually finish before removing it from the registry. Used at
// server shutdown. Ground: the teacher's errgroup-based bounded-wait
// shutdown idiom in cmd/mcplexer's runHTTPAndSocket.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			s.closeSender()
			waitCtx, cancel := context.WithTimeout(gctx, closeAllPerSessionTimeout)
			defer cancel()
			select {
			case <-s.Done():
			case <-waitCtx.Done():
			}
			m.Disconnect(s.ID)
			return nil
		})
	}
	_ = g.Wait()
}
