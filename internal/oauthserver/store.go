package oauthserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// ttlStore is an in-memory, consume-on-read map with a fixed TTL.
// Ground: the teacher's oauth.StateStore — same sync.Mutex-guarded map
// plus cleanup-on-Create shape, generalized from CSRF state to any
// single-use token record (authorization codes, refresh tokens).
type ttlStore[T any] struct {
	mu      sync.Mutex
	entries map[string]ttlEntry[T]
	ttl     time.Duration
}

type ttlEntry[T any] struct {
	value     T
	createdAt time.Time
}

func newTTLStore[T any](ttl time.Duration) *ttlStore[T] {
	return &ttlStore[T]{entries: make(map[string]ttlEntry[T]), ttl: ttl}
}

// Create generates a fresh random token, stores value under it, and
// returns the token.
func (s *ttlStore[T]) Create(value T) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	s.entries[token] = ttlEntry[T]{value: value, createdAt: time.Now()}
	return token, nil
}

// Consume looks up and deletes the entry for token, returning false if
// absent or expired. This is the "exactly once" redemption rule
// authorization codes and refresh tokens require.
func (s *ttlStore[T]) Consume(token string) (T, bool) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return zero, false
	}
	delete(s.entries, token)
	if time.Since(entry.createdAt) > s.ttl {
		return zero, false
	}
	return entry.value, true
}

func (s *ttlStore[T]) cleanupLocked() {
	now := time.Now()
	for k, v := range s.entries {
		if now.Sub(v.createdAt) > s.ttl {
			delete(s.entries, k)
		}
	}
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ClientRegistry is a concurrent map of dynamically registered clients.
// Ground: the downstream instance manager's mutex-guarded instances map.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*RegisteredClient
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*RegisteredClient)}
}

// Register stores a client under its ClientID, overwriting any existing
// registration for that id. Used for operator-seeded clients (a
// declarative mcpcore.yaml reload should pick up edited redirect URIs).
func (r *ClientRegistry) Register(c *RegisteredClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ClientID] = c
}

// RegisterIfAbsent stores c only if no client is already registered
// under its ClientID — add-or-keep semantics, per spec.md §4.9's
// "Storage is a concurrent map with add-or-keep semantics on duplicate
// id." Returns the client actually stored (c, or the pre-existing one).
func (r *ClientRegistry) RegisterIfAbsent(c *RegisteredClient) *RegisteredClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[c.ClientID]; ok {
		return existing
	}
	r.clients[c.ClientID] = c
	return c
}

// Get looks up a client by id.
func (r *ClientRegistry) Get(clientID string) (*RegisteredClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	return c, ok
}
