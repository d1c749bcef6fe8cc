package server

import (
	"net/http"

	"github.com/mcpcore/mcpcore/internal/audit"
	"github.com/mcpcore/mcpcore/internal/auth"
	"github.com/mcpcore/mcpcore/internal/session"
	"github.com/mcpcore/mcpcore/internal/transport"
)

// Router builds the full HTTP surface spec.md §6 names: the streamable-
// HTTP /mcp endpoint family, /health, the demo authorization server's
// endpoints (when configured), and the resource-server metadata
// endpoints. Ground: teacher's api.NewRouter — one function assembling
// a mux and a middleware chain by repeated reassignment.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	sse := &transport.SSEServer{Manager: s.Sessions, Dispatcher: s.Dispatcher, AllowOrigins: s.AllowOrigins}
	sse.LogOriginPolicy()

	var mcpHandler http.Handler = sse
	mcpHandler = sessionMetadataMiddleware(s.Sessions)(mcpHandler)
	mcpHandler = s.Auth.Middleware(mcpHandler)
	mux.Handle("/mcp", mcpHandler)

	mux.HandleFunc("GET /health", healthCheck)

	if bus := s.Auditor.Bus(); bus != nil {
		mux.HandleFunc("GET /audit/stream", audit.StreamHandler(bus))
	}

	if s.OAuth != nil {
		mux.HandleFunc("POST /oauth/register", s.OAuth.HandleRegister)
		mux.HandleFunc("GET /oauth/authorize", s.OAuth.HandleAuthorize)
		mux.HandleFunc("POST /oauth/token", s.OAuth.HandleToken)
		mux.HandleFunc("GET /.well-known/oauth-authorization-server", s.OAuth.HandleMetadata)
		mux.HandleFunc("GET /.well-known/jwks.json", s.OAuth.HandleJWKS)
	}

	mux.HandleFunc("GET /.well-known/oauth-protected-resource", auth.ProtectedResourceHandler(s.resourceURI(), s.authorizationServers()))

	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (s *Server) resourceURI() string {
	if s.Auth != nil && s.Auth.Resource != "" {
		return s.Auth.Resource
	}
	if s.OAuth != nil {
		return s.OAuth.Issuer
	}
	return ""
}

func (s *Server) authorizationServers() []string {
	if s.OAuth == nil {
		return nil
	}
	return []string{s.OAuth.Issuer}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// sessionMetadataMiddleware attaches any bearer claims the auth
// middleware validated for this request onto the session the request
// names, so a session created before its first authenticated request
// (the initial SSE handshake is always unauthenticated from the
// session's point of view, since it is how the session comes to exist)
// still ends up with userId/claim_<k> recorded once the client sends an
// Authorization header.
func sessionMetadataMiddleware(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(transport.SessionIDHeader)
			if sessionID == "" {
				sessionID = r.URL.Query().Get("sessionId")
			}
			if sessionID != "" {
				if sess, ok := sessions.Get(sessionID); ok {
					auth.ApplySessionMetadata(r.Context(), sess)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
