package oauthserver

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// allowedGrantTypes are the grant types a dynamically registered client
// may request, per spec.md §4.9.
var allowedGrantTypes = []string{"authorization_code", "refresh_token", "client_credentials"}

// isAllowedRedirectURI reports whether uri is an absolute https URI or a
// loopback http URI (http://127.0.0.1:*, http://[::1]:*, or
// http://localhost:*), per spec.md §3's redirect-URI invariant.
func isAllowedRedirectURI(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil || !u.IsAbs() {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		host := u.Hostname()
		return host == "127.0.0.1" || host == "::1" || host == "localhost"
	default:
		return false
	}
}

// Server is the demo OAuth 2.1 authorization server: dynamic client
// registration, the authorization and token endpoints, and the AS
// metadata document. A real identity provider sits behind none of this —
// it exists so an MCP client can exercise the full OAuth flow against a
// self-contained demo issuer.
type Server struct {
	Issuer  string // external base URL, e.g. https://localhost:8443
	Signer  *TokenSigner
	Clients *ClientRegistry
	Codes   *ttlStore[AuthorizationCode]
	Refresh *ttlStore[RefreshToken]

	// DemoClientID/DemoClientSecret are the static client_credentials
	// pair this demo AS accepts (spec.md §4.9): no dynamic registration
	// is required for the machine-to-machine grant.
	DemoClientID     string
	DemoClientSecret string
}

// NewServer wires up a demo AS using key as the HS256 signing secret.
func NewServer(issuer string, key []byte) *Server {
	return &Server{
		Issuer:           issuer,
		Signer:           NewTokenSigner(key, issuer, 30*time.Minute),
		Clients:          NewClientRegistry(),
		Codes:            newTTLStore[AuthorizationCode](10 * time.Minute),
		Refresh:          newTTLStore[RefreshToken](12 * time.Hour),
		DemoClientID:     "demo-service",
		DemoClientSecret: "demo-service-secret",
	}
}

// HandleRegister implements POST /oauth/register (RFC 7591). Per
// spec.md §4.9: redirect URIs must be absolute and https or loopback
// http, grant types are limited to authorization_code, refresh_token,
// and client_credentials, response types to code, and this demo AS only
// accepts the "none" auth method (public clients, PKCE-only — no client
// secrets to manage in a demonstration server).
func (s *Server) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata"})
		return
	}
	if len(req.RedirectURIs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_redirect_uri"})
		return
	}
	for _, u := range req.RedirectURIs {
		if !isAllowedRedirectURI(u) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_redirect_uri",
				"error_description": fmt.Sprintf("redirect_uri %q must be absolute and https or loopback http", u),
			})
			return
		}
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "none"
	}
	if authMethod != "none" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_client_metadata",
			"error_description": "only token_endpoint_auth_method=none is supported by this demo authorization server",
		})
		return
	}
	for _, gt := range req.GrantTypes {
		if !containsString(allowedGrantTypes, gt) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata", "error_description": "unsupported grant_type: " + gt})
			return
		}
	}
	for _, rt := range req.ResponseTypes {
		if rt != "code" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_metadata", "error_description": "unsupported response_type: " + rt})
			return
		}
	}

	clientID := uuid.NewString()
	client := &RegisteredClient{
		ClientID:     clientID,
		RedirectURIs: req.RedirectURIs,
		Scope:        req.Scope,
	}
	// Add-or-keep: a duplicate registration attempt (a retried request
	// replaying the same client_id, which cannot happen for a
	// freshly-generated uuid but can for a config-seeded one) never
	// clobbers an already-registered client.
	s.Clients.RegisterIfAbsent(client)

	writeJSON(w, http.StatusCreated, RegisterResponse{
		ClientID:                clientID,
		ClientIDIssuedAt:        time.Now().Unix(),
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		Scope:                   req.Scope,
	})
}

// HandleAuthorize implements GET /oauth/authorize: validates the request
// and — since this is a demo AS with no real login UI — immediately
// issues an authorization code back to the redirect_uri, as if a user
// had instantly approved the request.
func (s *Server) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	codeChallenge := q.Get("code_challenge")
	codeChallengeMethod := q.Get("code_challenge_method")
	resource := q.Get("resource")
	state := q.Get("state")

	if q.Get("response_type") != "code" {
		http.Error(w, "response_type must be code", http.StatusBadRequest)
		return
	}

	client, ok := s.Clients.Get(clientID)
	if !ok {
		http.Error(w, "unknown client_id", http.StatusBadRequest)
		return
	}
	if !containsString(client.RedirectURIs, redirectURI) {
		http.Error(w, "redirect_uri does not match registration", http.StatusBadRequest)
		return
	}
	if codeChallenge == "" || codeChallengeMethod != "S256" {
		http.Error(w, "PKCE with S256 is required", http.StatusBadRequest)
		return
	}

	code, err := s.Codes.Create(AuthorizationCode{
		ClientID:      clientID,
		Subject:       "demo-user",
		RedirectURI:   redirectURI,
		Resource:      resource,
		CodeChallenge: codeChallenge,
		Scope:         q.Get("scope"),
	})
	if err != nil {
		http.Error(w, "server_error", http.StatusInternalServerError)
		return
	}

	dest, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	qs := dest.Query()
	qs.Set("code", code)
	if state != "" {
		qs.Set("state", state)
	}
	dest.RawQuery = qs.Encode()

	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// HandleToken implements POST /oauth/token for the authorization_code,
// refresh_token, and client_credentials grants.
func (s *Server) HandleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		s.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		s.handleRefreshTokenGrant(w, r)
	case "client_credentials":
		s.handleClientCredentialsGrant(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

// handleClientCredentialsGrant issues a token with no refresh token for
// the static demo service identity, bypassing the dynamic client
// registry entirely — this grant is for service-to-service calls, not
// the interactive MCP client flow the rest of this AS demonstrates.
func (s *Server) handleClientCredentialsGrant(w http.ResponseWriter, r *http.Request) {
	clientID := r.Form.Get("client_id")
	clientSecret := r.Form.Get("client_secret")
	resource := r.Form.Get("resource")
	if resource == "" {
		resource = s.Issuer
	}

	if clientID != s.DemoClientID || clientSecret != s.DemoClientSecret {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client"})
		return
	}

	accessToken, expiresAt, err := s.Signer.Mint(clientID, clientID, resource, r.Form.Get("scope"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		Scope:       r.Form.Get("scope"),
	})
}

func (s *Server) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	code := r.Form.Get("code")
	verifier := r.Form.Get("code_verifier")
	clientID := r.Form.Get("client_id")
	resource := r.Form.Get("resource")

	record, ok := s.Codes.Consume(code)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	if record.ClientID != clientID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client"})
		return
	}
	if CodeChallenge(verifier) != record.CodeChallenge {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	if resource == "" {
		resource = record.Resource
	}
	if resource != record.Resource {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	s.issueToken(w, record.Subject, record.ClientID, resource, record.Scope)
}

func (s *Server) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	token := r.Form.Get("refresh_token")
	clientID := r.Form.Get("client_id")
	resource := r.Form.Get("resource")

	record, ok := s.Refresh.Consume(token)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	if record.ClientID != clientID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client"})
		return
	}
	if resource != "" && resource != record.Resource {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	s.issueToken(w, record.Subject, record.ClientID, record.Resource, record.Scope)
}

func (s *Server) issueToken(w http.ResponseWriter, subject, clientID, resource, scope string) {
	accessToken, expiresAt, err := s.Signer.Mint(subject, clientID, resource, scope)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	refreshToken, err := s.Refresh.Create(RefreshToken{ClientID: clientID, Subject: subject, Resource: resource, Scope: scope})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
		RefreshToken: refreshToken,
		Scope:        scope,
	})
}

// HandleMetadata implements GET /.well-known/oauth-authorization-server
// (RFC 8414). DeviceAuthorizationEndpoint is left unset: this demo AS
// offers no device-authorization grant, so the field is omitted rather
// than advertising an endpoint that doesn't exist.
func (s *Server) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AuthorizationServerMetadata{
		Issuer:                            s.Issuer,
		AuthorizationEndpoint:             s.Issuer + "/oauth/authorize",
		TokenEndpoint:                     s.Issuer + "/oauth/token",
		RegistrationEndpoint:              s.Issuer + "/oauth/register",
		JWKSUri:                           s.Issuer + "/.well-known/jwks.json",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token", "client_credentials"},
		TokenEndpointAuthMethodsSupported: []string{"none", "client_secret_post"},
		CodeChallengeMethodsSupported:     []string{"S256"},
	})
}

// HandleJWKS implements GET /.well-known/jwks.json. Since this demo AS
// signs with HS256 (a symmetric key), there is no public key to publish;
// an empty key set is returned so resource servers that blindly fetch
// JWKS don't error, while real verification for this AS happens via the
// shared secret configured out of band (see internal/auth).
func (s *Server) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"keys": []any{}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// GenerateSigningKey produces a fresh random HS256 key for first-run
// bootstrap, before it is wrapped by secrets.AgeEncryptor for at-rest
// storage.
func GenerateSigningKey() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(b)), nil
}
