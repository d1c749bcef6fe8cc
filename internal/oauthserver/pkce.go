// Package oauthserver implements the demo OAuth 2.1 authorization server:
// dynamic client registration (RFC 7591), the authorization and token
// endpoints with PKCE (S256) and single-use codes/refresh tokens, and
// HS256 JWT issuance. Adapted from the teacher's internal/oauth package,
// which is an OAuth *client* authenticating mcplexer to downstream
// providers — inverted here into an OAuth *server* issuing tokens to MCP
// clients. Per spec.md's Non-goals, none of this server's registrations
// (clients, codes, refresh tokens) are persisted across restarts.
package oauthserver

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// GenerateCodeVerifier creates a 43-character random base64url string
// suitable for use as a PKCE code verifier. Reused verbatim from the
// teacher's client-side PKCE helper; the AS uses it only in tests to
// generate a verifier/challenge pair to validate against.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CodeChallenge computes the S256 PKCE code challenge for the given
// verifier — identical to the teacher's client-side helper; here the
// server runs it over the verifier a client presents at the token
// endpoint and compares against the challenge recorded at /authorize.
func CodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
