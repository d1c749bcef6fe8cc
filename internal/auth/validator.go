// Package auth implements the inbound OAuth resource-server side of the
// runtime: bearer-token validation for HTTP transports and the
// unauthenticated discovery endpoints a client uses to find the demo
// authorization server. Ground: teacher's internal/oauth package is an
// OAuth client (it authenticates mcplexer to upstream providers); this
// package inverts that role to validate tokens presented by MCP clients,
// using the same golang-jwt/jwt/v5 library the demo AS in
// internal/oauthserver uses to mint them.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the normalized result of a successful bearer validation.
type Claims struct {
	Subject  string
	ClientID string
	Scope    string
	Raw      map[string]any
}

// Validator checks bearer tokens against one or more configured
// symmetric keys. An empty Keys list means the resource server is not
// guarding its HTTP transports at all (spec.md §4.8: "may be guarded").
type Validator struct {
	Keys      []string // base64 or base64url encoded symmetric keys, tried in order
	Resource  string   // this server's canonical resource URI, matched against aud
	Issuer    string    // optional; when set, the token's iss must match exactly
	ClockSkew time.Duration

	// RequireResourceIndicator enforces RFC 8707: the token's resource
	// claim (here, its audience) must equal Resource exactly, not merely
	// contain it among others.
	RequireResourceIndicator bool
}

// Enabled reports whether this validator has any keys configured. A
// disabled validator's middleware passes every request through
// unauthenticated.
func (v *Validator) Enabled() bool {
	return v != nil && len(v.Keys) > 0
}

// Validate checks tokenString's signature against each configured key in
// order, then its issuer, expiry (with ClockSkew leeway), and resource
// indicator. The first key whose signature verifies is used; a token
// that fails under every configured key is rejected.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	if !v.Enabled() {
		return nil, errors.New("auth: validator has no keys configured")
	}

	var lastErr error
	for _, encoded := range v.Keys {
		key, err := decodeKey(encoded)
		if err != nil {
			lastErr = err
			continue
		}

		opts := []jwt.ParserOption{jwt.WithLeeway(v.ClockSkew)}
		if v.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(v.Issuer))
		}
		parser := jwt.NewParser(opts...)

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			lastErr = err
			continue
		}

		if v.RequireResourceIndicator || v.Resource != "" {
			if err := checkAudience(claims, v.Resource); err != nil {
				return nil, err
			}
			if v.RequireResourceIndicator {
				if aud, _ := claims.GetAudience(); len(aud) != 1 || aud[0] != v.Resource {
					return nil, fmt.Errorf("auth: token audience %v is not exactly resource %q", aud, v.Resource)
				}
			}
		}

		return claimsFromMap(claims), nil
	}

	if lastErr == nil {
		lastErr = errors.New("token rejected by every configured key")
	}
	return nil, fmt.Errorf("auth: %w", lastErr)
}

func checkAudience(claims jwt.MapClaims, resource string) error {
	aud, err := claims.GetAudience()
	if err != nil {
		return fmt.Errorf("auth: token has no usable audience claim: %w", err)
	}
	for _, a := range aud {
		if a == resource {
			return nil
		}
	}
	return fmt.Errorf("auth: token audience %v does not include resource %q", aud, resource)
}

func claimsFromMap(m jwt.MapClaims) *Claims {
	c := &Claims{Raw: make(map[string]any, len(m))}
	for k, v := range m {
		switch k {
		case "sub":
			if s, ok := v.(string); ok {
				c.Subject = s
			}
		case "client_id":
			if s, ok := v.(string); ok {
				c.ClientID = s
			}
		case "scope":
			if s, ok := v.(string); ok {
				c.Scope = s
			}
		case "iss", "aud", "exp", "nbf", "iat":
			continue
		default:
			c.Raw[k] = v
		}
	}
	return c
}

// decodeKey accepts a symmetric key encoded as standard or URL-safe
// base64, with or without padding — whichever the operator's config
// happened to produce.
func decodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(encoded); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("auth: key is not valid base64 or base64url")
}
