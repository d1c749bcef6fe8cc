package oauthserver

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the HS256 access-token payload this AS mints: issuer,
// audience (the resource indicator, RFC 8707), subject, client_id,
// not-before and expiry.
type claims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"`
}

// TokenSigner mints and verifies HS256 access tokens for the demo AS.
type TokenSigner struct {
	key      []byte
	issuer   string
	lifetime time.Duration
}

// NewTokenSigner creates a signer using the given symmetric key and
// issuer identifier (the AS's own external URL).
func NewTokenSigner(key []byte, issuer string, lifetime time.Duration) *TokenSigner {
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &TokenSigner{key: key, issuer: issuer, lifetime: lifetime}
}

// Mint issues a signed access token for subject, scoped to resource
// (RFC 8707's `aud` enforcement), on behalf of clientID.
func (s *TokenSigner) Mint(subject, clientID, resource, scope string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.lifetime)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{resource},
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ClientID: clientID,
		Scope:    scope,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks a bearer token's signature, expiry, issuer, and that
// resource appears in its audience. On success it returns the subject
// and client_id the token was minted for.
func (s *TokenSigner) Verify(tokenString, resource string) (subject, clientID string, err error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return "", "", fmt.Errorf("parse token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", "", fmt.Errorf("invalid token claims")
	}
	if resource != "" {
		matches := false
		for _, aud := range c.Audience {
			if aud == resource {
				matches = true
				break
			}
		}
		if !matches {
			return "", "", fmt.Errorf("token audience does not include resource %q", resource)
		}
	}
	return c.Subject, c.ClientID, nil
}
