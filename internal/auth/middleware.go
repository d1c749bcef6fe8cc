package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mcpcore/mcpcore/internal/session"
)

type claimsKey struct{}

// Middleware validates the Authorization header on every request and, on
// success, attaches the resulting Claims to the request context for a
// downstream handler to read via ClaimsFromContext. A Validator with no
// keys configured is a no-op passthrough (spec.md §4.8: auth guarding is
// opt-in per deployment, not mandatory).
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeAuthError(w, "missing or malformed Authorization header")
			return
		}

		claims, err := v.Validate(token)
		if err != nil {
			writeAuthError(w, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "invalid_token",
		"message": message,
	})
}

// ClaimsFromContext returns the Claims attached by Middleware, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// ApplySessionMetadata copies a validated bearer token's subject and
// claims onto sess, per spec.md §4.8: "userId and each claim_<k> are
// attached to the session metadata." A request with no validated claims
// (auth disabled, or an unguarded endpoint) leaves sess untouched.
func ApplySessionMetadata(ctx context.Context, sess *session.Session) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims == nil {
		return
	}
	if claims.Subject != "" {
		sess.SetMetadata("userId", claims.Subject)
	}
	for k, v := range claims.Raw {
		sess.SetMetadata("claim_"+k, fmt.Sprint(v))
	}
}
