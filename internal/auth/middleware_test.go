package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mcpcore/mcpcore/internal/session"
)

func TestMiddlewarePassesThroughWhenDisabled(t *testing.T) {
	v := &Validator{}
	called := false
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("disabled validator should pass every request through, status=%d", rec.Code)
	}
}

func TestMiddlewareRejectsMissingAuthorizationHeader(t *testing.T) {
	v := &Validator{Keys: []string{base64.StdEncoding.EncodeToString([]byte("some-signing-key-0123456789abcd"))}}
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without a bearer token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareAttachesClaimsOnSuccess(t *testing.T) {
	key := []byte("some-signing-key-0123456789abcd")
	token := signToken(t, key, jwt.MapClaims{
		"sub": "demo-user",
		"aud": "https://mcp.test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	v := &Validator{Keys: []string{base64.StdEncoding.EncodeToString(key)}, Resource: "https://mcp.test"}
	var gotClaims *Claims
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in request context")
		}
		gotClaims = claims
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotClaims == nil || gotClaims.Subject != "demo-user" {
		t.Fatalf("claims = %+v", gotClaims)
	}
}

func TestApplySessionMetadataAttachesUserIDAndClaims(t *testing.T) {
	mgr := session.NewManager(0)
	sess := mgr.Create(session.TransportSSE, nil)

	key := []byte("some-signing-key-0123456789abcd")
	token := signToken(t, key, jwt.MapClaims{
		"sub": "demo-user",
		"aud": "https://mcp.test",
		"exp": time.Now().Add(time.Hour).Unix(),
		"org": "acme",
	})

	v := &Validator{Keys: []string{base64.StdEncoding.EncodeToString(key)}, Resource: "https://mcp.test"}
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ApplySessionMetadata(r.Context(), sess)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if userID, ok := sess.Metadata("userId"); !ok || userID != "demo-user" {
		t.Errorf("userId metadata = %q, %v", userID, ok)
	}
	if org, ok := sess.Metadata("claim_org"); !ok || org != "acme" {
		t.Errorf("claim_org metadata = %q, %v", org, ok)
	}
}
