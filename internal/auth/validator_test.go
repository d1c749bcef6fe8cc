package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestValidatorAcceptsValidToken(t *testing.T) {
	key := []byte("super-secret-signing-key-0123456")
	encoded := base64.StdEncoding.EncodeToString(key)
	now := time.Now()

	token := signToken(t, key, jwt.MapClaims{
		"sub":       "demo-user",
		"client_id": "client-1",
		"aud":       "https://mcp.test",
		"exp":       now.Add(time.Hour).Unix(),
		"nbf":       now.Unix(),
		"scope":     "tools:call",
		"org":       "acme",
	})

	v := &Validator{Keys: []string{encoded}, Resource: "https://mcp.test"}
	claims, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.Subject != "demo-user" || claims.ClientID != "client-1" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Raw["org"] != "acme" {
		t.Errorf("Raw[org] = %v, want acme", claims.Raw["org"])
	}
}

func TestValidatorRejectsWrongAudience(t *testing.T) {
	key := []byte("super-secret-signing-key-0123456")
	encoded := base64.StdEncoding.EncodeToString(key)
	token := signToken(t, key, jwt.MapClaims{
		"sub": "demo-user",
		"aud": "https://other.test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	v := &Validator{Keys: []string{encoded}, Resource: "https://mcp.test", RequireResourceIndicator: true}
	if _, err := v.Validate(token); err == nil {
		t.Error("Validate() should reject a token whose audience excludes the configured resource")
	}
}

func TestValidatorTriesMultipleKeysInOrder(t *testing.T) {
	wrongKey := []byte("wrong-wrong-wrong-wrong-wrong-12")
	rightKey := []byte("right-right-right-right-right-12")
	token := signToken(t, rightKey, jwt.MapClaims{
		"sub": "demo-user",
		"aud": "https://mcp.test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	v := &Validator{
		Keys: []string{
			base64.StdEncoding.EncodeToString(wrongKey),
			base64.StdEncoding.EncodeToString(rightKey),
		},
		Resource: "https://mcp.test",
	}
	if _, err := v.Validate(token); err != nil {
		t.Fatalf("Validate() error = %v, want success on the second configured key", err)
	}
}

func TestValidatorRejectsExpiredToken(t *testing.T) {
	key := []byte("super-secret-signing-key-0123456")
	token := signToken(t, key, jwt.MapClaims{
		"sub": "demo-user",
		"aud": "https://mcp.test",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	v := &Validator{Keys: []string{base64.StdEncoding.EncodeToString(key)}, Resource: "https://mcp.test"}
	if _, err := v.Validate(token); err == nil {
		t.Error("Validate() should reject an expired token")
	}
}

func TestValidatorClockSkewTolerance(t *testing.T) {
	key := []byte("super-secret-signing-key-0123456")
	token := signToken(t, key, jwt.MapClaims{
		"sub": "demo-user",
		"aud": "https://mcp.test",
		"exp": time.Now().Add(-10 * time.Second).Unix(),
	})

	v := &Validator{
		Keys:      []string{base64.StdEncoding.EncodeToString(key)},
		Resource:  "https://mcp.test",
		ClockSkew: time.Minute,
	}
	if _, err := v.Validate(token); err != nil {
		t.Errorf("Validate() error = %v, want leeway to tolerate a 10s-expired token", err)
	}
}

func TestValidatorDisabledWithNoKeys(t *testing.T) {
	v := &Validator{}
	if v.Enabled() {
		t.Error("Enabled() = true for a validator with no configured keys")
	}
}
