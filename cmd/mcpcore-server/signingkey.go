package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/mcpcore/mcpcore/internal/oauthserver"
	"github.com/mcpcore/mcpcore/internal/secrets"
)

// loadOrCreateSigningKey returns the demo OAuth AS's HS256 signing key,
// sealed at rest under enc. The ciphertext lives alongside the database
// so a restart reuses the same key instead of invalidating every token
// already handed out. Ground: the teacher's buildAuthInjector persisting
// age-encrypted secrets next to its sqlite DB.
func loadOrCreateSigningKey(enc *secrets.AgeEncryptor, path string) ([]byte, error) {
	if sealed, err := os.ReadFile(path); err == nil {
		key, err := enc.Decrypt(sealed)
		if err != nil {
			return nil, fmt.Errorf("decrypt signing key: %w", err)
		}
		return key, nil
	}

	key, err := oauthserver.GenerateSigningKey()
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	sealed, err := enc.Encrypt(key)
	if err != nil {
		return nil, fmt.Errorf("encrypt signing key: %w", err)
	}
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return nil, fmt.Errorf("persist sealed signing key: %w", err)
	}
	return key, nil
}

// encodeKey renders a raw symmetric key the way auth.Validator expects
// its Keys entries: base64 standard encoding.
func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
