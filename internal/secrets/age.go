// Package secrets encrypts signing-key material at rest using age.
// Adapted from the teacher's internal/secrets.Manager (which encrypted
// per-auth-scope OAuth token blobs); here the same AgeEncryptor wraps the
// demo authorization server's HS256 signing key instead.
package secrets

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
)

// AgeEncryptor wraps a single age X25519 identity used to encrypt and
// decrypt small secrets (here: one HS256 signing key) at rest.
type AgeEncryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeEncryptor loads an identity from the age key file at path.
func NewAgeEncryptor(path string) (*AgeEncryptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read age key file: %w", err)
	}
	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse age identities: %w", err)
	}
	if len(identities) != 1 {
		return nil, fmt.Errorf("expected exactly one age identity in %s, found %d", path, len(identities))
	}
	x25519, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("age identity in %s is not X25519", path)
	}
	return &AgeEncryptor{identity: x25519, recipient: x25519.Recipient()}, nil
}

// EnsureKeyFile loads the identity at path, generating and persisting a
// fresh one (mode 0600) if the file does not yet exist. Ground: the
// teacher's secrets.EnsureKeyFile auto-provisioning idiom in
// cmd/mcplexer's buildAuthInjector.
func EnsureKeyFile(path string) (*AgeEncryptor, error) {
	if _, err := os.Stat(path); err == nil {
		return NewAgeEncryptor(path)
	}
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate age identity: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("persist age key file: %w", err)
	}
	return &AgeEncryptor{identity: identity, recipient: identity.Recipient()}, nil
}

// NewEphemeralEncryptor generates a fresh in-memory identity with no
// backing file, for environments where no writable path is available.
func NewEphemeralEncryptor() (*AgeEncryptor, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate age identity: %w", err)
	}
	return &AgeEncryptor{identity: identity, recipient: identity.Recipient()}, nil
}

// Encrypt seals plaintext to this encryptor's own recipient.
func (e *AgeEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("age encrypt: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("age encrypt write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("age encrypt close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens ciphertext previously produced by Encrypt.
func (e *AgeEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, fmt.Errorf("age decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("age decrypt read: %w", err)
	}
	return plaintext, nil
}
