// Package seal is the envelope-encryption boundary. Dataset content is
// encrypted under a key derived from the service master secret and the
// content's policy identifier; the key for a given policy ID is only
// released to callers that pass the entitlement authorization check.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	nonceSize = 12
	keySize   = 32
)

type Sealer struct {
	masterSecret []byte
}

// NewSealer creates a sealer from the service master secret. The secret
// never leaves this package; callers only see derived per-policy keys.
func NewSealer(masterSecret []byte) (*Sealer, error) {
	if len(masterSecret) < 16 {
		return nil, fmt.Errorf("master secret must be at least 16 bytes")
	}
	return &Sealer{masterSecret: masterSecret}, nil
}

// PolicyKeyID derives a fresh full policy identifier under a dataset's
// policy namespace: namespace + "/" + random nonce. The namespace prefix is
// what the authorization check binds key requests to.
func PolicyKeyID(namespace string) string {
	return namespace + "/" + uuid.NewString()
}

// DeriveKey derives the 32-byte content key for a policy identifier via
// HKDF-SHA256 over the master secret. Deterministic: the same policy ID
// always yields the same key.
func (s *Sealer) DeriveKey(policyID string) ([]byte, error) {
	r := hkdf.New(sha256.New, s.masterSecret, nil, []byte(policyID))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under the policy's derived key.
// Output format: [12-byte nonce][AES-256-GCM ciphertext].
func (s *Sealer) Encrypt(plaintext []byte, policyID string) ([]byte, error) {
	key, err := s.DeriveKey(policyID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, nonceSize+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt opens data produced by Encrypt for the same policy ID.
func (s *Sealer) Decrypt(data []byte, policyID string) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, fmt.Errorf("sealed data too small")
	}

	key, err := s.DeriveKey(policyID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
