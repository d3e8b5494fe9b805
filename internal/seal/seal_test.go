package seal

import (
	"bytes"
	"strings"
	"testing"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return s
}

func TestNewSealerRejectsShortSecret(t *testing.T) {
	if _, err := NewSealer([]byte("short")); err == nil {
		t.Error("expected error for short master secret")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s := testSealer(t)

	plaintext := []byte("thirty seconds of recorded speech")
	policyID := PolicyKeyID("ns-1234")

	sealed, err := s.Encrypt(plaintext, policyID)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed output contains plaintext")
	}

	opened, err := s.Decrypt(sealed, policyID)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("got %q, want %q", opened, plaintext)
	}
}

func TestDecryptWrongPolicyFails(t *testing.T) {
	s := testSealer(t)

	sealed, err := s.Encrypt([]byte("content"), "ns-aaaa/nonce1")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := s.Decrypt(sealed, "ns-bbbb/nonce1"); err == nil {
		t.Error("expected decryption failure under a different policy id")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	s := testSealer(t)

	k1, err := s.DeriveKey("ns-1/x")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := s.DeriveKey("ns-1/x")
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("derived keys differ for the same policy id")
	}

	k3, err := s.DeriveKey("ns-2/x")
	if err != nil {
		t.Fatalf("derive other: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Error("derived keys equal across policy ids")
	}
}

func TestPolicyKeyIDKeepsNamespacePrefix(t *testing.T) {
	id1 := PolicyKeyID("ns-42")
	id2 := PolicyKeyID("ns-42")
	if !strings.HasPrefix(id1, "ns-42/") {
		t.Errorf("id %q missing namespace prefix", id1)
	}
	if id1 == id2 {
		t.Error("two key ids under one namespace should differ")
	}
}

func TestDecryptTruncatedData(t *testing.T) {
	s := testSealer(t)
	if _, err := s.Decrypt([]byte("tiny"), "ns/1"); err == nil {
		t.Error("expected error for truncated sealed data")
	}
}
