package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)

	hash, err := v.Hash("K7Q2M9X4B1ZP")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "K7Q2M9X4B1ZP" {
		t.Fatal("hash must not equal the secret")
	}
	if !v.Verify("K7Q2M9X4B1ZP", hash) {
		t.Error("expected secret to verify")
	}
	if v.Verify("k7q2m9x4b1zp", hash) {
		t.Error("verification must be case sensitive")
	}
	if v.Verify("anything", "not-a-bcrypt-hash") {
		t.Error("malformed hash must not verify")
	}
}

func TestNewBcryptVerifier_ClampsCost(t *testing.T) {
	if v := NewBcryptVerifier(1); v.cost != bcrypt.DefaultCost {
		t.Errorf("expected default cost, got %d", v.cost)
	}
}

func TestRandomString(t *testing.T) {
	s, err := RandomString(UpperAlphanumeric, 12)
	if err != nil {
		t.Fatalf("RandomString: %v", err)
	}
	if len(s) != 12 {
		t.Fatalf("expected 12 chars, got %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(UpperAlphanumeric, r) {
			t.Errorf("unexpected character %q", r)
		}
	}

	if _, err := RandomString(Digits, 0); err == nil {
		t.Error("expected error for zero length")
	}
}
