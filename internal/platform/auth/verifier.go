package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Verifier hashes secrets and checks them against stored hashes. The hash
// format is opaque to callers.
type Verifier interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// BcryptVerifier implements Verifier with bcrypt.
type BcryptVerifier struct {
	cost int
}

func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptVerifier{cost: cost}
}

func (v *BcryptVerifier) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

func (v *BcryptVerifier) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
