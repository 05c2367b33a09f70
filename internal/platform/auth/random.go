package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	UpperAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Digits            = "0123456789"
)

// RandomString draws n characters uniformly from alphabet using crypto/rand.
func RandomString(alphabet string, n int) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", fmt.Errorf("random string: invalid length %d or empty alphabet", n)
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random string: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
