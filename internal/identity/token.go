package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewToken generates an opaque actor token with n bytes of entropy,
// hex-encoded. Callers must pass n >= 16 so tokens carry at least 128 bits.
func NewToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
