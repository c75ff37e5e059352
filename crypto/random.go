package crypto

import (
	"crypto/rand"
	"fmt"
)

// SecureRandom generates cryptographically secure random bytes.
func SecureRandom(size int) ([]byte, error) {
	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return bytes, nil
}

// RandomKey fills and returns a fresh 32-byte key from the secure
// randomness source.
func RandomKey() ([32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("failed to read random key: %w", err)
	}
	return key, nil
}
