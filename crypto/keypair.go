package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeyPair represents a Curve25519 keypair used as a long-term peer identity.
// The public key is always the deterministic X25519 counterpart of the
// private scalar.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a new random Curve25519 keypair.
// It fails only if the system randomness source fails.
func GenerateKeyPair() (*KeyPair, error) {
	var private [32]byte
	if _, err := rand.Read(private[:]); err != nil {
		return nil, fmt.Errorf("failed to read random key material: %w", err)
	}
	kp, err := FromSecretKey(private)
	ZeroBytes(private[:])
	return kp, err
}

// FromSecretKey creates a keypair from an existing private scalar, deriving
// the public key via X25519 scalar multiplication with the base point. This
// is used when reloading a persisted identity.
func FromSecretKey(secretKey [32]byte) (*KeyPair, error) {
	if isZeroKey(secretKey) {
		return nil, errors.New("invalid secret key: all zeros")
	}

	public, err := curve25519.X25519(secretKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	kp := &KeyPair{Private: secretKey}
	copy(kp.Public[:], public)
	return kp, nil
}

// Clone returns an independent copy of the keypair. The copy must be wiped
// separately from the original.
func (kp *KeyPair) Clone() *KeyPair {
	c := *kp
	return &c
}

// isZeroKey checks if a key consists of all zeros.
func isZeroKey(key [32]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
