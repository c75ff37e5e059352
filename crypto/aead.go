package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// TagSize is the ChaCha20-Poly1305 authentication tag size in bytes.
const TagSize = chacha20poly1305.Overhead

// ErrDecryptionFailed indicates an AEAD authentication failure: the
// ciphertext or its associated data was tampered with, corrupted, or
// encrypted under a different key.
var ErrDecryptionFailed = errors.New("aead decryption failed")

// counterNonce builds a 12-byte ChaCha20-Poly1305 nonce from a message
// counter. The counter occupies the trailing 8 bytes big-endian; the leading
// 4 bytes stay zero. Counter-derived nonces are safe here because every
// message key is used exactly once per counter value.
func counterNonce(counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// EncryptAEAD encrypts plaintext with ChaCha20-Poly1305 under the given key
// and message counter, authenticating the associated data. The returned
// ciphertext includes the 16-byte authentication tag.
func EncryptAEAD(key [32]byte, counter uint64, associatedData, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	return aead.Seal(nil, counterNonce(counter), plaintext, associatedData), nil
}

// DecryptAEAD decrypts a ciphertext produced by EncryptAEAD, verifying the
// authentication tag and associated data before returning the plaintext.
// Returns ErrDecryptionFailed on any authentication mismatch; it never
// returns incorrect plaintext.
func DecryptAEAD(key [32]byte, counter uint64, associatedData, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, counterNonce(counter), ciphertext, associatedData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
