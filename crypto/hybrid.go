package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/companyzero/sntrup4591761"
	"golang.org/x/crypto/curve25519"
)

// Hybrid key encapsulation combining classical X25519 with the Streamlined
// NTRU Prime post-quantum KEM. The two shared secrets are combined through
// the labeled BLAKE3 KDF so the hybrid scheme is at least as strong as the
// stronger component. The combined secret is intended to be fed into
// Transport.MixKey for hybrid forward secrecy.

var (
	// ErrInvalidPublicKey indicates a DH exchange produced an all-zero
	// shared secret (low-order point) or a malformed key was supplied.
	ErrInvalidPublicKey = errors.New("invalid public key")
	// ErrDecapsulationFailed indicates the post-quantum ciphertext was
	// rejected during decapsulation.
	ErrDecapsulationFailed = errors.New("kem decapsulation failed")
)

// HybridPublicKey holds both components of a hybrid KEM public key.
type HybridPublicKey struct {
	Classical   [32]byte
	PostQuantum sntrup4591761.PublicKey
}

// HybridKeyPair is a hybrid KEM keypair. The private halves must be wiped
// with Wipe when the keypair is retired.
type HybridKeyPair struct {
	Public           HybridPublicKey
	classicalPrivate [32]byte
	pqPrivate        sntrup4591761.PrivateKey
}

// HybridCiphertext carries the encapsulation output for both components.
type HybridCiphertext struct {
	ClassicalPublic [32]byte
	PostQuantum     sntrup4591761.Ciphertext
}

// GenerateHybridKeyPair creates a fresh hybrid keypair from the secure
// randomness source.
func GenerateHybridKeyPair() (*HybridKeyPair, error) {
	classical, err := GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate classical keypair: %w", err)
	}
	defer WipeKeyPair(classical)

	pqPub, pqPriv, err := sntrup4591761.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate post-quantum keypair: %w", err)
	}

	kp := &HybridKeyPair{
		classicalPrivate: classical.Private,
		pqPrivate:        *pqPriv,
	}
	kp.Public.Classical = classical.Public
	kp.Public.PostQuantum = *pqPub
	return kp, nil
}

// combineSharedSecrets folds the classical and post-quantum shared secrets
// into a single 32-byte secret with domain separation and length encoding.
func combineSharedSecrets(classical, postQuantum [32]byte) [32]byte {
	combined := DeriveKey(classical, LabelHybridCombine, postQuantum[:])
	ZeroBytes(classical[:])
	ZeroBytes(postQuantum[:])
	return combined
}

// Encapsulate generates a shared secret to the given hybrid public key.
// It performs an ephemeral X25519 exchange with the classical component,
// encapsulates to the post-quantum component, and combines both secrets.
func Encapsulate(peer *HybridPublicKey) ([32]byte, *HybridCiphertext, error) {
	var shared [32]byte

	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return shared, nil, fmt.Errorf("failed to generate ephemeral keypair: %w", err)
	}
	defer WipeKeyPair(ephemeral)

	classicalSS, err := curve25519.X25519(ephemeral.Private[:], peer.Classical[:])
	if err != nil {
		return shared, nil, ErrInvalidPublicKey
	}
	var classical [32]byte
	copy(classical[:], classicalSS)
	ZeroBytes(classicalSS)

	pqCiphertext, pqShared, err := sntrup4591761.Encapsulate(rand.Reader, &peer.PostQuantum)
	if err != nil {
		ZeroBytes(classical[:])
		return shared, nil, fmt.Errorf("post-quantum encapsulation failed: %w", err)
	}

	shared = combineSharedSecrets(classical, *pqShared)
	ZeroBytes(pqShared[:])

	ct := &HybridCiphertext{PostQuantum: *pqCiphertext}
	ct.ClassicalPublic = ephemeral.Public
	return shared, ct, nil
}

// Decapsulate recovers the shared secret from a hybrid ciphertext using the
// local private keys.
func (kp *HybridKeyPair) Decapsulate(ct *HybridCiphertext) ([32]byte, error) {
	var shared [32]byte

	classicalSS, err := curve25519.X25519(kp.classicalPrivate[:], ct.ClassicalPublic[:])
	if err != nil {
		return shared, ErrInvalidPublicKey
	}
	var classical [32]byte
	copy(classical[:], classicalSS)
	ZeroBytes(classicalSS)

	pqShared, ok := sntrup4591761.Decapsulate(&ct.PostQuantum, &kp.pqPrivate)
	if ok != 1 {
		ZeroBytes(classical[:])
		return shared, ErrDecapsulationFailed
	}

	shared = combineSharedSecrets(classical, *pqShared)
	ZeroBytes(pqShared[:])
	return shared, nil
}

// EncapsulateClassicalOnly performs the X25519 half of the exchange only,
// for peers that cannot carry post-quantum key sizes. The post-quantum
// contribution is fixed to zero so both sides combine identically.
func EncapsulateClassicalOnly(peer *HybridPublicKey) ([32]byte, [32]byte, error) {
	var shared, ephemeralPub [32]byte

	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return shared, ephemeralPub, fmt.Errorf("failed to generate ephemeral keypair: %w", err)
	}
	defer WipeKeyPair(ephemeral)

	classicalSS, err := curve25519.X25519(ephemeral.Private[:], peer.Classical[:])
	if err != nil {
		return shared, ephemeralPub, ErrInvalidPublicKey
	}
	var classical [32]byte
	copy(classical[:], classicalSS)
	ZeroBytes(classicalSS)

	shared = combineSharedSecrets(classical, [32]byte{})
	ephemeralPub = ephemeral.Public
	return shared, ephemeralPub, nil
}

// DecapsulateClassicalOnly recovers the shared secret from a classical-only
// exchange given the peer's ephemeral public key.
func (kp *HybridKeyPair) DecapsulateClassicalOnly(ephemeralPub [32]byte) ([32]byte, error) {
	var shared [32]byte

	classicalSS, err := curve25519.X25519(kp.classicalPrivate[:], ephemeralPub[:])
	if err != nil {
		return shared, ErrInvalidPublicKey
	}
	var classical [32]byte
	copy(classical[:], classicalSS)
	ZeroBytes(classicalSS)

	shared = combineSharedSecrets(classical, [32]byte{})
	return shared, nil
}

// Wipe erases the private key material. The keypair must not be used after.
func (kp *HybridKeyPair) Wipe() {
	ZeroBytes(kp.classicalPrivate[:])
	ZeroBytes(kp.pqPrivate[:])
}
