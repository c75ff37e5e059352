package crypto

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// Derivation labels for cryptographic domain separation. Each label uniquely
// identifies the purpose of a derived key so that keys derived for different
// purposes are independent even when the input material is shared. Labels
// must never be reused across purposes.
const (
	// LabelTrafficI2R derives the initiator-to-responder session key.
	LabelTrafficI2R = "securelink/traffic-i2r"
	// LabelTrafficR2I derives the responder-to-initiator session key.
	LabelTrafficR2I = "securelink/traffic-r2i"
	// LabelSessionChain derives the shared session chain key.
	LabelSessionChain = "securelink/session-chain"
	// LabelRatchetRoot advances the ratchet root key on a DH step.
	LabelRatchetRoot = "securelink/ratchet-root"
	// LabelRatchetChain seeds a new sending/receiving chain on a DH step.
	LabelRatchetChain = "securelink/ratchet-chain"
	// LabelChainNext advances a symmetric chain key by one step.
	LabelChainNext = "securelink/chain-next"
	// LabelChainMessage derives a message key from a chain key.
	LabelChainMessage = "securelink/chain-message"
	// LabelRootMix folds external key material into the ratchet root.
	LabelRootMix = "securelink/root-mix"
	// LabelHybridCombine combines classical and post-quantum KEM secrets.
	LabelHybridCombine = "securelink/hybrid-combine"
)

// DeriveKey derives a 32-byte key from the given key, label, and optional
// additional material using BLAKE3 in keyed mode. Each material chunk is
// length-prefixed so that concatenation ambiguity cannot produce colliding
// derivations.
func DeriveKey(key [32]byte, label string, material ...[]byte) [32]byte {
	h := blake3.New(32, key[:])
	h.Write([]byte(label))
	var lenBuf [4]byte
	for _, m := range material {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(m)))
		h.Write(lenBuf[:])
		h.Write(m)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RootStep advances a ratchet root key with fresh Diffie-Hellman output,
// returning the new root key and the chain key seeded from it. The old root
// key must be discarded by the caller.
func RootStep(rootKey [32]byte, dhOutput []byte) (newRoot, chainKey [32]byte) {
	newRoot = DeriveKey(rootKey, LabelRatchetRoot, dhOutput)
	chainKey = DeriveKey(rootKey, LabelRatchetChain, dhOutput)
	return newRoot, chainKey
}

// ChainStep advances a symmetric chain key by one step, returning the next
// chain key and the message key for the current position. The derivation is
// one-way: the input chain key must be discarded immediately so past message
// keys cannot be recomputed.
func ChainStep(chainKey [32]byte) (nextChain, messageKey [32]byte) {
	nextChain = DeriveKey(chainKey, LabelChainNext)
	messageKey = DeriveKey(chainKey, LabelChainMessage)
	return nextChain, messageKey
}
