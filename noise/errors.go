package noise

import "errors"

var (
	// ErrInvalidState indicates an operation was invoked out of the
	// role/phase sequence. This is a caller bug; the handshake or session
	// state is left unchanged but should be considered unusable.
	ErrInvalidState = errors.New("invalid handshake state for operation")
	// ErrInvalidMessage indicates a malformed or under-length message from
	// the peer. The message is rejected; the caller decides whether to
	// abandon the session or await a retransmission.
	ErrInvalidMessage = errors.New("invalid handshake message")
	// ErrDecryptionFailed indicates an AEAD authentication failure during
	// transport decryption: tampering, corruption, or desynchronization.
	// The message is dropped and ratchet state is left unmodified.
	ErrDecryptionFailed = errors.New("transport decryption failed")
	// ErrKeyDerivationFailed indicates an internal derivation failure. It
	// should not occur for well-formed inputs and is fatal to the session.
	ErrKeyDerivationFailed = errors.New("key derivation failed")
)
