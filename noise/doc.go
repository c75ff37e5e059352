// Package noise provides the securelink secure channel establishment core:
// a Noise XX handshake for mutual authentication with identity hiding, and
// the transition from a completed handshake into either one-shot session
// keys or a double-ratchet transport.
//
// # Handshake Pattern
//
// All handshakes use the XX pattern, since securelink peers discover each
// other without pre-shared static keys:
//
//	Initiator                              Responder
//	─────────                              ─────────
//	-> e              (32 bytes, plaintext ephemeral)
//	                  <- e, ee, s, es     (96 bytes, static key encrypted)
//	-> s, se          (64 bytes, static key encrypted)
//	[session established]
//
// Security properties:
//   - Mutual authentication: both parties prove possession of their static keys
//   - Identity hiding: static keys are encrypted after the first DH, so a
//     passive observer of message 1 learns neither identity
//   - Forward secrecy: ephemeral private keys are forgotten on completion
//
// Example usage:
//
//	a, _ := crypto.GenerateKeyPair()
//	b, _ := crypto.GenerateKeyPair()
//
//	init, _ := noise.NewInitiator(a)
//	resp, _ := noise.NewResponder(b)
//
//	m1, _ := init.WriteMessage(nil)
//	resp.ReadMessage(m1)
//	m2, _ := resp.WriteMessage(nil)
//	init.ReadMessage(m2)
//	m3, _ := init.WriteMessage(nil)
//	resp.ReadMessage(m3)
//
//	// Both complete; verify the peer.
//	peer, ok := init.RemoteStatic()
//
// # After the Handshake
//
// Two paths are available from a completed handshake:
//
//   - IntoSessionKeys derives directional send/recv keys plus a chain key
//     from the transcript hash, for use with an external AEAD. Suitable for
//     short sessions.
//   - IntoTransport hands off into a double-ratchet Transport whose keys
//     heal forward on every DH ratchet step. Suitable for long-lived
//     sessions that need post-compromise security. The initiator supplies
//     the responder's ratchet public key, the responder its own ratchet
//     private key; see the ratchet package for the construction.
//
// # Wire Format
//
// Transport messages are a fixed 40-byte header (sender ratchet public key,
// previous chain length, message counter) followed by the ciphertext and a
// 16-byte authentication tag. Handshake messages carry no extra framing; a
// 256-byte buffer bounds every handshake message including payloads.
//
// # Error Handling
//
//   - ErrInvalidState: operation out of the role/phase sequence (caller bug)
//   - ErrInvalidMessage: malformed or under-length peer input; phase unchanged
//   - ErrDecryptionFailed: transport authentication failure; ratchet unchanged
//   - ErrKeyDerivationFailed: internal derivation failure, fatal
//
// No error is retried or swallowed internally; every failure returns to the
// caller synchronously. Retransmission and teardown policy belong to the
// layer that owns the connection.
//
// # Thread Safety
//
// Handshake and Transport instances are single-writer state machines with no
// internal locking or blocking; the caller must serialize all calls to one
// instance. The session package provides a mutex-guarded wrapper for callers
// that share an instance across goroutines.
package noise
