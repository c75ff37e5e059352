// Package ratchet implements the double ratchet that provides continuous
// forward secrecy for post-handshake transport encryption.
//
// Two mechanisms combine:
//
//   - A symmetric-key ratchet advances a one-way BLAKE3 chain on every
//     message. The chain key is discarded immediately after the message key
//     is derived, so capturing current state never exposes past messages.
//   - A Diffie-Hellman ratchet replaces the root key whenever a new remote
//     ratchet public key is observed, or on an explicit ForceDHStep. This
//     heals the session after a transient state compromise: fresh DH output
//     makes future message keys underivable from captured state. Observing
//     a new remote key advances the receive side immediately and defers the
//     matching send-side rotation to the next Encrypt, keeping both roots
//     advancing in the same order on both peers.
//
// The two sides are constructed asymmetrically. NewInitiator takes the
// responder's ratchet public key and seeds its sending chain immediately;
// NewResponder takes its own ratchet private key and derives its receiving
// chain when the first message header arrives. Both start from the same root
// key, normally the handshake transcript hash.
//
// Messages carry a fixed 40-byte header (sender ratchet public key, previous
// chain length, message counter). Messages must be processed in order within
// a chain; keys for skipped counters are derived and discarded, never
// cached, and a single message may skip at most MaxCounterSkip positions.
// Decrypt does not modify ratchet state when authentication fails, so a
// retransmitted message can still be processed.
//
// A DoubleRatchet is a single-writer state machine. The caller serializes
// all calls to one instance.
package ratchet
