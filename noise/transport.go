package noise

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/securelink/crypto"
	"github.com/opd-ai/securelink/ratchet"
)

// Transport provides post-handshake bidirectional encryption with
// continuous forward secrecy, backed by the double ratchet. Every message
// is framed as a fixed 40-byte header followed by the ciphertext and its
// 16-byte authentication tag.
//
// Like the Handshake it comes from, a Transport is a single-writer state
// machine: the caller serializes all calls to one instance.
type Transport struct {
	ratchet *ratchet.DoubleRatchet
	role    Role
}

// IntoTransport completes the handoff from a finished handshake into a
// ratchet transport, using the transcript hash as the initial root key.
// The initiator must supply the responder's ratchet public key; the
// responder must supply its own ratchet private key. Valid only from the
// Complete phase; fails with ErrInvalidState otherwise.
//
// The Handshake must be discarded after a successful handoff.
func (h *Handshake) IntoTransport(localRatchetPrivate, peerRatchetPublic *[32]byte) (*Transport, error) {
	if h.phase != PhaseComplete {
		return nil, fmt.Errorf("%w: handshake not complete", ErrInvalidState)
	}

	rootKey, err := h.transcriptHash()
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(rootKey[:])

	var dr *ratchet.DoubleRatchet
	switch h.role {
	case Initiator:
		if peerRatchetPublic == nil {
			return nil, fmt.Errorf("%w: initiator requires peer ratchet public key", ErrInvalidState)
		}
		dr, err = ratchet.NewInitiator(rootKey, *peerRatchetPublic)
	case Responder:
		if localRatchetPrivate == nil {
			return nil, fmt.Errorf("%w: responder requires local ratchet private key", ErrInvalidState)
		}
		dr, err = ratchet.NewResponder(rootKey, *localRatchetPrivate)
	}
	if err != nil {
		return nil, fmt.Errorf("ratchet initialization failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "IntoTransport",
		"package":  "noise",
		"role":     h.role.String(),
	}).Debug("Handshake handed off to ratchet transport")

	return &Transport{ratchet: dr, role: h.role}, nil
}

// Role returns the role this transport was created with.
func (t *Transport) Role() Role {
	return t.role
}

// WriteMessage encrypts a payload under the next message key from the
// sending chain and returns the framed message: 40-byte header followed by
// the ciphertext and tag.
func (t *Transport) WriteMessage(payload []byte) ([]byte, error) {
	header, ciphertext, err := t.ratchet.Encrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("transport encryption failed: %w", err)
	}

	headerBytes := header.Bytes()
	message := make([]byte, 0, ratchet.HeaderSize+len(ciphertext))
	message = append(message, headerBytes[:]...)
	message = append(message, ciphertext...)
	return message, nil
}

// ReadMessage parses the header, derives the matching receiving-chain
// message key, and decrypts. It fails with ErrInvalidMessage for messages
// shorter than the fixed header, and with ErrDecryptionFailed on any
// authentication mismatch; ratchet state is left unmodified on failure so
// a retransmitted message can still be processed.
func (t *Transport) ReadMessage(message []byte) ([]byte, error) {
	if len(message) < ratchet.HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is below the %d-byte header", ErrInvalidMessage, len(message), ratchet.HeaderSize)
	}

	header, err := ratchet.ParseHeader(message[:ratchet.HeaderSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	plaintext, err := t.ratchet.Decrypt(header, message[ratchet.HeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// RekeyDH forces an immediate Diffie-Hellman ratchet step for proactive key
// rotation: a fresh local ratchet keypair replaces the root key and resets
// the sending chain. The peer resynchronizes from the next message header.
func (t *Transport) RekeyDH() error {
	if err := t.ratchet.ForceDHStep(); err != nil {
		return fmt.Errorf("forced ratchet step failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "RekeyDH",
		"package":  "noise",
		"role":     t.role.String(),
	}).Debug("Forced DH ratchet step")

	return nil
}

// MixKey mixes externally supplied key material (e.g. a hybrid post-quantum
// shared secret) into the ratchet root key. Both peers must mix identical
// material at the same point in the message flow.
func (t *Transport) MixKey(data []byte) {
	t.ratchet.MixIntoRoot(data)
}

// Close erases the transport's key material. The transport must not be
// used afterwards.
func (t *Transport) Close() {
	t.ratchet.Zeroize()
}
