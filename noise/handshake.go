package noise

import (
	"crypto/rand"
	"fmt"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/securelink/crypto"
)

const (
	// MaxHandshakeMessageSize bounds every handshake message including
	// optional payloads. Message 1 is 32 bytes (ephemeral key), message 2
	// is 96 bytes (ephemeral + encrypted static + tags), message 3 is 64
	// bytes (encrypted static + tags).
	MaxHandshakeMessageSize = 256

	// MaxHandshakePayloadSize bounds the optional application payload so
	// the largest handshake message still fits the message size bound.
	MaxHandshakePayloadSize = MaxHandshakeMessageSize - 96
)

// Role distinguishes the initiator (sends first) from the responder
// (receives first). Fixed for the lifetime of one handshake instance.
type Role uint8

const (
	// Initiator starts the handshake and sends message 1.
	Initiator Role = iota
	// Responder waits for message 1 and sends message 2.
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// HandshakePhase tracks progress through the 3-message exchange. It advances
// strictly forward; each role only accepts specific (phase, operation) pairs.
type HandshakePhase uint8

const (
	// PhaseInitial is the starting state, before any message.
	PhaseInitial HandshakePhase = iota
	// PhaseMessage1Complete follows message 1 (initiator sent, responder received).
	PhaseMessage1Complete
	// PhaseMessage2Complete follows message 2 (responder sent, initiator received).
	PhaseMessage2Complete
	// PhaseComplete means the handshake is finished and transport is ready.
	PhaseComplete
)

func (p HandshakePhase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseMessage1Complete:
		return "message1_complete"
	case PhaseMessage2Complete:
		return "message2_complete"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Handshake drives one 3-message mutual-authentication exchange:
//
//	Message 1: Initiator → Responder: e
//	Message 2: Responder → Initiator: e, ee, s, es
//	Message 3: Initiator → Responder: s, se
//
// Static keys travel encrypted after the first DH, hiding both identities
// from passive observers. After message 3 both sides have authenticated the
// peer's static key and share a transcript hash unique to the exchange; the
// ephemeral private keys are forgotten.
//
// A Handshake is a single-writer state machine; the caller serializes all
// calls to one instance. Discarding a Handshake at any point invalidates its
// ephemeral key material.
type Handshake struct {
	role  Role
	phase HandshakePhase
	state *noise.HandshakeState
}

// buildCipherSuite maps a negotiated suite description onto the underlying
// handshake engine's primitives.
func buildCipherSuite(suite *crypto.CipherSuite) (noise.CipherSuite, error) {
	if suite.DH != "X25519" {
		return nil, fmt.Errorf("unsupported DH function: %s", suite.DH)
	}

	var cipher noise.CipherFunc
	switch suite.Cipher {
	case "ChaChaPoly":
		cipher = noise.CipherChaChaPoly
	case "AESGCM":
		cipher = noise.CipherAESGCM
	default:
		return nil, fmt.Errorf("unsupported cipher: %s", suite.Cipher)
	}

	var hash noise.HashFunc
	switch suite.Hash {
	case "BLAKE2s":
		hash = noise.HashBLAKE2s
	case "BLAKE2b":
		hash = noise.HashBLAKE2b
	case "SHA256":
		hash = noise.HashSHA256
	case "SHA512":
		hash = noise.HashSHA512
	default:
		return nil, fmt.Errorf("unsupported hash: %s", suite.Hash)
	}

	return noise.NewCipherSuite(noise.DH25519, cipher, hash), nil
}

// newHandshake builds the underlying handshake state for the given role,
// bound to the supplied long-term identity.
func newHandshake(identity *crypto.KeyPair, role Role, suite *crypto.CipherSuite) (*Handshake, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: identity keypair required", ErrInvalidState)
	}
	if suite == nil {
		suite = &crypto.DefaultCipherSuite
	}

	cipherSuite, err := buildCipherSuite(suite)
	if err != nil {
		return nil, fmt.Errorf("cipher suite configuration failed: %w", err)
	}

	// Copy the identity key so the engine owns its own buffers; the copies
	// are wiped when the handshake state is discarded by the engine.
	staticKey := noise.DHKey{
		Private: make([]byte, 32),
		Public:  make([]byte, 32),
	}
	copy(staticKey.Private, identity.Private[:])
	copy(staticKey.Public, identity.Public[:])

	config := noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     role == Initiator,
		StaticKeypair: staticKey,
	}

	state, err := noise.NewHandshakeState(config)
	if err != nil {
		crypto.ZeroBytes(staticKey.Private)
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "newHandshake",
		"package":  "noise",
		"role":     role.String(),
		"suite":    suite.Name,
	}).Debug("Handshake engine created")

	return &Handshake{
		role:  role,
		phase: PhaseInitial,
		state: state,
	}, nil
}

// NewInitiator constructs a handshake engine for the initiating side, bound
// to the given long-term identity.
func NewInitiator(identity *crypto.KeyPair) (*Handshake, error) {
	return newHandshake(identity, Initiator, nil)
}

// NewResponder constructs a handshake engine for the responding side, bound
// to the given long-term identity.
func NewResponder(identity *crypto.KeyPair) (*Handshake, error) {
	return newHandshake(identity, Responder, nil)
}

// NewInitiatorWithSuite is NewInitiator with an explicit negotiated suite.
func NewInitiatorWithSuite(identity *crypto.KeyPair, suite *crypto.CipherSuite) (*Handshake, error) {
	return newHandshake(identity, Initiator, suite)
}

// NewResponderWithSuite is NewResponder with an explicit negotiated suite.
func NewResponderWithSuite(identity *crypto.KeyPair, suite *crypto.CipherSuite) (*Handshake, error) {
	return newHandshake(identity, Responder, suite)
}

// Role returns the role this handshake was constructed with.
func (h *Handshake) Role() Role {
	return h.role
}

// Phase returns the current handshake phase.
func (h *Handshake) Phase() HandshakePhase {
	return h.phase
}

// IsComplete reports whether the handshake has finished.
func (h *Handshake) IsComplete() bool {
	return h.phase == PhaseComplete
}

// canWrite reports whether the current (role, phase) pair may produce the
// next outbound message.
func (h *Handshake) canWrite() bool {
	switch h.role {
	case Initiator:
		return h.phase == PhaseInitial || h.phase == PhaseMessage2Complete
	case Responder:
		return h.phase == PhaseMessage1Complete
	}
	return false
}

// canRead reports whether the current (role, phase) pair may consume the
// peer's next message.
func (h *Handshake) canRead() bool {
	switch h.role {
	case Responder:
		return h.phase == PhaseInitial || h.phase == PhaseMessage2Complete
	case Initiator:
		return h.phase == PhaseMessage1Complete
	}
	return false
}

// advance moves the phase forward by exactly one step.
func (h *Handshake) advance() {
	switch h.phase {
	case PhaseInitial:
		h.phase = PhaseMessage1Complete
	case PhaseMessage1Complete:
		h.phase = PhaseMessage2Complete
	default:
		h.phase = PhaseComplete
	}
}

// WriteMessage produces the next outbound handshake message, optionally
// carrying an application payload (typically empty during the handshake).
//
// Valid only for (Initiator, Initial), (Responder, Message1Complete), and
// (Initiator, Message2Complete); any other call fails with ErrInvalidState
// and leaves internal state unchanged. On success the phase advances by
// exactly one step.
func (h *Handshake) WriteMessage(payload []byte) ([]byte, error) {
	if !h.canWrite() {
		return nil, fmt.Errorf("%w: %s cannot write in phase %s", ErrInvalidState, h.role, h.phase)
	}
	if len(payload) > MaxHandshakePayloadSize {
		return nil, fmt.Errorf("%w: payload %d exceeds %d bytes", ErrInvalidMessage, len(payload), MaxHandshakePayloadSize)
	}

	message, _, _, err := h.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("handshake write failed: %w", err)
	}

	h.advance()

	logrus.WithFields(logrus.Fields{
		"function":    "WriteMessage",
		"package":     "noise",
		"role":        h.role.String(),
		"phase":       h.phase.String(),
		"message_len": len(message),
	}).Debug("Handshake message written")

	return message, nil
}

// ReadMessage consumes the peer's next handshake message and returns any
// embedded application payload.
//
// Valid only for the (role, phase) pairs complementary to WriteMessage;
// other calls fail with ErrInvalidState. Malformed or cryptographically
// invalid input fails with ErrInvalidMessage without advancing the phase,
// so a retransmitted correct message can still be processed.
func (h *Handshake) ReadMessage(message []byte) ([]byte, error) {
	if !h.canRead() {
		return nil, fmt.Errorf("%w: %s cannot read in phase %s", ErrInvalidState, h.role, h.phase)
	}
	if len(message) > MaxHandshakeMessageSize {
		return nil, fmt.Errorf("%w: message %d exceeds %d bytes", ErrInvalidMessage, len(message), MaxHandshakeMessageSize)
	}

	payload, _, _, err := h.state.ReadMessage(nil, message)
	if err != nil {
		// The engine rolls its symmetric state back on failure; the phase
		// stays put so the correct message can still be consumed.
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	h.advance()

	logrus.WithFields(logrus.Fields{
		"function": "ReadMessage",
		"package":  "noise",
		"role":     h.role.String(),
		"phase":    h.phase.String(),
	}).Debug("Handshake message consumed")

	return payload, nil
}

// RemoteStatic returns the peer's authenticated static public key once it
// has been received and verified: after message 2 for the initiator, after
// message 3 for the responder. The second return is false beforehand.
func (h *Handshake) RemoteStatic() ([32]byte, bool) {
	var key [32]byte

	switch h.role {
	case Initiator:
		if h.phase < PhaseMessage2Complete {
			return key, false
		}
	case Responder:
		if h.phase < PhaseComplete {
			return key, false
		}
	}

	remote := h.state.PeerStatic()
	if len(remote) != 32 {
		return key, false
	}
	copy(key[:], remote)
	return key, true
}

// transcriptHash returns the running handshake hash, which uniquely binds
// every byte of this exchange. Only meaningful once the handshake completed.
func (h *Handshake) transcriptHash() ([32]byte, error) {
	var hash [32]byte
	binding := h.state.ChannelBinding()
	if len(binding) < 32 {
		return hash, fmt.Errorf("%w: transcript hash unavailable", ErrKeyDerivationFailed)
	}
	copy(hash[:], binding)
	return hash, nil
}
