package noise

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/securelink/crypto"
)

// SessionKeys holds the directional symmetric keys derived from a completed
// handshake, for use with an external AEAD. For two peers in the same
// session the keys are complementary: the initiator's SendKey equals the
// responder's RecvKey and vice versa, and ChainKey is identical on both
// sides.
type SessionKeys struct {
	SendKey  [32]byte
	RecvKey  [32]byte
	ChainKey [32]byte
}

// Zeroize erases the key material. The keys must not be used afterwards.
func (sk *SessionKeys) Zeroize() {
	crypto.ZeroBytes(sk.SendKey[:])
	crypto.ZeroBytes(sk.RecvKey[:])
	crypto.ZeroBytes(sk.ChainKey[:])
}

// IntoSessionKeys derives directional session keys from the handshake
// transcript hash. Valid only once the handshake is complete; it fails with
// ErrInvalidState otherwise.
//
// Both peers derive the same two directional values under distinct labels
// and assign send/recv by role, so neither side needs to know the other's
// assignment logic for the keys to line up.
func (h *Handshake) IntoSessionKeys() (*SessionKeys, error) {
	if h.phase != PhaseComplete {
		return nil, fmt.Errorf("%w: handshake not complete", ErrInvalidState)
	}

	transcript, err := h.transcriptHash()
	if err != nil {
		return nil, err
	}

	initiatorToResponder := crypto.DeriveKey(transcript, crypto.LabelTrafficI2R)
	responderToInitiator := crypto.DeriveKey(transcript, crypto.LabelTrafficR2I)
	chainKey := crypto.DeriveKey(transcript, crypto.LabelSessionChain)
	crypto.ZeroBytes(transcript[:])

	keys := &SessionKeys{ChainKey: chainKey}
	switch h.role {
	case Initiator:
		keys.SendKey = initiatorToResponder
		keys.RecvKey = responderToInitiator
	case Responder:
		keys.SendKey = responderToInitiator
		keys.RecvKey = initiatorToResponder
	}
	crypto.ZeroBytes(initiatorToResponder[:])
	crypto.ZeroBytes(responderToInitiator[:])

	logrus.WithFields(logrus.Fields{
		"function": "IntoSessionKeys",
		"package":  "noise",
		"role":     h.role.String(),
	}).Debug("Session keys derived from transcript hash")

	return keys, nil
}
