package ratchet

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"

	"github.com/opd-ai/securelink/crypto"
)

var (
	// ErrChainUninitialized indicates the required symmetric chain has not
	// been seeded yet (e.g. a responder encrypting before its first receive).
	ErrChainUninitialized = errors.New("ratchet chain not initialized")
	// ErrNoRemoteKey indicates a DH step was requested before any remote
	// ratchet public key is known.
	ErrNoRemoteKey = errors.New("remote ratchet key not known")
	// ErrKeyDiscarded indicates the message counter is behind the receive
	// position; the message key was already consumed and discarded.
	ErrKeyDiscarded = errors.New("message key already discarded")
	// ErrSkipLimitExceeded indicates the message counter is too far ahead
	// of the receive position; advancing the chain that far is refused.
	ErrSkipLimitExceeded = errors.New("message counter too far ahead")
	// ErrStepUnconfirmed indicates a forced DH step was requested while the
	// current ratchet key has not yet been carried by any outbound message,
	// so the peer cannot have observed it.
	ErrStepUnconfirmed = errors.New("current ratchet key not yet transmitted")
)

// MaxCounterSkip bounds how many skipped message keys Decrypt derives and
// discards in a single call. The counter arrives unauthenticated, so without
// a bound a forged header could demand an arbitrary amount of chain work
// before the tag check can fail.
const MaxCounterSkip uint32 = 1024

// DoubleRatchet provides ongoing bidirectional encryption with continuous
// forward secrecy. See the package documentation for the construction.
//
// All fields are value types; Decrypt operates on a copy of the state and
// commits only after successful authentication, so a failed decrypt leaves
// the ratchet exactly as it was.
type DoubleRatchet struct {
	rootKey [32]byte

	dhPrivate [32]byte
	dhPublic  [32]byte

	remoteDH     [32]byte
	haveRemoteDH bool

	sendChain     [32]byte
	haveSendChain bool
	recvChain     [32]byte
	haveRecvChain bool

	// needSendStep marks the sending chain stale after a new remote key is
	// absorbed; the rotation is deferred to the next Encrypt so both roots
	// advance in the same order on both sides.
	needSendStep bool

	sendCounter  uint32
	recvCounter  uint32
	prevChainLen uint32
}

// NewInitiator creates the initiating side of a ratchet session. rootKey is
// the shared starting secret (normally the handshake transcript hash) and
// remoteDHPublic is the responder's ratchet public key. The sending chain is
// seeded immediately; the receiving chain starts when the responder's first
// message arrives.
func NewInitiator(rootKey [32]byte, remoteDHPublic [32]byte) (*DoubleRatchet, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ratchet keypair: %w", err)
	}
	defer crypto.WipeKeyPair(kp)

	dh, err := curve25519.X25519(kp.Private[:], remoteDHPublic[:])
	if err != nil {
		return nil, fmt.Errorf("ratchet key agreement failed: %w", err)
	}
	defer crypto.ZeroBytes(dh)

	r := &DoubleRatchet{
		dhPrivate:     kp.Private,
		dhPublic:      kp.Public,
		remoteDH:      remoteDHPublic,
		haveRemoteDH:  true,
		haveSendChain: true,
	}
	r.rootKey, r.sendChain = crypto.RootStep(rootKey, dh)

	logrus.WithFields(logrus.Fields{
		"function": "NewInitiator",
		"package":  "ratchet",
	}).Debug("Ratchet session created, sending chain seeded")

	return r, nil
}

// NewResponder creates the responding side of a ratchet session. rootKey is
// the shared starting secret and localDHPrivate is the ratchet private key
// whose public half the initiator was given. Both chains are seeded when the
// initiator's first message header arrives.
func NewResponder(rootKey [32]byte, localDHPrivate [32]byte) (*DoubleRatchet, error) {
	kp, err := crypto.FromSecretKey(localDHPrivate)
	if err != nil {
		return nil, fmt.Errorf("invalid ratchet private key: %w", err)
	}
	defer crypto.WipeKeyPair(kp)

	r := &DoubleRatchet{
		rootKey:   rootKey,
		dhPrivate: kp.Private,
		dhPublic:  kp.Public,
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewResponder",
		"package":  "ratchet",
	}).Debug("Ratchet session created, awaiting first message")

	return r, nil
}

// Encrypt derives the next message key from the sending chain, discards the
// chain key it came from, and seals the payload. The returned header must be
// transmitted with the ciphertext; it is authenticated as associated data.
func (r *DoubleRatchet) Encrypt(payload []byte) (MessageHeader, []byte, error) {
	if r.needSendStep || !r.haveSendChain {
		if !r.haveRemoteDH {
			return MessageHeader{}, nil, ErrChainUninitialized
		}
		if err := r.stepSendingChain(); err != nil {
			return MessageHeader{}, nil, err
		}
	}

	var messageKey [32]byte
	r.sendChain, messageKey = crypto.ChainStep(r.sendChain)
	defer crypto.ZeroBytes(messageKey[:])

	header := MessageHeader{
		DHPublic:     r.dhPublic,
		PrevChainLen: r.prevChainLen,
		Counter:      r.sendCounter,
	}
	headerBytes := header.Bytes()

	ciphertext, err := crypto.EncryptAEAD(messageKey, uint64(header.Counter), headerBytes[:], payload)
	if err != nil {
		return MessageHeader{}, nil, fmt.Errorf("ratchet encryption failed: %w", err)
	}

	r.sendCounter++
	return header, ciphertext, nil
}

// Decrypt derives the matching receiving-chain message key and opens the
// ciphertext. A new remote ratchet public key in the header triggers a DH
// ratchet step before derivation. Skipped counters within a chain are fast-
// forwarded past and their keys discarded, up to MaxCounterSkip per call;
// message keys are never cached.
//
// On any failure the ratchet state is left unmodified, so a retransmitted or
// corrected message can still be processed.
func (r *DoubleRatchet) Decrypt(header MessageHeader, ciphertext []byte) ([]byte, error) {
	// Work on a copy; commit only after the tag verifies.
	st := *r

	if !st.haveRemoteDH || header.DHPublic != st.remoteDH {
		if err := st.stepRemoteDH(header.DHPublic); err != nil {
			return nil, err
		}
	}
	if !st.haveRecvChain {
		return nil, ErrChainUninitialized
	}

	if header.Counter < st.recvCounter {
		return nil, ErrKeyDiscarded
	}
	// The counter is not authenticated yet; cap the work a forged header
	// can demand before the tag check rejects it.
	if header.Counter-st.recvCounter > MaxCounterSkip {
		return nil, ErrSkipLimitExceeded
	}
	for st.recvCounter < header.Counter {
		var dropped [32]byte
		st.recvChain, dropped = crypto.ChainStep(st.recvChain)
		crypto.ZeroBytes(dropped[:])
		st.recvCounter++
	}

	var messageKey [32]byte
	st.recvChain, messageKey = crypto.ChainStep(st.recvChain)
	defer crypto.ZeroBytes(messageKey[:])

	headerBytes := header.Bytes()
	plaintext, err := crypto.DecryptAEAD(messageKey, uint64(header.Counter), headerBytes[:], ciphertext)
	if err != nil {
		return nil, err
	}

	st.recvCounter = header.Counter + 1
	*r = st
	return plaintext, nil
}

// ForceDHStep performs an immediate Diffie-Hellman ratchet step: a fresh
// local ratchet keypair is generated, combined with the remote ratchet
// public key to advance the root key, and the sending chain is reset from
// the result. Used for proactive key rotation.
//
// The peer resynchronizes when it observes the new public key in the next
// message header. A step is therefore refused with ErrStepUnconfirmed while
// the current ratchet key has not been carried by any outbound message:
// rotating past a key the peer never saw would advance the root twice
// against the peer's once and permanently desynchronize the session.
func (r *DoubleRatchet) ForceDHStep() error {
	if !r.haveRemoteDH {
		return ErrNoRemoteKey
	}
	if r.haveSendChain && !r.needSendStep && r.sendCounter == 0 {
		return ErrStepUnconfirmed
	}
	return r.stepSendingChain()
}

// stepSendingChain rotates the local ratchet keypair and reseeds the sending
// chain from the advanced root key.
func (r *DoubleRatchet) stepSendingChain() error {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate ratchet keypair: %w", err)
	}
	defer crypto.WipeKeyPair(kp)

	dh, err := curve25519.X25519(kp.Private[:], r.remoteDH[:])
	if err != nil {
		return fmt.Errorf("ratchet key agreement failed: %w", err)
	}
	defer crypto.ZeroBytes(dh)

	r.prevChainLen = r.sendCounter
	r.sendCounter = 0
	r.rootKey, r.sendChain = crypto.RootStep(r.rootKey, dh)
	r.haveSendChain = true
	r.needSendStep = false
	r.dhPrivate = kp.Private
	r.dhPublic = kp.Public

	logrus.WithFields(logrus.Fields{
		"function": "stepSendingChain",
		"package":  "ratchet",
	}).Debug("DH ratchet step performed, sending chain reset")

	return nil
}

// stepRemoteDH performs the receive half of a DH ratchet step for a newly
// observed remote public key and marks the sending chain stale. The send
// half is deferred to the next Encrypt: rotating here would advance the
// root past the point the peer can follow from the headers it has seen.
func (r *DoubleRatchet) stepRemoteDH(remotePublic [32]byte) error {
	dh, err := curve25519.X25519(r.dhPrivate[:], remotePublic[:])
	if err != nil {
		return fmt.Errorf("ratchet key agreement failed: %w", err)
	}
	r.rootKey, r.recvChain = crypto.RootStep(r.rootKey, dh)
	r.haveRecvChain = true
	crypto.ZeroBytes(dh)

	r.remoteDH = remotePublic
	r.haveRemoteDH = true
	r.recvCounter = 0
	r.needSendStep = true

	return nil
}

// MixIntoRoot folds externally supplied key material (e.g. a hybrid
// post-quantum shared secret) into the root key. The mix affects every
// subsequent DH ratchet step; both peers must mix identical material at the
// same point in the message flow to stay synchronized.
func (r *DoubleRatchet) MixIntoRoot(data []byte) {
	r.rootKey = crypto.DeriveKey(r.rootKey, crypto.LabelRootMix, data)
}

// PublicKey returns the current local ratchet public key.
func (r *DoubleRatchet) PublicKey() [32]byte {
	return r.dhPublic
}

// SendCounter returns the message counter of the current sending chain.
func (r *DoubleRatchet) SendCounter() uint32 {
	return r.sendCounter
}

// Zeroize erases all key material. The ratchet must not be used afterwards.
func (r *DoubleRatchet) Zeroize() {
	crypto.ZeroBytes(r.rootKey[:])
	crypto.ZeroBytes(r.dhPrivate[:])
	crypto.ZeroBytes(r.sendChain[:])
	crypto.ZeroBytes(r.recvChain[:])
	crypto.ZeroBytes(r.remoteDH[:])
	r.haveSendChain = false
	r.haveRecvChain = false
	r.haveRemoteDH = false
	r.needSendStep = false
}
