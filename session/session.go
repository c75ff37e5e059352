package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/securelink/crypto"
	"github.com/opd-ai/securelink/noise"
)

var (
	// ErrNotEstablished indicates a transport operation before the
	// handshake completed and a mode was selected.
	ErrNotEstablished = errors.New("session not established")
	// ErrAlreadyEstablished indicates a second mode selection on a session
	// that already handed off its handshake.
	ErrAlreadyEstablished = errors.New("session already established")
	// ErrReplayDetected indicates a direct-mode message counter was already
	// seen or fell behind the replay window.
	ErrReplayDetected = errors.New("replay detected")
	// ErrSessionClosed indicates use after Close.
	ErrSessionClosed = errors.New("session closed")
)

// directOverhead is the direct-mode frame overhead: an 8-byte big-endian
// message counter followed by the AEAD tag.
const directOverhead = 8 + crypto.TagSize

// mode selects the post-handshake encryption path.
type mode uint8

const (
	modeHandshake mode = iota
	modeRatchet
	modeDirect
)

// Session owns the secure-channel state for one logical connection. All
// methods serialize on an internal mutex, so a Session may be shared across
// goroutines; the underlying engines themselves are single-writer.
//
// A Session performs no network I/O and keeps no timers. Discarding it (or
// calling Close) invalidates all associated key material.
type Session struct {
	mu sync.Mutex

	role      noise.Role
	handshake *noise.Handshake
	transport *noise.Transport

	keys        *noise.SessionKeys
	sendCounter uint64
	replay      *crypto.ReplayWindow

	mode   mode
	closed bool

	remoteStatic [32]byte
	haveRemote   bool

	createdAt  time.Time
	lastActive time.Time
}

func newSession(identity *crypto.KeyPair, role noise.Role) (*Session, error) {
	var (
		hs  *noise.Handshake
		err error
	)
	if role == noise.Initiator {
		hs, err = noise.NewInitiator(identity)
	} else {
		hs, err = noise.NewResponder(identity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake: %w", err)
	}

	now := time.Now()
	logrus.WithFields(logrus.Fields{
		"function": "newSession",
		"package":  "session",
		"role":     role.String(),
	}).Debug("Session created")

	return &Session{
		role:       role,
		handshake:  hs,
		createdAt:  now,
		lastActive: now,
	}, nil
}

// NewInitiator creates a session that will send the first handshake message.
func NewInitiator(identity *crypto.KeyPair) (*Session, error) {
	return newSession(identity, noise.Initiator)
}

// NewResponder creates a session that waits for the first handshake message.
func NewResponder(identity *crypto.KeyPair) (*Session, error) {
	return newSession(identity, noise.Responder)
}

// Role returns the session's handshake role.
func (s *Session) Role() noise.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// HandshakeWrite produces the next outbound handshake message.
func (s *Session) HandshakeWrite(payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.handshake == nil {
		return nil, ErrAlreadyEstablished
	}

	message, err := s.handshake.WriteMessage(payload)
	if err != nil {
		return nil, err
	}
	s.lastActive = time.Now()
	s.captureRemoteStatic()
	return message, nil
}

// HandshakeRead consumes a received handshake message and returns any
// embedded payload.
func (s *Session) HandshakeRead(message []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.handshake == nil {
		return nil, ErrAlreadyEstablished
	}

	payload, err := s.handshake.ReadMessage(message)
	if err != nil {
		return nil, err
	}
	s.lastActive = time.Now()
	s.captureRemoteStatic()
	return payload, nil
}

// captureRemoteStatic records the peer's authenticated static key as soon
// as the handshake makes it available. Caller holds s.mu.
func (s *Session) captureRemoteStatic() {
	if s.haveRemote || s.handshake == nil {
		return
	}
	if remote, ok := s.handshake.RemoteStatic(); ok {
		s.remoteStatic = remote
		s.haveRemote = true

		logrus.WithFields(crypto.SecureFieldHash(remote[:], "remote_static")).
			WithField("role", s.role.String()).
			Debug("Peer static key authenticated")
	}
}

// IsComplete reports whether the handshake has finished. A closed session
// reports false regardless of how far it got.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.handshake != nil {
		return s.handshake.IsComplete()
	}
	return s.mode != modeHandshake
}

// RemoteStatic returns the peer's authenticated static public key, once
// available.
func (s *Session) RemoteStatic() ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteStatic, s.haveRemote
}

// UseRatchet hands the completed handshake off into a double-ratchet
// transport for a long-lived connection. The initiator supplies the
// responder's ratchet public key; the responder supplies its own ratchet
// private key.
func (s *Session) UseRatchet(localRatchetPrivate, peerRatchetPublic *[32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.handshake == nil {
		return ErrAlreadyEstablished
	}

	transport, err := s.handshake.IntoTransport(localRatchetPrivate, peerRatchetPublic)
	if err != nil {
		return err
	}

	s.transport = transport
	s.handshake = nil
	s.mode = modeRatchet

	logrus.WithFields(crypto.OperationFields("establish", "success", logrus.Fields{
		"package": "session",
		"mode":    "ratchet",
		"role":    s.role.String(),
	})).Info("Session established with ratchet transport")

	return nil
}

// UseDirectKeys derives one-shot directional session keys from the
// completed handshake for short-lived connections. Messages are framed
// with an explicit counter and checked against a sliding replay window.
func (s *Session) UseDirectKeys() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.handshake == nil {
		return ErrAlreadyEstablished
	}

	keys, err := s.handshake.IntoSessionKeys()
	if err != nil {
		return err
	}

	s.keys = keys
	s.replay = crypto.NewReplayWindow()
	s.handshake = nil
	s.mode = modeDirect

	logrus.WithFields(crypto.OperationFields("establish", "success", logrus.Fields{
		"package": "session",
		"mode":    "direct",
		"role":    s.role.String(),
	})).Info("Session established with direct keys")

	return nil
}

// Send encrypts a payload for the peer and returns the bytes to transmit.
func (s *Session) Send(payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	switch s.mode {
	case modeRatchet:
		message, err := s.transport.WriteMessage(payload)
		if err != nil {
			return nil, err
		}
		s.lastActive = time.Now()
		return message, nil

	case modeDirect:
		counter := s.sendCounter
		var counterBytes [8]byte
		binary.BigEndian.PutUint64(counterBytes[:], counter)

		ciphertext, err := crypto.EncryptAEAD(s.keys.SendKey, counter, counterBytes[:], payload)
		if err != nil {
			return nil, fmt.Errorf("direct encryption failed: %w", err)
		}

		s.sendCounter++
		s.lastActive = time.Now()

		message := make([]byte, 0, 8+len(ciphertext))
		message = append(message, counterBytes[:]...)
		message = append(message, ciphertext...)
		return message, nil

	default:
		return nil, ErrNotEstablished
	}
}

// Receive decrypts bytes received from the peer and returns the payload.
// In direct mode, authenticated counters already seen (or older than the
// replay window) are rejected with ErrReplayDetected.
func (s *Session) Receive(message []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	switch s.mode {
	case modeRatchet:
		payload, err := s.transport.ReadMessage(message)
		if err != nil {
			return nil, err
		}
		s.lastActive = time.Now()
		return payload, nil

	case modeDirect:
		if len(message) < directOverhead {
			return nil, fmt.Errorf("%w: %d bytes is below the %d-byte direct frame minimum",
				noise.ErrInvalidMessage, len(message), directOverhead)
		}

		counter := binary.BigEndian.Uint64(message[:8])
		payload, err := crypto.DecryptAEAD(s.keys.RecvKey, counter, message[:8], message[8:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", noise.ErrDecryptionFailed, err)
		}

		// Replay check runs after authentication so forged counters cannot
		// poison the window.
		if !s.replay.CheckAndUpdate(counter) {
			return nil, ErrReplayDetected
		}

		s.lastActive = time.Now()
		return payload, nil

	default:
		return nil, ErrNotEstablished
	}
}

// RekeyDH forces a DH ratchet step on a ratchet-mode session.
func (s *Session) RekeyDH() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.mode != modeRatchet {
		return ErrNotEstablished
	}
	return s.transport.RekeyDH()
}

// MixKey mixes external key material into a ratchet-mode session's root
// key. Both peers must mix identical material at the same point in the
// message flow.
func (s *Session) MixKey(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.mode != modeRatchet {
		return ErrNotEstablished
	}
	s.transport.MixKey(data)
	return nil
}

// LastActive returns the time of the session's last successful handshake or
// transport operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close erases the session's key material. All subsequent operations fail
// with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.transport != nil {
		s.transport.Close()
	}
	if s.keys != nil {
		s.keys.Zeroize()
	}
	s.handshake = nil
	s.closed = true

	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"package":  "session",
		"role":     s.role.String(),
	}).Debug("Session closed and key material wiped")
}
