package ratchet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/securelink/crypto"
)

// newRatchetPair creates a connected initiator/responder pair sharing a root
// key and the responder's ratchet keypair, mirroring the handshake handoff.
func newRatchetPair(t *testing.T) (*DoubleRatchet, *DoubleRatchet) {
	t.Helper()

	rootKey, err := crypto.RandomKey()
	require.NoError(t, err)

	responderKP, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	initiator, err := NewInitiator(rootKey, responderKP.Public)
	require.NoError(t, err)

	responder, err := NewResponder(rootKey, responderKP.Private)
	require.NoError(t, err)

	return initiator, responder
}

func TestRatchetFirstMessage(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	payload := []byte("hello over the ratchet")
	header, ciphertext, err := initiator.Encrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), header.Counter)

	plaintext, err := responder.Decrypt(header, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, payload, plaintext)
}

func TestRatchetResponderCannotSendFirst(t *testing.T) {
	_, responder := newRatchetPair(t)

	_, _, err := responder.Encrypt([]byte("too early"))
	assert.ErrorIs(t, err, ErrChainUninitialized,
		"responder has no sending chain before the first receive")
}

func TestRatchetBidirectionalExchange(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	for round := 0; round < 5; round++ {
		outbound := []byte{byte(round), 'p', 'i', 'n', 'g'}
		header, ct, err := initiator.Encrypt(outbound)
		require.NoError(t, err)
		got, err := responder.Decrypt(header, ct)
		require.NoError(t, err)
		assert.Equal(t, outbound, got)

		reply := []byte{byte(round), 'p', 'o', 'n', 'g'}
		header, ct, err = responder.Encrypt(reply)
		require.NoError(t, err)
		got, err = initiator.Decrypt(header, ct)
		require.NoError(t, err)
		assert.Equal(t, reply, got)
	}
}

func TestRatchetMessageKeysUnique(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	payload := []byte("same payload every time")
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		header, ct, err := initiator.Encrypt(payload)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), header.Counter)

		if seen[string(ct)] {
			t.Fatal("two messages produced identical ciphertext")
		}
		seen[string(ct)] = true

		_, err = responder.Decrypt(header, ct)
		require.NoError(t, err)
	}
}

func TestRatchetTamperedCiphertext(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	header, ct, err := initiator.Encrypt([]byte("original"))
	require.NoError(t, err)

	tampered := bytes.Clone(ct)
	tampered[0] ^= 0x80
	_, err = responder.Decrypt(header, tampered)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)

	// State must be untouched: the genuine message still decrypts.
	plaintext, err := responder.Decrypt(header, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), plaintext)
}

func TestRatchetTamperedHeader(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	header, ct, err := initiator.Encrypt([]byte("payload"))
	require.NoError(t, err)

	// The header is authenticated as associated data; flipping the counter
	// shifts key derivation and must fail without corrupting state.
	bad := header
	bad.PrevChainLen++
	_, err = responder.Decrypt(bad, ct)
	assert.Error(t, err)

	plaintext, err := responder.Decrypt(header, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plaintext)
}

func TestRatchetFastForwardSkipsKeys(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	var headers []MessageHeader
	var cts [][]byte
	for i := 0; i < 3; i++ {
		h, ct, err := initiator.Encrypt([]byte{byte(i)})
		require.NoError(t, err)
		headers = append(headers, h)
		cts = append(cts, ct)
	}

	// Deliver only the last message; the receiver fast-forwards past the
	// first two and discards their keys.
	plaintext, err := responder.Decrypt(headers[2], cts[2])
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, plaintext)

	// The skipped messages are permanently undecryptable.
	_, err = responder.Decrypt(headers[0], cts[0])
	assert.ErrorIs(t, err, ErrKeyDiscarded)
	_, err = responder.Decrypt(headers[1], cts[1])
	assert.ErrorIs(t, err, ErrKeyDiscarded)
}

func TestRatchetSkipLimit(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	header, ct, err := initiator.Encrypt([]byte("genuine"))
	require.NoError(t, err)

	// The counter is read before the tag check, so a forged value must be
	// rejected cheaply instead of driving millions of chain derivations.
	forged := header
	forged.Counter = MaxCounterSkip + 1
	_, err = responder.Decrypt(forged, ct)
	assert.ErrorIs(t, err, ErrSkipLimitExceeded)

	// Rejection leaves state untouched: the genuine message still decrypts.
	plaintext, err := responder.Decrypt(header, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("genuine"), plaintext)
}

func TestRatchetSkipLimitBoundary(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	// A gap of exactly MaxCounterSkip is still honored.
	var header MessageHeader
	var ct []byte
	for i := uint32(0); i <= MaxCounterSkip; i++ {
		var err error
		header, ct, err = initiator.Encrypt([]byte("burst"))
		require.NoError(t, err)
	}
	require.Equal(t, MaxCounterSkip, header.Counter)

	plaintext, err := responder.Decrypt(header, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("burst"), plaintext)
}

func TestRatchetReplayRejected(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	header, ct, err := initiator.Encrypt([]byte("once"))
	require.NoError(t, err)

	_, err = responder.Decrypt(header, ct)
	require.NoError(t, err)

	_, err = responder.Decrypt(header, ct)
	assert.ErrorIs(t, err, ErrKeyDiscarded, "replayed message must not decrypt twice")
}

func TestRatchetDHStepOnReply(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	h1, ct1, err := initiator.Encrypt([]byte("first"))
	require.NoError(t, err)
	_, err = responder.Decrypt(h1, ct1)
	require.NoError(t, err)

	// The reply carries a fresh ratchet public key.
	h2, ct2, err := responder.Encrypt([]byte("reply"))
	require.NoError(t, err)
	assert.NotEqual(t, h1.DHPublic, h2.DHPublic)

	_, err = initiator.Decrypt(h2, ct2)
	require.NoError(t, err)

	// And the initiator's next message rotates its key in turn.
	h3, _, err := initiator.Encrypt([]byte("second"))
	require.NoError(t, err)
	assert.NotEqual(t, h1.DHPublic, h3.DHPublic)
	assert.Equal(t, uint32(0), h3.Counter, "new chain restarts the counter")
	assert.Equal(t, uint32(1), h3.PrevChainLen, "previous chain carried one message")
}

func TestRatchetForceDHStep(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	h1, ct1, err := initiator.Encrypt([]byte("before rekey"))
	require.NoError(t, err)
	_, err = responder.Decrypt(h1, ct1)
	require.NoError(t, err)

	require.NoError(t, initiator.ForceDHStep())

	h2, ct2, err := initiator.Encrypt([]byte("after rekey"))
	require.NoError(t, err)
	assert.NotEqual(t, h1.DHPublic, h2.DHPublic)
	assert.Equal(t, uint32(0), h2.Counter)

	plaintext, err := responder.Decrypt(h2, ct2)
	require.NoError(t, err)
	assert.Equal(t, []byte("after rekey"), plaintext)
}

func TestRatchetForceDHStepWithoutRemoteKey(t *testing.T) {
	_, responder := newRatchetPair(t)
	assert.ErrorIs(t, responder.ForceDHStep(), ErrNoRemoteKey)
}

func TestRatchetForceDHStepUnconfirmed(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	// The initial ratchet key has not been sent yet; rotating past it would
	// advance the root ahead of the responder for good.
	assert.ErrorIs(t, initiator.ForceDHStep(), ErrStepUnconfirmed)

	h1, ct1, err := initiator.Encrypt([]byte("carries the key"))
	require.NoError(t, err)
	_, err = responder.Decrypt(h1, ct1)
	require.NoError(t, err)

	// One delivered message confirms the key; a step is now allowed, but a
	// second one in a row is refused until the fresh key goes out.
	require.NoError(t, initiator.ForceDHStep())
	assert.ErrorIs(t, initiator.ForceDHStep(), ErrStepUnconfirmed)

	h2, ct2, err := initiator.Encrypt([]byte("fresh key out"))
	require.NoError(t, err)
	plaintext, err := responder.Decrypt(h2, ct2)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh key out"), plaintext)

	require.NoError(t, initiator.ForceDHStep())
}

func TestRatchetForwardSecrecyAcrossDHStep(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	h1, ct1, err := initiator.Encrypt([]byte("epoch one"))
	require.NoError(t, err)
	_, err = responder.Decrypt(h1, ct1)
	require.NoError(t, err)

	// An attacker captures the responder's symmetric chain state but not
	// its ratchet private key.
	captured := *responder
	crypto.ZeroBytes(captured.dhPrivate[:])

	require.NoError(t, initiator.ForceDHStep())
	h2, ct2, err := initiator.Encrypt([]byte("epoch two"))
	require.NoError(t, err)

	// Without the DH private key the captured state cannot follow the
	// ratchet step.
	_, err = captured.Decrypt(h2, ct2)
	assert.Error(t, err, "captured chain state must not decrypt post-step traffic")

	// The live peer follows the step normally.
	plaintext, err := responder.Decrypt(h2, ct2)
	require.NoError(t, err)
	assert.Equal(t, []byte("epoch two"), plaintext)
}

func TestRatchetMixIntoRootSynchronized(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	h1, ct1, err := initiator.Encrypt([]byte("establish"))
	require.NoError(t, err)
	_, err = responder.Decrypt(h1, ct1)
	require.NoError(t, err)

	// Both sides fold the same extra secret into the root at the same
	// point; the next DH step on each side stays synchronized.
	extra := []byte("hybrid shared secret material")
	initiator.MixIntoRoot(extra)
	responder.MixIntoRoot(extra)

	require.NoError(t, initiator.ForceDHStep())
	h2, ct2, err := initiator.Encrypt([]byte("post-mix"))
	require.NoError(t, err)

	plaintext, err := responder.Decrypt(h2, ct2)
	require.NoError(t, err)
	assert.Equal(t, []byte("post-mix"), plaintext)
}

func TestRatchetMixIntoRootDesynchronized(t *testing.T) {
	initiator, responder := newRatchetPair(t)

	h1, ct1, err := initiator.Encrypt([]byte("establish"))
	require.NoError(t, err)
	_, err = responder.Decrypt(h1, ct1)
	require.NoError(t, err)

	// Only one side mixes; the next DH step diverges and decryption fails.
	initiator.MixIntoRoot([]byte("one-sided secret"))

	require.NoError(t, initiator.ForceDHStep())
	h2, ct2, err := initiator.Encrypt([]byte("diverged"))
	require.NoError(t, err)

	_, err = responder.Decrypt(h2, ct2)
	assert.Error(t, err)
}

func TestRatchetZeroize(t *testing.T) {
	initiator, _ := newRatchetPair(t)

	initiator.Zeroize()
	_, _, err := initiator.Encrypt([]byte("after zeroize"))
	assert.Error(t, err, "encryption after zeroize must not silently succeed")
}
