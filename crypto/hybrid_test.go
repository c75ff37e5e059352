package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybridEncapsulateDecapsulate(t *testing.T) {
	kp, err := GenerateHybridKeyPair()
	require.NoError(t, err)
	defer kp.Wipe()

	senderShared, ct, err := Encapsulate(&kp.Public)
	require.NoError(t, err)

	receiverShared, err := kp.Decapsulate(ct)
	require.NoError(t, err)

	assert.Equal(t, senderShared, receiverShared, "both sides must derive the same secret")
	assert.NotEqual(t, [32]byte{}, senderShared, "shared secret must not be zero")
}

func TestHybridEncapsulationsDiffer(t *testing.T) {
	kp, err := GenerateHybridKeyPair()
	require.NoError(t, err)
	defer kp.Wipe()

	shared1, _, err := Encapsulate(&kp.Public)
	require.NoError(t, err)
	shared2, _, err := Encapsulate(&kp.Public)
	require.NoError(t, err)

	assert.NotEqual(t, shared1, shared2, "each encapsulation must be fresh")
}

func TestHybridDecapsulateTamperedCiphertext(t *testing.T) {
	kp, err := GenerateHybridKeyPair()
	require.NoError(t, err)
	defer kp.Wipe()

	senderShared, ct, err := Encapsulate(&kp.Public)
	require.NoError(t, err)

	ct.PostQuantum[0] ^= 0x01
	shared, err := kp.Decapsulate(ct)
	if err == nil {
		// Sntrup decapsulation is implicit-rejection style in some
		// implementations; a tampered ciphertext must at minimum
		// derive a different secret.
		assert.NotEqual(t, senderShared, shared)
	} else {
		assert.ErrorIs(t, err, ErrDecapsulationFailed)
	}
}

func TestHybridDecapsulateWrongKeyPair(t *testing.T) {
	kp1, err := GenerateHybridKeyPair()
	require.NoError(t, err)
	defer kp1.Wipe()
	kp2, err := GenerateHybridKeyPair()
	require.NoError(t, err)
	defer kp2.Wipe()

	senderShared, ct, err := Encapsulate(&kp1.Public)
	require.NoError(t, err)

	shared, err := kp2.Decapsulate(ct)
	if err == nil {
		assert.NotEqual(t, senderShared, shared)
	}
}

func TestClassicalOnlyExchange(t *testing.T) {
	kp, err := GenerateHybridKeyPair()
	require.NoError(t, err)
	defer kp.Wipe()

	senderShared, ephemeralPub, err := EncapsulateClassicalOnly(&kp.Public)
	require.NoError(t, err)

	receiverShared, err := kp.DecapsulateClassicalOnly(ephemeralPub)
	require.NoError(t, err)

	assert.Equal(t, senderShared, receiverShared)
	assert.NotEqual(t, [32]byte{}, senderShared)
}

func TestClassicalOnlyDiffersFromHybrid(t *testing.T) {
	kp, err := GenerateHybridKeyPair()
	require.NoError(t, err)
	defer kp.Wipe()

	hybridShared, ct, err := Encapsulate(&kp.Public)
	require.NoError(t, err)

	// Recombining the same classical exchange without the post-quantum
	// secret must not reproduce the hybrid secret.
	classicalShared, err := kp.DecapsulateClassicalOnly(ct.ClassicalPublic)
	require.NoError(t, err)
	assert.NotEqual(t, hybridShared, classicalShared)
}

func TestHybridWipe(t *testing.T) {
	kp, err := GenerateHybridKeyPair()
	require.NoError(t, err)

	kp.Wipe()
	assert.Equal(t, [32]byte{}, kp.classicalPrivate)
	allZero := true
	for _, b := range kp.pqPrivate {
		if b != 0 {
			allZero = false
			break
		}
	}
	assert.True(t, allZero, "post-quantum private key must be wiped")
}
