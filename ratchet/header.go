package ratchet

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed encoded size of a MessageHeader in bytes.
const HeaderSize = 40

// ErrShortHeader indicates a buffer smaller than the fixed header size.
var ErrShortHeader = errors.New("message header too short")

// MessageHeader is prepended to every transport ciphertext. It carries the
// sender's current ratchet public key, the length of the previous sending
// chain, and the message counter within the current chain.
type MessageHeader struct {
	// DHPublic is the sender's current ratchet public key.
	DHPublic [32]byte
	// PrevChainLen is the number of messages in the previous sending chain.
	PrevChainLen uint32
	// Counter is the message number within the current sending chain.
	Counter uint32
}

// Bytes encodes the header into its fixed 40-byte wire form:
// 32-byte ratchet public key, then PrevChainLen and Counter as big-endian
// 32-bit integers.
func (h *MessageHeader) Bytes() [HeaderSize]byte {
	var out [HeaderSize]byte
	copy(out[:32], h.DHPublic[:])
	binary.BigEndian.PutUint32(out[32:36], h.PrevChainLen)
	binary.BigEndian.PutUint32(out[36:40], h.Counter)
	return out
}

// ParseHeader decodes a MessageHeader from the first 40 bytes of data.
func ParseHeader(data []byte) (MessageHeader, error) {
	var h MessageHeader
	if len(data) < HeaderSize {
		return h, ErrShortHeader
	}
	copy(h.DHPublic[:], data[:32])
	h.PrevChainLen = binary.BigEndian.Uint32(data[32:36])
	h.Counter = binary.BigEndian.Uint32(data[36:40])
	return h, nil
}
