package crypto

// ReplayWindow tracks seen message counters to reject replayed or stale
// messages on the direct session-key path. It keeps a 1024-bit sliding
// bitmap, tolerating heavy reordering and loss while rejecting duplicates.
//
// ReplayWindow is not safe for concurrent use; the owning session serializes
// access along with the rest of its receive state.
type ReplayWindow struct {
	maxSeq uint64
	window [replayWindowWords]uint64
}

const (
	// ReplayWindowSize is the width of the sliding window in messages.
	ReplayWindowSize uint64 = 1024

	replayWindowWords = int(ReplayWindowSize / 64)
)

// NewReplayWindow creates an empty replay window.
func NewReplayWindow() *ReplayWindow {
	return &ReplayWindow{}
}

// CheckAndUpdate reports whether the sequence number is acceptable and marks
// it as seen. It returns false for replays and for messages older than the
// window.
func (rw *ReplayWindow) CheckAndUpdate(seq uint64) bool {
	// Older than the window; the <= keeps the bit position below the width.
	if seq+ReplayWindowSize <= rw.maxSeq {
		return false
	}

	if seq > rw.maxSeq {
		shift := seq - rw.maxSeq
		if shift >= ReplayWindowSize {
			rw.window = [replayWindowWords]uint64{}
		} else {
			rw.shiftLeft(shift)
		}
		rw.window[0] |= 1
		rw.maxSeq = seq
		return true
	}

	bitPosition := rw.maxSeq - seq
	wordIndex := int(bitPosition / 64)
	bitMask := uint64(1) << (bitPosition % 64)

	if rw.window[wordIndex]&bitMask != 0 {
		return false
	}
	rw.window[wordIndex] |= bitMask
	return true
}

// shiftLeft moves the window forward by shift bits. Bit 0 of word 0 is the
// newest position; shifting ages every recorded counter.
func (rw *ReplayWindow) shiftLeft(shift uint64) {
	wordShift := int(shift / 64)
	bitShift := shift % 64

	for i := replayWindowWords - 1; i >= 0; i-- {
		var v uint64
		if i-wordShift >= 0 {
			v = rw.window[i-wordShift] << bitShift
			if bitShift > 0 && i-wordShift-1 >= 0 {
				v |= rw.window[i-wordShift-1] >> (64 - bitShift)
			}
		}
		rw.window[i] = v
	}
}
