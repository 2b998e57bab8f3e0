package signalcore

import "encoding/binary"

// maxOverflow is the largest overflow value the 16-bit wire field can carry.
const maxOverflow = 0xFFFF

// CombinedSequence is a conceptual 48-bit monotonic counter split into a
// 32-bit sequence and a 16-bit overflow, as carried on the wire by a Nonce.
// It is not safe for concurrent use; callers serialize access per peer.
type CombinedSequence struct {
	sequence uint32
	overflow uint32
}

// NewCombinedSequence starts a counter at a uniformly random sequence value
// with overflow zero.
func NewCombinedSequence() (*CombinedSequence, error) {
	var buf [4]byte
	if err := readRandom(buf[:]); err != nil {
		return nil, err
	}
	return &CombinedSequence{sequence: binary.BigEndian.Uint32(buf[:])}, nil
}

// Next advances the counter and returns the post-increment pair. It fails
// with ErrOverflowExhausted if the overflow field would exceed its 16-bit
// range.
func (c *CombinedSequence) Next() (sequence uint32, overflow uint16, err error) {
	if c.sequence == 0xFFFFFFFF {
		if c.overflow >= maxOverflow {
			return 0, 0, ErrOverflowExhausted
		}
		c.overflow++
		c.sequence = 0
	} else {
		c.sequence++
	}
	return c.sequence, uint16(c.overflow), nil
}
