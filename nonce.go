package signalcore

import "encoding/binary"

// NonceSize is the fixed wire length of a Nonce in bytes.
const NonceSize = 24

// Nonce is the 24-byte value associated with every Box on the signaling
// channel: cookie (16) ‖ source (1) ‖ destination (1) ‖ overflow (2, BE) ‖
// sequence (4, BE).
//
// A Nonce parsed from the wire is "unsafe" until the accompanying box has
// been authenticated; only Source and Destination may be peeked before
// that.
type Nonce struct {
	Cookie      Cookie
	Source      Address
	Destination Address
	Overflow    uint16
	Sequence    uint32
}

// Bytes serializes the nonce to its 24-byte wire form.
func (n Nonce) Bytes() [NonceSize]byte {
	var out [NonceSize]byte
	copy(out[0:16], n.Cookie[:])
	out[16] = byte(n.Source)
	out[17] = byte(n.Destination)
	binary.BigEndian.PutUint16(out[18:20], n.Overflow)
	binary.BigEndian.PutUint32(out[20:24], n.Sequence)
	return out
}

// ParseNonce decodes the first NonceSize bytes of b. It accepts any byte
// layout; rejection of unsafe nonces happens only through AEAD
// authentication downstream.
func ParseNonce(b []byte) (Nonce, error) {
	if len(b) < NonceSize {
		return Nonce{}, ErrBadMessageLength
	}
	var n Nonce
	copy(n.Cookie[:], b[0:16])
	n.Source = Address(b[16])
	n.Destination = Address(b[17])
	n.Overflow = binary.BigEndian.Uint16(b[18:20])
	n.Sequence = binary.BigEndian.Uint32(b[20:24])
	return n, nil
}

// buildNonce constructs the outbound nonce for a message from us to dest
// using the next value of csn.
func buildNonce(ours Cookie, source, dest Address, csn *CombinedSequence) (Nonce, error) {
	seq, overflow, err := csn.Next()
	if err != nil {
		return Nonce{}, err
	}
	return Nonce{
		Cookie:      ours,
		Source:      source,
		Destination: dest,
		Overflow:    overflow,
		Sequence:    seq,
	}, nil
}
