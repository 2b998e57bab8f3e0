package signalcore

// MACSize is the authentication tag length added by both AEAD primitives.
const MACSize = 16

// Box is the envelope of a nonce and an AEAD ciphertext. Its wire form is
// nonce(24) ‖ ciphertext(>=16).
type Box struct {
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// Bytes serializes the box to its flat wire frame.
func (b Box) Bytes() []byte {
	out := make([]byte, NonceSize+len(b.Ciphertext))
	copy(out, b.Nonce[:])
	copy(out[NonceSize:], b.Ciphertext)
	return out
}

// ParseBox decodes a wire frame into a Box. The frame must be strictly
// longer than the nonce so that a non-empty ciphertext remains; a
// ciphertext shorter than MACSize is not rejected here and fails later at
// decryption.
func ParseBox(frame []byte) (Box, error) {
	if len(frame) <= NonceSize {
		return Box{}, ErrBadMessageLength
	}
	var b Box
	copy(b.Nonce[:], frame[:NonceSize])
	b.Ciphertext = append([]byte(nil), frame[NonceSize:]...)
	return b, nil
}
