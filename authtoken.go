package signalcore

import "golang.org/x/crypto/nacl/secretbox"

// AuthToken is a 32-byte symmetric secret shared out-of-band between the
// initiator and a responder. It performs secret-key authenticated box
// encryption and is consumed exactly once to authenticate the responder's
// first message to the initiator.
type AuthToken struct {
	secret [KeySize]byte
}

// NewAuthToken draws a fresh random token, to be conveyed to the responder
// through a side channel outside this package's scope.
func NewAuthToken() (*AuthToken, error) {
	var t AuthToken
	if err := readRandom(t.secret[:]); err != nil {
		return nil, err
	}
	return &t, nil
}

// AuthTokenFromBytes wraps an existing 32-byte secret, e.g. one received
// out-of-band by the responder.
func AuthTokenFromBytes(secret [KeySize]byte) *AuthToken {
	return &AuthToken{secret: secret}
}

// Bytes exposes the raw secret, e.g. for conveying it to the responder.
func (t *AuthToken) Bytes() [KeySize]byte { return t.secret }

// Encrypt seals plaintext under nonceBytes using the shared secret.
func (t *AuthToken) Encrypt(plaintext []byte, nonceBytes [NonceSize]byte) Box {
	ct := secretbox.Seal(nil, plaintext, &nonceBytes, &t.secret)
	return Box{Nonce: nonceBytes, Ciphertext: ct}
}

// Decrypt opens b using the shared secret, returning ErrDecryptionFailed on
// authentication failure.
func (t *AuthToken) Decrypt(b Box) ([]byte, error) {
	plaintext, ok := secretbox.Open(nil, b.Ciphertext, &b.Nonce, &t.secret)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
