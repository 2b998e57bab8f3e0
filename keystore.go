package signalcore

import (
	"encoding/hex"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the fixed length of both public and secret keys used by the
// two AEAD primitives this package relies on.
const KeySize = 32

// KeyStore owns a secret scalar and its derived public key and performs
// public-key authenticated box encryption (NaCl/libsodium crypto_box).
type KeyStore struct {
	private [KeySize]byte
	public  [KeySize]byte
}

// GenerateKeyStore creates a fresh permanent or session identity.
func GenerateKeyStore() (*KeyStore, error) {
	var seed [KeySize]byte
	if err := readRandom(seed[:]); err != nil {
		return nil, err
	}
	pub, priv, err := box.GenerateKey(&seedReader{seed: seed[:]})
	if err != nil {
		return nil, err
	}
	return &KeyStore{private: *priv, public: *pub}, nil
}

// seedReader feeds a single pre-drawn block of randomness to
// box.GenerateKey so key generation honors UseDeterministicRandom.
type seedReader struct{ seed []byte }

func (r *seedReader) Read(p []byte) (int, error) {
	n := copy(p, r.seed)
	r.seed = r.seed[n:]
	return n, nil
}

// PublicKey returns the 32-byte public key.
func (k *KeyStore) PublicKey() [KeySize]byte { return k.public }

// PublicHex returns the lowercase hex encoding of the public key.
func (k *KeyStore) PublicHex() string { return hex.EncodeToString(k.public[:]) }

// Encrypt seals plaintext for peerPublic under nonceBytes, producing a Box
// whose nonce field equals nonceBytes exactly.
func (k *KeyStore) Encrypt(plaintext []byte, nonceBytes [NonceSize]byte, peerPublic [KeySize]byte) Box {
	ct := box.Seal(nil, plaintext, &nonceBytes, &peerPublic, &k.private)
	return Box{Nonce: nonceBytes, Ciphertext: ct}
}

// Decrypt opens b against peerPublic, returning ErrDecryptionFailed on
// authentication failure.
func (k *KeyStore) Decrypt(b Box, peerPublic [KeySize]byte) ([]byte, error) {
	plaintext, ok := box.Open(nil, b.Ciphertext, &b.Nonce, &peerPublic, &k.private)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
