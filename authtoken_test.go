package signalcore

import (
	"bytes"
	"testing"
)

func TestAuthTokenEncryptDecryptRoundTrip(t *testing.T) {
	token, err := NewAuthToken()
	if err != nil {
		t.Fatalf("NewAuthToken: %v", err)
	}

	var nonce [NonceSize]byte
	nonce[3] = 0x09
	plaintext := []byte("token-message")

	box := token.Encrypt(plaintext, nonce)
	got, err := token.Decrypt(box)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestAuthTokenFromBytesSharesSecret(t *testing.T) {
	original, err := NewAuthToken()
	if err != nil {
		t.Fatalf("NewAuthToken: %v", err)
	}
	shared := AuthTokenFromBytes(original.Bytes())

	var nonce [NonceSize]byte
	box := original.Encrypt([]byte("responder hello"), nonce)
	got, err := shared.Decrypt(box)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != "responder hello" {
		t.Fatalf("Decrypt() = %q", got)
	}
}

func TestAuthTokenDecryptFailsOnTamperedCiphertext(t *testing.T) {
	token, err := NewAuthToken()
	if err != nil {
		t.Fatalf("NewAuthToken: %v", err)
	}
	var nonce [NonceSize]byte
	box := token.Encrypt([]byte("payload"), nonce)
	box.Ciphertext[len(box.Ciphertext)-1] ^= 0xFF

	if _, err := token.Decrypt(box); err != ErrDecryptionFailed {
		t.Fatalf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestAuthTokenDecryptFailsWithDifferentSecret(t *testing.T) {
	a, _ := NewAuthToken()
	b, _ := NewAuthToken()

	var nonce [NonceSize]byte
	box := a.Encrypt([]byte("payload"), nonce)
	if _, err := b.Decrypt(box); err != ErrDecryptionFailed {
		t.Fatalf("got %v, want ErrDecryptionFailed", err)
	}
}
