// Package primitive implements the pure cryptographic functions shared by
// the key lifecycle manager, the keyed cryptographic pipeline, and the
// vault crypto layer: AEAD ciphers, hashes, HMAC, KDFs, and compression
// codecs. Every function here is side-effect-free; callers on a
// request-handling path should run CPU-bound calls through
// internal/workerpool rather than inline.
package primitive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cysec-io/cysec/internal/errors"
)

// Algorithm identifies an AEAD cipher.
type Algorithm string

const (
	AES256GCM      Algorithm = "AES-256-GCM"
	ChaCha20Poly1305 Algorithm = "ChaCha20-Poly1305"

	// KeySize is the required key length for both supported AEADs.
	KeySize = 32
	// NonceSize is the required nonce length for both supported AEADs.
	NonceSize = 12
	// TagSize is the authentication tag length both AEADs append.
	TagSize = 16
)

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errors.Wrap(errors.ErrInvalidKey, "key must be 32 bytes")
	}
	switch alg {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidKey, err.Error())
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidParameters, "unsupported algorithm %q", alg)
	}
}

// AEADEncrypt encrypts plaintext under key using alg, drawing a fresh random
// nonce. It returns the ciphertext (including the appended authentication
// tag) and the nonce used.
func AEADEncrypt(alg Algorithm, key, aad, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, errors.Wrap(errors.ErrInternal, err.Error())
	}
	ciphertext = aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// AEADDecrypt decrypts ciphertext (including its trailing authentication
// tag) under key, alg, nonce and aad. A tag mismatch returns
// errors.ErrAuthenticationFailed.
func AEADDecrypt(alg Algorithm, key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.Wrap(errors.ErrMalformed, "invalid nonce size")
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errors.Wrap(errors.ErrAuthenticationFailed, "tag mismatch")
	}
	return plaintext, nil
}

// SealBlob encrypts plaintext and returns the C1/C3 wire layout
// nonce ‖ ciphertext ‖ tag as a single slice.
func SealBlob(alg Algorithm, key, aad, plaintext []byte) ([]byte, error) {
	ciphertext, nonce, err := AEADEncrypt(alg, key, aad, plaintext)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// OpenBlob decrypts a nonce ‖ ciphertext ‖ tag blob produced by SealBlob.
// Blobs shorter than NonceSize+TagSize are malformed.
func OpenBlob(alg Algorithm, key, aad, blob []byte) ([]byte, error) {
	if len(blob) < NonceSize+TagSize {
		return nil, errors.Wrap(errors.ErrMalformed, "blob shorter than nonce+tag")
	}
	nonce, ciphertext := blob[:NonceSize], blob[NonceSize:]
	return AEADDecrypt(alg, key, nonce, aad, ciphertext)
}
