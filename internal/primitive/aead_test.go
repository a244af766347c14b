package primitive

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/errors"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestAEADEncryptDecrypt(t *testing.T) {
	for _, alg := range []Algorithm{AES256GCM, ChaCha20Poly1305} {
		t.Run(string(alg), func(t *testing.T) {
			key := randomKey(t)
			plaintext := []byte("Hello, World!")
			aad := []byte("additional authenticated data")

			ciphertext, nonce, err := AEADEncrypt(alg, key, aad, plaintext)
			require.NoError(t, err)
			assert.Len(t, nonce, NonceSize)
			assert.NotEqual(t, plaintext, ciphertext)

			decrypted, err := AEADDecrypt(alg, key, nonce, aad, ciphertext)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(plaintext, decrypted))
		})
	}
}

func TestAEADDecryptTagMismatch(t *testing.T) {
	key := randomKey(t)
	ciphertext, nonce, err := AEADEncrypt(AES256GCM, key, nil, []byte("secret"))
	require.NoError(t, err)

	ciphertext[0] ^= 1
	_, err = AEADDecrypt(AES256GCM, key, nonce, nil, ciphertext)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestAEADDecryptWrongAAD(t *testing.T) {
	key := randomKey(t)
	ciphertext, nonce, err := AEADEncrypt(ChaCha20Poly1305, key, []byte("correct"), []byte("secret"))
	require.NoError(t, err)

	_, err = AEADDecrypt(ChaCha20Poly1305, key, nonce, []byte("wrong"), ciphertext)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestAEADEncryptInvalidKeySize(t *testing.T) {
	_, _, err := AEADEncrypt(AES256GCM, make([]byte, 16), nil, []byte("x"))
	assert.ErrorIs(t, err, errors.ErrInvalidKey)
}

func TestAEADEncryptUnsupportedAlgorithm(t *testing.T) {
	_, _, err := AEADEncrypt("rot13", randomKey(t), nil, []byte("x"))
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)
}

func TestSealOpenBlobRoundTrip(t *testing.T) {
	key := randomKey(t)
	plaintext := []byte("vault value")

	blob, err := SealBlob(AES256GCM, key, nil, plaintext)
	require.NoError(t, err)
	assert.True(t, len(blob) >= NonceSize+TagSize)

	decrypted, err := OpenBlob(AES256GCM, key, nil, blob)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(plaintext, decrypted))
}

func TestOpenBlobMalformed(t *testing.T) {
	_, err := OpenBlob(AES256GCM, randomKey(t), nil, []byte("short"))
	assert.ErrorIs(t, err, errors.ErrMalformed)
}
