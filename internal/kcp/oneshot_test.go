package kcp

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/primitive"
	"github.com/cysec-io/cysec/internal/workerpool"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, primitive.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, alg := range []primitive.Algorithm{primitive.AES256GCM, primitive.ChaCha20Poly1305} {
		t.Run(string(alg), func(t *testing.T) {
			key := randomKey(t)
			pipeline := New().Algorithm(alg).Key(key)

			ciphertext, err := pipeline.Encrypt(context.Background(), []byte("order 66"))
			require.NoError(t, err)
			assert.NotEqual(t, "order 66", string(ciphertext))

			plaintext, err := pipeline.Decrypt(context.Background(), ciphertext)
			require.NoError(t, err)
			assert.Equal(t, "order 66", string(plaintext))
		})
	}
}

func TestDecryptTagMismatchFails(t *testing.T) {
	key := randomKey(t)
	pipeline := New().Algorithm(primitive.AES256GCM).Key(key)

	ciphertext, err := pipeline.Encrypt(context.Background(), []byte("secret"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 1

	_, err = pipeline.Decrypt(context.Background(), ciphertext)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestDecryptMalformedShortBlob(t *testing.T) {
	pipeline := New().Algorithm(primitive.AES256GCM).Key(randomKey(t))
	_, err := pipeline.Decrypt(context.Background(), []byte("too short"))
	assert.ErrorIs(t, err, errors.ErrMalformed)
}

func TestEncryptDecryptWithAAD(t *testing.T) {
	key := randomKey(t)
	sealer := New().Algorithm(primitive.AES256GCM).Key(key).AAD([]byte("context-1"))

	ciphertext, err := sealer.Encrypt(context.Background(), []byte("payload"))
	require.NoError(t, err)

	opener := New().Algorithm(primitive.AES256GCM).Key(key).AAD([]byte("context-2"))
	_, err = opener.Decrypt(context.Background(), ciphertext)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestEncryptDecryptWithCompression(t *testing.T) {
	key := randomKey(t)
	payload := bytes.Repeat([]byte("compressible payload "), 64)

	pipeline := New().Algorithm(primitive.AES256GCM).Key(key).CompressWith(primitive.Zstd, 3)
	ciphertext, err := pipeline.Encrypt(context.Background(), payload)
	require.NoError(t, err)

	plaintext, err := pipeline.Decrypt(context.Background(), ciphertext)
	require.NoError(t, err)
	assert.Equal(t, payload, plaintext)
}

func TestEncryptWithWorkerPool(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Close()

	key := randomKey(t)
	pipeline := New().Algorithm(primitive.AES256GCM).Key(key).WithWorkerPool(pool)

	ciphertext, err := pipeline.Encrypt(context.Background(), []byte("pooled"))
	require.NoError(t, err)

	plaintext, err := pipeline.Decrypt(context.Background(), ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "pooled", string(plaintext))
}

func TestOnResultObservesError(t *testing.T) {
	var observed error
	pipeline := New().Algorithm(primitive.AES256GCM).Key(randomKey(t)).OnResult(func(err error) {
		observed = err
	})

	_, err := pipeline.Decrypt(context.Background(), []byte("short"))
	assert.ErrorIs(t, err, errors.ErrMalformed)
	assert.ErrorIs(t, observed, errors.ErrMalformed)
}

func TestKeyRefResolvesLazily(t *testing.T) {
	var calls int
	key := randomKey(t)
	resolver := resolverFunc(func(context.Context) ([]byte, error) {
		calls++
		return append([]byte(nil), key...), nil
	})

	pipeline := New().Algorithm(primitive.AES256GCM).KeyRef(resolver)
	ciphertext, err := pipeline.Encrypt(context.Background(), []byte("lazy"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = pipeline.Decrypt(context.Background(), ciphertext)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

type resolverFunc func(context.Context) ([]byte, error)

func (f resolverFunc) ResolveKey(ctx context.Context) ([]byte, error) { return f(ctx) }
