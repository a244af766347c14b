package primitive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/errors"
)

func TestHashDigestSizes(t *testing.T) {
	tests := []struct {
		alg  HashAlgorithm
		size int
		want int
	}{
		{SHA256, 0, 32},
		{SHA3_256, 0, 32},
		{SHA3_384, 0, 48},
		{SHA3_512, 0, 64},
		{Blake2b, 0, 32},
		{Blake2b, 64, 64},
		{Blake3, 0, 32},
		{Blake3, 48, 48},
	}
	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			digest, err := Hash(tt.alg, []byte("cysec"), tt.size)
			require.NoError(t, err)
			assert.Len(t, digest, tt.want)
		})
	}
}

func TestHashIsDeterministic(t *testing.T) {
	a, err := Hash(SHA256, []byte("same input"), 0)
	require.NoError(t, err)
	b, err := Hash(SHA256, []byte("same input"), 0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestHashBlake2bInvalidSize(t *testing.T) {
	_, err := Hash(Blake2b, []byte("x"), 65)
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)
}

func TestHashUnsupportedAlgorithm(t *testing.T) {
	_, err := Hash("md5", []byte("x"), 0)
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)
}
