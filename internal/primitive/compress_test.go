package primitive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("cysec vault payload "), 200)

	for _, alg := range []CompressionAlgorithm{Zstd, Gzip, Bzip2} {
		t.Run(string(alg), func(t *testing.T) {
			compressed, err := Compress(alg, 5, data)
			require.NoError(t, err)
			assert.NotEqual(t, data, compressed)

			decompressed, err := Decompress(alg, compressed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, decompressed))
		})
	}
}

func TestCompressClampsOutOfRangeLevels(t *testing.T) {
	data := []byte("clamp me")

	for _, alg := range []CompressionAlgorithm{Zstd, Gzip, Bzip2} {
		t.Run(string(alg), func(t *testing.T) {
			_, err := Compress(alg, 999, data)
			assert.NoError(t, err)

			_, err = Compress(alg, -5, data)
			assert.NoError(t, err)
		})
	}
}

func TestCompressUnsupportedAlgorithm(t *testing.T) {
	_, err := Compress("lz4", 1, []byte("x"))
	assert.Error(t, err)
}

func TestDecompressUnsupportedAlgorithm(t *testing.T) {
	_, err := Decompress("lz4", []byte("x"))
	assert.Error(t, err)
}
