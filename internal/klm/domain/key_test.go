package domain

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/errors"
)

func TestGenerateValidSizes(t *testing.T) {
	for _, size := range ValidSizeBits {
		t.Run(fmt.Sprintf("%d bits", size), func(t *testing.T) {
			key, err := Generate(size, "secrets", 1, true)
			require.NoError(t, err)
			assert.Len(t, key.Material, size/8)
			assert.True(t, strings.HasPrefix(key.ID, "secrets:v1:"))
		})
	}
}

func TestGenerateInvalidSize(t *testing.T) {
	_, err := Generate(100, "secrets", 1, true)
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)
}

func TestGenerateRejectsEmptyNamespace(t *testing.T) {
	_, err := Generate(256, "", 1, true)
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)
}

func TestGenerateRejectsVersionBelowOne(t *testing.T) {
	_, err := Generate(256, "secrets", 0, true)
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)
}

func TestGenerateUnsuffixedID(t *testing.T) {
	key, err := Generate(256, "secrets", 2, false)
	require.NoError(t, err)
	assert.Equal(t, "secrets:v2", key.ID)
}

func TestGenerateIDsAreUnique(t *testing.T) {
	a, err := Generate(256, "ns", 1, true)
	require.NoError(t, err)
	b, err := Generate(256, "ns", 1, true)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCloseZeroesMaterial(t *testing.T) {
	key, err := Generate(256, "ns", 1, true)
	require.NoError(t, err)
	key.Close()
	for _, b := range key.Material {
		assert.Equal(t, byte(0), b)
	}
}

func TestFileNameReplacesSeparators(t *testing.T) {
	assert.Equal(t, "ns_v1_abcd", FileName("ns:v1:abcd"))
	assert.Equal(t, "a_b", FileName("a/b"))
}
