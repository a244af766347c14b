package pqc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMLKEM768EncapsulateDecapsulateRoundTrip(t *testing.T) {
	scheme := MLKEM768()

	pub, priv, err := scheme.GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, pub, scheme.PublicKeySize())
	assert.Len(t, priv, scheme.PrivateKeySize())

	ct, ss1, err := scheme.Encapsulate(pub)
	require.NoError(t, err)
	assert.Len(t, ct, scheme.CiphertextSize())
	assert.Len(t, ss1, scheme.SharedKeySize())

	ss2, err := scheme.Decapsulate(priv, ct)
	require.NoError(t, err)
	assert.Equal(t, ss1, ss2)
}

func TestMLKEM768DecapsulateWrongKeyProducesDifferentSecret(t *testing.T) {
	scheme := MLKEM768()

	_, priv1, err := scheme.GenerateKeyPair()
	require.NoError(t, err)
	pub2, _, err := scheme.GenerateKeyPair()
	require.NoError(t, err)

	ct, ss1, err := scheme.Encapsulate(pub2)
	require.NoError(t, err)

	ss2, err := scheme.Decapsulate(priv1, ct)
	require.NoError(t, err)
	assert.NotEqual(t, ss1, ss2)
}

func TestMLKEM768DecapsulateMalformedCiphertext(t *testing.T) {
	scheme := MLKEM768()
	_, priv, err := scheme.GenerateKeyPair()
	require.NoError(t, err)

	_, err = scheme.Decapsulate(priv, []byte("too short"))
	assert.Error(t, err)
}

func TestMLKEM768EncapsulateInvalidPublicKey(t *testing.T) {
	scheme := MLKEM768()
	_, _, err := scheme.Encapsulate([]byte("not a key"))
	assert.Error(t, err)
}
