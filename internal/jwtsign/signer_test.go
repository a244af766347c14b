package jwtsign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/errors"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	signer, err := New()
	require.NoError(t, err)

	token, err := signer.Issue("session-1", time.Minute)
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyExpiredToken(t *testing.T) {
	signer, err := New()
	require.NoError(t, err)

	token, err := signer.Issue("session-1", -time.Second)
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestVerifyWrongKeyFails(t *testing.T) {
	signer1, err := New()
	require.NoError(t, err)
	signer2, err := New()
	require.NoError(t, err)

	token, err := signer1.Issue("session-1", time.Minute)
	require.NoError(t, err)

	_, err = signer2.Verify(token)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestRevokedTokenFailsVerify(t *testing.T) {
	signer, err := New()
	require.NoError(t, err)

	token, err := signer.Issue("session-1", time.Minute)
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)

	signer.Revoke(claims.ID, time.Now().Add(time.Minute))
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestSweepDenyListRemovesExpiredEntries(t *testing.T) {
	signer, err := New()
	require.NoError(t, err)

	signer.Revoke("jti-1", time.Now().Add(-time.Minute))
	signer.Revoke("jti-2", time.Now().Add(time.Hour))

	assert.Equal(t, 1, signer.SweepDenyList())
	assert.Equal(t, 0, signer.SweepDenyList())
}

func TestCloseZeroizesKeyAndFailsFutureOps(t *testing.T) {
	signer, err := New()
	require.NoError(t, err)

	token, err := signer.Issue("session-1", time.Minute)
	require.NoError(t, err)

	signer.Close()

	_, err = signer.Issue("session-2", time.Minute)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}
