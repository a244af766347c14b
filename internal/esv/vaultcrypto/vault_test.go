package vaultcrypto

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/esv/storage"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	store, err := storage.New(db)
	require.NoError(t, err)
	return New(store)
}

func TestPutGetRoundTripUnderSession(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	token, err := v.Unlock(ctx, "correct horse battery staple")
	require.NoError(t, err)

	require.NoError(t, v.Put(ctx, token, "app/db/password", "hunter2", "", nil))

	value, ok, err := v.Get(ctx, token, "app/db/password")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hunter2", value)
}

func TestOperationsFailWhenLocked(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	err := v.Put(ctx, "whatever-token", "k", "v", "", nil)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestLockInvalidatesToken(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	token, err := v.Unlock(ctx, "passphrase")
	require.NoError(t, err)
	v.Lock()

	_, _, err = v.Get(ctx, token, "anything")
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestUnlockDerivesSameKeyFromSamePassphraseAcrossSessions(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	token1, err := v.Unlock(ctx, "the-same-passphrase")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token1, "k1", "v1", "", nil))
	v.Lock()

	token2, err := v.Unlock(ctx, "the-same-passphrase")
	require.NoError(t, err)

	value, ok, err := v.Get(ctx, token2, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", value)
}

func TestUnlockWithWrongPassphraseFailsToDecryptExistingData(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	token1, err := v.Unlock(ctx, "right-passphrase")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token1, "k1", "v1", "", nil))
	v.Lock()

	token2, err := v.Unlock(ctx, "wrong-passphrase")
	require.NoError(t, err)

	_, _, err = v.Get(ctx, token2, "k1")
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestVaultSaltKeyIsReserved(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()
	token, err := v.Unlock(ctx, "passphrase")
	require.NoError(t, err)

	err = v.Put(ctx, token, storage.VaultSaltKey, "x", "", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)
}

func TestFindAndListExcludeSaltRow(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()
	token, err := v.Unlock(ctx, "passphrase")
	require.NoError(t, err)

	require.NoError(t, v.Put(ctx, token, "app/db/password", "x", "", nil))

	pairs, err := v.Find(ctx, token, "")
	require.NoError(t, err)
	for _, p := range pairs {
		assert.NotEqual(t, storage.VaultSaltKey, p.Key)
	}

	keys, err := v.List(ctx, token, "")
	require.NoError(t, err)
	for _, k := range keys {
		assert.NotEqual(t, storage.VaultSaltKey, k)
	}
	assert.Contains(t, keys, "app/db/password")
}

func TestRotatePassphraseReEncryptsExistingData(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	token, err := v.Unlock(ctx, "old-passphrase")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "k1", "v1", "", nil))
	require.NoError(t, v.Put(ctx, token, "k2", "v2", "", nil))

	newToken, err := v.RotatePassphrase(ctx, "old-passphrase", "new-passphrase")
	require.NoError(t, err)

	value, ok, err := v.Get(ctx, newToken, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", value)

	v.Lock()
	reopened, err := v.Unlock(ctx, "new-passphrase")
	require.NoError(t, err)
	value, ok, err = v.Get(ctx, reopened, "k2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", value)
}

func TestRotatePassphraseRejectsWrongOldPassphrase(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	token, err := v.Unlock(ctx, "old-passphrase")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "k1", "v1", "", nil))

	_, err = v.RotatePassphrase(ctx, "not-the-old-passphrase", "new-passphrase")
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)

	value, ok, err := v.Get(ctx, token, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", value)
}
