package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/klm/domain"
	"github.com/cysec-io/cysec/internal/klm/filestore"
	"github.com/cysec-io/cysec/internal/klm/keystore"
)

func testMasterKey() *domain.MasterKey {
	key := make([]byte, domain.MasterKeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return &domain.MasterKey{ID: "mk1", Key: key}
}

func TestKeyManagerGenerateAndRetrieveFileStore(t *testing.T) {
	store, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	mgr := New(store, testMasterKey())
	ctx := context.Background()

	key, err := mgr.Generate(ctx, 256, "secrets", 1)
	require.NoError(t, err)

	got, err := mgr.Retrieve(ctx, "secrets", 1, "")
	require.NoError(t, err)
	assert.Equal(t, key.Material, got.Material)
}

func TestKeyManagerGenerateAndRetrieveKeystore(t *testing.T) {
	store := keystore.New(keystore.NewMemoryBackend())
	mgr := New(store, testMasterKey())
	ctx := context.Background()

	key, err := mgr.Generate(ctx, 256, "secrets", 1)
	require.NoError(t, err)

	got, err := mgr.Retrieve(ctx, "secrets", 1, "")
	require.NoError(t, err)
	assert.Equal(t, key.Material, got.Material)
}

func TestKeyManagerRotateCreatesNextVersion(t *testing.T) {
	store, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	mgr := New(store, testMasterKey())
	ctx := context.Background()

	_, err = mgr.Generate(ctx, 256, "secrets", 1)
	require.NoError(t, err)

	current, next, err := mgr.Rotate(ctx, "secrets")
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.Equal(t, 2, next.Version)

	// v1 remains retrievable for decrypting legacy data.
	stillThere, err := mgr.Retrieve(ctx, "secrets", 1, "")
	require.NoError(t, err)
	assert.Equal(t, current.Material, stillThere.Material)
}

func TestKeyManagerRotateNoExistingKey(t *testing.T) {
	store, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	mgr := New(store, testMasterKey())

	_, _, err = mgr.Rotate(context.Background(), "secrets")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
