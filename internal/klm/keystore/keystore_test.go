package keystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/klm/domain"
)

func testMasterKey() *domain.MasterKey {
	key := make([]byte, domain.MasterKeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return &domain.MasterKey{ID: "mk1", Key: key}
}

func TestMemoryBackendStoreRetrieve(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, backend.Store(ctx, "ns", 1, []byte("wrapped")))

	got, err := backend.Retrieve(ctx, "ns", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("wrapped"), got)
}

func TestMemoryBackendStoreConflict(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Store(ctx, "ns", 1, []byte("a")))

	err := backend.Store(ctx, "ns", 1, []byte("b"))
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestMemoryBackendRetrieveNotFound(t *testing.T) {
	backend := NewMemoryBackend()
	_, err := backend.Retrieve(context.Background(), "ns", 1)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemoryBackendListVersions(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Store(ctx, "ns", 1, []byte("a")))
	require.NoError(t, backend.Store(ctx, "ns", 2, []byte("b")))

	versions, err := backend.ListVersions(ctx, "ns")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, versions)
}

func TestKeystoreStorePutGetRoundTrip(t *testing.T) {
	store := New(NewMemoryBackend())
	masterKey := testMasterKey()
	ctx := context.Background()

	key, err := domain.Generate(256, "secrets", 1, false)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, masterKey))

	got, err := store.Get(ctx, "secrets", 1, "", masterKey)
	require.NoError(t, err)
	assert.Equal(t, key.Material, got.Material)
	assert.Equal(t, "secrets:v1", got.ID)
}

func TestKeystoreStoreSupportsSuffixIsFalse(t *testing.T) {
	store := New(NewMemoryBackend())
	assert.False(t, store.SupportsSuffix())
}

func TestKeystoreStoreCurrentVersion(t *testing.T) {
	store := New(NewMemoryBackend())
	masterKey := testMasterKey()
	ctx := context.Background()

	v, err := store.CurrentVersion(ctx, "secrets")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	key, err := domain.Generate(256, "secrets", 3, false)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, masterKey))

	v, err = store.CurrentVersion(ctx, "secrets")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}
