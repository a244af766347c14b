// Package service implements the key lifecycle manager's generate/
// retrieve/rotate contract over a pluggable Store backend (file store or
// OS keystore).
package service

import (
	"context"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/klm/domain"
)

// Store persists and retrieves wrapped key material. Implementations:
// internal/klm/filestore (one AEAD-wrapped file per key) and
// internal/klm/keystore (adapter over a keystore Backend; the package
// ships an in-process MemoryBackend).
type Store interface {
	// Put stores key, wrapped under masterKey. The file store returns
	// errors.ErrConflict if a key with the same ID already exists; the
	// keystore adapter reports every backend failure, a duplicate
	// included, as errors.ErrProvider.
	Put(ctx context.Context, key *domain.Key, masterKey *domain.MasterKey) error

	// Get retrieves and unwraps the key identified by (namespace, version,
	// idSuffix). idSuffix is empty when the backend addresses keys by
	// (namespace, version) alone. Returns errors.ErrNotFound if absent,
	// errors.ErrInvalidKey if the master-key wrap fails to authenticate.
	Get(ctx context.Context, namespace string, version int, idSuffix string, masterKey *domain.MasterKey) (*domain.Key, error)

	// CurrentVersion returns the highest version stored for namespace, or
	// 0 if none exists.
	CurrentVersion(ctx context.Context, namespace string) (int, error)

	// SupportsSuffix reports whether this backend disambiguates multiple
	// keys sharing (namespace, version) with a random ID suffix.
	SupportsSuffix() bool
}

// KeyManager is the key lifecycle manager's public contract: generate,
// retrieve, and rotate keys over a Store.
type KeyManager struct {
	store     Store
	masterKey *domain.MasterKey
}

// New builds a KeyManager backed by store, wrapping/unwrapping keys with
// masterKey.
func New(store Store, masterKey *domain.MasterKey) *KeyManager {
	return &KeyManager{store: store, masterKey: masterKey}
}

// Generate creates and persists a new key for (namespace, version) with
// sizeBits of CSPRNG material.
func (m *KeyManager) Generate(ctx context.Context, sizeBits int, namespace string, version int) (*domain.Key, error) {
	key, err := domain.Generate(sizeBits, namespace, version, m.store.SupportsSuffix())
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, key, m.masterKey); err != nil {
		key.Close()
		return nil, err
	}
	return key, nil
}

// Retrieve returns the key identified by (namespace, version, idSuffix).
func (m *KeyManager) Retrieve(ctx context.Context, namespace string, version int, idSuffix string) (*domain.Key, error) {
	return m.store.Get(ctx, namespace, version, idSuffix, m.masterKey)
}

// Rotate reads the current version v for namespace, generates v+1 with the
// same key size as v, and stores it. The previous version remains
// available for decrypting legacy data. Returns (v, v+1).
func (m *KeyManager) Rotate(ctx context.Context, namespace string) (current, next *domain.Key, err error) {
	v, err := m.store.CurrentVersion(ctx, namespace)
	if err != nil {
		return nil, nil, err
	}
	if v < 1 {
		return nil, nil, errors.Wrapf(errors.ErrNotFound, "no existing key for namespace %q", namespace)
	}

	current, err = m.store.Get(ctx, namespace, v, "", m.masterKey)
	if err != nil {
		return nil, nil, err
	}

	next, err = m.Generate(ctx, current.SizeBits, namespace, v+1)
	if err != nil {
		current.Close()
		return nil, nil, err
	}
	return current, next, nil
}
