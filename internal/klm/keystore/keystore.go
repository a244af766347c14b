// Package keystore defines the OS-keystore Store backend. Real
// platform-specific keystore integration (macOS Keychain, Windows
// Credential Manager, Secret Service) is out of scope; this package
// supplies the interface shape plus an in-process reference
// implementation so the key manager's contract is exercised without a
// real OS binding.
package keystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/klm/domain"
	"github.com/cysec-io/cysec/internal/primitive"
)

// Backend is the platform-specific contract a real OS keystore integration
// implements. Since (namespace, version) addresses a key directly, no ID
// suffix is ever generated for this backend.
type Backend interface {
	Store(ctx context.Context, namespace string, version int, wrapped []byte) error
	Retrieve(ctx context.Context, namespace string, version int) ([]byte, error)
	Delete(ctx context.Context, namespace string, version int) error
	ListVersions(ctx context.Context, namespace string) ([]int, error)
}

// MemoryBackend is an in-process reference Backend used where no real OS
// keystore is available (tests, CI, headless hosts). Errors from a real
// backend would surface as errors.ErrProvider; this implementation never
// produces provider errors of its own.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string][]byte // "namespace:vN" -> wrapped bytes
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string][]byte)}
}

func memKey(namespace string, version int) string {
	return domain.CanonicalID(namespace, version)
}

func (m *MemoryBackend) Store(_ context.Context, namespace string, version int, wrapped []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(namespace, version)
	if _, exists := m.items[key]; exists {
		return errors.Wrapf(errors.ErrConflict, "key %s already exists", key)
	}
	m.items[key] = append([]byte(nil), wrapped...)
	return nil
}

func (m *MemoryBackend) Retrieve(_ context.Context, namespace string, version int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := memKey(namespace, version)
	wrapped, ok := m.items[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "key %s not found", key)
	}
	return append([]byte(nil), wrapped...), nil
}

func (m *MemoryBackend) Delete(_ context.Context, namespace string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, memKey(namespace, version))
	return nil
}

func (m *MemoryBackend) ListVersions(_ context.Context, namespace string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var versions []int
	prefix := namespace + ":v"
	for key := range m.items {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			var v int
			if _, err := fmt.Sscanf(key[len(prefix):], "%d", &v); err == nil {
				versions = append(versions, v)
			}
		}
	}
	return versions, nil
}

// KeystoreStore adapts a Backend to the service.Store interface the key
// manager uses, wrapping/unwrapping key material the same way FileStore
// does but addressing entries by (namespace, version) alone.
type KeystoreStore struct {
	Backend Backend
}

// New wraps backend as a service.Store.
func New(backend Backend) *KeystoreStore {
	return &KeystoreStore{Backend: backend}
}

// SupportsSuffix reports that OS keystores address keys by (namespace,
// version) alone; no disambiguating suffix is ever generated.
func (k *KeystoreStore) SupportsSuffix() bool { return false }

func (k *KeystoreStore) Put(ctx context.Context, key *domain.Key, masterKey *domain.MasterKey) error {
	blob, err := primitive.SealBlob(primitive.AES256GCM, masterKey.Key, nil, key.Material)
	if err != nil {
		return err
	}
	if err := k.Backend.Store(ctx, key.Namespace, key.Version, blob); err != nil {
		return errors.Wrap(errors.ErrProvider, err.Error())
	}
	return nil
}

func (k *KeystoreStore) Get(ctx context.Context, namespace string, version int, _ string, masterKey *domain.MasterKey) (*domain.Key, error) {
	blob, err := k.Backend.Retrieve(ctx, namespace, version)
	if err != nil {
		return nil, err
	}
	material, err := primitive.OpenBlob(primitive.AES256GCM, masterKey.Key, nil, blob)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidKey, "master key wrap authentication failed")
	}
	return &domain.Key{
		ID:        domain.CanonicalID(namespace, version),
		Namespace: namespace,
		Version:   version,
		SizeBits:  len(material) * 8,
		Material:  material,
	}, nil
}

func (k *KeystoreStore) CurrentVersion(ctx context.Context, namespace string) (int, error) {
	versions, err := k.Backend.ListVersions(ctx, namespace)
	if err != nil {
		return 0, errors.Wrap(errors.ErrProvider, err.Error())
	}
	best := 0
	for _, v := range versions {
		if v > best {
			best = v
		}
	}
	return best, nil
}
