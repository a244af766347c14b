package kcp

import (
	"context"

	"github.com/cysec-io/cysec/internal/klm/domain"
	"github.com/cysec-io/cysec/internal/klm/service"
)

// KeyResolver supplies the key material a keyed pipeline operates with.
// Resolution may suspend: a KLM-backed resolver reads from disk or a
// keystore.
type KeyResolver interface {
	ResolveKey(ctx context.Context) ([]byte, error)
}

// directKey resolves to a fixed, already-known key.
type directKey struct {
	key []byte
}

func (d directKey) ResolveKey(context.Context) ([]byte, error) {
	out := make([]byte, len(d.key))
	copy(out, d.key)
	return out, nil
}

// klmKey resolves a key through the key lifecycle manager's Store contract
// by (namespace, version, idSuffix), unwrapped with masterKey.
type klmKey struct {
	store     service.Store
	masterKey *domain.MasterKey
	namespace string
	version   int
	idSuffix  string
}

// KeyRef builds a KeyResolver that looks up a key from a KLM store at
// resolution time, rather than a key fixed in advance.
func KeyRef(store service.Store, masterKey *domain.MasterKey, namespace string, version int, idSuffix string) KeyResolver {
	return klmKey{store: store, masterKey: masterKey, namespace: namespace, version: version, idSuffix: idSuffix}
}

func (k klmKey) ResolveKey(ctx context.Context) ([]byte, error) {
	key, err := k.store.Get(ctx, k.namespace, k.version, k.idSuffix, k.masterKey)
	if err != nil {
		return nil, err
	}
	defer key.Close()
	out := make([]byte, len(key.Material))
	copy(out, key.Material)
	return out, nil
}
