package domain

import (
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/cysec-io/cysec/internal/errors"
)

// MasterKeySize is the required length, in bytes, of a master key.
const MasterKeySize = 32

// MasterKey is the 256-bit key that wraps every key KLM stores at rest.
// Never serialized unencrypted.
type MasterKey struct {
	ID  string
	Key []byte
}

// MasterKeyChain manages a collection of master keys with one designated
// active, so multiple master keys can be kept around during rotation.
type MasterKeyChain struct {
	activeID string
	keys     sync.Map
}

// ActiveMasterKeyID returns the ID of the master key new wraps should use.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Get retrieves a master key from the chain by ID.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	if v, ok := m.keys.Load(id); ok {
		return v.(*MasterKey), true
	}
	return nil, false
}

// Active returns the currently active master key.
func (m *MasterKeyChain) Active() (*MasterKey, bool) {
	return m.Get(m.activeID)
}

// Close zeroizes every master key, clears the chain, and resets the active
// ID. Safe to call more than once.
func (m *MasterKeyChain) Close() {
	m.keys.Range(func(_, value any) bool {
		if mk, ok := value.(*MasterKey); ok {
			Zero(mk.Key)
		}
		return true
	})
	m.activeID = ""
	m.keys.Clear()
}

// NewMasterKeyChain builds a chain from already-decoded keys, marking
// activeID as the chain's active key.
func NewMasterKeyChain(keys map[string][]byte, activeID string) (*MasterKeyChain, error) {
	if activeID == "" {
		return nil, errors.Wrap(errors.ErrInvalidParameters, "active master key id must not be empty")
	}
	mkc := &MasterKeyChain{activeID: activeID}
	for id, key := range keys {
		if len(key) != MasterKeySize {
			mkc.Close()
			return nil, errors.Wrapf(errors.ErrInvalidKey, "master key %s must be %d bytes, got %d", id, MasterKeySize, len(key))
		}
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		mkc.keys.Store(id, &MasterKey{ID: id, Key: keyCopy})
	}
	if _, ok := mkc.Get(activeID); !ok {
		mkc.Close()
		return nil, errors.Wrapf(errors.ErrNotFound, "active master key %s not present in chain", activeID)
	}
	return mkc, nil
}

// LoadMasterKeyChainFromEnv builds a chain from the decoded
// CYSEC_MASTER_KEYS map produced by internal/config, matching the
// id=base64key,id=base64key wire format.
func LoadMasterKeyChainFromEnv(masterKeys map[string][]byte, activeID string) (*MasterKeyChain, error) {
	if len(masterKeys) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidParameters, "CYSEC_MASTER_KEYS not set")
	}
	return NewMasterKeyChain(masterKeys, activeID)
}

// DeriveMasterKeyFromPassphrase derives a 256-bit master key from a
// passphrase and a persistent salt using Argon2id, for deployments that
// unlock KLM with a passphrase instead of supplying raw key material.
func DeriveMasterKeyFromPassphrase(passphrase string, salt []byte, id string) *MasterKey {
	key := argon2.IDKey([]byte(passphrase), salt, 3, 65536, 4, MasterKeySize)
	return &MasterKey{ID: id, Key: key}
}
