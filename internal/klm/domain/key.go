// Package domain defines the key lifecycle manager's core types: the
// generic (namespace, version) key identity, the master key chain that
// wraps every stored key, and the zeroization helper both rely on.
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cysec-io/cysec/internal/errors"
)

// ValidSizeBits are the key sizes generate accepts.
var ValidSizeBits = []int{128, 192, 256, 384, 512}

// Key is an owned, zeroizable piece of symmetric key material identified by
// (namespace, version) and, when the backing store disambiguates multiple
// keys sharing that pair, a random suffix.
type Key struct {
	ID        string
	Namespace string
	Version   int
	SizeBits  int
	Material  []byte
}

// Close zeroizes the key's material. Safe to call more than once.
func (k *Key) Close() {
	if k == nil {
		return
	}
	Zero(k.Material)
}

// IsValidSizeBits reports whether sizeBits is one of the sizes generate
// accepts.
func IsValidSizeBits(sizeBits int) bool {
	for _, v := range ValidSizeBits {
		if v == sizeBits {
			return true
		}
	}
	return false
}

// Generate creates a new Key with sizeBits/8 bytes of CSPRNG material and a
// canonical ID. suffixed controls whether the ID carries the disambiguating
// random hex suffix (file store) or is just "namespace:vN" (keystore,
// which addresses keys by (namespace, version) alone).
func Generate(sizeBits int, namespace string, version int, suffixed bool) (*Key, error) {
	if !IsValidSizeBits(sizeBits) {
		return nil, errors.Wrapf(errors.ErrInvalidParameters, "invalid key size %d bits", sizeBits)
	}
	if namespace == "" {
		return nil, errors.Wrap(errors.ErrInvalidParameters, "namespace must not be empty")
	}
	if version < 1 {
		return nil, errors.Wrap(errors.ErrInvalidParameters, "version must be >= 1")
	}

	material := make([]byte, sizeBits/8)
	if _, err := rand.Read(material); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, err.Error())
	}

	id := CanonicalID(namespace, version)
	if suffixed {
		suffix := make([]byte, 16)
		if _, err := rand.Read(suffix); err != nil {
			Zero(material)
			return nil, errors.Wrap(errors.ErrInternal, err.Error())
		}
		id = fmt.Sprintf("%s:%s", id, hex.EncodeToString(suffix))
	}

	return &Key{
		ID:        id,
		Namespace: namespace,
		Version:   version,
		SizeBits:  sizeBits,
		Material:  material,
	}, nil
}

// CanonicalID returns the "(namespace, version)" portion of a key
// identifier, shared by both the suffixed and unsuffixed forms.
func CanonicalID(namespace string, version int) string {
	return fmt.Sprintf("%s:v%d", namespace, version)
}

// FileName converts a key identifier into a safe file name by replacing
// path and version separators.
func FileName(id string) string {
	name := strings.ReplaceAll(id, "/", "_")
	return strings.ReplaceAll(name, ":", "_")
}
