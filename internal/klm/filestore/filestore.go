// Package filestore implements the key lifecycle manager's file-backed
// Store: one file per key, wrapped under the master key, named by
// replacing "/" and ":" in the key's canonical identifier with "_".
package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/klm/domain"
	"github.com/cysec-io/cysec/internal/primitive"
)

// FileStore persists keys as individual files under Dir. File contents are
// nonce(12) ‖ AEAD(key_bytes, master_key, nonce).
type FileStore struct {
	Dir string
}

// New creates a FileStore rooted at dir, creating the directory if absent.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(errors.ErrProvider, err.Error())
	}
	return &FileStore{Dir: dir}, nil
}

// SupportsSuffix reports that the file store disambiguates keys sharing
// (namespace, version) with a random ID suffix.
func (f *FileStore) SupportsSuffix() bool { return true }

// Put writes key to its file, wrapped under masterKey. Concurrent writers
// to the same identifier race on O_EXCL: the loser observes
// errors.ErrConflict.
func (f *FileStore) Put(_ context.Context, key *domain.Key, masterKey *domain.MasterKey) error {
	path := f.path(key.ID)

	blob, err := primitive.SealBlob(primitive.AES256GCM, masterKey.Key, nil, key.Material)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(errors.ErrConflict, "key %s already exists", key.ID)
		}
		return errors.Wrap(errors.ErrProvider, err.Error())
	}
	defer file.Close()

	if _, err := file.Write(blob); err != nil {
		return errors.Wrap(errors.ErrProvider, err.Error())
	}
	return nil
}

// Get reads and unwraps the key identified by (namespace, version,
// idSuffix). When idSuffix is empty, the first matching file for
// (namespace, version) is used.
func (f *FileStore) Get(_ context.Context, namespace string, version int, idSuffix string, masterKey *domain.MasterKey) (*domain.Key, error) {
	id, path, err := f.resolve(namespace, version, idSuffix)
	if err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "key %s not found", id)
		}
		return nil, errors.Wrap(errors.ErrProvider, err.Error())
	}

	material, err := primitive.OpenBlob(primitive.AES256GCM, masterKey.Key, nil, blob)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidKey, "master key wrap authentication failed")
	}

	return &domain.Key{
		ID:        id,
		Namespace: namespace,
		Version:   version,
		SizeBits:  len(material) * 8,
		Material:  material,
	}, nil
}

// CurrentVersion returns the highest version stored for namespace, or 0 if
// none exists.
func (f *FileStore) CurrentVersion(_ context.Context, namespace string) (int, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(errors.ErrProvider, err.Error())
	}

	prefix := domain.FileName(namespace) + "_v"
	best := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		rest := entry.Name()[len(prefix):]
		verStr, _, _ := strings.Cut(rest, "_")
		v, err := strconv.Atoi(verStr)
		if err != nil {
			continue
		}
		if v > best {
			best = v
		}
	}
	return best, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.Dir, domain.FileName(id))
}

// resolve finds the on-disk identifier and path for (namespace, version,
// idSuffix), scanning the directory when idSuffix is empty.
func (f *FileStore) resolve(namespace string, version int, idSuffix string) (id, path string, err error) {
	if idSuffix != "" {
		id = domain.CanonicalID(namespace, version) + ":" + idSuffix
		return id, f.path(id), nil
	}

	entries, readErr := os.ReadDir(f.Dir)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return "", "", errors.Wrapf(errors.ErrNotFound, "no key for %s", domain.CanonicalID(namespace, version))
		}
		return "", "", errors.Wrap(errors.ErrProvider, readErr.Error())
	}

	prefix := domain.FileName(domain.CanonicalID(namespace, version)) + "_"
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", "", errors.Wrapf(errors.ErrNotFound, "no key for %s", domain.CanonicalID(namespace, version))
	}
	sort.Strings(names)
	name := names[0]
	id = domain.CanonicalID(namespace, version) + ":" + name[len(prefix):]
	return id, filepath.Join(f.Dir, name), nil
}
