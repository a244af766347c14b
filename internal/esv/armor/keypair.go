package armor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/pqc"
)

// KeyPairStore supplies the long-lived KEM keypair armor wraps the outer
// key under: the public half for Lock, the private half for Unlock.
// Production deployments back this with an OS keystore; FileKeyPairStore
// is the plain file fallback.
type KeyPairStore interface {
	PublicKey(ctx context.Context) ([]byte, error)
	PrivateKey(ctx context.Context) ([]byte, error)
}

// FileKeyPairStore persists one ML-KEM-768 keypair as two files under Dir,
// generating it on first use. Mirrors klm/filestore's one-file-per-secret
// layout and O_EXCL race discipline.
type FileKeyPairStore struct {
	Dir string
	kem pqc.KEM
}

// NewFileKeyPairStore creates dir if absent and returns a store backed by
// it, using scheme for key generation if no keypair exists yet.
func NewFileKeyPairStore(dir string, scheme pqc.KEM) (*FileKeyPairStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(errors.ErrProvider, err.Error())
	}
	return &FileKeyPairStore{Dir: dir, kem: scheme}, nil
}

func (f *FileKeyPairStore) pubPath() string  { return filepath.Join(f.Dir, "armor_kem.pub") }
func (f *FileKeyPairStore) privPath() string { return filepath.Join(f.Dir, "armor_kem.key") }

// PublicKey returns the stored public key, generating and persisting a
// fresh keypair if none exists.
func (f *FileKeyPairStore) PublicKey(ctx context.Context) ([]byte, error) {
	pub, err := os.ReadFile(f.pubPath())
	if err == nil {
		return pub, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrProvider, err.Error())
	}
	return f.generate(ctx)
}

// PrivateKey returns the stored private key, generating and persisting a
// fresh keypair if none exists.
func (f *FileKeyPairStore) PrivateKey(ctx context.Context) ([]byte, error) {
	priv, err := os.ReadFile(f.privPath())
	if err == nil {
		return priv, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrProvider, err.Error())
	}
	if _, err := f.generate(ctx); err != nil {
		return nil, err
	}
	return os.ReadFile(f.privPath())
}

// generate mints a fresh keypair and writes both halves, refusing to
// overwrite an existing file (the loser of a generation race reads back
// the winner's keypair instead).
func (f *FileKeyPairStore) generate(context.Context) ([]byte, error) {
	pub, priv, err := f.kem.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := writeExclusive(f.privPath(), priv, 0o600); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			return os.ReadFile(f.pubPath())
		}
		return nil, err
	}
	if err := writeExclusive(f.pubPath(), pub, 0o600); err != nil && !errors.Is(err, errors.ErrConflict) {
		return nil, err
	}
	return pub, nil
}

func writeExclusive(path string, data []byte, perm os.FileMode) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrap(errors.ErrConflict, "keypair file already exists")
		}
		return errors.Wrap(errors.ErrProvider, err.Error())
	}
	defer file.Close()
	if _, err := file.Write(data); err != nil {
		return errors.Wrap(errors.ErrProvider, err.Error())
	}
	return nil
}
