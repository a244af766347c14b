package armor

import (
	"context"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/pqc"
	"github.com/cysec-io/cysec/internal/primitive"
)

// lockRetryDelay is how often acquireLock polls while waiting for the
// file lock; ctx cancellation is checked on the same cadence.
const lockRetryDelay = 20 * time.Millisecond

func acquireLock(ctx context.Context, path string) (*flock.Flock, error) {
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, errors.Wrap(errors.ErrProvider, err.Error())
	}
	if !ok {
		return nil, errors.Wrap(errors.ErrConflict, "armor file is locked by another process")
	}
	return fl, nil
}

// hkdfInfo binds the HKDF step deriving the outer AEAD key from the KEM
// shared secret to this one use, so the same shared secret used elsewhere
// (there is no elsewhere today, but the binding costs nothing) can't be
// confused with an armor outer key.
var hkdfInfo = []byte("cysec-armor-outer-key-v1")

// Armor locks and unlocks a vault database file in place: Lock replaces
// plaintext file contents with an armor container, Unlock reverses it.
// Both acquire an exclusive file lock for their duration: lock and unlock
// are single-threaded relative to a given vault instance.
type Armor struct {
	keypairs KeyPairStore
	scheme   pqc.KEM
}

// New returns an Armor backed by keypairs for the long-lived KEM keypair
// and scheme for encapsulation/decapsulation.
func New(keypairs KeyPairStore, scheme pqc.KEM) *Armor {
	return &Armor{keypairs: keypairs, scheme: scheme}
}

// Lock reads the plaintext file at path, encrypts it under a fresh outer
// key wrapped via the KEM public key, and overwrites path with the armor
// container. The file is never left in a half-written state: the new
// contents are written to a temp file and renamed over path.
func (a *Armor) Lock(ctx context.Context, path string) error {
	fl, err := acquireLock(ctx, path)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrProvider, err.Error())
	}

	pub, err := a.keypairs.PublicKey(ctx)
	if err != nil {
		return err
	}
	kemCt, sharedSecret, err := a.scheme.Encapsulate(pub)
	if err != nil {
		return err
	}
	outerKey, err := primitive.DeriveHKDF(sharedSecret, nil, primitive.HKDFParams{Info: hkdfInfo}, primitive.KeySize)
	if err != nil {
		return err
	}

	sealed, nonce, err := primitive.AEADEncrypt(outerAlgorithm, outerKey, nil, plaintext)
	if err != nil {
		return err
	}
	body, tag := sealed[:len(sealed)-primitive.TagSize], sealed[len(sealed)-primitive.TagSize:]

	data := marshalContainer(container{
		version:    formatVersion,
		kemCt:      kemCt,
		outerNonce: nonce,
		outerTag:   tag,
		body:       body,
	})
	return atomicWrite(path, data)
}

// Unlock reads the armor container at path, recovers the outer key by
// decapsulating kem_ct with the long-lived private key, decrypts the body,
// and overwrites path with the plaintext database contents.
func (a *Armor) Unlock(ctx context.Context, path string) error {
	fl, err := acquireLock(ctx, path)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrProvider, err.Error())
	}
	c, err := unmarshalContainer(raw)
	if err != nil {
		return err
	}

	priv, err := a.keypairs.PrivateKey(ctx)
	if err != nil {
		return err
	}
	sharedSecret, err := a.scheme.Decapsulate(priv, c.kemCt)
	if err != nil {
		return err
	}
	outerKey, err := primitive.DeriveHKDF(sharedSecret, nil, primitive.HKDFParams{Info: hkdfInfo}, primitive.KeySize)
	if err != nil {
		return err
	}

	sealed := append(append([]byte(nil), c.body...), c.outerTag...)
	plaintext, err := primitive.AEADDecrypt(outerAlgorithm, outerKey, c.outerNonce, nil, sealed)
	if err != nil {
		return err
	}
	return atomicWrite(path, plaintext)
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrProvider, err.Error())
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(errors.ErrProvider, err.Error())
	}
	return nil
}
