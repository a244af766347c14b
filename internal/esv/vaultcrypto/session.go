// Package vaultcrypto interposes between callers and the storage layer
// (internal/esv/storage), encrypting every value under a session key before
// it reaches the database and gating every operation on a short-lived JWT
// issued at unlock.
package vaultcrypto

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/esv/storage"
	"github.com/cysec-io/cysec/internal/jwtsign"
	"github.com/cysec-io/cysec/internal/primitive"
)

const (
	saltSize = 16

	// sessionKeyAlgorithm is the AEAD under which every vault value is
	// encrypted, independent of the KEM/outer-key choice the armor layer
	// (C6) makes.
	sessionKeyAlgorithm = primitive.AES256GCM

	// defaultTokenTTL is the lifetime of the JWT minted on Unlock and
	// renewed implicitly by Touch. The spec's default inactivity timeout
	// is 5 minutes; the session token tracks it 1:1.
	defaultTokenTTL = 5 * time.Minute
)

// defaultArgon2Params sets an interactive-KDF floor: enough memory and
// iterations to resist offline guessing without stalling an unlock on
// commodity hardware.
var defaultArgon2Params = primitive.Argon2Params{
	Iterations:  3,
	MemoryKB:    65536,
	Parallelism: 4,
}

// Vault is the public contract of the ESV crypto layer: unlock with a
// passphrase to obtain a session token, then put/get/delete/find/list
// values, each call authenticated by that token.
type Vault struct {
	store    *storage.Store
	argon    primitive.Argon2Params
	tokenTTL time.Duration

	mu      sync.RWMutex
	session *session
}

// session holds the material that exists only while the vault is unlocked.
type session struct {
	key    []byte
	signer *jwtsign.Signer
	token  string
}

// New builds a Vault over store. The vault starts locked; callers must
// Unlock before Put/Get/Delete/Find/List will succeed.
func New(store *storage.Store) *Vault {
	return &Vault{store: store, argon: defaultArgon2Params, tokenTTL: defaultTokenTTL}
}

// Unlock derives the session key from passphrase and the persistent salt
// row (creating the salt on first unlock), mints a session signer, and
// returns a token that gates every subsequent operation. Unlocking an
// already-unlocked vault replaces the current session.
func (v *Vault) Unlock(ctx context.Context, passphrase string) (token string, err error) {
	salt, err := v.loadOrCreateSalt(ctx)
	if err != nil {
		return "", err
	}

	key := primitive.DeriveArgon2id([]byte(passphrase), salt, v.argon, primitive.KeySize)

	signer, err := jwtsign.New()
	if err != nil {
		return "", err
	}
	tok, err := signer.Issue("vault", v.tokenTTL)
	if err != nil {
		signer.Close()
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session != nil {
		v.session.signer.Close()
		zero(v.session.key)
	}
	v.session = &session{key: key, signer: signer, token: tok}
	return tok, nil
}

// Lock tears down the active session: the signer and session key are
// zeroized, and the current token (and any others issued under it)
// immediately stop verifying.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return
	}
	v.session.signer.Close()
	zero(v.session.key)
	v.session = nil
}

// Touch re-issues the session token with a fresh expiry, extending the
// inactivity window. Returns errors.ErrUnauthenticated if the vault is
// locked.
func (v *Vault) Touch(ctx context.Context) (token string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return "", errors.Wrap(errors.ErrUnauthenticated, "vault is locked")
	}
	tok, err := v.session.signer.Issue("vault", v.tokenTTL)
	if err != nil {
		return "", err
	}
	v.session.token = tok
	return tok, nil
}

// CurrentToken returns the token of the active session, for callers that
// hold a long-lived Vault reference (such as the cache's write-through
// persist hook) rather than a token obtained from their own Unlock call.
// Returns errors.ErrUnauthenticated if the vault is locked.
func (v *Vault) CurrentToken() (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return "", errors.Wrap(errors.ErrUnauthenticated, "vault is locked")
	}
	return v.session.token, nil
}

// authenticate verifies token against the active session, returning the
// session key to use for this call. Every Put/Get/Delete/Find/List call
// goes through this first.
func (v *Vault) authenticate(token string) ([]byte, *jwtsign.Signer, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil, nil, errors.Wrap(errors.ErrUnauthenticated, "vault is locked")
	}
	if _, err := v.session.signer.Verify(token); err != nil {
		return nil, nil, err
	}
	return v.session.key, v.session.signer, nil
}

func (v *Vault) loadOrCreateSalt(ctx context.Context) ([]byte, error) {
	encoded, ok, err := v.store.Get(ctx, storage.VaultSaltKey)
	if err != nil {
		return nil, err
	}
	if ok {
		return decodeSalt(encoded)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, err.Error())
	}
	inserted, err := v.store.PutIfAbsent(ctx, storage.VaultSaltKey, encodeSalt(salt), "")
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost the race to another Unlock; read back the winner's salt.
		encoded, ok, err := v.store.Get(ctx, storage.VaultSaltKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrap(errors.ErrProvider, "vault salt vanished after PutIfAbsent race")
		}
		return decodeSalt(encoded)
	}
	return salt, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
