package vaultcrypto

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/esv/storage"
	"github.com/cysec-io/cysec/internal/jwtsign"
	"github.com/cysec-io/cysec/internal/primitive"
)

// RotatePassphrase authenticates with oldPassphrase, derives a new session
// key from newPassphrase and a freshly generated salt, and re-encrypts
// every row in a single transaction: decrypt under the old key, encrypt
// under the new one, update. The salt row is replaced and the in-session
// key swapped only after every row has been re-encrypted, so a crash
// mid-rotation leaves the store exactly as it was (transaction rolls back)
// or exactly as it will be (transaction commits) — never half-rotated.
//
// Returns a fresh session token under the rotated key.
func (v *Vault) RotatePassphrase(ctx context.Context, oldPassphrase, newPassphrase string) (token string, err error) {
	salt, err := v.loadOrCreateSalt(ctx)
	if err != nil {
		return "", err
	}
	oldKey := primitive.DeriveArgon2id([]byte(oldPassphrase), salt, v.argon, primitive.KeySize)
	defer zero(oldKey)

	v.mu.RLock()
	sessionActive := v.session != nil
	v.mu.RUnlock()
	if !sessionActive {
		return "", errors.Wrap(errors.ErrUnauthenticated, "vault is locked")
	}
	if !primitive.ConstantTimeEqual(oldKey, v.currentSessionKey()) {
		return "", errors.Wrap(errors.ErrAuthenticationFailed, "old passphrase does not match the active session")
	}

	newSalt := make([]byte, saltSize)
	if _, err := rand.Read(newSalt); err != nil {
		return "", errors.Wrap(errors.ErrInternal, err.Error())
	}
	newKey := primitive.DeriveArgon2id([]byte(newPassphrase), newSalt, v.argon, primitive.KeySize)

	err = v.store.TxManager().WithTx(ctx, func(ctx context.Context) error {
		pairs, err := v.store.Find(ctx, "")
		if err != nil {
			return err
		}
		for _, p := range pairs {
			if p.Key == storage.VaultSaltKey {
				continue
			}
			blob, err := base64.StdEncoding.DecodeString(p.Value)
			if err != nil {
				return errors.Wrap(errors.ErrMalformed, "stored value is not valid base64")
			}
			plaintext, err := primitive.OpenBlob(sessionKeyAlgorithm, oldKey, nil, blob)
			if err != nil {
				return err
			}
			newBlob, err := primitive.SealBlob(sessionKeyAlgorithm, newKey, nil, plaintext)
			zero(plaintext)
			if err != nil {
				return err
			}
			if err := v.store.Put(ctx, p.Key, base64.StdEncoding.EncodeToString(newBlob), "", nil); err != nil {
				return err
			}
		}
		return v.store.Put(ctx, storage.VaultSaltKey, encodeSalt(newSalt), "", nil)
	})
	if err != nil {
		zero(newKey)
		return "", err
	}

	signer, err := jwtsign.New()
	if err != nil {
		zero(newKey)
		return "", err
	}
	tok, err := signer.Issue("vault", v.tokenTTL)
	if err != nil {
		signer.Close()
		zero(newKey)
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.session.signer.Close()
	zero(v.session.key)
	v.session = &session{key: newKey, signer: signer, token: tok}
	return tok, nil
}

func (v *Vault) currentSessionKey() []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil
	}
	return v.session.key
}
