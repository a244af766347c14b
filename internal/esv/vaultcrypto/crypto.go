package vaultcrypto

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/esv/storage"
	"github.com/cysec-io/cysec/internal/primitive"
)

func encodeSalt(salt []byte) string { return base64.StdEncoding.EncodeToString(salt) }

func decodeSalt(encoded string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(errors.ErrMalformed, "vault salt row is not valid base64")
	}
	return salt, nil
}

// Put encrypts value under the session key and upserts it at key, subject
// to the same ttl/namespace semantics as storage.Store.Put.
func (v *Vault) Put(ctx context.Context, token, key, value, namespace string, ttl *time.Duration) error {
	sessionKey, _, err := v.authenticate(token)
	if err != nil {
		return err
	}
	if key == storage.VaultSaltKey {
		return errors.Wrap(errors.ErrInvalidParameters, "key is reserved for the vault salt")
	}
	blob, err := primitive.SealBlob(sessionKeyAlgorithm, sessionKey, nil, []byte(value))
	if err != nil {
		return err
	}
	return v.store.Put(ctx, key, base64.StdEncoding.EncodeToString(blob), namespace, ttl)
}

// Get decrypts and returns the value stored under key. ok is false if the
// row is absent or expired. A decryption failure (wrong session key, or
// tampered ciphertext) returns errors.ErrAuthenticationFailed without
// deleting the row.
func (v *Vault) Get(ctx context.Context, token, key string) (value string, ok bool, err error) {
	sessionKey, _, err := v.authenticate(token)
	if err != nil {
		return "", false, err
	}
	encoded, found, err := v.store.Get(ctx, key)
	if err != nil || !found {
		return "", false, err
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false, errors.Wrap(errors.ErrMalformed, "stored value is not valid base64")
	}
	plaintext, err := primitive.OpenBlob(sessionKeyAlgorithm, sessionKey, nil, blob)
	if err != nil {
		return "", false, err
	}
	return string(plaintext), true, nil
}

// Delete removes key, reporting whether a row was actually removed.
func (v *Vault) Delete(ctx context.Context, token, key string) (bool, error) {
	if _, _, err := v.authenticate(token); err != nil {
		return false, err
	}
	return v.store.Delete(ctx, key)
}

// PutIfAbsent inserts key=value only if absent, encrypting value under the
// session key the same way Put does.
func (v *Vault) PutIfAbsent(ctx context.Context, token, key, value, namespace string) (inserted bool, err error) {
	sessionKey, _, err := v.authenticate(token)
	if err != nil {
		return false, err
	}
	blob, err := primitive.SealBlob(sessionKeyAlgorithm, sessionKey, nil, []byte(value))
	if err != nil {
		return false, err
	}
	return v.store.PutIfAbsent(ctx, key, base64.StdEncoding.EncodeToString(blob), namespace)
}

// PutAll upserts every pair within one transaction, each value encrypted
// under the session key.
func (v *Vault) PutAll(ctx context.Context, token string, pairs map[string]string, namespace string) error {
	sessionKey, _, err := v.authenticate(token)
	if err != nil {
		return err
	}
	storagePairs := make([]storage.Pair, 0, len(pairs))
	for key, value := range pairs {
		blob, err := primitive.SealBlob(sessionKeyAlgorithm, sessionKey, nil, []byte(value))
		if err != nil {
			return err
		}
		storagePairs = append(storagePairs, storage.Pair{Key: key, Value: base64.StdEncoding.EncodeToString(blob)})
	}
	return v.store.PutAll(ctx, storagePairs, namespace)
}

// Find returns the decrypted (key, value) pairs whose key matches pattern.
// The vault salt row is never a candidate match.
func (v *Vault) Find(ctx context.Context, token, pattern string) ([]storage.Pair, error) {
	sessionKey, _, err := v.authenticate(token)
	if err != nil {
		return nil, err
	}
	raw, err := v.store.Find(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return decryptPairs(raw, sessionKey)
}

// List returns every key (not values) restricted to namespace if non-empty.
// The vault salt row is never included.
func (v *Vault) List(ctx context.Context, token, namespace string) ([]string, error) {
	if _, _, err := v.authenticate(token); err != nil {
		return nil, err
	}
	keys, err := v.store.List(ctx, namespace)
	if err != nil {
		return nil, err
	}
	filtered := keys[:0]
	for _, k := range keys {
		if k != storage.VaultSaltKey {
			filtered = append(filtered, k)
		}
	}
	return filtered, nil
}

func decryptPairs(raw []storage.Pair, sessionKey []byte) ([]storage.Pair, error) {
	out := make([]storage.Pair, 0, len(raw))
	for _, p := range raw {
		if p.Key == storage.VaultSaltKey {
			continue
		}
		blob, err := base64.StdEncoding.DecodeString(p.Value)
		if err != nil {
			return nil, errors.Wrap(errors.ErrMalformed, "stored value is not valid base64")
		}
		plaintext, err := primitive.OpenBlob(sessionKeyAlgorithm, sessionKey, nil, blob)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.Pair{Key: p.Key, Value: string(plaintext)})
	}
	return out, nil
}
