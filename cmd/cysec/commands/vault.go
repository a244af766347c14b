package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/cysec-io/cysec/internal/app"
	"github.com/cysec-io/cysec/internal/errors"
	"github.com/cysec-io/cysec/internal/esv/storage"
)

// RunPut implements "put KEY VAL": unlock the vault with a passphrase,
// encrypt value under the session key, and store it.
func RunPut(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, passphrase, key, value string) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	vault, err := container.Vault()
	if err != nil {
		return err
	}
	token, err := vault.Unlock(ctx, passphrase)
	if err != nil {
		return err
	}
	defer vault.Lock()

	if err := vault.Put(ctx, token, key, value, "", nil); err != nil {
		return err
	}
	return writeResult(w, jsonMode, map[string]string{"key": key}, "stored "+key)
}

// RunGet implements "get KEY".
func RunGet(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, passphrase, key string) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	vault, err := container.Vault()
	if err != nil {
		return err
	}
	token, err := vault.Unlock(ctx, passphrase)
	if err != nil {
		return err
	}
	defer vault.Lock()

	value, ok, err := vault.Get(ctx, token, key)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(key)
	}
	return writeResult(w, jsonMode, map[string]string{"key": key, "value": value}, value)
}

// RunDelete implements "delete KEY".
func RunDelete(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, passphrase, key string) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	vault, err := container.Vault()
	if err != nil {
		return err
	}
	token, err := vault.Unlock(ctx, passphrase)
	if err != nil {
		return err
	}
	defer vault.Lock()

	deleted, err := vault.Delete(ctx, token, key)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound(key)
	}
	return writeResult(w, jsonMode, map[string]string{"key": key}, "deleted "+key)
}

// RunList implements "list": every stored key, optionally scoped to a
// namespace.
func RunList(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, passphrase, namespace string) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	vault, err := container.Vault()
	if err != nil {
		return err
	}
	token, err := vault.Unlock(ctx, passphrase)
	if err != nil {
		return err
	}
	defer vault.Lock()

	keys, err := vault.List(ctx, token, namespace)
	if err != nil {
		return err
	}
	return writeResult(w, jsonMode, keys, joinLines(keys))
}

// RunFind implements "find PATTERN": every stored key/value pair whose key
// contains PATTERN, or matches it as a glob when it has '*' or '?'.
func RunFind(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, passphrase, pattern string) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	vault, err := container.Vault()
	if err != nil {
		return err
	}
	token, err := vault.Unlock(ctx, passphrase)
	if err != nil {
		return err
	}
	defer vault.Lock()

	pairs, err := vault.Find(ctx, token, pattern)
	if err != nil {
		return err
	}
	return writeResult(w, jsonMode, pairs, joinPairs(pairs))
}

func notFound(key string) error {
	return errors.Wrap(errors.ErrNotFound, fmt.Sprintf("key %q not found", key))
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func joinPairs(pairs []storage.Pair) string {
	out := ""
	for i, p := range pairs {
		if i > 0 {
			out += "\n"
		}
		out += p.Key + "=" + p.Value
	}
	return out
}
