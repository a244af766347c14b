package commands

import (
	"context"
	"io"

	"github.com/cysec-io/cysec/internal/app"
)

// RunChangePassphrase implements "change-passphrase": re-encrypt every
// vault value under a key derived from newPassphrase and mint a fresh
// session token, without ever storing the plaintext value keys in
// cleartext alongside the old session key.
func RunChangePassphrase(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, oldPassphrase, newPassphrase string) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	vault, err := container.Vault()
	if err != nil {
		return err
	}

	token, err := vault.RotatePassphrase(ctx, oldPassphrase, newPassphrase)
	if err != nil {
		return err
	}
	defer vault.Lock()

	return writeResult(w, jsonMode, map[string]string{"token": token}, "passphrase changed")
}
