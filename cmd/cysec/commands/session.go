package commands

import (
	"context"
	"io"

	"github.com/cysec-io/cysec/internal/app"
)

// RunLogin implements "login": unlock the vault and print the resulting
// session token. The token is informational only — each Unlock mints a
// fresh, process-local signer key, so a token printed here cannot be
// verified by any other cysec invocation, including a later one in the
// same shell. Callers that need the vault unlocked for a sequence of
// operations should use RunRun, which keeps a single process alive for the
// duration, rather than trying to carry this token across commands.
func RunLogin(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool, passphrase string) error {
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
	return writeResult(w, jsonMode, map[string]string{"token": token}, token)
}

// RunLogout implements "logout". There is no persistent session to
// invalidate across process boundaries in this CLI model: each command
// unlocks and locks its own Vault instance, so logout only exists to give
// scripts a symmetrical counterpart to login.
func RunLogout(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	return writeResult(w, jsonMode, map[string]string{"status": "ok"}, "logged out")
}
