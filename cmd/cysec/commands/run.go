package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/cysec-io/cysec/internal/app"
	"github.com/cysec-io/cysec/internal/errors"
)

// RunRun implements "run -- CMD ARGS...": unlock the vault, inject every
// stored key/value pair under namespace as environment variables, run the
// child process to completion, then lock the vault. This gives a
// single-shot CLI a coherent way to hand secrets to a process without
// ever writing them to disk or to the child's argv.
func RunRun(ctx context.Context, container *app.Container, stdout, stderr io.Writer, passphrase, namespace string, args []string) (int, error) {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	if len(args) == 0 {
		return 0, errors.Wrap(errors.ErrInvalidParameters, "run requires a command to execute")
	}

	vault, err := container.Vault()
	if err != nil {
		return 0, err
	}
	token, err := vault.Unlock(ctx, passphrase)
	if err != nil {
		return 0, err
	}
	defer vault.Lock()

	keys, err := vault.List(ctx, token, namespace)
	if err != nil {
		return 0, err
	}

	env := os.Environ()
	for _, key := range keys {
		value, ok, err := vault.Get(ctx, token, key)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, errors.Wrap(errors.ErrInternal, err.Error())
	}
	return 0, nil
}
