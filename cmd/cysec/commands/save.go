package commands

import (
	"context"
	"io"

	"github.com/cysec-io/cysec/internal/app"
)

// RunSave implements "save": armor-encrypt the vault database file in
// place. The vault is not a valid sqlite file again until RunLoad reverses
// this, so vault commands naturally fail while armored rather than through
// any special-cased check.
func RunSave(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	a, err := container.Armor()
	if err != nil {
		return err
	}
	path := container.Config().VaultPath()
	if err := a.Lock(ctx, path); err != nil {
		return err
	}
	return writeResult(w, jsonMode, map[string]string{"path": path}, "armored "+path)
}

// RunLoad implements "load": reverse RunSave, decrypting the armored vault
// file back into a plain sqlite database.
func RunLoad(ctx context.Context, container *app.Container, w io.Writer, jsonMode bool) error {
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	a, err := container.Armor()
	if err != nil {
		return err
	}
	path := container.Config().VaultPath()
	if err := a.Unlock(ctx, path); err != nil {
		return err
	}
	return writeResult(w, jsonMode, map[string]string{"path": path}, "unarmored "+path)
}
