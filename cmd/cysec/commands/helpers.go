// Package commands contains the cysec CLI's command implementations.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/cysec-io/cysec/internal/app"
	"github.com/cysec-io/cysec/internal/config"
	"github.com/cysec-io/cysec/internal/errors"
)

// closeContainer shuts down container and logs any error, matching the
// deferred-cleanup pattern every command follows.
func closeContainer(ctx context.Context, container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down container", slog.Any("error", err))
	}
}

// ResolvePassphrase returns the vault passphrase from flagValue if set,
// else CYSEC_PASSPHRASE, else errors.ErrInvalidParameters: this CLI never
// prompts interactively, keeping sensitive material out of terminal
// scrollback.
func ResolvePassphrase(flagValue string, cfg *config.Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Passphrase != "" {
		return cfg.Passphrase, nil
	}
	return "", errors.Wrap(errors.ErrInvalidParameters, "passphrase required: set --passphrase or CYSEC_PASSPHRASE")
}

// errorDoc is the CLI's JSON error envelope:
// {"error": {"kind": "...", "message": "..."}}.
type errorDoc struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeResult prints data as JSON when jsonMode is set, otherwise prints
// human via fmt.Fprintln.
func writeResult(w io.Writer, jsonMode bool, data any, human string) error {
	if jsonMode {
		enc := json.NewEncoder(w)
		return enc.Encode(data)
	}
	_, err := fmt.Fprintln(w, human)
	return err
}

// writeError prints err as the JSON error envelope when jsonMode is set,
// otherwise a single human-readable line. Secrets are never included in
// either form.
func writeError(w io.Writer, jsonMode bool, err error) {
	if jsonMode {
		var doc errorDoc
		doc.Error.Kind = errors.Kind(err)
		doc.Error.Message = err.Error()
		_ = json.NewEncoder(w).Encode(doc)
		return
	}
	fmt.Fprintf(w, "error: %s\n", err.Error())
}
