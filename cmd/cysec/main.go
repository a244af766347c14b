// Package main provides the cysec CLI entry point.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cysec-io/cysec/internal/errors"
)

func main() {
	cmd := &cli.Command{
		Name:     "cysec",
		Usage:    "local-first secrets vault and key lifecycle manager",
		Version:  "0.1.0",
		Commands: getCommands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(errors.ExitCode(err))
	}
}
