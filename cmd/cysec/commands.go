package main

import (
	"context"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/cysec-io/cysec/cmd/cysec/commands"
	"github.com/cysec-io/cysec/internal/app"
	"github.com/cysec-io/cysec/internal/config"
)

func getCommands() []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getVaultCommands()...)
	cmds = append(cmds, getKeyCommands()...)
	cmds = append(cmds, getArmorCommands()...)
	cmds = append(cmds, getSessionCommands()...)
	cmds = append(cmds, getObservabilityCommands()...)
	return cmds
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Value: false,
		Usage: "emit machine-readable JSON instead of text",
	}
}

func passphraseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "passphrase",
		Usage: "vault passphrase (defaults to CYSEC_PASSPHRASE)",
	}
}

func newContainer() *app.Container {
	return app.NewContainer(config.Load())
}

func getVaultCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "put",
			Usage:     "store a key/value pair in the vault",
			ArgsUsage: "KEY VALUE",
			Flags:     []cli.Flag{jsonFlag(), passphraseFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 2 {
					return cli.Exit("put requires KEY and VALUE", 1)
				}
				container := newContainer()
				passphrase, err := resolvePassphraseFlag(cmd, container)
				if err != nil {
					return err
				}
				return commands.RunPut(ctx, container, os.Stdout, cmd.Bool("json"), passphrase, cmd.Args().Get(0), cmd.Args().Get(1))
			},
		},
		{
			Name:      "get",
			Usage:     "retrieve a value from the vault",
			ArgsUsage: "KEY",
			Flags:     []cli.Flag{jsonFlag(), passphraseFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 1 {
					return cli.Exit("get requires KEY", 1)
				}
				container := newContainer()
				passphrase, err := resolvePassphraseFlag(cmd, container)
				if err != nil {
					return err
				}
				return commands.RunGet(ctx, container, os.Stdout, cmd.Bool("json"), passphrase, cmd.Args().Get(0))
			},
		},
		{
			Name:      "delete",
			Usage:     "remove a key from the vault",
			ArgsUsage: "KEY",
			Flags:     []cli.Flag{jsonFlag(), passphraseFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 1 {
					return cli.Exit("delete requires KEY", 1)
				}
				container := newContainer()
				passphrase, err := resolvePassphraseFlag(cmd, container)
				if err != nil {
					return err
				}
				return commands.RunDelete(ctx, container, os.Stdout, cmd.Bool("json"), passphrase, cmd.Args().Get(0))
			},
		},
		{
			Name:  "list",
			Usage: "list every stored key, optionally scoped to a namespace",
			Flags: []cli.Flag{
				jsonFlag(), passphraseFlag(),
				&cli.StringFlag{Name: "namespace", Usage: "limit to this namespace"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := newContainer()
				passphrase, err := resolvePassphraseFlag(cmd, container)
				if err != nil {
					return err
				}
				return commands.RunList(ctx, container, os.Stdout, cmd.Bool("json"), passphrase, cmd.String("namespace"))
			},
		},
		{
			Name:      "find",
			Usage:     "find key/value pairs whose key contains PATTERN ('*' and '?' act as glob wildcards)",
			ArgsUsage: "PATTERN",
			Flags:     []cli.Flag{jsonFlag(), passphraseFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 1 {
					return cli.Exit("find requires PATTERN", 1)
				}
				container := newContainer()
				passphrase, err := resolvePassphraseFlag(cmd, container)
				if err != nil {
					return err
				}
				return commands.RunFind(ctx, container, os.Stdout, cmd.Bool("json"), passphrase, cmd.Args().Get(0))
			},
		},
		{
			Name:  "change-passphrase",
			Usage: "re-encrypt the vault under a new passphrase",
			Flags: []cli.Flag{
				jsonFlag(),
				&cli.StringFlag{Name: "old-passphrase", Required: true},
				&cli.StringFlag{Name: "new-passphrase", Required: true},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := newContainer()
				return commands.RunChangePassphrase(ctx, container, os.Stdout, cmd.Bool("json"), cmd.String("old-passphrase"), cmd.String("new-passphrase"))
			},
		},
		{
			Name:      "run",
			Usage:     "unlock the vault, inject its values as environment variables, and run a command",
			ArgsUsage: "-- CMD ARGS...",
			Flags: []cli.Flag{
				passphraseFlag(),
				&cli.StringFlag{Name: "namespace", Usage: "limit injected variables to this namespace"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := newContainer()
				passphrase, err := resolvePassphraseFlag(cmd, container)
				if err != nil {
					return err
				}
				exitCode, err := commands.RunRun(ctx, container, os.Stdout, os.Stderr, passphrase, cmd.String("namespace"), cmd.Args().Slice())
				if err != nil {
					return err
				}
				if exitCode != 0 {
					os.Exit(exitCode)
				}
				return nil
			},
		},
	}
}

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "generate-key",
			Usage:     "generate and store a new key",
			ArgsUsage: "NAMESPACE",
			Flags: []cli.Flag{
				jsonFlag(),
				&cli.IntFlag{Name: "bits", Value: 256, Usage: "key size in bits"},
				&cli.IntFlag{Name: "version", Value: 1, Usage: "key version"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 1 {
					return cli.Exit("generate-key requires NAMESPACE", 1)
				}
				container := newContainer()
				return commands.RunGenerateKey(ctx, container, os.Stdout, cmd.Bool("json"), cmd.Args().Get(0), cmd.Int("bits"), cmd.Int("version"))
			},
		},
		{
			Name:      "retrieve-key",
			Usage:     "retrieve a stored key",
			ArgsUsage: "NAMESPACE VERSION [IDSUFFIX]",
			Flags:     []cli.Flag{jsonFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 2 {
					return cli.Exit("retrieve-key requires NAMESPACE and VERSION", 1)
				}
				container := newContainer()
				version, err := parseInt(cmd.Args().Get(1))
				if err != nil {
					return err
				}
				idSuffix := ""
				if cmd.Args().Len() > 2 {
					idSuffix = cmd.Args().Get(2)
				}
				return commands.RunRetrieveKey(ctx, container, os.Stdout, cmd.Bool("json"), cmd.Args().Get(0), version, idSuffix)
			},
		},
		{
			Name:      "rotate-key",
			Usage:     "rotate a namespace's key to the next version",
			ArgsUsage: "NAMESPACE",
			Flags:     []cli.Flag{jsonFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 1 {
					return cli.Exit("rotate-key requires NAMESPACE", 1)
				}
				container := newContainer()
				return commands.RunRotateKey(ctx, container, os.Stdout, cmd.Bool("json"), cmd.Args().Get(0))
			},
		},
		{
			Name:      "batch-generate-keys",
			Usage:     "generate keys for a sequence of namespaces sharing a prefix",
			ArgsUsage: "NAMESPACE_PREFIX",
			Flags: []cli.Flag{
				jsonFlag(),
				&cli.IntFlag{Name: "count", Value: 1, Usage: "number of namespaces"},
				&cli.IntFlag{Name: "bits", Value: 256, Usage: "key size in bits"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 1 {
					return cli.Exit("batch-generate-keys requires NAMESPACE_PREFIX", 1)
				}
				container := newContainer()
				return commands.RunBatchGenerateKeys(ctx, container, os.Stdout, cmd.Bool("json"), cmd.Args().Get(0), cmd.Int("count"), cmd.Int("bits"))
			},
		},
	}
}

func getArmorCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "save",
			Usage: "armor-encrypt the vault database file in place",
			Flags: []cli.Flag{jsonFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := newContainer()
				return commands.RunSave(ctx, container, os.Stdout, cmd.Bool("json"))
			},
		},
		{
			Name:  "load",
			Usage: "decrypt an armored vault database file back to sqlite",
			Flags: []cli.Flag{jsonFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := newContainer()
				return commands.RunLoad(ctx, container, os.Stdout, cmd.Bool("json"))
			},
		},
	}
}

func getSessionCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "login",
			Usage: "unlock the vault and print a session token",
			Flags: []cli.Flag{jsonFlag(), passphraseFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := newContainer()
				passphrase, err := resolvePassphraseFlag(cmd, container)
				if err != nil {
					return err
				}
				return commands.RunLogin(ctx, container, os.Stdout, cmd.Bool("json"), passphrase)
			},
		},
		{
			Name:  "logout",
			Usage: "end the current session (symbolic; see login)",
			Flags: []cli.Flag{jsonFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := newContainer()
				return commands.RunLogout(ctx, container, os.Stdout, cmd.Bool("json"))
			},
		},
	}
}

func getObservabilityCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "metrics",
			Usage: "print cache stats and a Prometheus exposition snapshot for this invocation",
			Flags: []cli.Flag{jsonFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := newContainer()
				return commands.RunMetrics(ctx, container, os.Stdout, cmd.Bool("json"))
			},
		},
	}
}

func resolvePassphraseFlag(cmd *cli.Command, container *app.Container) (string, error) {
	return commands.ResolvePassphrase(cmd.String("passphrase"), container.Config())
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, cli.Exit("invalid integer argument: "+s, 1)
	}
	return n, nil
}
