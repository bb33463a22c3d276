package cliutil

import (
	"context"

	"github.com/bioimage-io/backoffice/node"
	"github.com/bioimage-io/backoffice/node/config"
	"github.com/bioimage-io/backoffice/node/repo"
	"github.com/bioimage-io/backoffice/types"
	"github.com/urfave/cli/v2"
)

const (
	FlagRepo        = "repo"
	FlagDefaultRepo = "~/.backoffice"
)

var RepoFlag = &cli.StringFlag{
	Name:    FlagRepo,
	Usage:   "repo directory holding config.toml",
	EnvVars: []string{"BACKOFFICE_PATH"},
	Value:   FlagDefaultRepo,
}

var ConfigPath string
var FlagConfig = &cli.StringFlag{
	Name:        "config",
	Usage:       "config file, overrides the one in the repo",
	EnvVars:     []string{"BACKOFFICE_CONFIG"},
	Destination: &ConfigPath,
}

// IsDryRun keeps every object in memory, nothing is written to the
// configured store.
var IsDryRun bool
var FlagDryRun = &cli.BoolFlag{
	Name:        "dry-run",
	Usage:       "use an in-memory store instead of the configured one",
	EnvVars:     []string{"BACKOFFICE_DRY_RUN"},
	Destination: &IsDryRun,
}

// IsVeryVerbose is a global var signalling if the CLI is running in very
// verbose mode or not (default: false).
var IsVeryVerbose bool

// FlagVeryVerbose enables very verbose mode, which is useful when debugging
// the CLI itself. It should be included as a flag on the top-level command
// (e.g. backoffice -vv).
var FlagVeryVerbose = &cli.BoolFlag{
	Name:        "vv",
	Usage:       "enables very verbose mode, useful for debugging the CLI",
	Destination: &IsVeryVerbose,
}

// GetConfig reads --config if given, the repo config otherwise.
func GetConfig(cctx *cli.Context) (*config.Backoffice, error) {
	var cfg *config.Backoffice
	if ConfigPath != "" {
		c, err := config.FromFile(ConfigPath, config.DefaultBackoffice())
		if err != nil {
			return nil, err
		}
		var ok bool
		cfg, ok = c.(*config.Backoffice)
		if !ok {
			return nil, types.Wrapf(types.ErrInvalidConfig, "invalid config, got: %T", c)
		}
	} else {
		r, err := repo.NewRepo(cctx.String(FlagRepo))
		if err != nil {
			return nil, err
		}
		cfg, err = r.Config()
		if err != nil {
			return nil, err
		}
	}

	if IsDryRun {
		cfg.Store.Backend = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetBackoffice returns a backoffice on the configured store and a context
// limited by the configured timeout. The returned function releases both.
func GetBackoffice(cctx *cli.Context) (*node.Backoffice, context.Context, func(), error) {
	cfg, err := GetConfig(cctx)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx := cctx.Context
	cancel := func() {}
	if cfg.Network.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Network.Timeout)
	}

	b, err := node.NewBackoffice(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	closer := func() {
		_ = b.Stop(context.Background())
		cancel()
	}
	return b, ctx, closer, nil
}
