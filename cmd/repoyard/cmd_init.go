package main

import (
	"context"
	"flag"

	"github.com/msolo/cmdflag"
	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/lifecycle"
)

var cmdInit = &cmdflag.Command{
	Name:      "init",
	Run:       runInit,
	UsageLine: "init",
	UsageLong: `Materialize a fresh repoyard installation: a default config file,
the data directory tree, a starter rclone config, and local_store
symlinks for every local-type storage location already configured.`,
	Args: cmdflag.PredictNothing,
}

func runInit(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	fs.Parse(args)

	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	exitOnError(err)
	exitOnError(lifecycle.Init(cfg, path))
}

var cmdCreateUserSymlinks = &cmdflag.Command{
	Name:      "create-user-symlinks",
	Run:       runCreateUserSymlinks,
	UsageLine: "create-user-symlinks",
	UsageLong: `Rebuild every group's symlink tree from the current repo index,
removing stale entries a rename, exclude, or group change left behind.`,
	Args: cmdflag.PredictNothing,
}

func runCreateUserSymlinks(ctx context.Context, cmd *cmdflag.Command, args []string) {
	cfg := loadConfig()
	m := newManager(cfg)
	exitOnError(m.CreateUserSymlinks())
}
