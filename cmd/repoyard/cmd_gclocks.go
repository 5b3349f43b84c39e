package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/msolo/cmdflag"
)

var cmdGCLocks = &cmdflag.Command{
	Name:      "gc-locks",
	Run:       runGCLocks,
	UsageLine: "gc-locks [-max-age <duration>]",
	UsageLong: `Remove lock files older than -max-age that are not currently held.
A quieter version of this sweep also runs automatically at most once an
hour on every CLI invocation.`,
	Args: cmdflag.PredictNothing,
}

func runGCLocks(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	maxAge := fs.Duration("max-age", 24*time.Hour, "remove lock files idle longer than this")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	removed, err := m.Locks.CleanupStale(*maxAge)
	exitOnError(err)
	for _, p := range removed {
		fmt.Println(p)
	}
}
