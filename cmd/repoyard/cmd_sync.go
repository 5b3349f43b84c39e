package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/msolo/cmdflag"
	"github.com/repoyard/repoyard/internal/lifecycle"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/orchestrator"
	"github.com/repoyard/repoyard/internal/syncexec"
)

var cmdSync = &cmdflag.Command{
	Name:      "sync",
	Run:       runSync,
	UsageLine: "sync -repo <index_name> [-setting careful|replace|force] [-direction push|pull] [-part meta|conf|data]",
	UsageLong: `Sync one repo's META, CONF and DATA parts (in that order) against
its remote, honoring the part's evaluated sync condition.`,
	Args: cmdflag.PredictNothing,
}

func runSync(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	setting := fs.String("setting", "careful", "careful, replace, or force")
	direction := fs.String("direction", "", "push or pull; empty lets the evaluator decide")
	part := fs.String("part", "", "meta, conf, or data; empty syncs all three")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)

	opts := orchestrator.Options{
		Setting:            syncexec.Setting(*setting),
		ShowRcloneProgress: showProgress(),
	}
	if *direction != "" {
		d := syncexec.Direction(*direction)
		opts.Direction = &d
	}
	if *part != "" {
		opts.Parts = []model.RepoPart{model.RepoPart(*part)}
	}

	result, err := m.Orch.SyncRepo(ctx, indexName, opts)
	exitOnError(err)
	for _, p := range model.AllParts {
		st, ok := result[p]
		if !ok {
			continue
		}
		fmt.Printf("%s: %s\n", p, st.Condition)
	}
}

var cmdSyncMissingMeta = &cmdflag.Command{
	Name:      "sync-missing-meta",
	Run:       runSyncMissingMeta,
	UsageLine: "sync-missing-meta -storage-location <sl>",
	UsageLong: `Discover repos present on a remote but unknown locally and pull just
enough metadata to make them visible, without fetching DATA.`,
	Args: cmdflag.PredictNothing,
}

func runSyncMissingMeta(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	storageLocation := fs.String("storage-location", "", "storage location to scan")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	names, err := m.SyncMissingMeta(ctx, *storageLocation)
	exitOnError(err)
	for _, n := range names {
		fmt.Println(n)
	}
}

var cmdMultiSync = &cmdflag.Command{
	Name:      "multi-sync",
	Run:       runMultiSync,
	UsageLine: "multi-sync [-storage-location <sl>] [-group <g>] [-included-only]",
	UsageLong: `Sync every repo matching the given filters, bounded by
max_concurrent_rclone_ops, collecting every repo's outcome.`,
	Args: cmdflag.PredictNothing,
}

func runMultiSync(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	storageLocation := fs.String("storage-location", "", "restrict to one storage location")
	group := fs.String("group", "", "restrict to one group")
	includedOnly := fs.Bool("included-only", false, "skip repos excluded locally")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	results, err := m.MultiSync(ctx, lifecycle.MultiSyncOpts{
		StorageLocation: *storageLocation,
		Group:           *group,
		IncludedOnly:    *includedOnly,
	})
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s: ERROR: %v\n", r.IndexName, r.Err)
		} else {
			fmt.Printf("%s: ok\n", r.IndexName)
		}
	}
	exitOnError(err)
}
