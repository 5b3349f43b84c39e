package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/msolo/cmdflag"
	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/lifecycle"
)

var cmdNew = &cmdflag.Command{
	Name:      "new",
	Run:       runNew,
	UsageLine: "new -storage-location <sl> [-name <name>] [-from <path-or-url>]",
	UsageLong: `Create a new repo: META, an empty CONF, and DATA sourced from
scratch, a local path (moved or copied with -copy), or a git clone.`,
	Args: cmdflag.PredictNothing,
}

func runNew(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	storageLocation := fs.String("storage-location", "", "storage location to create the repo under")
	name := fs.String("name", "", "repo name (defaulted from -from if empty)")
	from := fs.String("from", "", "local source path or git URL")
	copyFrom := fs.Bool("copy", false, "copy -from instead of moving it")
	initGit := fs.Bool("init-git", false, "run 'git init' on the new DATA directory")
	groups := fs.String("groups", "", "comma-separated list of groups to tag the repo with")
	syncBefore := fs.Bool("sync-before", false, "scan the storage location's remote for repo id collisions before creating (also enabled by sync_before_new_repo in the config)")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	groupList := splitCommaList(*groups)
	if len(groupList) == 0 {
		groupList = config.DefaultGroupsFromEnv()
	}
	indexName, err := m.Create(ctx, lifecycle.CreateOpts{
		StorageLocation:  *storageLocation,
		RepoName:         *name,
		FromPath:         *from,
		CopyFromPath:     *copyFrom,
		InitGit:          *initGit,
		Groups:           groupList,
		SyncBeforeCreate: *syncBefore,
	})
	exitOnError(err)
	fmt.Println(indexName)
}

var cmdInclude = &cmdflag.Command{
	Name:      "include",
	Run:       runInclude,
	UsageLine: "include -repo <index_name>",
	UsageLong: `Fetch an excluded repo's DATA (a force PULL), then sync META and CONF.`,
	Args:      cmdflag.PredictNothing,
}

func runInclude(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	exitOnError(m.Include(ctx, indexName))
}

var cmdExclude = &cmdflag.Command{
	Name:      "exclude",
	Run:       runExclude,
	UsageLine: "exclude -repo <index_name>",
	UsageLong: `Remove a repo's local DATA (and its sync record) after a careful sync.`,
	Args:      cmdflag.PredictNothing,
}

func runExclude(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	skipSync := fs.Bool("skip-sync", false, "skip the careful sync-up before removing local DATA")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	exitOnError(m.Exclude(ctx, indexName, lifecycle.ExcludeOpts{SkipSync: *skipSync}))
}

var cmdDelete = &cmdflag.Command{
	Name:      "delete",
	Run:       runDelete,
	UsageLine: "delete -repo <index_name>",
	UsageLong: `Tombstone a repo, then purge it from local and remote storage.`,
	Args:      cmdflag.PredictNothing,
}

func runDelete(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	exitOnError(m.Delete(ctx, indexName))
}

var cmdRename = &cmdflag.Command{
	Name:      "rename",
	Run:       runRename,
	UsageLine: "rename -repo <index_name> -to <new_name> [-scope local|remote|both]",
	UsageLong: `Change a repo's display name on the requested scope(s); repo_id never changes.`,
	Args:      cmdflag.PredictNothing,
}

func runRename(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	newName := fs.String("to", "", "new repo name")
	scope := fs.String("scope", "both", "local, remote, or both")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	resultName, err := m.Rename(ctx, indexName, *newName, lifecycle.RenameScope(*scope))
	exitOnError(err)
	fmt.Println(resultName)
}

var cmdSyncName = &cmdflag.Command{
	Name:      "sync-name",
	Run:       runSyncName,
	UsageLine: "sync-name -repo <index_name> -direction to_local|to_remote",
	UsageLong: `Reconcile a repo's local and remote display names, renaming whichever side disagrees.`,
	Args:      cmdflag.PredictNothing,
}

func runSyncName(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	direction := fs.String("direction", "to_local", "to_local or to_remote")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	resultName, err := m.SyncName(ctx, indexName, lifecycle.SyncNameDirection(*direction))
	exitOnError(err)
	fmt.Println(resultName)
}

var cmdCopy = &cmdflag.Command{
	Name:      "copy",
	Run:       runCopy,
	UsageLine: "copy -repo <index_name> -to <dest_path> [-meta] [-conf]",
	UsageLong: `Download a repo's remote DATA (and optionally META/CONF) to an
arbitrary destination, without registering it as a tracked repo.`,
	Args: cmdflag.PredictNothing,
}

func runCopy(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	dest := fs.String("to", "", "destination path, outside both managed data paths")
	withMeta := fs.Bool("meta", false, "also copy repometa.toml")
	withConf := fs.Bool("conf", false, "also copy the conf directory")
	overwrite := fs.Bool("overwrite", false, "overwrite an existing destination")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	destPath, err := m.CopyOut(ctx, indexName, lifecycle.CopyOutOpts{
		DestPath:  *dest,
		CopyMeta:  *withMeta,
		CopyConf:  *withConf,
		Overwrite: *overwrite,
	})
	exitOnError(err)
	fmt.Println(destPath)
}

var cmdForcePush = &cmdflag.Command{
	Name:      "force-push",
	Run:       runForcePush,
	UsageLine: "force-push -repo <index_name> -from <source_path> -force",
	UsageLong: `Overwrite a repo's remote DATA with an arbitrary local folder,
bypassing the usual sync-condition safety checks. Destructive; requires -force.`,
	Args: cmdflag.PredictNothing,
}

func runForcePush(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	source := fs.String("from", "", "local source directory to push")
	force := fs.Bool("force", false, "confirm this destructive operation")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	exitOnError(m.ForcePush(ctx, indexName, lifecycle.ForcePushOpts{SourcePath: *source, Force: *force}))
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
