package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/msolo/cmdflag"
	"github.com/repoyard/repoyard/internal/lifecycle"
	"github.com/repoyard/repoyard/internal/model"
)

var cmdPath = &cmdflag.Command{
	Name:      "path",
	Run:       runPath,
	UsageLine: "path -repo <index_name> [-part data|meta|conf]",
	UsageLong: `Print a repo's local path for the given part (data by default).`,
	Args:      cmdflag.PredictNothing,
}

func runPath(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	part := fs.String("part", "data", "data, meta, or conf")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	rm, err := m.Resolve(rf.resolveOpts())
	exitOnError(err)
	fmt.Println(rm.GetLocalPartPath(cfg, model.RepoPart(*part)))
}

var cmdWhich = &cmdflag.Command{
	Name:      "which",
	Run:       runWhich,
	UsageLine: "which",
	UsageLong: `Print the index name of the repo the current working directory is
inside, the way cd-ing into a repo's DATA directory and asking "what is
this" would.`,
	Args: cmdflag.PredictNothing,
}

func runWhich(ctx context.Context, cmd *cmdflag.Command, args []string) {
	cfg := loadConfig()
	m := newManager(cfg)
	rm, err := m.Resolve(lifecycle.ResolveOpts{NonInteractive: true})
	exitOnError(err)
	fmt.Println(rm.IndexName())
}

var cmdRepoStatus = &cmdflag.Command{
	Name:      "repo-status",
	Run:       runRepoStatus,
	UsageLine: "repo-status -repo <index_name>",
	UsageLong: `Evaluate (without syncing) the sync condition of every part of one repo.`,
	Args:      cmdflag.PredictNothing,
}

func runRepoStatus(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	parts, err := m.RepoStatus(ctx, indexName)
	exitOnError(err)
	for _, p := range parts {
		fmt.Printf("%s: %s\n", p.Part, p.Status.Condition)
	}
}

var cmdYardStatus = &cmdflag.Command{
	Name:      "yard-status",
	Run:       runYardStatus,
	UsageLine: "yard-status -storage-location <sl>",
	UsageLong: `Evaluate every repo under a storage location and print a sync
condition histogram.`,
	Args: cmdflag.PredictNothing,
}

func runYardStatus(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	storageLocation := fs.String("storage-location", "", "storage location to scan")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	entries, histogram, err := m.YardStatus(ctx, *storageLocation)
	exitOnError(err)
	for _, e := range entries {
		fmt.Println(e.IndexName)
		for _, p := range e.Parts {
			fmt.Printf("  %s: %s\n", p.Part, p.Status.Condition)
		}
	}
	fmt.Println("---")
	for cond, n := range histogram {
		fmt.Printf("%s: %d\n", cond, n)
	}
}

var cmdList = &cmdflag.Command{
	Name:      "list",
	Run:       runList,
	UsageLine: "list",
	UsageLong: `Print every known repo's index name, sorted.`,
	Args:      cmdflag.PredictNothing,
}

func runList(ctx context.Context, cmd *cmdflag.Command, args []string) {
	cfg := loadConfig()
	m := newManager(cfg)
	names, err := m.List()
	exitOnError(err)
	for _, n := range names {
		fmt.Println(n)
	}
}

var cmdListGroups = &cmdflag.Command{
	Name:      "list-groups",
	Run:       runListGroups,
	UsageLine: "list-groups",
	UsageLong: `Print every known group and its member repos' index names.`,
	Args:      cmdflag.PredictNothing,
}

func runListGroups(ctx context.Context, cmd *cmdflag.Command, args []string) {
	cfg := loadConfig()
	m := newManager(cfg)
	groups, err := m.ListGroups()
	exitOnError(err)
	for g, members := range groups {
		fmt.Println(g + ":")
		for _, n := range members {
			fmt.Println("  " + n)
		}
	}
}
