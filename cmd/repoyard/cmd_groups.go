package main

import (
	"context"
	"flag"

	"github.com/msolo/cmdflag"
)

var cmdAddToGroup = &cmdflag.Command{
	Name:      "add-to-group",
	Run:       runAddToGroup,
	UsageLine: "add-to-group -repo <index_name> -group <name>",
	UsageLong: `Tag a repo with a group, rejecting it if the group's repo-title
mode would collide with an existing member's title.`,
	Args: cmdflag.PredictNothing,
}

func runAddToGroup(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	group := fs.String("group", "", "group name")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	exitOnError(m.AddToGroup(ctx, indexName, *group))
}

var cmdRemoveFromGroup = &cmdflag.Command{
	Name:      "remove-from-group",
	Run:       runRemoveFromGroup,
	UsageLine: "remove-from-group -repo <index_name> -group <name>",
	UsageLong: `Untag a repo from a group.`,
	Args:      cmdflag.PredictNothing,
}

func runRemoveFromGroup(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	group := fs.String("group", "", "group name")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	exitOnError(m.RemoveFromGroup(ctx, indexName, *group))
}

var cmdAddParent = &cmdflag.Command{
	Name:      "add-parent",
	Run:       runAddParent,
	UsageLine: "add-parent -repo <index_name> -parent-id <repo_id>",
	UsageLong: `Record another repo's repo_id as a parent of this repo, rejecting
the change if it would introduce a cycle.`,
	Args: cmdflag.PredictNothing,
}

func runAddParent(ctx context.Context, cmd *cmdflag.Command, args []string) {
	fs := flag.NewFlagSet(cmd.Name, flag.ExitOnError)
	rf := registerRepoFlags(fs)
	parentID := fs.String("parent-id", "", "repo_id of the parent repo")
	fs.Parse(args)

	cfg := loadConfig()
	m := newManager(cfg)
	indexName := resolveIndexName(m, rf)
	exitOnError(m.AddParent(ctx, indexName, *parentID))
}
