package main

import (
	"flag"

	"github.com/repoyard/repoyard/internal/lifecycle"
)

// repoFlags holds the --repo/--repo-id/--repo-name family of flags every
// repo-targeting subcommand accepts.
type repoFlags struct {
	repo          string
	repoID        string
	repoName      string
	match         string
	caseSensitive bool
}

func registerRepoFlags(fs *flag.FlagSet) *repoFlags {
	rf := &repoFlags{}
	fs.StringVar(&rf.repo, "repo", "", "repo index name (<repo_id>__<name>)")
	fs.StringVar(&rf.repoID, "repo-id", "", "repo id")
	fs.StringVar(&rf.repoName, "repo-name", "", "repo name pattern")
	fs.StringVar(&rf.match, "match", "exact", "match mode for -repo-name: exact, contains, or subsequence")
	fs.BoolVar(&rf.caseSensitive, "case-sensitive", false, "match -repo-name case-sensitively")
	return rf
}

func (rf *repoFlags) resolveOpts() lifecycle.ResolveOpts {
	return lifecycle.ResolveOpts{
		IndexName:      rf.repo,
		RepoID:         rf.repoID,
		RepoName:       rf.repoName,
		MatchMode:      lifecycle.MatchMode(rf.match),
		CaseSensitive:  rf.caseSensitive,
		NonInteractive: true,
	}
}

// resolveIndexName resolves the repo the caller named via rf (falling
// back to the current working directory if none of -repo/-repo-id/
// -repo-name were given) and returns its local index name.
func resolveIndexName(m *lifecycle.Manager, rf *repoFlags) string {
	rm, err := m.Resolve(rf.resolveOpts())
	exitOnError(err)
	return rm.IndexName()
}
