package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rerr"
)

// MatchMode selects how ResolveOpts.RepoName is compared against a
// candidate repo's name.
type MatchMode string

const (
	MatchExact       MatchMode = "exact"
	MatchContains    MatchMode = "contains"
	MatchSubsequence MatchMode = "subsequence"
)

// ResolveOpts names a repo by exactly one of its index name, its repo_id,
// or a name pattern, or (if none are set) falls back to the current
// working directory.
type ResolveOpts struct {
	IndexName     string
	RepoID        string
	RepoName      string
	MatchMode     MatchMode // defaults to MatchExact
	CaseSensitive bool
	// NonInteractive, when true, turns an ambiguous RepoName match into an
	// error instead of the caller prompting for a selection.
	NonInteractive bool
}

// Resolve finds the single repo ResolveOpts identifies. Multiple matches
// from RepoName are returned as candidates for the caller to disambiguate
// (interactively, unless NonInteractive, in which case it is an error).
func (m *Manager) Resolve(opts ResolveOpts) (*model.RepoMeta, error) {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return nil, err
	}

	switch {
	case opts.IndexName != "":
		rm, ok := yard.ByIndexName()[opts.IndexName]
		if !ok {
			return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q not found", opts.IndexName)}
		}
		return rm, nil
	case opts.RepoID != "":
		rm, ok := yard.ByRepoID()[opts.RepoID]
		if !ok {
			return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("repo id %q not found", opts.RepoID)}
		}
		return rm, nil
	case opts.RepoName != "":
		return m.resolveByName(yard, opts)
	default:
		return m.resolveByCWD(yard)
	}
}

func (m *Manager) resolveByName(yard *model.RepoyardMeta, opts ResolveOpts) (*model.RepoMeta, error) {
	mode := opts.MatchMode
	if mode == "" {
		mode = MatchExact
	}
	needle := opts.RepoName
	if !opts.CaseSensitive {
		needle = strings.ToLower(needle)
	}

	var candidates []*model.RepoMeta
	for _, rm := range yard.RepoMetas {
		name := rm.Name
		if !opts.CaseSensitive {
			name = strings.ToLower(name)
		}
		if matchName(mode, needle, name) {
			candidates = append(candidates, rm)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].IndexName() < candidates[j].IndexName() })

	switch len(candidates) {
	case 0:
		return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("no repo matches name %q", opts.RepoName)}
	case 1:
		return candidates[0], nil
	default:
		if opts.NonInteractive {
			names := make([]string, len(candidates))
			for i, c := range candidates {
				names[i] = c.IndexName()
			}
			return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("ambiguous repo name %q matches: %s", opts.RepoName, strings.Join(names, ", "))}
		}
		return pickInteractive(candidates)
	}
}

func matchName(mode MatchMode, needle, name string) bool {
	switch mode {
	case MatchExact:
		return name == needle
	case MatchContains:
		return strings.Contains(name, needle)
	case MatchSubsequence:
		return isSubsequence(needle, name)
	default:
		return false
	}
}

// isSubsequence reports whether every rune of needle appears in haystack
// in order (not necessarily contiguously), the loosest of the three
// match modes.
func isSubsequence(needle, haystack string) bool {
	n := []rune(needle)
	if len(n) == 0 {
		return true
	}
	i := 0
	for _, r := range haystack {
		if r == n[i] {
			i++
			if i == len(n) {
				return true
			}
		}
	}
	return false
}

// resolveByCWD identifies a repo from the current working directory: the
// CWD (or an ancestor of it) is <user_repos_path>/<index_name>.
func (m *Manager) resolveByCWD(yard *model.RepoyardMeta) (*model.RepoMeta, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	reposAbs, err := filepath.Abs(m.Cfg.UserReposPath)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(reposAbs, wd)
	if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		return nil, &rerr.LifecycleConflict{Message: "current directory is not inside a repo; pass --repo, --repo-id, or --repo-name"}
	}
	indexName := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	rm, ok := yard.ByIndexName()[indexName]
	if !ok {
		return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("current directory's repo %q is not tracked", indexName)}
	}
	return rm, nil
}

// pickInteractive is the fuzzy-finder integration point; without a
// terminal UI wired in, an ambiguous match in interactive mode still
// surfaces every candidate as an error rather than guessing.
func pickInteractive(candidates []*model.RepoMeta) (*model.RepoMeta, error) {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.IndexName()
	}
	return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("ambiguous repo name matches %d repos, pick one with --repo: %s", len(candidates), strings.Join(names, ", "))}
}
