// Package gitinit covers the narrow git-plumbing slice the Create
// lifecycle operation needs: optionally running `git init` on a
// freshly-materialised DATA directory, or sourcing DATA from a
// `git clone`. Both run through shellutil's restricted environment so
// git never inherits ambient state.
package gitinit

import (
	"context"
	"fmt"

	"github.com/repoyard/repoyard/internal/shellutil"
)

// Init runs `git init` in dir, creating it first if necessary.
func Init(ctx context.Context, dir string) error {
	cmd := shellutil.CommandContext(ctx, "git", "init", "-q", dir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git init %s: %w", dir, err)
	}
	return nil
}

// Clone runs `git clone <url> <dir>`, used when Create is given a git URL
// as its DATA source.
func Clone(ctx context.Context, url, dir string) error {
	cmd := shellutil.CommandContext(ctx, "git", "clone", "-q", url, dir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone %s %s: %w", url, dir, err)
	}
	return nil
}

// NameFromURL derives a default repo name from the last path component of
// a git URL, stripping a trailing ".git".
func NameFromURL(url string) string {
	i := len(url)
	for i > 0 && url[i-1] == '/' {
		i--
	}
	url = url[:i]
	j := i
	for j > 0 && url[j-1] != '/' && url[j-1] != ':' {
		j--
	}
	name := url[j:i]
	const suffix = ".git"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		name = name[:len(name)-len(suffix)]
	}
	return name
}
