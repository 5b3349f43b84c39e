// Package lockmgr provides the file-based locks that serialize repoyard
// operations: one global lock protecting repoyard_meta.json, and one
// per-repo sync lock protecting sync/include/exclude/delete on a single
// repo.
package lockmgr

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/msolo/go-bis/flock"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rerr"
)

const (
	DefaultGlobalTimeout   = 30 * time.Second
	DefaultRepoSyncTimeout = 10 * time.Minute
)

// Manager issues locks rooted at <repoyard_data_path>/locks.
type Manager struct {
	LocksPath string
}

func New(repoyardDataPath string) *Manager {
	return &Manager{LocksPath: filepath.Join(repoyardDataPath, model.LocksRelPath)}
}

func (m *Manager) GlobalLockPath() string {
	return filepath.Join(m.LocksPath, "global.lock")
}

func (m *Manager) RepoSyncLockPath(indexName string) string {
	return filepath.Join(m.LocksPath, "repos", indexName, "sync.lock")
}

func ensureDir(lockPath string) error {
	return os.MkdirAll(filepath.Dir(lockPath), 0o755)
}

// acquire opens path with flock, racing the open against timeout. If the
// deadline passes first, a goroutine keeps waiting for the open and
// releases it immediately if it eventually succeeds, so a late-arriving
// lock is never left held by no one.
func acquire(path string, timeout time.Duration) (*flock.Flock, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	type result struct {
		lk  *flock.Flock
		err error
	}
	ch := make(chan result, 1)
	go func() {
		lk, err := flock.Open(path)
		ch <- result{lk, err}
	}()
	select {
	case r := <-ch:
		return r.lk, r.err
	case <-time.After(timeout):
		go func() {
			r := <-ch
			if r.err == nil {
				r.lk.Close()
			}
		}()
		return nil, &rerr.LockHeld{LockPath: path, Timeout: timeout.String()}
	}
}

// Global acquires the global lock, returning an unlock function.
func (m *Manager) Global(timeout time.Duration) (func() error, error) {
	lk, err := acquire(m.GlobalLockPath(), timeout)
	if err != nil {
		return nil, err
	}
	return lk.Close, nil
}

// RepoSync acquires the sync lock for a single repo.
func (m *Manager) RepoSync(indexName string, timeout time.Duration) (func() error, error) {
	lk, err := acquire(m.RepoSyncLockPath(indexName), timeout)
	if err != nil {
		return nil, err
	}
	return lk.Close, nil
}

// MultipleRepoSync acquires sync locks for several repos at once, sorted
// alphabetically to avoid deadlocking against another caller locking the
// same set in a different order. On failure, every lock acquired so far
// is released in reverse order before returning.
func (m *Manager) MultipleRepoSync(indexNames []string, timeout time.Duration) (func() error, error) {
	uniq := map[string]bool{}
	var sorted []string
	for _, n := range indexNames {
		if !uniq[n] {
			uniq[n] = true
			sorted = append(sorted, n)
		}
	}
	sort.Strings(sorted)

	var acquired []*flock.Flock
	release := func() error {
		var firstErr error
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := acquired[i].Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	for _, name := range sorted {
		lk, err := acquire(m.RepoSyncLockPath(name), timeout)
		if err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, lk)
	}
	return release, nil
}

// AcquireContext is a cancellation-safe variant: the blocking acquire
// runs in its own goroutine and the caller waits on ctx, the timeout, or
// the acquire, whichever settles first. If the acquire wins after the
// caller has already given up, the lock is released immediately, so
// cancellation never leaves a lock held with no owner.
func AcquireContext(ctx context.Context, path string, timeout time.Duration) (*flock.Flock, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	type result struct {
		lk  *flock.Flock
		err error
	}
	ch := make(chan result, 1)
	go func() {
		lk, err := flock.Open(path)
		ch <- result{lk, err}
	}()
	abandon := func() {
		go func() {
			r := <-ch
			if r.err == nil {
				r.lk.Close()
			}
		}()
	}
	select {
	case r := <-ch:
		return r.lk, r.err
	case <-ctx.Done():
		abandon()
		return nil, ctx.Err()
	case <-time.After(timeout):
		abandon()
		return nil, &rerr.LockHeld{LockPath: path, Timeout: timeout.String()}
	}
}

// CleanupStale removes lock files older than maxAge that are not
// currently held. A lock file is only ever removed after this process
// itself acquired and released it, never by mtime alone, so a long
// legitimate operation is never swept out from under its holder.
func (m *Manager) CleanupStale(maxAge time.Duration) ([]string, error) {
	var removed []string
	err := filepath.Walk(m.LocksPath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() || filepath.Ext(p) != ".lock" {
			return nil
		}
		if time.Since(info.ModTime()) <= maxAge {
			return nil
		}
		lk, aerr := acquire(p, 10*time.Millisecond)
		if aerr != nil {
			return nil // held by someone else; leave it
		}
		lk.Close()
		if rmErr := os.Remove(p); rmErr == nil {
			removed = append(removed, p)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return removed, nil
	}
	return removed, err
}

const autoCleanupMarker = ".last_auto_cleanup"

// AutoCleanupStale runs CleanupStale at most once per interval, tracked by
// an mtime marker file under LocksPath, so that every CLI invocation can
// call it cheaply without re-walking the lock tree each time.
func (m *Manager) AutoCleanupStale(maxAge, interval time.Duration) ([]string, error) {
	marker := filepath.Join(m.LocksPath, autoCleanupMarker)
	if info, err := os.Stat(marker); err == nil && time.Since(info.ModTime()) < interval {
		return nil, nil
	}
	if err := ensureDir(marker); err != nil {
		return nil, err
	}
	removed, err := m.CleanupStale(maxAge)
	if touchErr := os.WriteFile(marker, nil, 0o644); touchErr != nil && err == nil {
		err = touchErr
	}
	return removed, err
}
