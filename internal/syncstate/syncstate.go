// Package syncstate computes the closed-set SyncCondition for a single
// repo part (META, CONF, or DATA) by comparing local and remote
// existence, modification time, and sync records. The branch order in
// Evaluate is load-bearing: which inconsistent states surface as an
// error, rather than resolving silently, is the core safety property of
// the whole sync protocol.
package syncstate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rclone"
	"golang.org/x/sync/errgroup"
)

// SyncCondition is the closed set of states Evaluate can report.
type SyncCondition string

const (
	Synced                   SyncCondition = "synced"
	SyncToRemoteIncomplete   SyncCondition = "sync_to_remote_incomplete"
	SyncFromRemoteIncomplete SyncCondition = "sync_from_remote_incomplete"
	Conflict                 SyncCondition = "conflict"
	NeedsPush                SyncCondition = "needs_push"
	NeedsPull                SyncCondition = "needs_pull"
	Excluded                 SyncCondition = "excluded"
	ErrorCondition           SyncCondition = "error"
	Tombstoned               SyncCondition = "tombstoned"
)

// Status is the full evaluation result: the condition plus the evidence
// that produced it, so callers (and tests) can explain a verdict.
type Status struct {
	Condition        SyncCondition
	LocalPathExists  bool
	RemotePathExists bool
	LocalRecord      *model.SyncRecord
	RemoteRecord     *model.SyncRecord
	IsDir            bool
	ErrorMessage     string
}

// Evaluator computes Status for one repo part's (local, remote) path pair.
type Evaluator struct {
	RC *rclone.Client
}

func New(rc *rclone.Client) *Evaluator {
	return &Evaluator{RC: rc}
}

func errStatus(st Status, format string, args ...interface{}) (*Status, error) {
	st.Condition = ErrorCondition
	st.ErrorMessage = fmt.Sprintf(format, args...)
	return &st, nil
}

// Evaluate returns the SyncCondition for one repo part, given its local
// path/record path and remote:path/record path. The local-side and
// remote-side probes (each a subprocess round trip on the remote side)
// run concurrently via errgroup, since neither depends on the other.
func (e *Evaluator) Evaluate(ctx context.Context, localPath, localRecordPath, remote, remotePath, remoteRecordPath string) (*Status, error) {
	g, gctx := errgroup.WithContext(ctx)

	var localExists, localIsDir, localIsEmpty bool
	var localLastModified *time.Time
	var localRecord *model.SyncRecord
	g.Go(func() error {
		var err error
		localExists, localIsDir, err = localPathExists(localPath)
		if err != nil {
			return err
		}
		localIsEmpty = true
		if localIsDir && localExists {
			localIsEmpty, err = dirIsEmpty(localPath)
			if err != nil {
				return err
			}
		}
		localLastModified, err = checkLastTimeModified(localPath)
		if err != nil {
			return err
		}
		localRecord, err = readLocalRecord(localRecordPath)
		return err
	})

	var remoteExists, remoteIsDir bool
	var remoteRecord *model.SyncRecord
	g.Go(func() error {
		var err error
		remoteExists, remoteIsDir, err = e.RC.Exists(gctx, remote, remotePath)
		if err != nil {
			return err
		}
		remoteRecord, err = e.readRemoteRecord(gctx, remote, remoteRecordPath)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if localExists && remoteExists && localIsDir != remoteIsDir {
		return nil, fmt.Errorf(
			"local and remote paths are not both files or both directories: local=%v(dir=%v) path=%q, remote=%v(dir=%v) path=%q",
			localExists, localIsDir, localPath, remoteExists, remoteIsDir, remotePath)
	}
	isDir := localIsDir || remoteIsDir

	st := Status{
		LocalPathExists:  localExists,
		RemotePathExists: remoteExists,
		LocalRecord:      localRecord,
		RemoteRecord:     remoteRecord,
		IsDir:            isDir,
	}

	if remoteExists && remoteRecord == nil {
		return errStatus(st, "remote path exists but remote sync record does not: local=%q remote=%q", localPath, remotePath)
	}

	if localLastModified == nil && localExists {
		if !localIsDir || (localIsDir && !localIsEmpty) {
			return errStatus(st, "local path exists and is not empty, but cannot be checked for last modification: local=%q remote=%q", localPath, remotePath)
		}
	}

	localIncomplete := localRecord != nil && !localRecord.SyncComplete
	remoteIncomplete := remoteRecord != nil && !remoteRecord.SyncComplete
	recordsMatch := localRecord != nil && remoteRecord != nil && localRecord.SameULID(remoteRecord)

	var cond SyncCondition
	switch {
	case localIncomplete && remoteIncomplete:
		if localRecord.SameULID(remoteRecord) {
			// Same sync session on both sides: an interrupted PUSH from this
			// machine (PUSH writes an incomplete record to both ends first).
			cond = SyncToRemoteIncomplete
		} else {
			return errStatus(st, "inconsistent incomplete records (different ulids): local=%s remote=%s",
				localRecord.ULID, remoteRecord.ULID)
		}
	case remoteIncomplete:
		cond = SyncToRemoteIncomplete
	case localIncomplete:
		cond = SyncFromRemoteIncomplete
	case recordsMatch:
		if localLastModified != nil && localLastModified.After(localRecord.Timestamp) {
			cond = NeedsPush
		} else {
			cond = Synced
		}
	case localExists:
		if remoteExists {
			if localRecord == nil {
				return errStatus(st, "local sync record does not exist, but local and remote paths both exist: local=%q remote=%q", localPath, remotePath)
			}
			remoteMoreRecent := remoteRecord.ULID.Time() > localRecord.ULID.Time()
			if remoteMoreRecent {
				if localLastModified != nil && localLastModified.After(localRecord.Timestamp) {
					cond = Conflict
				} else {
					cond = NeedsPull
				}
			} else {
				cond = Conflict
			}
		} else {
			if localRecord != nil {
				return errStatus(st, "local sync record exists, but remote path does not: local=%q remote=%q", localPath, remotePath)
			}
			cond = NeedsPush
		}
	case remoteExists:
		cond = Excluded
	default:
		// Neither side exists: synced by definition (common for CONF).
		cond = Synced
	}

	st.Condition = cond
	return &st, nil
}

func localPathExists(p string) (exists, isDir bool, err error) {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, info.IsDir(), nil
}

func dirIsEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// checkLastTimeModified returns the most recent mtime under path: the
// file's own mtime if path is a file, or the max mtime of any regular
// file beneath it if path is a directory. A nonexistent path, or an
// empty directory, yields (nil, nil) — "no modification evidence."
func checkLastTimeModified(p string) (*time.Time, error) {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		t := info.ModTime().UTC()
		return &t, nil
	}
	var maxMod time.Time
	found := false
	err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Tolerate permission errors mid-walk: skip and continue.
			return nil
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if m := info.ModTime().UTC(); !found || m.After(maxMod) {
				maxMod = m
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &maxMod, nil
}

func readLocalRecord(path string) (*model.SyncRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := model.UnmarshalSyncRecord(data)
	if err != nil {
		return nil, fmt.Errorf("local sync record %s: %w", path, err)
	}
	return rec, nil
}

func (e *Evaluator) readRemoteRecord(ctx context.Context, remote, path string) (*model.SyncRecord, error) {
	exists, data, err := e.RC.Cat(ctx, remote, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	rec, err := model.UnmarshalSyncRecord(data)
	if err != nil {
		return nil, fmt.Errorf("remote sync record %s:%s: %w", remote, path, err)
	}
	return rec, nil
}
