package lifecycle

import (
	"context"
	"fmt"

	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/remoteindex"
	"github.com/repoyard/repoyard/internal/scheduler"
)

// SyncMissingMeta discovers repos that exist on storageLocation's remote
// but have never been seen on this machine, and pulls down just enough
// (repometa.toml plus the META sync record) to make them visible in the
// local index without fetching DATA. It rebuilds the remote-index cache
// from a full scan, diffs it against the local index by repo_id, and
// pulls the missing repometa files under the bounded concurrency limit.
func (m *Manager) SyncMissingMeta(ctx context.Context, storageLocation string) ([]string, error) {
	sc, ok := m.Cfg.StorageLocations[storageLocation]
	if !ok {
		return nil, fmt.Errorf("unknown storage location %q", storageLocation)
	}

	unlockGlobal, err := m.Locks.Global(lockmgr.DefaultGlobalTimeout)
	if err != nil {
		return nil, err
	}
	defer unlockGlobal()

	remoteCache, err := remoteindex.Rebuild(ctx, m.RC, m.Cfg, storageLocation)
	if err != nil {
		return nil, err
	}

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(yard.RepoMetas))
	for _, rm := range yard.RepoMetas {
		known[rm.RepoID()] = true
	}

	var missing []struct{ repoID, indexName string }
	for repoID, indexName := range remoteCache {
		if !known[repoID] {
			missing = append(missing, struct{ repoID, indexName string }{repoID, indexName})
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	tasks := make([]scheduler.Task, len(missing))
	for i, miss := range missing {
		miss := miss
		tasks[i] = scheduler.Task{
			Name: miss.indexName,
			Fn: func(ctx context.Context) error {
				return m.pullMissingMeta(ctx, sc.Remote, sc.StorePath, storageLocation, miss.indexName)
			},
		}
	}
	results, err := scheduler.Run(ctx, m.Cfg.MaxConcurrentRcloneOps, tasks)
	if err != nil {
		return nil, err
	}

	var created []string
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("pulling meta for %s: %w", r.Name, r.Err)
			}
			continue
		}
		created = append(created, r.Name)
	}
	if firstErr != nil {
		return created, firstErr
	}

	if _, err := model.RefreshRepoyardMeta(m.Cfg); err != nil {
		return created, err
	}
	return created, nil
}

// pullMissingMeta downloads one repo's repometa.toml into its local META
// path (creating the enclosing local index directory) and its META sync
// record, without touching DATA or CONF.
func (m *Manager) pullMissingMeta(ctx context.Context, remote, storePath, storageLocation, remoteIndexName string) error {
	repoMeta, err := remoteRepoMetaStub(storageLocation, remoteIndexName)
	if err != nil {
		return err
	}

	localMetaPath := repoMeta.GetLocalPartPath(m.Cfg, model.PartMeta)
	remoteMetaPath := remotePartPathFor(storePath, remoteIndexName, model.PartMeta)
	if err := m.RC.CopyTo(ctx, remote, remoteMetaPath, "", localMetaPath); err != nil {
		return err
	}

	localRecordPath := repoMeta.GetLocalSyncRecordPath(m.Cfg, model.PartMeta)
	remoteRecordPath := remoteSyncRecordPathFor(storePath, remoteIndexName, model.PartMeta)
	exists, _, err := m.RC.Exists(ctx, remote, remoteRecordPath)
	if err != nil {
		return err
	}
	if exists {
		if err := m.RC.CopyTo(ctx, remote, remoteRecordPath, "", localRecordPath); err != nil {
			return err
		}
	}
	return nil
}

// remoteRepoMetaStub builds just enough of a RepoMeta to compute local
// path getters for a repo this machine has not loaded yet.
func remoteRepoMetaStub(storageLocation, remoteIndexName string) (*model.RepoMeta, error) {
	repoID, name, err := model.ParseIndexName(remoteIndexName)
	if err != nil {
		return nil, err
	}
	ts, subid, err := model.SplitRepoID(repoID)
	if err != nil {
		return nil, err
	}
	return &model.RepoMeta{
		CreationTimestampUTC: ts,
		RepoSubID:            subid,
		Name:                 name,
		StorageLocation:      storageLocation,
	}, nil
}
