package lifecycle

import (
	"context"
	"fmt"

	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/orchestrator"
	"github.com/repoyard/repoyard/internal/scheduler"
	"github.com/repoyard/repoyard/internal/syncexec"
)

// MultiSyncOpts selects which repos MultiSync syncs.
type MultiSyncOpts struct {
	StorageLocation string // empty means every storage location
	Group           string // empty means every group
	IncludedOnly    bool   // skip repos not included locally
}

// MultiSyncResult reports one repo's outcome within a MultiSync call.
type MultiSyncResult struct {
	IndexName string
	Err       error
}

// MultiSync fans a sync out across every repo MultiSyncOpts selects,
// bounded by config.MaxConcurrentRcloneOps, collecting every repo's
// outcome rather than aborting the batch on the first failure.
func (m *Manager) MultiSync(ctx context.Context, opts MultiSyncOpts) ([]MultiSyncResult, error) {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return nil, err
	}

	var selected []*model.RepoMeta
	for _, rm := range yard.RepoMetas {
		if opts.StorageLocation != "" && rm.StorageLocation != opts.StorageLocation {
			continue
		}
		if opts.Group != "" && !hasGroup(rm, opts.Group) {
			continue
		}
		if opts.IncludedOnly && !rm.CheckIncluded(m.Cfg) {
			continue
		}
		selected = append(selected, rm)
	}

	tasks := make([]scheduler.Task, len(selected))
	for i, rm := range selected {
		indexName := rm.IndexName()
		tasks[i] = scheduler.Task{
			Name: indexName,
			Fn: func(ctx context.Context) error {
				_, err := m.Orch.SyncRepo(ctx, indexName, orchestrator.Options{Setting: syncexec.Careful})
				return err
			},
		}
	}

	results, _ := scheduler.Run(ctx, m.Cfg.MaxConcurrentRcloneOps, tasks)

	out := make([]MultiSyncResult, len(results))
	var firstErr error
	for i, r := range results {
		out[i] = MultiSyncResult{IndexName: r.Name, Err: r.Err}
		if r.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("syncing %s: %w", r.Name, r.Err)
		}
	}
	return out, firstErr
}

func hasGroup(rm *model.RepoMeta, group string) bool {
	for _, g := range rm.Groups {
		if g == group {
			return true
		}
	}
	return false
}
