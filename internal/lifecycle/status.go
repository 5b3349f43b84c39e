package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rerr"
	"github.com/repoyard/repoyard/internal/syncstate"
)

// PartStatus is one part's evaluated SyncCondition within a RepoStatus
// result.
type PartStatus struct {
	Part   model.RepoPart
	Status *syncstate.Status
}

// RepoStatus runs the sync-state evaluator for every part of one repo,
// without performing any sync.
func (m *Manager) RepoStatus(ctx context.Context, repoIndexName string) ([]PartStatus, error) {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return nil, err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist", repoIndexName)}
	}
	return m.evaluateRepo(ctx, repoMeta)
}

func (m *Manager) evaluateRepo(ctx context.Context, repoMeta *model.RepoMeta) ([]PartStatus, error) {
	sc, ok := repoMeta.GetStorageLocationConfig(m.Cfg)
	if !ok {
		return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("unknown storage location %q", repoMeta.StorageLocation)}
	}
	out := make([]PartStatus, 0, len(model.AllParts))
	for _, part := range model.AllParts {
		st, err := m.Eval.Evaluate(ctx,
			repoMeta.GetLocalPartPath(m.Cfg, part),
			repoMeta.GetLocalSyncRecordPath(m.Cfg, part),
			sc.Remote,
			repoMeta.GetRemotePartPath(m.Cfg, part),
			repoMeta.GetRemoteSyncRecordPath(m.Cfg, part),
		)
		if err != nil {
			return nil, err
		}
		out = append(out, PartStatus{Part: part, Status: st})
	}
	return out, nil
}

// YardStatusEntry pairs a repo with its evaluated part statuses.
type YardStatusEntry struct {
	IndexName string
	Parts     []PartStatus
}

// YardStatus runs RepoStatus for every repo under storageLocation and
// returns a condition histogram alongside the per-repo detail.
func (m *Manager) YardStatus(ctx context.Context, storageLocation string) ([]YardStatusEntry, map[syncstate.SyncCondition]int, error) {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return nil, nil, err
	}
	var entries []YardStatusEntry
	histogram := make(map[syncstate.SyncCondition]int)
	for _, rm := range yard.RepoMetas {
		if rm.StorageLocation != storageLocation {
			continue
		}
		parts, err := m.evaluateRepo(ctx, rm)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range parts {
			histogram[p.Status.Condition]++
		}
		entries = append(entries, YardStatusEntry{IndexName: rm.IndexName(), Parts: parts})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].IndexName < entries[j].IndexName })
	return entries, histogram, nil
}

// List returns every known repo's index name, sorted.
func (m *Manager) List() ([]string, error) {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(yard.RepoMetas))
	for _, rm := range yard.RepoMetas {
		names = append(names, rm.IndexName())
	}
	sort.Strings(names)
	return names, nil
}

// ListGroups returns every group name known from config plus any
// ad-hoc group tagged on a repo, each mapped to its sorted member index
// names.
func (m *Manager) ListGroups() (map[string][]string, error) {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for g := range m.Cfg.RepoGroups {
		out[g] = []string{}
	}
	for _, rm := range yard.RepoMetas {
		for _, g := range rm.Groups {
			out[g] = append(out[g], rm.IndexName())
		}
	}
	for g := range out {
		sort.Strings(out[g])
	}
	return out, nil
}
