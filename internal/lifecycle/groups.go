package lifecycle

import (
	"context"
	"fmt"

	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rerr"
)

// AddToGroup tags a repo with a group, enforcing the group's unique-name
// rule before committing.
func (m *Manager) AddToGroup(ctx context.Context, repoIndexName, group string) error {
	if !model.ValidGroupName(group) {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("invalid group name %q", group)}
	}

	unlock, err := m.Locks.RepoSync(repoIndexName, lockmgr.DefaultRepoSyncTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist", repoIndexName)}
	}
	for _, g := range repoMeta.Groups {
		if g == group {
			return nil
		}
	}

	newGroups := append(append([]string{}, repoMeta.Groups...), group)
	if err := m.checkUniqueNamesAfterGroupChange(yard, repoMeta, newGroups); err != nil {
		return err
	}

	repoMeta.Groups = newGroups
	if err := repoMeta.Save(m.Cfg); err != nil {
		return err
	}
	_, err = model.RefreshRepoyardMeta(m.Cfg)
	return err
}

// RemoveFromGroup untags a repo from a group. A repo not currently in the
// group is a no-op.
func (m *Manager) RemoveFromGroup(ctx context.Context, repoIndexName, group string) error {
	unlock, err := m.Locks.RepoSync(repoIndexName, lockmgr.DefaultRepoSyncTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist", repoIndexName)}
	}

	newGroups := make([]string, 0, len(repoMeta.Groups))
	found := false
	for _, g := range repoMeta.Groups {
		if g == group {
			found = true
			continue
		}
		newGroups = append(newGroups, g)
	}
	if !found {
		return nil
	}

	repoMeta.Groups = newGroups
	if err := repoMeta.Save(m.Cfg); err != nil {
		return err
	}
	_, err = model.RefreshRepoyardMeta(m.Cfg)
	return err
}

// AddParent records parent as a parent repo_id of repoIndexName, rejecting
// the change if it would introduce a cycle in the parent graph, or if
// single_parent is configured and the repo already has one.
func (m *Manager) AddParent(ctx context.Context, repoIndexName, parentRepoID string) error {
	unlock, err := m.Locks.RepoSync(repoIndexName, lockmgr.DefaultRepoSyncTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist", repoIndexName)}
	}
	if m.Cfg.SingleParent && len(repoMeta.Parents) > 0 {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q already has a parent and single_parent is enabled", repoIndexName)}
	}
	for _, p := range repoMeta.Parents {
		if p == parentRepoID {
			return nil
		}
	}

	parents := make(map[string][]string, len(yard.RepoMetas))
	for _, rm := range yard.RepoMetas {
		parents[rm.RepoID()] = rm.Parents
	}
	if model.HasCycle(parents, repoMeta.RepoID(), parentRepoID) {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("adding parent %q to %q would introduce a cycle", parentRepoID, repoIndexName)}
	}

	repoMeta.Parents = append(repoMeta.Parents, parentRepoID)
	if err := repoMeta.Save(m.Cfg); err != nil {
		return err
	}
	_, err = model.RefreshRepoyardMeta(m.Cfg)
	return err
}

// checkUniqueNamesAfterGroupChange raises rerr.LifecycleConflict if the
// proposed group list would make repoMeta.Name collide with another
// member's name in a group configured with unique_repo_names.
func (m *Manager) checkUniqueNamesAfterGroupChange(yard *model.RepoyardMeta, repoMeta *model.RepoMeta, newGroups []string) error {
	for _, group := range newGroups {
		groupCfg, ok := m.Cfg.RepoGroups[group]
		if !ok || !groupCfg.UniqueRepoNames {
			continue
		}
		for _, other := range yard.RepoMetas {
			if other.RepoID() == repoMeta.RepoID() {
				continue
			}
			if other.Name != repoMeta.Name {
				continue
			}
			for _, og := range other.Groups {
				if og == group {
					return &rerr.LifecycleConflict{Message: fmt.Sprintf("group %q requires unique names; %q already used by %q", group, repoMeta.Name, other.IndexName())}
				}
			}
		}
	}
	return nil
}
