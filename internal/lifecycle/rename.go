package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/remoteindex"
	"github.com/repoyard/repoyard/internal/rerr"
)

// RenameScope selects which side(s) of a repo a Rename touches. The
// repo_id never changes; only the mutable <name> half of the index name
// moves. A LOCAL-only rename leaves the remote side resolvable under its
// old name via the remote-index cache, and vice versa.
type RenameScope string

const (
	RenameLocal  RenameScope = "local"
	RenameRemote RenameScope = "remote"
	RenameBoth   RenameScope = "both"
)

// Rename changes a repo's display name on the requested scope(s),
// returning the resulting local index name (unchanged if only the
// remote side was renamed).
func (m *Manager) Rename(ctx context.Context, repoIndexName, newName string, scope RenameScope) (string, error) {
	if newName == "" {
		return "", &rerr.LifecycleConflict{Message: "new name must not be empty"}
	}

	unlock, err := m.Locks.RepoSync(repoIndexName, lockmgr.DefaultRepoSyncTimeout)
	if err != nil {
		return "", err
	}
	defer unlock()

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return "", err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist", repoIndexName)}
	}

	resultIndexName := repoIndexName

	if scope == RenameRemote || scope == RenameBoth {
		if err := m.renameRemote(ctx, repoMeta, newName); err != nil {
			return "", err
		}
	}

	if scope == RenameLocal || scope == RenameBoth {
		renamed, err := m.renameLocal(repoMeta, newName)
		if err != nil {
			return "", err
		}
		resultIndexName = renamed
	}

	if _, err := model.RefreshRepoyardMeta(m.Cfg); err != nil {
		return "", err
	}
	return resultIndexName, nil
}

// renameLocal moves the local index directory and rewrites the embedded
// name in repometa.toml.
func (m *Manager) renameLocal(repoMeta *model.RepoMeta, newName string) (string, error) {
	oldLocalPath := repoMeta.GetLocalPath(m.Cfg)
	oldDataPath := repoMeta.GetLocalPartPath(m.Cfg, model.PartData)
	oldRecordsPath := filepath.Join(m.Cfg.RepoyardDataPath, model.SyncRecordsRelPath, repoMeta.IndexName())
	oldIndexName := repoMeta.IndexName()

	repoMeta.Name = newName
	newIndexName := repoMeta.IndexName()
	newLocalPath := repoMeta.GetLocalPath(m.Cfg)
	newDataPath := repoMeta.GetLocalPartPath(m.Cfg, model.PartData)
	newRecordsPath := filepath.Join(m.Cfg.RepoyardDataPath, model.SyncRecordsRelPath, newIndexName)

	if oldIndexName == newIndexName {
		return newIndexName, nil
	}

	if err := os.MkdirAll(filepath.Dir(newLocalPath), 0o755); err != nil {
		return "", err
	}
	if _, err := os.Stat(oldLocalPath); err == nil {
		if err := os.Rename(oldLocalPath, newLocalPath); err != nil {
			return "", err
		}
	}
	if _, err := os.Stat(oldDataPath); err == nil {
		if err := os.MkdirAll(filepath.Dir(newDataPath), 0o755); err != nil {
			return "", err
		}
		if err := os.Rename(oldDataPath, newDataPath); err != nil {
			return "", err
		}
	}
	if _, err := os.Stat(oldRecordsPath); err == nil {
		if err := os.MkdirAll(filepath.Dir(newRecordsPath), 0o755); err != nil {
			return "", err
		}
		if err := os.Rename(oldRecordsPath, newRecordsPath); err != nil {
			return "", err
		}
	}
	return newIndexName, repoMeta.Save(m.Cfg)
}

// renameRemote moves the remote repo's "repos/<old>" directory (plus its
// sync-record and backup trees) to "repos/<new>" and refreshes the
// remote-index cache, leaving repo_id untouched.
func (m *Manager) renameRemote(ctx context.Context, repoMeta *model.RepoMeta, newName string) error {
	sc, ok := repoMeta.GetStorageLocationConfig(m.Cfg)
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("unknown storage location %q", repoMeta.StorageLocation)}
	}
	if sc.StorageType == config.StorageTypeLocal {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo in local storage location %q cannot be renamed on remote", repoMeta.StorageLocation)}
	}

	repoID := repoMeta.RepoID()
	oldRemoteIndexName, found, err := remoteindex.Find(ctx, m.RC, m.Cfg, repoMeta.StorageLocation, repoID)
	if err != nil {
		return err
	}
	if !found {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("remote repo not found for id %q", repoID)}
	}
	newRemoteIndexName := repoID + "__" + newName
	if oldRemoteIndexName == newRemoteIndexName {
		return nil
	}

	reposBase := filepath.ToSlash(filepath.Join(sc.StorePath, model.RemoteReposRelPath))
	recordsBase := filepath.ToSlash(filepath.Join(sc.StorePath, model.SyncRecordsRelPath))
	backupsBase := filepath.ToSlash(filepath.Join(sc.StorePath, model.SyncBackupsRelPath))

	for _, base := range []string{reposBase, recordsBase, backupsBase} {
		exists, _, err := m.RC.Exists(ctx, sc.Remote, filepath.ToSlash(filepath.Join(base, oldRemoteIndexName)))
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if _, err := m.RC.Copy(ctx, sc.Remote, filepath.ToSlash(filepath.Join(base, oldRemoteIndexName)), sc.Remote, filepath.ToSlash(filepath.Join(base, newRemoteIndexName))); err != nil {
			return fmt.Errorf("renaming remote path %s -> %s: %w", oldRemoteIndexName, newRemoteIndexName, err)
		}
		if err := m.RC.Purge(ctx, sc.Remote, filepath.ToSlash(filepath.Join(base, oldRemoteIndexName))); err != nil {
			return err
		}
	}

	return remoteindex.Update(m.Cfg, repoMeta.StorageLocation, repoID, newRemoteIndexName)
}
