package lifecycle

import (
	"context"
	"fmt"
	"os"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/remoteindex"
	"github.com/repoyard/repoyard/internal/rerr"
	"github.com/repoyard/repoyard/internal/tombstone"
)

// Delete removes a repo entirely: writes a tombstone before touching the
// remote (so other machines observe the deletion rather than racing to
// recreate it), then purges local DATA+META+CONF, purges the remote
// tree, and drops the repo from the remote-index cache. A partial
// failure after the tombstone write is tolerable; the tombstone alone
// blocks any further sync.
func (m *Manager) Delete(ctx context.Context, repoIndexName string) error {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist", repoIndexName)}
	}

	unlock, err := m.Locks.RepoSync(repoIndexName, lockmgr.DefaultRepoSyncTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	repoID, err := model.ExtractRepoID(repoIndexName)
	if err != nil {
		return err
	}
	storageLocation := repoMeta.StorageLocation
	sc, ok := repoMeta.GetStorageLocationConfig(m.Cfg)
	remote := ok && sc.StorageType != config.StorageTypeLocal

	if remote {
		if _, err := tombstone.Create(ctx, m.RC, m.Cfg, storageLocation, repoID, repoMeta.Name); err != nil {
			return err
		}
	}

	dataPath := repoMeta.GetLocalPartPath(m.Cfg, model.PartData)
	if err := os.RemoveAll(dataPath); err != nil {
		return err
	}
	localPath := repoMeta.GetLocalPath(m.Cfg)
	if err := os.RemoveAll(localPath); err != nil {
		return err
	}

	if remote {
		if err := m.RC.Purge(ctx, sc.Remote, repoMeta.GetRemotePath(m.Cfg)); err != nil {
			return err
		}
	}

	if err := remoteindex.Remove(m.Cfg, storageLocation, repoID); err != nil {
		return err
	}

	_, err = model.RefreshRepoyardMeta(m.Cfg)
	return err
}
