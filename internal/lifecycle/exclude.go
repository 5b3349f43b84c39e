package lifecycle

import (
	"context"
	"fmt"
	"os"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/orchestrator"
	"github.com/repoyard/repoyard/internal/rerr"
	"github.com/repoyard/repoyard/internal/syncexec"
)

// ExcludeOpts configures Exclude.
type ExcludeOpts struct {
	SkipSync bool // skip the careful sync-up before removing local DATA
}

// Exclude removes a repo's local DATA (and its local DATA sync record),
// leaving META and CONF in place, after a careful sync to ensure no
// local-only changes are lost.
func (m *Manager) Exclude(ctx context.Context, repoIndexName string, opts ExcludeOpts) error {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist", repoIndexName)}
	}
	if !repoMeta.CheckIncluded(m.Cfg) {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q is already excluded", repoIndexName)}
	}
	sc, ok := repoMeta.GetStorageLocationConfig(m.Cfg)
	if ok && sc.StorageType == config.StorageTypeLocal {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q in local storage location %q cannot be excluded", repoIndexName, repoMeta.StorageLocation)}
	}

	unlock, err := m.Locks.RepoSync(repoIndexName, lockmgr.DefaultRepoSyncTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	if !opts.SkipSync {
		if _, err := m.Orch.SyncRepo(ctx, repoIndexName, orchestrator.Options{
			Setting:  syncexec.Careful,
			SkipLock: true,
		}); err != nil {
			return err
		}
	}

	dataPath := repoMeta.GetLocalPartPath(m.Cfg, model.PartData)
	if err := os.RemoveAll(dataPath); err != nil {
		return err
	}
	recordPath := repoMeta.GetLocalSyncRecordPath(m.Cfg, model.PartData)
	if err := os.Remove(recordPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
