package lifecycle

import (
	"context"
	"fmt"
	"os"

	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/remoteindex"
	"github.com/repoyard/repoyard/internal/rerr"
	"github.com/repoyard/repoyard/internal/syncexec"
)

// ForcePushOpts configures ForcePush.
type ForcePushOpts struct {
	SourcePath string
	Force      bool // required confirmation flag; false always errors
}

// ForcePush overwrites a repo's remote DATA with the contents of an
// arbitrary local folder, bypassing the usual sync-condition safety
// checks (it runs the executor directly under syncexec.Force).
func (m *Manager) ForcePush(ctx context.Context, repoIndexName string, opts ForcePushOpts) error {
	if !opts.Force {
		return &rerr.LifecycleConflict{Message: "force_push is destructive; pass Force to confirm"}
	}
	info, err := os.Stat(opts.SourcePath)
	if err != nil {
		return fmt.Errorf("source path %q: %w", opts.SourcePath, err)
	}
	if !info.IsDir() {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("source path %q is not a directory", opts.SourcePath)}
	}

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist locally", repoIndexName)}
	}
	sc, ok := repoMeta.GetStorageLocationConfig(m.Cfg)
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("unknown storage location %q", repoMeta.StorageLocation)}
	}

	repoID := repoMeta.RepoID()
	remoteIndexName, found, err := remoteindex.Find(ctx, m.RC, m.Cfg, repoMeta.StorageLocation, repoID)
	if err != nil {
		return err
	}
	if !found {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q not found on remote storage %q", repoIndexName, repoMeta.StorageLocation)}
	}

	unlock, err := m.Locks.RepoSync(repoIndexName, lockmgr.DefaultRepoSyncTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	push := syncexec.Push
	params := syncexec.Params{
		Direction:             &push,
		Setting:               syncexec.Force,
		LocalPath:             opts.SourcePath,
		LocalSyncRecordPath:   repoMeta.GetLocalSyncRecordPath(m.Cfg, model.PartData),
		Remote:                sc.Remote,
		RemotePath:            remotePartPathFor(sc.StorePath, remoteIndexName, model.PartData),
		RemoteSyncRecordPath:  remoteSyncRecordPathFor(sc.StorePath, remoteIndexName, model.PartData),
		LocalSyncBackupsPath:  m.Cfg.LocalSyncBackupsPath(),
		RemoteSyncBackupsPath: remoteSyncBackupsPathFor(sc.StorePath),
		DeleteBackup:          true,
	}

	_, _, err = m.Exec.Exec(ctx, params)
	return err
}
