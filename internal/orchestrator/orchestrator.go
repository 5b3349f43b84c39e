// Package orchestrator sequences a single repo's full sync: resolve its
// metadata, short-circuit local-only storage and tombstoned repos,
// resolve the (possibly renamed) remote index name, hold the per-repo
// sync lock, and sync META, then CONF, then DATA in that order. CONF's
// filter files must exist locally before DATA's sync can honor them.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	log "github.com/msolo/go-bis/glug"
	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rclone"
	"github.com/repoyard/repoyard/internal/remoteindex"
	"github.com/repoyard/repoyard/internal/rerr"
	"github.com/repoyard/repoyard/internal/softint"
	"github.com/repoyard/repoyard/internal/syncexec"
	"github.com/repoyard/repoyard/internal/syncstate"
	"github.com/repoyard/repoyard/internal/tombstone"
)

// Options configures one SyncRepo run.
type Options struct {
	Direction          *syncexec.Direction
	Setting            syncexec.Setting
	Parts              []model.RepoPart // nil means all three, in order
	ShowRcloneProgress bool
	SyncerHostname     string
	SkipLock           bool // caller already holds the repo's sync lock
}

// Result is keyed by part; a tombstoned repo returns a single synthetic
// entry per requested part with Condition == Tombstoned.
type Result map[model.RepoPart]*syncstate.Status

// Orchestrator runs full per-repo syncs against one config/rclone pairing.
type Orchestrator struct {
	Cfg   *config.Config
	RC    *rclone.Client
	Locks *lockmgr.Manager
	Exec  *syncexec.Executor
}

func New(cfg *config.Config, rc *rclone.Client) *Orchestrator {
	return &Orchestrator{
		Cfg:   cfg,
		RC:    rc,
		Locks: lockmgr.New(cfg.RepoyardDataPath),
		Exec:  syncexec.New(rc),
	}
}

func partsOrDefault(parts []model.RepoPart) []model.RepoPart {
	if len(parts) == 0 {
		return model.AllParts
	}
	return parts
}

// SyncRepo syncs one repo, identified by its local index_name.
func (o *Orchestrator) SyncRepo(ctx context.Context, repoIndexName string, opts Options) (Result, error) {
	parts := partsOrDefault(opts.Parts)

	meta, err := model.GetRepoyardMeta(o.Cfg, false)
	if err != nil {
		return nil, err
	}
	repoMeta, ok := meta.ByIndexName()[repoIndexName]
	if !ok {
		return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q not found", repoIndexName)}
	}

	sc, ok := repoMeta.GetStorageLocationConfig(o.Cfg)
	if !ok {
		return nil, &rerr.LifecycleConflict{Message: fmt.Sprintf("unknown storage location %q", repoMeta.StorageLocation)}
	}
	if sc.StorageType == config.StorageTypeLocal {
		// Local storage is already "the remote": nothing to transfer.
		return Result{}, nil
	}

	repoID, err := model.ExtractRepoID(repoIndexName)
	if err != nil {
		return nil, err
	}
	storageLocation := repoMeta.StorageLocation

	isTomb, err := tombstone.Exists(ctx, o.RC, o.Cfg, storageLocation, repoID)
	if err != nil {
		return nil, err
	}
	if isTomb {
		t, _ := tombstone.Get(ctx, o.RC, o.Cfg, storageLocation, repoID)
		msg := fmt.Sprintf("repo %q was deleted", repoIndexName)
		if t != nil {
			msg += fmt.Sprintf(" by %s at %s", t.DeletedByHostname, t.DeletedAtUTC)
		}
		log.Warningf("%s. skipping sync.", msg)
		result := Result{}
		for _, p := range parts {
			result[p] = &syncstate.Status{Condition: syncstate.Tombstoned}
		}
		return result, nil
	}

	remoteIndexName, found, err := remoteindex.Find(ctx, o.RC, o.Cfg, storageLocation, repoID)
	if err != nil {
		return nil, err
	}
	if !found {
		// Not yet known on the remote: this is a new repo, publish under
		// the local name.
		remoteIndexName = repoIndexName
	}

	var unlock func() error
	if !opts.SkipLock {
		unlock, err = o.Locks.RepoSync(repoIndexName, lockmgr.DefaultRepoSyncTimeout)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	log.Infof("syncing repo %s at %s", repoIndexName, storageLocation)

	if opts.ShowRcloneProgress {
		o.RC.ShowProgress = true
	}

	localBackups := o.Cfg.LocalSyncBackupsPath()
	remoteBackups := path.Join(sc.StorePath, model.SyncBackupsRelPath)

	result := Result{}
	for _, p := range parts {
		if softint.Check() {
			return result, &rerr.Interrupted{}
		}
		log.Infof("syncing %s", p)

		params := syncexec.Params{
			Direction:             opts.Direction,
			Setting:               opts.Setting,
			LocalPath:             repoMeta.GetLocalPartPath(o.Cfg, p),
			LocalSyncRecordPath:   repoMeta.GetLocalSyncRecordPath(o.Cfg, p),
			Remote:                sc.Remote,
			RemotePath:            remotePartPath(o.Cfg, sc.StorePath, remoteIndexName, p),
			RemoteSyncRecordPath:  remoteSyncRecordPath(sc.StorePath, remoteIndexName, p),
			LocalSyncBackupsPath:  localBackups,
			RemoteSyncBackupsPath: remoteBackups,
			SyncerHostname:        opts.SyncerHostname,
			DeleteBackup:          true,
		}
		params.SyncOpts.DryRun = false

		if p == model.PartData {
			confDir := repoMeta.GetLocalPartPath(o.Cfg, model.PartConf)
			params.SyncOpts = dataFilterOpts(confDir, o.Cfg.DefaultRcloneExclude)
		}

		status, _, err := o.Exec.Exec(ctx, params)
		if err != nil {
			return result, fmt.Errorf("syncing %s for %s: %w", p, repoIndexName, err)
		}
		result[p] = status
	}

	if err := remoteindex.Update(o.Cfg, storageLocation, repoID, remoteIndexName); err != nil {
		return result, err
	}

	if containsPart(parts, model.PartMeta) {
		if _, err := model.RefreshRepoyardMeta(o.Cfg); err != nil {
			return result, err
		}
	}

	return result, nil
}

func remotePartPath(cfg *config.Config, storePath, indexName string, part model.RepoPart) string {
	base := path.Join(storePath, model.RemoteReposRelPath, indexName)
	switch part {
	case model.PartData:
		return path.Join(base, model.RepoDataRelPath)
	case model.PartMeta:
		return path.Join(base, model.RepoMetaFile)
	case model.PartConf:
		return path.Join(base, model.RepoConfRelPath)
	default:
		panic("invalid repo part: " + part)
	}
}

func remoteSyncRecordPath(storePath, indexName string, part model.RepoPart) string {
	return path.Join(storePath, model.SyncRecordsRelPath, indexName, part.RecordFileName())
}

func containsPart(parts []model.RepoPart, want model.RepoPart) bool {
	for _, p := range parts {
		if p == want {
			return true
		}
	}
	return false
}

// dataFilterOpts builds DATA's rclone filters from CONF's now-locally-synced
// .rclone_include/.rclone_exclude/.rclone_filters files, falling back to the
// configured default exclude patterns when CONF carries no exclude file of
// its own.
func dataFilterOpts(confDir string, defaultExclude []string) rclone.SyncOpts {
	var opts rclone.SyncOpts
	if p := filepath.Join(confDir, ".rclone_include"); fileExists(p) {
		opts.IncludeFile = p
	}
	if p := filepath.Join(confDir, ".rclone_exclude"); fileExists(p) {
		opts.ExcludeFile = p
	} else {
		opts.Exclude = defaultExclude
	}
	if p := filepath.Join(confDir, ".rclone_filters"); fileExists(p) {
		opts.FiltersFile = p
	}
	return opts
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
