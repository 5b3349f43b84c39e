package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/msolo/go-bis/glug"
	"github.com/repoyard/repoyard/internal/gitinit"
	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/remoteindex"
	"github.com/repoyard/repoyard/internal/rerr"
	"github.com/repoyard/repoyard/internal/tombstone"
)

// CreateOpts configures a Create call.
type CreateOpts struct {
	StorageLocation string
	RepoName        string
	FromPath        string // a local path or a git URL
	CopyFromPath    bool   // copy rather than move a local FromPath
	CreatorHostname string
	InitGit         bool
	Groups          []string
	// SyncBeforeCreate forces the remote ID-collision scan for this call,
	// regardless of config.SyncBeforeNewRepo.
	SyncBeforeCreate bool
}

func isGitURL(p string) bool {
	return strings.HasPrefix(p, "git@") ||
		strings.HasPrefix(p, "http://") ||
		strings.HasPrefix(p, "https://") ||
		strings.HasPrefix(p, "ssh://") ||
		strings.HasSuffix(p, ".git")
}

// Create materializes a new repo: a repometa.toml, an empty conf
// directory with a default .rclone_exclude, and data sourced from
// scratch, a local path, or a git clone. It returns the new repo's
// index name.
func (m *Manager) Create(ctx context.Context, opts CreateOpts) (string, error) {
	storageLocation := opts.StorageLocation
	if storageLocation == "" {
		return "", &rerr.LifecycleConflict{Message: "storage location must be specified"}
	}
	if _, ok := m.Cfg.StorageLocations[storageLocation]; !ok {
		return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("unknown storage location %q", storageLocation)}
	}

	repoName := opts.RepoName
	fromPath := opts.FromPath
	if repoName == "" && fromPath == "" {
		return "", &rerr.LifecycleConflict{Message: "either repo name or source path must be provided"}
	}
	fromIsGit := fromPath != "" && isGitURL(fromPath)
	if repoName == "" {
		if fromIsGit {
			repoName = gitinit.NameFromURL(fromPath)
		} else {
			repoName = filepath.Base(filepath.Clean(fromPath))
		}
	}
	if opts.CopyFromPath && (fromPath == "" || fromIsGit) {
		return "", &rerr.LifecycleConflict{Message: "copy_from_path requires a local source path"}
	}

	creatorHostname := opts.CreatorHostname
	if creatorHostname == "" {
		creatorHostname = model.Hostname()
	}

	unlockGlobal, err := m.Locks.Global(lockmgr.DefaultGlobalTimeout)
	if err != nil {
		return "", err
	}
	defer unlockGlobal()

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return "", err
	}
	existingIDs := make(map[string]bool, len(yard.RepoMetas))
	for _, rm := range yard.RepoMetas {
		existingIDs[rm.RepoID()] = true
	}
	if opts.SyncBeforeCreate || m.Cfg.SyncBeforeNewRepo {
		if err := m.mergeRemoteRepoIDs(ctx, storageLocation, existingIDs); err != nil {
			return "", err
		}
	}

	repoMeta, err := model.NewRepoMeta(m.Cfg, existingIDs, repoName, storageLocation, creatorHostname, opts.Groups)
	if err != nil {
		return "", err
	}

	dataPath := repoMeta.GetLocalPartPath(m.Cfg, model.PartData)
	confPath := repoMeta.GetLocalPartPath(m.Cfg, model.PartConf)
	if err := os.MkdirAll(confPath, 0o755); err != nil {
		return "", err
	}

	switch {
	case fromPath == "":
		if err := os.MkdirAll(dataPath, 0o755); err != nil {
			return "", err
		}
	case fromIsGit:
		if err := gitinit.Clone(ctx, fromPath, dataPath); err != nil {
			return "", err
		}
	case opts.CopyFromPath:
		if err := copyTree(fromPath, dataPath); err != nil {
			return "", err
		}
	default:
		if err := os.Rename(fromPath, dataPath); err != nil {
			return "", err
		}
	}

	if err := writeDefaultExclude(confPath, m.Cfg.DefaultRcloneExclude); err != nil {
		return "", err
	}

	if opts.InitGit {
		if _, statErr := os.Stat(filepath.Join(dataPath, ".git")); os.IsNotExist(statErr) {
			if err := gitinit.Init(ctx, dataPath); err != nil {
				log.Warningf("failed to initialise git repository for %s: %v", repoMeta.IndexName(), err)
			}
		}
	}

	if err := repoMeta.Save(m.Cfg); err != nil {
		return "", err
	}
	if _, err := model.RefreshRepoyardMeta(m.Cfg); err != nil {
		return "", err
	}

	return repoMeta.IndexName(), nil
}

// mergeRemoteRepoIDs adds every repo_id visible on storageLocation's
// remote to ids: the repos directory (via a remote-index rebuild, the
// same scan SyncMissingMeta runs) plus the tombstones directory, since a
// deleted repo's id must stay retired rather than be minted again.
func (m *Manager) mergeRemoteRepoIDs(ctx context.Context, storageLocation string, ids map[string]bool) error {
	cache, err := remoteindex.Rebuild(ctx, m.RC, m.Cfg, storageLocation)
	if err != nil {
		return fmt.Errorf("scanning %s for repo ids: %w", storageLocation, err)
	}
	for repoID := range cache {
		ids[repoID] = true
	}
	tombs, err := tombstone.List(ctx, m.RC, m.Cfg, storageLocation)
	if err != nil {
		return fmt.Errorf("scanning %s tombstones: %w", storageLocation, err)
	}
	for _, t := range tombs {
		ids[t.RepoID] = true
	}
	return nil
}

// writeDefaultExclude seeds CONF's .rclone_exclude with the configured
// default patterns, the filename internal/orchestrator's DATA filter
// lookup reads.
func writeDefaultExclude(confPath string, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	content := strings.Join(patterns, "\n") + "\n"
	return os.WriteFile(filepath.Join(confPath, ".rclone_exclude"), []byte(content), 0o644)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
