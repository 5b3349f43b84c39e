package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/remoteindex"
	"github.com/repoyard/repoyard/internal/rerr"
)

// CopyOutOpts configures CopyOut.
type CopyOutOpts struct {
	DestPath  string
	CopyMeta  bool
	CopyConf  bool
	Overwrite bool
}

// CopyOut downloads a remote repo's DATA (and optionally META/CONF) to
// an arbitrary destination, without registering it as a tracked repo or
// writing any sync record. Destinations inside the managed data path or
// the user repos path are refused.
func (m *Manager) CopyOut(ctx context.Context, repoIndexName string, opts CopyOutOpts) (string, error) {
	destPath, err := filepath.Abs(opts.DestPath)
	if err != nil {
		return "", err
	}
	for _, guarded := range []string{m.Cfg.RepoyardDataPath, m.Cfg.UserReposPath} {
		guardedAbs, err := filepath.Abs(guarded)
		if err != nil {
			return "", err
		}
		if isWithin(destPath, guardedAbs) {
			return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("destination path %q is within a managed path %q", destPath, guardedAbs)}
		}
	}
	if _, err := os.Stat(destPath); err == nil && !opts.Overwrite {
		return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("destination path %q already exists; pass Overwrite to replace it", destPath)}
	}

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return "", err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist locally", repoIndexName)}
	}
	sc, ok := repoMeta.GetStorageLocationConfig(m.Cfg)
	if !ok {
		return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("unknown storage location %q", repoMeta.StorageLocation)}
	}

	repoID := repoMeta.RepoID()
	remoteIndexName, found, err := remoteindex.Find(ctx, m.RC, m.Cfg, repoMeta.StorageLocation, repoID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q not found on remote storage %q", repoIndexName, repoMeta.StorageLocation)}
	}

	if err := os.MkdirAll(destPath, 0o755); err != nil {
		return "", err
	}
	remoteDataPath := remotePartPathFor(sc.StorePath, remoteIndexName, model.PartData)
	if _, err := m.RC.Copy(ctx, sc.Remote, remoteDataPath, "", destPath); err != nil {
		return "", fmt.Errorf("copying data from remote: %w", err)
	}

	if opts.CopyMeta {
		remoteMetaPath := remotePartPathFor(sc.StorePath, remoteIndexName, model.PartMeta)
		destMetaPath := filepath.Join(destPath, model.RepoMetaFile)
		if err := m.RC.CopyTo(ctx, sc.Remote, remoteMetaPath, "", destMetaPath); err != nil {
			return "", fmt.Errorf("copying meta from remote: %w", err)
		}
	}
	if opts.CopyConf {
		remoteConfPath := remotePartPathFor(sc.StorePath, remoteIndexName, model.PartConf)
		destConfPath := filepath.Join(destPath, model.RepoConfRelPath)
		if err := os.MkdirAll(destConfPath, 0o755); err != nil {
			return "", err
		}
		if _, err := m.RC.Copy(ctx, sc.Remote, remoteConfPath, "", destConfPath); err != nil {
			return "", fmt.Errorf("copying conf from remote: %w", err)
		}
	}

	return destPath, nil
}

func isWithin(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
