package lifecycle

import (
	"context"
	"fmt"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/remoteindex"
	"github.com/repoyard/repoyard/internal/rerr"
)

// SyncNameDirection picks which side's name wins.
type SyncNameDirection string

const (
	SyncNameToLocal  SyncNameDirection = "to_local"
	SyncNameToRemote SyncNameDirection = "to_remote"
)

// SyncName reconciles a repo's local and remote names, renaming whichever
// side disagrees with the other. Returns the resulting local index name.
func (m *Manager) SyncName(ctx context.Context, repoIndexName string, direction SyncNameDirection) (string, error) {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return "", err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q not found", repoIndexName)}
	}
	sc, ok := repoMeta.GetStorageLocationConfig(m.Cfg)
	if !ok || sc.StorageType == config.StorageTypeLocal {
		return "", &rerr.LifecycleConflict{Message: "cannot sync name for local storage locations"}
	}

	repoID := repoMeta.RepoID()
	remoteIndexName, found, err := remoteindex.Find(ctx, m.RC, m.Cfg, repoMeta.StorageLocation, repoID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &rerr.LifecycleConflict{Message: fmt.Sprintf("remote repo not found for id %q, cannot sync name", repoID)}
	}
	_, remoteName, err := model.ParseIndexName(remoteIndexName)
	if err != nil {
		return "", err
	}
	localName := repoMeta.Name

	var sourceName string
	var scope RenameScope
	switch direction {
	case SyncNameToLocal:
		sourceName, scope = remoteName, RenameLocal
	case SyncNameToRemote:
		sourceName, scope = localName, RenameRemote
	default:
		return "", fmt.Errorf("invalid sync name direction: %s", direction)
	}

	if localName == remoteName {
		return repoIndexName, nil
	}
	return m.Rename(ctx, repoIndexName, sourceName, scope)
}
