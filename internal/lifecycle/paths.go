package lifecycle

import (
	"path"

	"github.com/repoyard/repoyard/internal/model"
)

// remotePartPathFor mirrors internal/orchestrator's unexported
// remotePartPath: the remote path for one part under a remote index
// name, used by operations (force-push, copy-out) that address a
// specific remote part directly rather than going through a full
// orchestrator.SyncRepo.
func remotePartPathFor(storePath, indexName string, part model.RepoPart) string {
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

func remoteSyncRecordPathFor(storePath, indexName string, part model.RepoPart) string {
	return path.Join(storePath, model.SyncRecordsRelPath, indexName, part.RecordFileName())
}

func remoteSyncBackupsPathFor(storePath string) string {
	return path.Join(storePath, model.SyncBackupsRelPath)
}
