// Package model holds the on-disk data model: repo identity, repo
// metadata, the aggregate metadata index, and sync records.
package model

import "strings"

// On-disk layout constants, shared by the local data directory and every
// storage location's store path.
const (
	SyncRecordsRelPath   = "sync_records"
	RemoteReposRelPath   = "repos"
	SyncBackupsRelPath   = "sync_backups"
	TombstonesRelPath    = "tombstones"
	RemoteIndexesRelPath = "remote_indexes"
	LocksRelPath         = "locks"

	RepoDataRelPath = "data"
	RepoMetaFile    = "repometa.toml"
	RepoConfRelPath = "conf"

	RepoTimestampLayout         = "20060102_150405"
	RepoTimestampLayoutDateOnly = "20060102"

	DefaultRepoSubIDCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
	DefaultRepoSubIDLength  = 5

	DefaultMaxConcurrentRcloneOps = 3
)

// RepoPart names one of the three independently-synced slices of a repo.
type RepoPart string

const (
	PartData RepoPart = "data"
	PartMeta RepoPart = "meta"
	PartConf RepoPart = "conf"
)

// AllParts lists the three parts in the orchestrator's required sync order:
// META before CONF before DATA.
var AllParts = []RepoPart{PartMeta, PartConf, PartData}

func (p RepoPart) RecordFileName() string {
	return string(p) + ".rec"
}

// ValidGroupName enforces the allowed group-name character set:
// alphanumeric plus '_', '-', '/'.
func ValidGroupName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '/':
		default:
			return false
		}
	}
	return true
}

// splitIndexName splits "<repo_id>__<name>" on the first "__".
func splitIndexName(indexName string) (repoID, name string, ok bool) {
	i := strings.Index(indexName, "__")
	if i < 0 {
		return "", "", false
	}
	return indexName[:i], indexName[i+2:], true
}
