// Package config loads and represents the global repoyard configuration:
// storage locations, on-disk data paths, and the knobs that control repo
// ID generation and sync concurrency. The config file is JSONC, so it
// may carry comments.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/msolo/jsonc"
)

// StorageType tags a storage location's backing transport.
type StorageType string

const (
	StorageTypeRclone StorageType = "rclone"
	StorageTypeLocal  StorageType = "local"
)

// StorageConfig describes one named remote (or local alias).
type StorageConfig struct {
	StorageType StorageType `json:"storage_type"`
	// StorePath prefixes repos/, sync_records/, tombstones/, sync_backups/
	// under this storage location.
	StorePath string `json:"store_path"`
	// Remote is the rclone remote name (the part before ':' in an rclone
	// path spec); unused for local storage.
	Remote string `json:"remote,omitempty"`
}

// RepoTimestampFormat selects how generate-time repo IDs are formatted.
type RepoTimestampFormat string

const (
	RepoTimestampDateAndTime RepoTimestampFormat = "date_and_time"
	RepoTimestampDateOnly    RepoTimestampFormat = "date_only"
)

// RepoGroupTitleMode selects how a group's members are titled in their
// symlink view.
type RepoGroupTitleMode string

const (
	RepoTitleIndexName       RepoGroupTitleMode = "index_name"
	RepoTitleDatetimeAndName RepoGroupTitleMode = "datetime_and_name"
	RepoTitleName            RepoGroupTitleMode = "name"
)

// RepoGroupConfig configures how a named group's members present as
// symlinks under UserRepoGroupsPath. The filter-expression language for
// virtual groups lives outside this module; only the mechanical
// symlink-emission step is configured here.
type RepoGroupConfig struct {
	SymlinkName     string             `json:"symlink_name,omitempty"`
	RepoTitleMode   RepoGroupTitleMode `json:"repo_title_mode,omitempty"`
	UniqueRepoNames bool               `json:"unique_repo_names,omitempty"`
}

// Config is the top-level repoyard configuration.
type Config struct {
	RepoyardDataPath   string `json:"repoyard_data_path"`
	UserReposPath      string `json:"user_repos_path"`
	UserRepoGroupsPath string `json:"user_repo_groups_path"`
	RcloneConfigPath   string `json:"rclone_config_path"`

	StorageLocations map[string]StorageConfig   `json:"storage_locations"`
	RepoGroups       map[string]RepoGroupConfig `json:"repo_groups"`

	RepoTimestampFormat    RepoTimestampFormat `json:"repo_timestamp_format"`
	RepoSubIDCharacterSet  string              `json:"repo_subid_character_set"`
	RepoSubIDLength        int                 `json:"repo_subid_length"`
	MaxConcurrentRcloneOps int                 `json:"max_concurrent_rclone_ops"`
	SingleParent           bool                `json:"single_parent"`
	DefaultRcloneExclude   []string            `json:"default_rclone_exclude"`
	// SyncBeforeNewRepo makes repo creation scan the storage location's
	// remote (repos directory plus tombstones) first, so a freshly
	// generated repo_id cannot collide with one that exists only remotely.
	SyncBeforeNewRepo bool `json:"sync_before_new_repo"`

	GlobalLockTimeoutSec   int `json:"global_lock_timeout_sec"`
	RepoSyncLockTimeoutSec int `json:"repo_sync_lock_timeout_sec"`
}

// LocalStorePath is <data>/local_store.
func (c *Config) LocalStorePath() string {
	return filepath.Join(c.RepoyardDataPath, "local_store")
}

// RepoyardMetaPath is the global metadata index file.
func (c *Config) RepoyardMetaPath() string {
	return filepath.Join(c.RepoyardDataPath, "repoyard_meta.json")
}

// RemoteIndexesPath is <data>/remote_indexes.
func (c *Config) RemoteIndexesPath() string {
	return filepath.Join(c.RepoyardDataPath, "remote_indexes")
}

// LocalSyncBackupsPath is <data>/sync_backups, the staging area for
// backup-dir contents displaced by a PULL.
func (c *Config) LocalSyncBackupsPath() string {
	return filepath.Join(c.RepoyardDataPath, "sync_backups")
}

const (
	envConfigPath    = "REPOYARD_CONFIG_PATH"
	envDefaultGroups = "REPOYARD_DEFAULT_GROUPS"
)

// DefaultConfigPath returns $REPOYARD_CONFIG_PATH, or ~/.config/repoyard/config.jsonc.
func DefaultConfigPath() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "repoyard", "config.jsonc")
}

func defaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		RepoyardDataPath:       filepath.Join(home, ".repoyard"),
		UserReposPath:          filepath.Join(home, "repos"),
		UserRepoGroupsPath:     filepath.Join(home, "repo-groups"),
		RcloneConfigPath:       filepath.Join(home, ".config", "repoyard", "rclone.conf"),
		StorageLocations:       map[string]StorageConfig{},
		RepoGroups:             map[string]RepoGroupConfig{},
		RepoTimestampFormat:    RepoTimestampDateAndTime,
		RepoSubIDCharacterSet:  "abcdefghijklmnopqrstuvwxyz0123456789",
		RepoSubIDLength:        5,
		MaxConcurrentRcloneOps: 3,
		SingleParent:           false,
		DefaultRcloneExclude: []string{
			".venv/", ".pixi/", ".trunk/", "node_modules/", "__pycache__/", ".DS_Store",
		},
		SyncBeforeNewRepo:      false,
		GlobalLockTimeoutSec:   30,
		RepoSyncLockTimeoutSec: 600,
	}
}

// Load decodes a JSONC config file over the defaults. A missing file is
// not an error; it yields the bare defaults (an empty StorageLocations
// map).
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := jsonc.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if cfg.RepoSubIDCharacterSet == "" {
		cfg.RepoSubIDCharacterSet = "abcdefghijklmnopqrstuvwxyz0123456789"
	}
	if cfg.RepoSubIDLength == 0 {
		cfg.RepoSubIDLength = 5
	}
	if cfg.MaxConcurrentRcloneOps == 0 {
		cfg.MaxConcurrentRcloneOps = 3
	}
	if cfg.GlobalLockTimeoutSec == 0 {
		cfg.GlobalLockTimeoutSec = 30
	}
	if cfg.RepoSyncLockTimeoutSec == 0 {
		cfg.RepoSyncLockTimeoutSec = 600
	}
	return cfg, nil
}

// DefaultGroupsFromEnv returns the caller's default group list override,
// if REPOYARD_DEFAULT_GROUPS is set (comma-separated).
func DefaultGroupsFromEnv() []string {
	val := os.Getenv(envDefaultGroups)
	if val == "" {
		return nil
	}
	groups := []string{}
	start := 0
	for i := 0; i <= len(val); i++ {
		if i == len(val) || val[i] == ',' {
			if i > start {
				groups = append(groups, val[start:i])
			}
			start = i + 1
		}
	}
	return groups
}
