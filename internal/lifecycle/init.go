package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"

	log "github.com/msolo/go-bis/glug"
	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/model"
)

// defaultRcloneConfig is the minimal scaffold written to RcloneConfigPath
// when that path is set and does not already exist: a commented-out example remote, so a
// freshly initialized machine has something to edit rather than an empty
// file.
const defaultRcloneConfig = `# rclone configuration used by repoyard.
# Add a [remote-name] section per storage location, e.g.:
#
# [my-remote]
# type = sftp
# host = example.com
# user = me
`

// Init materializes a fresh repoyard installation: a default config file
// (if none exists at configPath yet), the data directory tree, a default
// rclone config, and a symlink under local_store for every
// already-configured local-type storage location.
func Init(cfg *config.Config, configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Infof("creating config file at %s", configPath)
		buf, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		if err := model.WriteFileAtomic(configPath, buf, 0o644); err != nil {
			return err
		}
	}

	for _, dir := range []string{cfg.RepoyardDataPath, cfg.LocalStorePath(), cfg.UserReposPath, cfg.UserRepoGroupsPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if _, err := os.Stat(cfg.RcloneConfigPath); cfg.RcloneConfigPath != "" && os.IsNotExist(err) {
		log.Infof("creating rclone config file at %s", cfg.RcloneConfigPath)
		if err := os.MkdirAll(filepath.Dir(cfg.RcloneConfigPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(cfg.RcloneConfigPath, []byte(defaultRcloneConfig), 0o644); err != nil {
			return err
		}
	}

	for name, sc := range cfg.StorageLocations {
		if sc.StorageType != config.StorageTypeLocal {
			continue
		}
		if err := os.MkdirAll(sc.StorePath, 0o755); err != nil {
			return err
		}
		linkPath := filepath.Join(cfg.LocalStorePath(), name)
		if existing, err := os.Readlink(linkPath); err == nil && existing == sc.StorePath {
			continue
		}
		os.Remove(linkPath)
		if err := os.Symlink(sc.StorePath, linkPath); err != nil {
			return err
		}
	}

	return nil
}
