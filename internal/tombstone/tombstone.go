// Package tombstone implements deletion-propagation markers: when a repo
// is deleted, a small JSON marker is written to its storage location so
// other machines discover the deletion instead of treating the missing
// remote as something to recreate.
package tombstone

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rclone"
)

// Tombstone marks a deleted repo. Stored at
// {storage_location}:{store_path}/tombstones/{repo_id}.json.
type Tombstone struct {
	RepoID            string    `json:"repo_id"`
	DeletedAtUTC      time.Time `json:"deleted_at_utc"`
	DeletedByHostname string    `json:"deleted_by_hostname"`
	LastKnownName     string    `json:"last_known_name"`
}

func relPath(repoID string) string {
	return path.Join(model.TombstonesRelPath, repoID+".json")
}

// Create writes a tombstone for repoID on storageLocation's remote.
func Create(ctx context.Context, rc *rclone.Client, cfg *config.Config, storageLocation, repoID, lastKnownName string) (*Tombstone, error) {
	sc, ok := cfg.StorageLocations[storageLocation]
	if !ok {
		return nil, fmt.Errorf("unknown storage location %q", storageLocation)
	}
	t := &Tombstone{
		RepoID:            repoID,
		DeletedAtUTC:      time.Now().UTC(),
		DeletedByHostname: model.Hostname(),
		LastKnownName:     lastKnownName,
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	tombstonePath := path.Join(sc.StorePath, relPath(repoID))
	if err := rc.WriteFile(ctx, sc.Remote, tombstonePath, data); err != nil {
		return nil, err
	}
	return t, nil
}

// Exists reports whether repoID has been tombstoned on storageLocation.
func Exists(ctx context.Context, rc *rclone.Client, cfg *config.Config, storageLocation, repoID string) (bool, error) {
	sc, ok := cfg.StorageLocations[storageLocation]
	if !ok {
		return false, fmt.Errorf("unknown storage location %q", storageLocation)
	}
	exists, _, err := rc.Exists(ctx, sc.Remote, path.Join(sc.StorePath, relPath(repoID)))
	return exists, err
}

// Get reads the tombstone for repoID, if any.
func Get(ctx context.Context, rc *rclone.Client, cfg *config.Config, storageLocation, repoID string) (*Tombstone, error) {
	sc, ok := cfg.StorageLocations[storageLocation]
	if !ok {
		return nil, fmt.Errorf("unknown storage location %q", storageLocation)
	}
	exists, data, err := rc.Cat(ctx, sc.Remote, path.Join(sc.StorePath, relPath(repoID)))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	var t Tombstone
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("tombstone for %s: %w", repoID, err)
	}
	return &t, nil
}

// List returns every tombstone recorded on storageLocation.
func List(ctx context.Context, rc *rclone.Client, cfg *config.Config, storageLocation string) ([]*Tombstone, error) {
	sc, ok := cfg.StorageLocations[storageLocation]
	if !ok {
		return nil, fmt.Errorf("unknown storage location %q", storageLocation)
	}
	dir := path.Join(sc.StorePath, model.TombstonesRelPath)
	items, err := rc.LsJSON(ctx, sc.Remote, dir, rclone.LsJSONOpts{FilesOnly: true})
	if err != nil {
		return nil, err
	}
	var out []*Tombstone
	for _, it := range items {
		if it.IsDir || !strings.HasSuffix(it.Name, ".json") {
			continue
		}
		exists, data, err := rc.Cat(ctx, sc.Remote, path.Join(dir, it.Name))
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		var t Tombstone
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("tombstone file %s: %w", it.Name, err)
		}
		out = append(out, &t)
	}
	return out, nil
}

// Remove deletes the tombstone for repoID, allowing the ID to be reused.
// It is an error to remove a tombstone that does not exist — this is a
// deliberate recovery action, not an idempotent cleanup.
func Remove(ctx context.Context, rc *rclone.Client, cfg *config.Config, storageLocation, repoID string) error {
	sc, ok := cfg.StorageLocations[storageLocation]
	if !ok {
		return fmt.Errorf("unknown storage location %q", storageLocation)
	}
	p := path.Join(sc.StorePath, relPath(repoID))
	exists, _, err := rc.Exists(ctx, sc.Remote, p)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("no tombstone found for repo id %q", repoID)
	}
	return rc.Delete(ctx, sc.Remote, p)
}
