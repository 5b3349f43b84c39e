// Package remoteindex caches the repo_id -> remote index_name mapping for
// each storage location, so looking up a repo's current remote name does
// not require a full remote directory scan on every sync. Advisory only:
// a stale or missing entry falls back to a scan; correctness never
// depends on the cache.
package remoteindex

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rclone"
)

func cachePath(cfg *config.Config, storageLocation string) string {
	return filepath.Join(cfg.RemoteIndexesPath(), storageLocation+".json")
}

// Load reads the cache for storageLocation. A missing or corrupt cache
// file yields an empty map, not an error — the cache is advisory.
func Load(cfg *config.Config, storageLocation string) map[string]string {
	data, err := os.ReadFile(cachePath(cfg, storageLocation))
	if err != nil {
		return map[string]string{}
	}
	var cache map[string]string
	if err := json.Unmarshal(data, &cache); err != nil {
		return map[string]string{}
	}
	if cache == nil {
		cache = map[string]string{}
	}
	return cache
}

// Save atomically writes the cache for storageLocation.
func Save(cfg *config.Config, storageLocation string, cache map[string]string) error {
	p := cachePath(cfg, storageLocation)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return model.WriteFileAtomic(p, data, 0o644)
}

// Update sets a single cache entry.
func Update(cfg *config.Config, storageLocation, repoID, indexName string) error {
	cache := Load(cfg, storageLocation)
	cache[repoID] = indexName
	return Save(cfg, storageLocation, cache)
}

// Remove deletes a single cache entry, if present.
func Remove(cfg *config.Config, storageLocation, repoID string) error {
	cache := Load(cfg, storageLocation)
	if _, ok := cache[repoID]; !ok {
		return nil
	}
	delete(cache, repoID)
	return Save(cfg, storageLocation, cache)
}

// Find resolves repoID to its current remote index_name on
// storageLocation: cache hit (verified live), else a full scan
// (refreshing the cache on a hit), else "not found".
func Find(ctx context.Context, rc *rclone.Client, cfg *config.Config, storageLocation, repoID string) (string, bool, error) {
	sc, ok := cfg.StorageLocations[storageLocation]
	if !ok {
		return "", false, nil
	}
	reposPath := path.Join(sc.StorePath, model.RemoteReposRelPath)

	cache := Load(cfg, storageLocation)
	if indexName, ok := cache[repoID]; ok {
		exists, _, err := rc.Exists(ctx, sc.Remote, path.Join(reposPath, indexName))
		if err != nil {
			return "", false, err
		}
		if exists {
			return indexName, true, nil
		}
		delete(cache, repoID)
		if err := Save(cfg, storageLocation, cache); err != nil {
			return "", false, err
		}
	}

	items, err := rc.LsJSON(ctx, sc.Remote, reposPath, rclone.LsJSONOpts{DirsOnly: true})
	if err != nil {
		return "", false, err
	}
	prefix := repoID + "__"
	for _, it := range items {
		if it.IsDir && strings.HasPrefix(it.Name, prefix) {
			cache[repoID] = it.Name
			if err := Save(cfg, storageLocation, cache); err != nil {
				return "", false, err
			}
			return it.Name, true, nil
		}
	}

	if _, ok := cache[repoID]; ok {
		delete(cache, repoID)
		if err := Save(cfg, storageLocation, cache); err != nil {
			return "", false, err
		}
	}
	return "", false, nil
}

// Rebuild discards the existing cache and rebuilds it from a full remote
// scan of storageLocation.
func Rebuild(ctx context.Context, rc *rclone.Client, cfg *config.Config, storageLocation string) (map[string]string, error) {
	sc, ok := cfg.StorageLocations[storageLocation]
	if !ok {
		return nil, nil
	}
	reposPath := path.Join(sc.StorePath, model.RemoteReposRelPath)
	items, err := rc.LsJSON(ctx, sc.Remote, reposPath, rclone.LsJSONOpts{DirsOnly: true})
	if err != nil {
		return nil, err
	}
	cache := map[string]string{}
	for _, it := range items {
		if !it.IsDir {
			continue
		}
		repoID, err := model.ExtractRepoID(it.Name)
		if err != nil {
			continue
		}
		cache[repoID] = it.Name
	}
	if err := Save(cfg, storageLocation, cache); err != nil {
		return nil, err
	}
	return cache, nil
}
