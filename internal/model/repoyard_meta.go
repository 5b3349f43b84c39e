package model

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/repoyard/repoyard/internal/config"
)

// RepoyardMeta is the global metadata index: every repo known to this
// machine's local store, across all storage locations.
type RepoyardMeta struct {
	RepoMetas []*RepoMeta
}

type repoyardMetaFile struct {
	CreationTimestampUTC string   `json:"creation_timestamp_utc"`
	RepoSubID            string   `json:"repo_subid"`
	Name                 string   `json:"name"`
	StorageLocation      string   `json:"storage_location"`
	CreatorHostname      string   `json:"creator_hostname"`
	Groups               []string `json:"groups"`
	Parents              []string `json:"parents,omitempty"`
}

func (r *RepoyardMeta) MarshalJSON() ([]byte, error) {
	files := make([]repoyardMetaFile, len(r.RepoMetas))
	for i, m := range r.RepoMetas {
		files[i] = repoyardMetaFile{
			CreationTimestampUTC: m.CreationTimestampUTC,
			RepoSubID:            m.RepoSubID,
			Name:                 m.Name,
			StorageLocation:      m.StorageLocation,
			CreatorHostname:      m.CreatorHostname,
			Groups:               m.Groups,
			Parents:              m.Parents,
		}
	}
	return json.Marshal(struct {
		RepoMetas []repoyardMetaFile `json:"repo_metas"`
	}{files})
}

func (r *RepoyardMeta) UnmarshalJSON(data []byte) error {
	var payload struct {
		RepoMetas []repoyardMetaFile `json:"repo_metas"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	r.RepoMetas = make([]*RepoMeta, len(payload.RepoMetas))
	for i, f := range payload.RepoMetas {
		r.RepoMetas[i] = &RepoMeta{
			CreationTimestampUTC: f.CreationTimestampUTC,
			RepoSubID:            f.RepoSubID,
			Name:                 f.Name,
			StorageLocation:      f.StorageLocation,
			CreatorHostname:      f.CreatorHostname,
			Groups:               f.Groups,
			Parents:              f.Parents,
		}
	}
	return nil
}

// ByIndexName indexes the metadata by index name.
func (r *RepoyardMeta) ByIndexName() map[string]*RepoMeta {
	out := make(map[string]*RepoMeta, len(r.RepoMetas))
	for _, m := range r.RepoMetas {
		out[m.IndexName()] = m
	}
	return out
}

// ByRepoID indexes the metadata by repo_id.
func (r *RepoyardMeta) ByRepoID() map[string]*RepoMeta {
	out := make(map[string]*RepoMeta, len(r.RepoMetas))
	for _, m := range r.RepoMetas {
		out[m.RepoID()] = m
	}
	return out
}

// ByStorageLocation groups the metadata by storage location, then index name.
func (r *RepoyardMeta) ByStorageLocation() map[string]map[string]*RepoMeta {
	out := make(map[string]map[string]*RepoMeta)
	for _, m := range r.RepoMetas {
		if out[m.StorageLocation] == nil {
			out[m.StorageLocation] = make(map[string]*RepoMeta)
		}
		out[m.StorageLocation][m.IndexName()] = m
	}
	return out
}

// CreateRepoyardMeta rescans every storage location's local store and
// rebuilds the aggregate metadata index in memory (does not write it).
func CreateRepoyardMeta(cfg *config.Config) (*RepoyardMeta, error) {
	var metas []*RepoMeta
	for slName := range cfg.StorageLocations {
		slPath := filepath.Join(cfg.LocalStorePath(), slName)
		entries, err := os.ReadDir(slPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, ent := range entries {
			if !ent.IsDir() {
				continue
			}
			m, err := LoadRepoMeta(cfg, slName, ent.Name())
			if err != nil {
				return nil, err
			}
			metas = append(metas, m)
		}
	}
	return &RepoyardMeta{RepoMetas: metas}, nil
}

// RefreshRepoyardMeta rebuilds and atomically writes the global metadata
// index. Callers are responsible for holding the global lock around this
// call.
func RefreshRepoyardMeta(cfg *config.Config) (*RepoyardMeta, error) {
	meta, err := CreateRepoyardMeta(cfg)
	if err != nil {
		return nil, err
	}
	buf, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := WriteFileAtomic(cfg.RepoyardMetaPath(), buf, 0o644); err != nil {
		return nil, err
	}
	return meta, nil
}

// GetRepoyardMeta reads the cached global metadata index, rebuilding it
// first if it is missing or forceCreate is set.
func GetRepoyardMeta(cfg *config.Config, forceCreate bool) (*RepoyardMeta, error) {
	if forceCreate {
		return RefreshRepoyardMeta(cfg)
	}
	data, err := os.ReadFile(cfg.RepoyardMetaPath())
	if os.IsNotExist(err) {
		return RefreshRepoyardMeta(cfg)
	}
	if err != nil {
		return nil, err
	}
	meta := &RepoyardMeta{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}
