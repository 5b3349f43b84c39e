package model

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/repoyard/repoyard/internal/config"
)

// RepoMeta is the in-memory form of a repo's metadata. Fields tagged
// `toml` are the ones persisted in repometa.toml; CreationTimestampUTC,
// RepoSubID, and Name are reconstructed from the enclosing index name.
type RepoMeta struct {
	CreationTimestampUTC string `toml:"-"`
	RepoSubID            string `toml:"-"`
	Name                 string `toml:"-"`

	StorageLocation string   `toml:"storage_location"`
	CreatorHostname string   `toml:"creator_hostname"`
	Groups          []string `toml:"groups"`
	Parents         []string `toml:"parents,omitempty"`
}

// repoMetaFile is the TOML-serialized subset of RepoMeta (the fields that
// are not reconstructed from the directory name).
type repoMetaFile struct {
	StorageLocation string   `toml:"storage_location"`
	CreatorHostname string   `toml:"creator_hostname"`
	Groups          []string `toml:"groups"`
	Parents         []string `toml:"parents,omitempty"`
}

// RepoID is the immutable "<timestamp>_<subid>" identity.
func (m *RepoMeta) RepoID() string {
	return m.CreationTimestampUTC + "_" + m.RepoSubID
}

// IndexName is the mutable "<repo_id>__<name>" directory name.
func (m *RepoMeta) IndexName() string {
	return m.RepoID() + "__" + m.Name
}

// ParseIndexName splits "<repo_id>__<name>" into its two components.
func ParseIndexName(indexName string) (repoID, name string, err error) {
	repoID, name, ok := splitIndexName(indexName)
	if !ok {
		return "", "", fmt.Errorf("invalid index_name format: %q", indexName)
	}
	return repoID, name, nil
}

// ExtractRepoID returns just the repo_id portion of an index name.
func ExtractRepoID(indexName string) (string, error) {
	repoID, _, err := ParseIndexName(indexName)
	return repoID, err
}

// SplitRepoID recovers the creation-timestamp and subid components from
// a repo_id, for callers that need to build a RepoMeta stub without a
// repometa.toml on disk yet (e.g. a repo discovered only on remote).
func SplitRepoID(repoID string) (timestamp, subid string, err error) {
	return timestampFromRepoID(repoID)
}

// timestampFromRepoID recovers the creation-timestamp and subid
// components from a repo_id, which has either two or three
// underscore-separated parts (date, or date_time, then the subid).
func timestampFromRepoID(repoID string) (timestamp, subid string, err error) {
	parts := splitOnUnderscore(repoID)
	switch len(parts) {
	case 2:
		return parts[0], parts[1], nil
	case 3:
		return parts[0] + "_" + parts[1], parts[2], nil
	default:
		return "", "", fmt.Errorf("invalid repo id: %q", repoID)
	}
}

func splitOnUnderscore(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// randomSubID draws a repo_subid of length chars from charset using
// crypto/rand; repo identity should never depend on a seedable PRNG.
func randomSubID(charset string, length int) (string, error) {
	if charset == "" || length <= 0 {
		return "", fmt.Errorf("invalid subid charset/length")
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}

func formatTimestamp(cfg *config.Config, now time.Time) string {
	if cfg.RepoTimestampFormat == config.RepoTimestampDateOnly {
		return now.UTC().Format(RepoTimestampLayoutDateOnly)
	}
	return now.UTC().Format(RepoTimestampLayout)
}

// GenerateUniqueRepoID generates a repo_id not present in existingIDs,
// retrying on collision up to maxAttempts times.
func GenerateUniqueRepoID(cfg *config.Config, existingIDs map[string]bool, maxAttempts int) (timestamp, subid string, err error) {
	if maxAttempts <= 0 {
		maxAttempts = 100
	}
	charset := cfg.RepoSubIDCharacterSet
	if charset == "" {
		charset = DefaultRepoSubIDCharset
	}
	length := cfg.RepoSubIDLength
	if length <= 0 {
		length = DefaultRepoSubIDLength
	}
	now := time.Now()
	for i := 0; i < maxAttempts; i++ {
		ts := formatTimestamp(cfg, now)
		sub, err := randomSubID(charset, length)
		if err != nil {
			return "", "", err
		}
		repoID := ts + "_" + sub
		if !existingIDs[repoID] {
			return ts, sub, nil
		}
	}
	return "", "", fmt.Errorf("failed to generate unique repo ID after %d attempts", maxAttempts)
}

// NewRepoMeta constructs a fresh RepoMeta with a newly generated repo_id.
func NewRepoMeta(cfg *config.Config, existingIDs map[string]bool, name, storageLocation, creatorHostname string, groups []string) (*RepoMeta, error) {
	ts, subid, err := GenerateUniqueRepoID(cfg, existingIDs, 100)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []string{}
	}
	return &RepoMeta{
		CreationTimestampUTC: ts,
		RepoSubID:            subid,
		Name:                 name,
		StorageLocation:      storageLocation,
		CreatorHostname:      creatorHostname,
		Groups:               groups,
	}, nil
}

// CreationTime parses CreationTimestampUTC back into a time.Time.
func (m *RepoMeta) CreationTime() (time.Time, error) {
	if len(m.CreationTimestampUTC) == len(RepoTimestampLayout) {
		return time.Parse(RepoTimestampLayout, m.CreationTimestampUTC)
	}
	return time.Parse(RepoTimestampLayoutDateOnly, m.CreationTimestampUTC)
}

// Validate checks the invariants RepoMeta must satisfy: unique, valid
// group names, and a parseable creation timestamp.
func (m *RepoMeta) Validate() error {
	seen := make(map[string]bool, len(m.Groups))
	for _, g := range m.Groups {
		if seen[g] {
			return fmt.Errorf("groups must be unique, duplicate: %q", g)
		}
		seen[g] = true
		if !ValidGroupName(g) {
			return fmt.Errorf("invalid group name %q: allowed characters are alphanumeric, '_', '-', '/'", g)
		}
	}
	if _, err := m.CreationTime(); err != nil {
		return fmt.Errorf("invalid creation timestamp %q: %w", m.CreationTimestampUTC, err)
	}
	return nil
}

func (m *RepoMeta) GetStorageLocationConfig(cfg *config.Config) (config.StorageConfig, bool) {
	sc, ok := cfg.StorageLocations[m.StorageLocation]
	return sc, ok
}

// GetRemotePath is "<store_path>/repos/<index_name>" under this repo's
// storage location.
func (m *RepoMeta) GetRemotePath(cfg *config.Config) string {
	sc := cfg.StorageLocations[m.StorageLocation]
	return filepath.ToSlash(filepath.Join(sc.StorePath, RemoteReposRelPath, m.IndexName()))
}

// GetLocalPath is "<data>/local_store/<storage_location>/<index_name>".
func (m *RepoMeta) GetLocalPath(cfg *config.Config) string {
	return filepath.Join(cfg.LocalStorePath(), m.StorageLocation, m.IndexName())
}

// GetRemotePartPath returns the remote path for the given part.
func (m *RepoMeta) GetRemotePartPath(cfg *config.Config, part RepoPart) string {
	base := m.GetRemotePath(cfg)
	switch part {
	case PartData:
		return filepath.ToSlash(filepath.Join(base, RepoDataRelPath))
	case PartMeta:
		return filepath.ToSlash(filepath.Join(base, RepoMetaFile))
	case PartConf:
		return filepath.ToSlash(filepath.Join(base, RepoConfRelPath))
	default:
		panic("invalid repo part: " + part)
	}
}

// GetLocalPartPath returns the local path for the given part. DATA lives
// under the user repos path (so it is reachable directly, and via
// symlink views); META and CONF live under the local store.
func (m *RepoMeta) GetLocalPartPath(cfg *config.Config, part RepoPart) string {
	switch part {
	case PartData:
		return filepath.Join(cfg.UserReposPath, m.IndexName())
	case PartMeta:
		return filepath.Join(m.GetLocalPath(cfg), RepoMetaFile)
	case PartConf:
		return filepath.Join(m.GetLocalPath(cfg), RepoConfRelPath)
	default:
		panic("invalid repo part: " + part)
	}
}

// GetRemoteSyncRecordPath is "<store_path>/sync_records/<index_name>/<part>.rec".
func (m *RepoMeta) GetRemoteSyncRecordPath(cfg *config.Config, part RepoPart) string {
	sc := cfg.StorageLocations[m.StorageLocation]
	return filepath.ToSlash(filepath.Join(sc.StorePath, SyncRecordsRelPath, m.IndexName(), part.RecordFileName()))
}

// GetLocalSyncRecordPath is "<data>/sync_records/<index_name>/<part>.rec".
func (m *RepoMeta) GetLocalSyncRecordPath(cfg *config.Config, part RepoPart) string {
	return filepath.Join(cfg.RepoyardDataPath, SyncRecordsRelPath, m.IndexName(), part.RecordFileName())
}

// CheckIncluded reports whether DATA exists locally for this repo.
func (m *RepoMeta) CheckIncluded(cfg *config.Config) bool {
	info, err := os.Stat(m.GetLocalPartPath(cfg, PartData))
	return err == nil && info.IsDir()
}

// Save atomically writes repometa.toml at this repo's local META path.
func (m *RepoMeta) Save(cfg *config.Config) error {
	if err := m.Validate(); err != nil {
		return err
	}
	payload := repoMetaFile{
		StorageLocation: m.StorageLocation,
		CreatorHostname: m.CreatorHostname,
		Groups:          m.Groups,
		Parents:         m.Parents,
	}
	buf, err := tomlMarshal(payload)
	if err != nil {
		return err
	}
	return WriteFileAtomic(m.GetLocalPartPath(cfg, PartMeta), buf, 0o644)
}

// LoadRepoMeta loads repometa.toml for storageLocation/repoIndexName and
// reconstructs the directory-name-derived fields.
func LoadRepoMeta(cfg *config.Config, storageLocation, repoIndexName string) (*RepoMeta, error) {
	repoID, name, err := ParseIndexName(repoIndexName)
	if err != nil {
		return nil, err
	}
	ts, subid, err := timestampFromRepoID(repoID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.LocalStorePath(), storageLocation, repoIndexName, RepoMetaFile)
	var payload repoMetaFile
	if _, err := toml.DecodeFile(path, &payload); err != nil {
		return nil, fmt.Errorf("repo meta file %s: %w", path, err)
	}
	m := &RepoMeta{
		CreationTimestampUTC: ts,
		RepoSubID:            subid,
		Name:                 name,
		StorageLocation:      storageLocation,
		CreatorHostname:      payload.CreatorHostname,
		Groups:               payload.Groups,
		Parents:              payload.Parents,
	}
	if m.Groups == nil {
		m.Groups = []string{}
	}
	return m, nil
}

func tomlMarshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HasCycle reports whether adding candidateParent as a parent of repoID
// (within the repo_id-keyed parent graph `parents`) would introduce a
// cycle, via DFS from candidateParent back toward repoID.
func HasCycle(parents map[string][]string, repoID, candidateParent string) bool {
	visited := make(map[string]bool)
	var dfs func(string) bool
	dfs = func(node string) bool {
		if node == repoID {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, p := range parents[node] {
			if dfs(p) {
				return true
			}
		}
		return false
	}
	return dfs(candidateParent)
}

// SortByCreation sorts metas by creation time, oldest first, the
// ordering symlink-title collision resolution relies on.
func SortByCreation(metas []*RepoMeta) {
	sort.Slice(metas, func(i, j int) bool {
		ti, _ := metas[i].CreationTime()
		tj, _ := metas[j].CreationTime()
		return ti.Before(tj)
	})
}
