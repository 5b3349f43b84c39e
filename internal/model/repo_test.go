package model

import (
	"path/filepath"
	"testing"

	"github.com/repoyard/repoyard/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		RepoyardDataPath:       filepath.Join(dir, "data"),
		UserReposPath:          filepath.Join(dir, "repos"),
		UserRepoGroupsPath:     filepath.Join(dir, "repo-groups"),
		RcloneConfigPath:       filepath.Join(dir, "rclone.conf"),
		StorageLocations: map[string]config.StorageConfig{
			"home": {StorageType: config.StorageTypeLocal, StorePath: filepath.Join(dir, "store")},
		},
		RepoGroups:             map[string]config.RepoGroupConfig{},
		RepoTimestampFormat:    config.RepoTimestampDateAndTime,
		RepoSubIDCharacterSet:  DefaultRepoSubIDCharset,
		RepoSubIDLength:        DefaultRepoSubIDLength,
		MaxConcurrentRcloneOps: DefaultMaxConcurrentRcloneOps,
	}
}

func TestRepoIDAndIndexName(t *testing.T) {
	m := &RepoMeta{CreationTimestampUTC: "20260101_120000", RepoSubID: "abcde", Name: "myrepo"}
	if got, want := m.RepoID(), "20260101_120000_abcde"; got != want {
		t.Fatalf("RepoID() = %q, want %q", got, want)
	}
	if got, want := m.IndexName(), "20260101_120000_abcde__myrepo"; got != want {
		t.Fatalf("IndexName() = %q, want %q", got, want)
	}
}

func TestParseIndexNameRoundTrip(t *testing.T) {
	indexName := "20260101_120000_abcde__myrepo"
	repoID, name, err := ParseIndexName(indexName)
	if err != nil {
		t.Fatal(err)
	}
	if repoID != "20260101_120000_abcde" || name != "myrepo" {
		t.Fatalf("got repoID=%q name=%q", repoID, name)
	}
	ts, subid, err := SplitRepoID(repoID)
	if err != nil {
		t.Fatal(err)
	}
	if ts != "20260101_120000" || subid != "abcde" {
		t.Fatalf("got ts=%q subid=%q", ts, subid)
	}
}

func TestParseIndexNameRejectsMissingSeparator(t *testing.T) {
	if _, _, err := ParseIndexName("no-separator-here"); err == nil {
		t.Fatal("expected an error for an index name with no __ separator")
	}
}

func TestSplitRepoIDDateOnly(t *testing.T) {
	ts, subid, err := SplitRepoID("20260101_abcde")
	if err != nil {
		t.Fatal(err)
	}
	if ts != "20260101" || subid != "abcde" {
		t.Fatalf("got ts=%q subid=%q", ts, subid)
	}
}

func TestGenerateUniqueRepoIDAvoidsCollisions(t *testing.T) {
	cfg := testConfig(t)
	cfg.RepoTimestampFormat = config.RepoTimestampDateOnly
	ts, subid, err := GenerateUniqueRepoID(cfg, map[string]bool{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	repoID := ts + "_" + subid
	existing := map[string]bool{repoID: true}
	_, subid2, err := GenerateUniqueRepoID(cfg, existing, 100)
	if err != nil {
		t.Fatal(err)
	}
	if subid2 == subid {
		t.Fatal("expected a different subid once the first is marked existing")
	}
}

func TestGenerateUniqueRepoIDExhausted(t *testing.T) {
	cfg := testConfig(t)
	cfg.RepoTimestampFormat = config.RepoTimestampDateOnly
	cfg.RepoSubIDCharacterSet = "a"
	cfg.RepoSubIDLength = 1
	ts, subid, err := GenerateUniqueRepoID(cfg, map[string]bool{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	existing := map[string]bool{ts + "_" + subid: true}
	if _, _, err := GenerateUniqueRepoID(cfg, existing, 3); err == nil {
		t.Fatal("expected exhaustion error when every candidate id collides")
	}
}

func TestRepoMetaValidate(t *testing.T) {
	m := &RepoMeta{CreationTimestampUTC: "20260101_120000", RepoSubID: "abcde", Name: "x", Groups: []string{"a", "a"}}
	if err := m.Validate(); err == nil {
		t.Fatal("expected duplicate-group error")
	}
	m.Groups = []string{"ok-group/sub"}
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Groups = []string{"bad group"}
	if err := m.Validate(); err == nil {
		t.Fatal("expected invalid group name error")
	}
	m.Groups = nil
	m.CreationTimestampUTC = "not-a-timestamp"
	if err := m.Validate(); err == nil {
		t.Fatal("expected invalid timestamp error")
	}
}

func TestSaveAndLoadRepoMeta(t *testing.T) {
	cfg := testConfig(t)
	existing, err := NewRepoMeta(cfg, map[string]bool{}, "myrepo", "home", "host-a", []string{"g1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := existing.Save(cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadRepoMeta(cfg, "home", existing.IndexName())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.StorageLocation != "home" || loaded.CreatorHostname != "host-a" || len(loaded.Groups) != 1 || loaded.Groups[0] != "g1" {
		t.Fatalf("loaded meta mismatch: %+v", loaded)
	}
	if loaded.RepoID() != existing.RepoID() {
		t.Fatalf("RepoID mismatch after round trip: %q != %q", loaded.RepoID(), existing.RepoID())
	}
}

func TestCheckIncluded(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewRepoMeta(cfg, map[string]bool{}, "myrepo", "home", "host-a", nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.CheckIncluded(cfg) {
		t.Fatal("expected CheckIncluded false before DATA exists locally")
	}
}

func TestHasCycle(t *testing.T) {
	parents := map[string][]string{
		"b": {"a"},
		"c": {"b"},
	}
	if !HasCycle(parents, "a", "c") {
		t.Fatal("expected a cycle: a -> (via c -> b -> a)")
	}
	if HasCycle(parents, "a", "z") {
		t.Fatal("did not expect a cycle through an unrelated node")
	}
}

func TestSortByCreation(t *testing.T) {
	older := &RepoMeta{CreationTimestampUTC: "20260101_000000", RepoSubID: "a", Name: "x"}
	newer := &RepoMeta{CreationTimestampUTC: "20260102_000000", RepoSubID: "b", Name: "y"}
	metas := []*RepoMeta{newer, older}
	SortByCreation(metas)
	if metas[0] != older || metas[1] != newer {
		t.Fatal("expected oldest-first ordering after SortByCreation")
	}
}

func TestValidGroupName(t *testing.T) {
	cases := map[string]bool{
		"":          false,
		"a":         true,
		"a_b-c/d9": true,
		"a b":       false,
		"a.b":       false,
	}
	for name, want := range cases {
		if got := ValidGroupName(name); got != want {
			t.Errorf("ValidGroupName(%q) = %v, want %v", name, got, want)
		}
	}
}
