package remoteindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/rclone"
)

func testCfg(dir string) *config.Config {
	return &config.Config{
		RepoyardDataPath: filepath.Join(dir, "data"),
		StorageLocations: map[string]config.StorageConfig{
			"home": {StorageType: config.StorageTypeLocal, StorePath: filepath.Join(dir, "store")},
		},
	}
}

func TestLoadMissingCacheIsEmptyMap(t *testing.T) {
	cfg := testCfg(t.TempDir())
	cache := Load(cfg, "home")
	if len(cache) != 0 {
		t.Fatalf("expected an empty cache, got %v", cache)
	}
}

func TestUpdateSaveLoadRoundTrip(t *testing.T) {
	cfg := testCfg(t.TempDir())
	if err := Update(cfg, "home", "20260101_abcde", "20260101_abcde__myrepo"); err != nil {
		t.Fatal(err)
	}
	cache := Load(cfg, "home")
	if cache["20260101_abcde"] != "20260101_abcde__myrepo" {
		t.Fatalf("unexpected cache contents: %v", cache)
	}
}

func TestRemove(t *testing.T) {
	cfg := testCfg(t.TempDir())
	if err := Update(cfg, "home", "20260101_abcde", "20260101_abcde__myrepo"); err != nil {
		t.Fatal(err)
	}
	if err := Remove(cfg, "home", "20260101_abcde"); err != nil {
		t.Fatal(err)
	}
	if _, ok := Load(cfg, "home")["20260101_abcde"]; ok {
		t.Fatal("expected the entry to be gone after Remove")
	}
	// Removing an absent entry is a no-op, not an error.
	if err := Remove(cfg, "home", "never-there"); err != nil {
		t.Fatal(err)
	}
}

func TestFindFallsBackToScanAndRefreshesCache(t *testing.T) {
	dir := t.TempDir()
	cfg := testCfg(dir)
	rc := rclone.New("")
	ctx := context.Background()

	storeDir := filepath.Join(dir, "store", "repos", "20260101_abcde__myrepo")
	if err := rc.Mkdir(ctx, "", storeDir); err != nil {
		t.Fatal(err)
	}

	indexName, found, err := Find(ctx, rc, cfg, "home", "20260101_abcde")
	if err != nil {
		t.Fatal(err)
	}
	if !found || indexName != "20260101_abcde__myrepo" {
		t.Fatalf("expected to find the repo by scan, got indexName=%q found=%v", indexName, found)
	}

	cache := Load(cfg, "home")
	if cache["20260101_abcde"] != indexName {
		t.Fatal("expected Find to populate the cache after a scan hit")
	}
}

func TestFindNotFound(t *testing.T) {
	cfg := testCfg(t.TempDir())
	rc := rclone.New("")
	_, found, err := Find(context.Background(), rc, cfg, "home", "nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected not found for a repo id with no remote directory")
	}
}

func TestRebuild(t *testing.T) {
	dir := t.TempDir()
	cfg := testCfg(dir)
	rc := rclone.New("")
	ctx := context.Background()

	if err := rc.Mkdir(ctx, "", filepath.Join(dir, "store", "repos", "20260101_aaaaa__repo-a")); err != nil {
		t.Fatal(err)
	}
	if err := rc.Mkdir(ctx, "", filepath.Join(dir, "store", "repos", "20260102_bbbbb__repo-b")); err != nil {
		t.Fatal(err)
	}

	cache, err := Rebuild(ctx, rc, cfg, "home")
	if err != nil {
		t.Fatal(err)
	}
	if len(cache) != 2 {
		t.Fatalf("expected 2 cache entries, got %v", cache)
	}
}
