package tombstone

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/rclone"
)

func testCfg(dir string) *config.Config {
	return &config.Config{
		StorageLocations: map[string]config.StorageConfig{
			"home": {StorageType: config.StorageTypeLocal, StorePath: filepath.Join(dir, "store")},
		},
	}
}

func TestCreateExistsGetRemove(t *testing.T) {
	dir := t.TempDir()
	cfg := testCfg(dir)
	rc := rclone.New("")
	ctx := context.Background()

	exists, err := Exists(ctx, rc, cfg, "home", "20260101_abcde")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("expected no tombstone before Create")
	}

	tomb, err := Create(ctx, rc, cfg, "home", "20260101_abcde", "myrepo")
	if err != nil {
		t.Fatal(err)
	}
	if tomb.RepoID != "20260101_abcde" || tomb.LastKnownName != "myrepo" {
		t.Fatalf("unexpected tombstone: %+v", tomb)
	}

	exists, err = Exists(ctx, rc, cfg, "home", "20260101_abcde")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("expected a tombstone after Create")
	}

	got, err := Get(ctx, rc, cfg, "home", "20260101_abcde")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.LastKnownName != "myrepo" {
		t.Fatalf("unexpected Get result: %+v", got)
	}

	if err := Remove(ctx, rc, cfg, "home", "20260101_abcde"); err != nil {
		t.Fatal(err)
	}
	exists, err = Exists(ctx, rc, cfg, "home", "20260101_abcde")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("expected no tombstone after Remove")
	}
}

func TestRemoveMissingIsError(t *testing.T) {
	dir := t.TempDir()
	cfg := testCfg(dir)
	rc := rclone.New("")
	if err := Remove(context.Background(), rc, cfg, "home", "never-existed"); err == nil {
		t.Fatal("expected Remove of a nonexistent tombstone to error")
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	cfg := testCfg(dir)
	rc := rclone.New("")
	ctx := context.Background()

	if _, err := Create(ctx, rc, cfg, "home", "20260101_aaaaa", "repo-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(ctx, rc, cfg, "home", "20260102_bbbbb", "repo-b"); err != nil {
		t.Fatal(err)
	}

	list, err := List(ctx, rc, cfg, "home")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 tombstones, got %d", len(list))
	}
}
