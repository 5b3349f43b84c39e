package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/orchestrator"
	"github.com/repoyard/repoyard/internal/rclone"
	"github.com/repoyard/repoyard/internal/syncexec"
	"github.com/repoyard/repoyard/internal/syncstate"
	"github.com/repoyard/repoyard/internal/tombstone"
)

// These tests shell out to a real rclone binary, using an empty remote
// name so every transfer is plain local-to-local, the same precedent
// internal/syncexec and internal/orchestrator's tests set.

func testCfg(dir string) *config.Config {
	return &config.Config{
		RepoyardDataPath:   filepath.Join(dir, "data"),
		UserReposPath:      filepath.Join(dir, "repos"),
		UserRepoGroupsPath: filepath.Join(dir, "repo-groups"),
		StorageLocations: map[string]config.StorageConfig{
			"home": {StorageType: config.StorageTypeRclone, StorePath: filepath.Join(dir, "remote_store")},
			"box":  {StorageType: config.StorageTypeLocal, StorePath: filepath.Join(dir, "local_alias")},
		},
		RepoGroups: map[string]config.RepoGroupConfig{
			"unique": {UniqueRepoNames: true},
		},
		DefaultRcloneExclude: []string{".DS_Store"},
	}
}

func testManager(dir string) *Manager {
	return New(testCfg(dir), rclone.New(""))
}

func carefulSync(ctx context.Context, m *Manager, indexName string) (orchestrator.Result, error) {
	return m.Orch.SyncRepo(ctx, indexName, orchestrator.Options{
		Setting:        syncexec.Careful,
		SyncerHostname: "host-a",
	})
}

func TestCreateThenSyncRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	indexName, err := m.Create(ctx, CreateOpts{
		StorageLocation: "home",
		RepoName:        "alpha",
		CreatorHostname: "host-a",
	})
	if err != nil {
		t.Fatal(err)
	}

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		t.Fatal(err)
	}
	rm, ok := yard.ByIndexName()[indexName]
	if !ok {
		t.Fatalf("expected %q in the refreshed metadata index", indexName)
	}
	if !rm.CheckIncluded(m.Cfg) {
		t.Fatal("expected a freshly created repo to be included")
	}
	if _, err := os.Stat(filepath.Join(rm.GetLocalPartPath(m.Cfg, model.PartConf), ".rclone_exclude")); err != nil {
		t.Fatalf("expected a default .rclone_exclude seeded in CONF: %v", err)
	}

	if err := os.WriteFile(filepath.Join(rm.GetLocalPartPath(m.Cfg, model.PartData), "f.txt"), []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(rm.GetRemotePartPath(m.Cfg, model.PartData), "f.txt")); err != nil {
		t.Fatalf("expected f.txt on remote after sync: %v", err)
	}
}

func TestCreateRequiresKnownStorageLocation(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	if _, err := m.Create(context.Background(), CreateOpts{StorageLocation: "nope", RepoName: "x"}); err == nil {
		t.Fatal("expected an error for an unknown storage location")
	}
}

func TestCreateFromLocalPathMoves(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	src := filepath.Join(dir, "src-proj")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "readme.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	indexName, err := m.Create(context.Background(), CreateOpts{
		StorageLocation: "home",
		FromPath:        src,
	})
	if err != nil {
		t.Fatal(err)
	}
	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	rm := yard.ByIndexName()[indexName]
	if rm.Name != "src-proj" {
		t.Fatalf("expected the repo name to default from the source path basename, got %q", rm.Name)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected the source path to have been moved away, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(rm.GetLocalPartPath(m.Cfg, model.PartData), "readme.txt")); err != nil {
		t.Fatalf("expected readme.txt under the new repo's DATA: %v", err)
	}
}

func TestIncludeRefusesAlreadyIncluded(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Include(ctx, indexName); err == nil {
		t.Fatal("expected Include to refuse an already-included repo")
	}
}

func TestExcludeThenIncludeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	rm := yard.ByIndexName()[indexName]
	if err := os.WriteFile(filepath.Join(rm.GetLocalPartPath(m.Cfg, model.PartData), "f.txt"), []byte("remote-content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}

	if err := m.Exclude(ctx, indexName, ExcludeOpts{}); err != nil {
		t.Fatal(err)
	}
	yard, _ = model.GetRepoyardMeta(m.Cfg, false)
	rm = yard.ByIndexName()[indexName]
	if rm.CheckIncluded(m.Cfg) {
		t.Fatal("expected the repo to no longer be included after Exclude")
	}
	if _, err := os.Stat(rm.GetLocalPartPath(m.Cfg, model.PartMeta)); err != nil {
		t.Fatalf("expected META to survive Exclude: %v", err)
	}

	if err := m.Include(ctx, indexName); err != nil {
		t.Fatal(err)
	}
	yard, _ = model.GetRepoyardMeta(m.Cfg, false)
	rm = yard.ByIndexName()[indexName]
	if !rm.CheckIncluded(m.Cfg) {
		t.Fatal("expected the repo to be included again after Include")
	}
	content, err := os.ReadFile(filepath.Join(rm.GetLocalPartPath(m.Cfg, model.PartData), "f.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "remote-content" {
		t.Fatalf("expected DATA pulled back from remote, got %q", content)
	}
}

func TestExcludeRefusesLocalStorage(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()
	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "box", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Exclude(ctx, indexName, ExcludeOpts{}); err == nil {
		t.Fatal("expected Exclude to refuse a repo on local storage")
	}
}

func TestDeleteWritesTombstoneAndPurges(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	rm := yard.ByIndexName()[indexName]
	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(ctx, indexName); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(rm.GetLocalPath(m.Cfg)); !os.IsNotExist(err) {
		t.Fatalf("expected the local store dir to be gone after Delete, stat err=%v", err)
	}
	if _, err := os.Stat(rm.GetRemotePath(m.Cfg)); !os.IsNotExist(err) {
		t.Fatalf("expected the remote repo dir to be gone after Delete, stat err=%v", err)
	}

	yard, _ = model.GetRepoyardMeta(m.Cfg, false)
	if _, ok := yard.ByIndexName()[indexName]; ok {
		t.Fatal("expected the deleted repo to be gone from the refreshed global index")
	}

	// A tombstone must exist for this repo_id: another machine that still
	// has it in its own metadata index would have its next sync refused
	// rather than silently resurrecting the repo.
	isTomb, err := tombstone.Exists(ctx, m.RC, m.Cfg, rm.StorageLocation, rm.RepoID())
	if err != nil {
		t.Fatal(err)
	}
	if !isTomb {
		t.Fatal("expected a tombstone after Delete")
	}
}

func TestDeleteRefusesNonexistent(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	if err := m.Delete(context.Background(), "20260101_abcde__nope"); err == nil {
		t.Fatal("expected Delete to refuse a nonexistent repo")
	}
}

func TestRenameLocalOnlyThenCarefulSyncResolvesByID(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}

	newIndexName, err := m.Rename(ctx, indexName, "alpha-renamed", RenameLocal)
	if err != nil {
		t.Fatal(err)
	}
	if newIndexName == indexName {
		t.Fatal("expected the index name to change after a local rename")
	}

	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	rm, ok := yard.ByIndexName()[newIndexName]
	if !ok {
		t.Fatalf("expected %q in the refreshed index", newIndexName)
	}
	if rm.Name != "alpha-renamed" {
		t.Fatalf("expected repometa.toml's name to be updated, got %q", rm.Name)
	}

	// The remote side is still under the old name; a careful sync must
	// resolve it by repo_id rather than erroring.
	if _, err := carefulSync(ctx, m, newIndexName); err != nil {
		t.Fatalf("expected a careful sync to resolve the one-sided rename by id: %v", err)
	}
}

func TestRenameBothEquivalentToLocalThenRemote(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}

	newIndexName, err := m.Rename(ctx, indexName, "alpha-both", RenameBoth)
	if err != nil {
		t.Fatal(err)
	}

	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	rm, ok := yard.ByIndexName()[newIndexName]
	if !ok {
		t.Fatalf("expected %q in the refreshed index", newIndexName)
	}
	if _, err := os.Stat(rm.GetRemotePath(m.Cfg)); err != nil {
		t.Fatalf("expected the remote dir to have moved to the new name: %v", err)
	}
	status, err := m.RepoStatus(ctx, newIndexName)
	if err != nil {
		t.Fatal(err)
	}
	for _, ps := range status {
		if ps.Status.Condition != syncstate.Synced {
			t.Fatalf("expected part %s synced after BOTH rename, got %s", ps.Part, ps.Status.Condition)
		}
	}
}

func TestSyncNameToRemoteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Rename(ctx, indexName, "alpha-local-only", RenameLocal); err != nil {
		t.Fatal(err)
	}
	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	var newIndexName string
	for name := range yard.ByIndexName() {
		newIndexName = name
	}

	resolved, err := m.SyncName(ctx, newIndexName, SyncNameToRemote)
	if err != nil {
		t.Fatal(err)
	}

	// Running the same direction again must be a no-op: both sides
	// already agree.
	resolved2, err := m.SyncName(ctx, resolved, SyncNameToRemote)
	if err != nil {
		t.Fatal(err)
	}
	if resolved2 != resolved {
		t.Fatalf("expected sync-name to be idempotent, got %q then %q", resolved, resolved2)
	}
}

func TestForcePushRequiresForceFlag(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()
	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "external")
	os.MkdirAll(src, 0o755)
	if err := m.ForcePush(ctx, indexName, ForcePushOpts{SourcePath: src, Force: false}); err == nil {
		t.Fatal("expected ForcePush to refuse without Force=true")
	}
}

func TestForcePushOverwritesRemoteThenIncludeSeesIt(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}
	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	rm := yard.ByIndexName()[indexName]

	if err := m.Exclude(ctx, indexName, ExcludeOpts{}); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(dir, "external")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "fresh.txt"), []byte("fresh-content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.ForcePush(ctx, indexName, ForcePushOpts{SourcePath: src, Force: true}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(rm.GetRemotePartPath(m.Cfg, model.PartData), "fresh.txt")); err != nil {
		t.Fatalf("expected remote DATA to carry the force-pushed file: %v", err)
	}

	if err := m.Include(ctx, indexName); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(filepath.Join(rm.GetLocalPartPath(m.Cfg, model.PartData), "fresh.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "fresh-content" {
		t.Fatalf("expected included DATA to equal the force-pushed source, got %q", content)
	}
}

func TestCopyOutRefusesManagedDestinations(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()
	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CopyOut(ctx, indexName, CopyOutOpts{DestPath: m.Cfg.UserReposPath}); err == nil {
		t.Fatal("expected CopyOut to refuse a destination inside the user repos path")
	}
}

func TestCopyOutDownloadsData(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()
	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	rm := yard.ByIndexName()[indexName]
	if err := os.WriteFile(filepath.Join(rm.GetLocalPartPath(m.Cfg, model.PartData), "f.txt"), []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, m, indexName); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "outside", "copy-dest")
	got, err := m.CopyOut(ctx, indexName, CopyOutOpts{DestPath: dest, CopyMeta: true})
	if err != nil {
		t.Fatal(err)
	}
	if got != dest {
		t.Fatalf("expected CopyOut to return the dest path, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "f.txt")); err != nil {
		t.Fatalf("expected the copied-out data to carry f.txt: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "repometa.toml")); err != nil {
		t.Fatalf("expected repometa.toml when CopyMeta is set: %v", err)
	}

	yard2, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(yard2.RepoMetas) != 1 {
		t.Fatal("expected CopyOut not to register any new tracked repo")
	}
}

func TestAddToGroupEnforcesUniqueNames(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	a, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "dup"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "dup"})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.AddToGroup(ctx, a, "unique"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddToGroup(ctx, b, "unique"); err == nil {
		t.Fatal("expected AddToGroup to refuse a name collision within a unique_repo_names group")
	}
}

func TestAddToGroupIsIdempotentRemoveIsNoop(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()
	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AddToGroup(ctx, indexName, "work"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddToGroup(ctx, indexName, "work"); err != nil {
		t.Fatal("expected re-adding the same group to be a no-op, not an error")
	}
	groups, err := m.ListGroups()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups["work"]) != 1 {
		t.Fatalf("expected exactly one member of group work, got %v", groups["work"])
	}

	if err := m.RemoveFromGroup(ctx, indexName, "nonexistent-group"); err != nil {
		t.Fatal("expected removing a group the repo never had to be a no-op")
	}
	if err := m.RemoveFromGroup(ctx, indexName, "work"); err != nil {
		t.Fatal(err)
	}
	groups, err = m.ListGroups()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups["work"]) != 0 {
		t.Fatalf("expected group work to be empty after RemoveFromGroup, got %v", groups["work"])
	}
}

func TestAddParentRejectsCycle(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	a, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "a"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "b"})
	if err != nil {
		t.Fatal(err)
	}
	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	aID := yard.ByIndexName()[a].RepoID()
	bID := yard.ByIndexName()[b].RepoID()

	if err := m.AddParent(ctx, b, aID); err != nil {
		t.Fatal(err)
	}
	if err := m.AddParent(ctx, a, bID); err == nil {
		t.Fatal("expected AddParent to reject a cycle")
	}
}

func TestResolveByIndexNameRepoIDAndName(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()
	indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "findme"})
	if err != nil {
		t.Fatal(err)
	}
	yard, _ := model.GetRepoyardMeta(m.Cfg, false)
	repoID := yard.ByIndexName()[indexName].RepoID()

	if rm, err := m.Resolve(ResolveOpts{IndexName: indexName}); err != nil || rm.IndexName() != indexName {
		t.Fatalf("resolve by index name failed: rm=%v err=%v", rm, err)
	}
	if rm, err := m.Resolve(ResolveOpts{RepoID: repoID}); err != nil || rm.IndexName() != indexName {
		t.Fatalf("resolve by repo id failed: rm=%v err=%v", rm, err)
	}
	if rm, err := m.Resolve(ResolveOpts{RepoName: "findme"}); err != nil || rm.IndexName() != indexName {
		t.Fatalf("resolve by exact name failed: rm=%v err=%v", rm, err)
	}
	if _, err := m.Resolve(ResolveOpts{RepoName: "nonexistent"}); err == nil {
		t.Fatal("expected an error resolving a name with no matches")
	}
}

func TestResolveAmbiguousNameNonInteractiveErrors(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()
	if _, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "dup"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "dup"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Resolve(ResolveOpts{RepoName: "dup", NonInteractive: true}); err == nil {
		t.Fatal("expected an ambiguous name to error in non-interactive mode")
	}
}

func TestListAndListGroups(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()
	if _, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "alpha", Groups: []string{"work"}}); err != nil {
		t.Fatal(err)
	}
	names, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 {
		t.Fatalf("expected exactly one repo, got %v", names)
	}
	groups, err := m.ListGroups()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups["work"]) != 1 {
		t.Fatalf("expected one member in group work, got %v", groups["work"])
	}
	if _, ok := groups["unique"]; !ok {
		t.Fatal("expected a config-declared empty group to still appear in ListGroups")
	}
}

func TestInitCreatesLayoutAndLocalAlias(t *testing.T) {
	dir := t.TempDir()
	cfg := testCfg(dir)
	configPath := filepath.Join(dir, "config.jsonc")

	if err := Init(cfg, configPath); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected a config file to be written: %v", err)
	}
	if _, err := os.Stat(cfg.RepoyardDataPath); err != nil {
		t.Fatalf("expected the data dir to exist: %v", err)
	}
	if _, err := os.Stat(cfg.UserReposPath); err != nil {
		t.Fatalf("expected the user repos dir to exist: %v", err)
	}
	linkPath := filepath.Join(cfg.LocalStorePath(), "box")
	target, err := os.Readlink(linkPath)
	if err != nil {
		t.Fatalf("expected a local_store symlink for the local storage location: %v", err)
	}
	if target != cfg.StorageLocations["box"].StorePath {
		t.Fatalf("expected the symlink to point at the local alias's store path, got %q", target)
	}

	// Re-running Init must not error or disturb an already-correct symlink.
	if err := Init(cfg, configPath); err != nil {
		t.Fatal(err)
	}
}

func TestSyncMissingMetaDiscoversRemoteOnlyRepos(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	sharedRemote := t.TempDir()

	cfgA := &config.Config{
		RepoyardDataPath:   filepath.Join(dirA, "data"),
		UserReposPath:      filepath.Join(dirA, "repos"),
		UserRepoGroupsPath: filepath.Join(dirA, "repo-groups"),
		StorageLocations: map[string]config.StorageConfig{
			"home": {StorageType: config.StorageTypeRclone, StorePath: sharedRemote},
		},
	}
	cfgB := &config.Config{
		RepoyardDataPath:   filepath.Join(dirB, "data"),
		UserReposPath:      filepath.Join(dirB, "repos"),
		UserRepoGroupsPath: filepath.Join(dirB, "repo-groups"),
		StorageLocations: map[string]config.StorageConfig{
			"home": {StorageType: config.StorageTypeRclone, StorePath: sharedRemote},
		},
	}
	mA := New(cfgA, rclone.New(""))
	mB := New(cfgB, rclone.New(""))
	ctx := context.Background()

	indexName, err := mA.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "shared"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, mA, indexName); err != nil {
		t.Fatal(err)
	}

	created, err := mB.SyncMissingMeta(ctx, "home")
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 || created[0] != indexName {
		t.Fatalf("expected SyncMissingMeta to discover %q, got %v", indexName, created)
	}

	yardB, err := model.GetRepoyardMeta(cfgB, false)
	if err != nil {
		t.Fatal(err)
	}
	rmB, ok := yardB.ByIndexName()[indexName]
	if !ok {
		t.Fatalf("expected %q visible on B after SyncMissingMeta", indexName)
	}
	if rmB.CheckIncluded(cfgB) {
		t.Fatal("expected SyncMissingMeta to fetch META only, not DATA")
	}
}

func TestMultiSyncSyncsEverySelectedRepo(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	var indexNames []string
	for _, name := range []string{"r0", "r1", "r2"} {
		indexName, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: name})
		if err != nil {
			t.Fatal(err)
		}
		indexNames = append(indexNames, indexName)
	}

	results, err := m.MultiSync(ctx, MultiSyncOpts{StorageLocation: "home"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(indexNames) {
		t.Fatalf("expected %d results, got %d", len(indexNames), len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected sync error for %s: %v", r.IndexName, r.Err)
		}
	}
}

func TestCreateUserSymlinksBuildsGroupTree(t *testing.T) {
	dir := t.TempDir()
	m := testManager(dir)
	ctx := context.Background()

	if _, err := m.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "proj", Groups: []string{"work"}}); err != nil {
		t.Fatal(err)
	}

	if err := m.CreateUserSymlinks(); err != nil {
		t.Fatal(err)
	}

	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		t.Fatal(err)
	}
	rm := yard.RepoMetas[0]
	linkPath := filepath.Join(m.Cfg.UserRepoGroupsPath, "work", rm.IndexName())
	info, err := os.Lstat(linkPath)
	if err != nil {
		t.Fatalf("expected a symlink at %s: %v", linkPath, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected a symlink, not a regular file")
	}
	target, err := os.Readlink(linkPath)
	if err != nil {
		t.Fatal(err)
	}
	resolved := filepath.Join(filepath.Dir(linkPath), target)
	if filepath.Clean(resolved) != filepath.Clean(rm.GetLocalPartPath(m.Cfg, model.PartData)) {
		t.Fatalf("expected the symlink to resolve to the repo's DATA dir, got %q want %q", resolved, rm.GetLocalPartPath(m.Cfg, model.PartData))
	}
}

func TestCreateSyncBeforeDetectsRemoteIDCollision(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	sharedRemote := t.TempDir()

	// A one-element id space (charset "a", length 1, date-only timestamps)
	// makes the remote collision deterministic.
	newCfg := func(dir string) *config.Config {
		return &config.Config{
			RepoyardDataPath:      filepath.Join(dir, "data"),
			UserReposPath:         filepath.Join(dir, "repos"),
			UserRepoGroupsPath:    filepath.Join(dir, "repo-groups"),
			RepoTimestampFormat:   config.RepoTimestampDateOnly,
			RepoSubIDCharacterSet: "a",
			RepoSubIDLength:       1,
			StorageLocations: map[string]config.StorageConfig{
				"home": {StorageType: config.StorageTypeRclone, StorePath: sharedRemote},
			},
		}
	}
	mA := New(newCfg(dirA), rclone.New(""))
	mB := New(newCfg(dirB), rclone.New(""))
	ctx := context.Background()

	indexName, err := mA.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "taken"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := carefulSync(ctx, mA, indexName); err != nil {
		t.Fatal(err)
	}

	// B's local index is empty, but the only possible repo_id already
	// exists on the shared remote: the pre-create scan must refuse.
	if _, err := mB.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "other", SyncBeforeCreate: true}); err == nil {
		t.Fatal("expected the pre-create scan to detect the remote id collision")
	}

	// After A deletes the repo, its tombstone keeps the id retired.
	if err := mA.Delete(ctx, indexName); err != nil {
		t.Fatal(err)
	}
	if _, err := mB.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "other", SyncBeforeCreate: true}); err == nil {
		t.Fatal("expected the pre-create scan to refuse a tombstoned id")
	}

	// Without the scan, B only consults its own (empty) local index.
	if _, err := mB.Create(ctx, CreateOpts{StorageLocation: "home", RepoName: "other"}); err != nil {
		t.Fatalf("expected a plain local create to succeed: %v", err)
	}
}
