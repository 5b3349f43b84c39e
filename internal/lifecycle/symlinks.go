package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/model"
)

// CreateUserSymlinks rebuilds <user_repo_groups>/<group>/<title> symlink
// trees for every included repo already tagged with a group, resolving title
// collisions by appending a numeric suffix in creation order, and
// removing any stale symlink this pass does not recreate. Only groups
// that some repo is tagged with are visited; the directory of a group no
// repo carries any more is left as it is. The
// filter-expression language that decides *which* repos belong to a
// virtual group lives outside this module; this operates purely on
// RepoMeta.Groups, already-resolved membership.
func (m *Manager) CreateUserSymlinks() error {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return err
	}

	byGroup := make(map[string][]*model.RepoMeta)
	for _, rm := range yard.RepoMetas {
		included := rm.CheckIncluded(m.Cfg)
		for _, g := range rm.Groups {
			if !included {
				// Keep the group visited so an excluded repo's old link is swept.
				if _, ok := byGroup[g]; !ok {
					byGroup[g] = nil
				}
				continue
			}
			byGroup[g] = append(byGroup[g], rm)
		}
	}

	for group, metas := range byGroup {
		groupCfg := m.Cfg.RepoGroups[group]
		dirName := groupCfg.SymlinkName
		if dirName == "" {
			dirName = group
		}
		groupDir := filepath.Join(m.Cfg.UserRepoGroupsPath, dirName)
		if err := os.MkdirAll(groupDir, 0o755); err != nil {
			return err
		}
		wanted, err := desiredSymlinks(groupCfg, metas)
		if err != nil {
			return err
		}
		if err := reconcileSymlinkDir(groupDir, m.Cfg.UserReposPath, wanted); err != nil {
			return err
		}
	}

	return nil
}

// desiredSymlinks computes the title -> target index name mapping for
// one group, breaking title collisions by appending "-2", "-3", ... in
// creation order (oldest keeps the bare title).
func desiredSymlinks(groupCfg config.RepoGroupConfig, metas []*model.RepoMeta) (map[string]string, error) {
	ordered := append([]*model.RepoMeta{}, metas...)
	model.SortByCreation(ordered)

	counts := make(map[string]int)
	out := make(map[string]string, len(ordered))
	for _, rm := range ordered {
		base, err := repoTitle(groupCfg.RepoTitleMode, rm)
		if err != nil {
			return nil, err
		}
		title := base
		if n := counts[base]; n > 0 {
			title = fmt.Sprintf("%s-%d", base, n+1)
		}
		counts[base]++
		out[title] = rm.IndexName()
	}
	return out, nil
}

func repoTitle(mode config.RepoGroupTitleMode, rm *model.RepoMeta) (string, error) {
	switch mode {
	case config.RepoTitleDatetimeAndName:
		return rm.CreationTimestampUTC + "_" + rm.Name, nil
	case config.RepoTitleIndexName, "":
		return rm.IndexName(), nil
	case config.RepoTitleName:
		return rm.Name, nil
	default:
		return "", fmt.Errorf("unknown repo title mode: %s", mode)
	}
}

// reconcileSymlinkDir makes groupDir's symlink set match wanted exactly:
// creates/repoints symlinks that are missing or wrong, and removes any
// symlink entry this pass did not ask for (stale entries left behind by
// a rename, exclude, or group removal).
func reconcileSymlinkDir(groupDir, userReposPath string, wanted map[string]string) error {
	entries, err := os.ReadDir(groupDir)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(entries))
	for _, ent := range entries {
		existing[ent.Name()] = true
		if _, ok := wanted[ent.Name()]; ok {
			continue
		}
		info, err := os.Lstat(filepath.Join(groupDir, ent.Name()))
		if err == nil && info.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(filepath.Join(groupDir, ent.Name())); err != nil {
				return err
			}
		}
	}

	titles := make([]string, 0, len(wanted))
	for title := range wanted {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	for _, title := range titles {
		indexName := wanted[title]
		linkPath := filepath.Join(groupDir, title)
		targetAbs := filepath.Join(userReposPath, indexName)
		target, err := filepath.Rel(groupDir, targetAbs)
		if err != nil {
			target = targetAbs
		}
		if existing[title] {
			current, err := os.Readlink(linkPath)
			if err == nil && current == target {
				continue
			}
			if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		if err := os.Symlink(target, linkPath); err != nil {
			return err
		}
	}
	return nil
}
