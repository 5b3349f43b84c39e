package lifecycle

import (
	"context"
	"fmt"

	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/orchestrator"
	"github.com/repoyard/repoyard/internal/rerr"
	"github.com/repoyard/repoyard/internal/syncexec"
)

// Include re-fetches an excluded repo's DATA wholesale (a force PULL,
// bypassing CONF's filters since CONF itself may not exist locally yet),
// then syncs META and CONF normally. A careful sync would classify
// local-absent + remote-present as excluded, which is why the first pull
// must force.
func (m *Manager) Include(ctx context.Context, repoIndexName string) error {
	yard, err := model.GetRepoyardMeta(m.Cfg, false)
	if err != nil {
		return err
	}
	repoMeta, ok := yard.ByIndexName()[repoIndexName]
	if !ok {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q does not exist", repoIndexName)}
	}
	if repoMeta.CheckIncluded(m.Cfg) {
		return &rerr.LifecycleConflict{Message: fmt.Sprintf("repo %q is already included", repoIndexName)}
	}

	pull := syncexec.Pull
	if _, err := m.Orch.SyncRepo(ctx, repoIndexName, orchestrator.Options{
		Direction: &pull,
		Setting:   syncexec.Force,
		Parts:     []model.RepoPart{model.PartData},
	}); err != nil {
		return err
	}

	_, err = m.Orch.SyncRepo(ctx, repoIndexName, orchestrator.Options{
		Setting: syncexec.Careful,
		Parts:   []model.RepoPart{model.PartMeta, model.PartConf},
	})
	return err
}
