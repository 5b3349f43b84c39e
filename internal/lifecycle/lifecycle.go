// Package lifecycle implements the repo lifecycle operations: create,
// include, exclude, delete, rename, sync-name, force-push, and copy-out,
// plus the group/symlink/status verbs. Every operation reads or mutates
// the global metadata index or a single repo's on-disk state under the
// lock manager, the same discipline internal/orchestrator follows for
// sync.
package lifecycle

import (
	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/orchestrator"
	"github.com/repoyard/repoyard/internal/rclone"
	"github.com/repoyard/repoyard/internal/syncexec"
	"github.com/repoyard/repoyard/internal/syncstate"
)

// Manager bundles the dependencies every lifecycle operation needs.
type Manager struct {
	Cfg   *config.Config
	RC    *rclone.Client
	Locks *lockmgr.Manager
	Orch  *orchestrator.Orchestrator
	Eval  *syncstate.Evaluator
	Exec  *syncexec.Executor
}

// New builds a Manager sharing one rclone client across every operation.
func New(cfg *config.Config, rc *rclone.Client) *Manager {
	return &Manager{
		Cfg:   cfg,
		RC:    rc,
		Locks: lockmgr.New(cfg.RepoyardDataPath),
		Orch:  orchestrator.New(cfg, rc),
		Eval:  syncstate.New(rc),
		Exec:  syncexec.New(rc),
	}
}
