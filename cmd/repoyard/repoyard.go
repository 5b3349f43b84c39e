// Command repoyard is the CLI surface for the repo/artifact
// synchronization engine in internal/lifecycle, internal/orchestrator
// and internal/syncstate. Each subcommand is a thin flag-parsing and
// output-formatting layer over a lifecycle.Manager method.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/msolo/cmdflag"
	log "github.com/msolo/go-bis/glug"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
	"github.com/tebeka/atexit"

	"github.com/repoyard/repoyard/internal/config"
	"github.com/repoyard/repoyard/internal/lifecycle"
	"github.com/repoyard/repoyard/internal/lockmgr"
	"github.com/repoyard/repoyard/internal/rclone"
	"github.com/repoyard/repoyard/internal/shellutil"
	"github.com/repoyard/repoyard/internal/softint"
)

// autoGCLocksMaxAge and autoGCLocksInterval bound the quiet startup lock
// sweep every command triggers, distinct from the larger, operator-invoked
// -max-age the gc-locks subcommand accepts.
const (
	autoGCLocksMaxAge   = time.Hour
	autoGCLocksInterval = time.Hour
)

var cmdMain = &cmdflag.Command{
	Name: "repoyard",
	UsageLong: `repoyard - a multi-machine repo/artifact synchronizer

repoyard registers named content directories ("repos") under one or more
storage locations, each backed by an rclone remote (or a local alias),
and keeps every machine's mirror of those repos consistent. It detects
concurrent-modification conflicts (it reports them; it does not resolve
them), propagates deletions as tombstones, and survives interrupted sync
sessions.

A process-level -config flag selects the config file (default
$REPOYARD_CONFIG_PATH, or ~/.config/repoyard/config.jsonc). Every command
that touches more than one repo honors Ctrl-C as a soft interrupt: the
first two signals let the current repo part finish before stopping; the
third exits immediately.

Setting REPOYARD_TRACE=1 or passing -v shows detailed subprocess
logging.

Install bash completions by running:
  complete -C repoyard repoyard
`,
	Flags: []cmdflag.Flag{
		{Name: "timeout", FlagType: cmdflag.FlagTypeDuration, DefaultValue: 0 * time.Millisecond, Usage: "timeout for command execution", Predictor: nil},
		{Name: "config", FlagType: cmdflag.FlagTypeString, DefaultValue: "", Usage: "path to the repoyard config file (default $REPOYARD_CONFIG_PATH or ~/.config/repoyard/config.jsonc)", Predictor: nil},
		{Name: "v", FlagType: cmdflag.FlagTypeBool, DefaultValue: false, Usage: "enable verbose logging and subprocess tracing", Predictor: nil},
	},
	Args: cmdflag.PredictNothing,
}

var subcommands = []*cmdflag.Command{
	cmdInit,
	cmdNew,
	cmdSync,
	cmdSyncMissingMeta,
	cmdAddToGroup,
	cmdRemoveFromGroup,
	cmdAddParent,
	cmdInclude,
	cmdExclude,
	cmdDelete,
	cmdRename,
	cmdSyncName,
	cmdCopy,
	cmdForcePush,
	cmdPath,
	cmdWhich,
	cmdRepoStatus,
	cmdYardStatus,
	cmdList,
	cmdListGroups,
	cmdMultiSync,
	cmdCreateUserSymlinks,
	cmdGCLocks,
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	var kind interface{ Kind() string }
	if errors.As(err, &kind) {
		fmt.Fprintf(os.Stderr, "repoyard: %s: %v\n", kind.Kind(), err)
		atexit.Exit(1)
	}
	atexit.Fatal(err)
}

// loadConfig reads the config file selected by -config (or the default
// path), wiring shellutil's subprocess tracing to the -v flag.
func loadConfig() *config.Config {
	shellutil.SetTrace(verbose)
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	exitOnError(err)
	return cfg
}

// autoGCLocks runs the quiet, throttled lock sweep every command other
// than gc-locks itself triggers on startup.
func autoGCLocks() {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return
	}
	removed, err := lockmgr.New(cfg.RepoyardDataPath).AutoCleanupStale(autoGCLocksMaxAge, autoGCLocksInterval)
	if err != nil {
		log.Warningf("auto lock cleanup: %v", err)
		return
	}
	for _, p := range removed {
		log.Infof("removed stale lock %s", p)
	}
}

func newManager(cfg *config.Config) *lifecycle.Manager {
	rc := rclone.New(cfg.RcloneConfigPath)
	rc.ShowProgress = showProgress()
	return lifecycle.New(cfg, rc)
}

// registerCompletions answers shell-completion probes for the global
// flags; it is a no-op outside a completion invocation.
func registerCompletions() {
	cmd := &complete.Command{
		Flags: map[string]complete.Predictor{
			"config":  predict.Files("*"),
			"v":       predict.Nothing,
			"timeout": predict.Something,
		},
	}
	cmd.Complete("repoyard")
}

func main() {
	defer atexit.Exit(0)

	initLogLevel()
	registerCompletions()

	var timeout time.Duration
	cmdMain.BindFlagSet(map[string]interface{}{
		"timeout": &timeout,
		"config":  &configPath,
		"v":       &verbose,
	})

	cmd, args := cmdflag.Parse(cmdMain, subcommands)
	if verbose {
		log.SetLevel("INFO")
	}

	if cmd != cmdGCLocks {
		autoGCLocks()
	}

	disableSoftInt := softint.Enable(softint.DefaultCount)
	defer disableSoftInt()

	ctx := context.Background()
	if timeout > 0 {
		nctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ctx = nctx
	}

	cmd.Run(ctx, cmd, args)
}
