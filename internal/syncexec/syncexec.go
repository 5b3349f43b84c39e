// Package syncexec executes a single sync operation for one repo part:
// evaluate the current SyncCondition, choose (or validate) a direction,
// write an incomplete marker, transfer with rclone's --backup-dir safety
// net, then finalize the sync record and purge the backup.
package syncexec

import (
	"context"
	"fmt"
	"path"

	log "github.com/msolo/go-bis/glug"
	"github.com/repoyard/repoyard/internal/model"
	"github.com/repoyard/repoyard/internal/rclone"
	"github.com/repoyard/repoyard/internal/rerr"
	"github.com/repoyard/repoyard/internal/softint"
	"github.com/repoyard/repoyard/internal/syncstate"
)

// Setting is the safety level a sync runs under.
type Setting string

const (
	Careful Setting = "careful"
	Replace Setting = "replace"
	Force   Setting = "force"
)

// Direction is the data flow of a sync. A nil *Direction in Params means
// "auto" — inferred from the evaluated SyncCondition.
type Direction string

const (
	Push Direction = "push"
	Pull Direction = "pull"
)

// Params configures one sync_helper-equivalent invocation.
type Params struct {
	Direction *Direction
	Setting   Setting

	LocalPath            string
	LocalSyncRecordPath  string
	Remote               string
	RemotePath           string
	RemoteSyncRecordPath string

	LocalSyncBackupsPath  string
	RemoteSyncBackupsPath string

	SyncOpts rclone.SyncOpts

	DeleteBackup   bool
	SyncerHostname string
}

// Executor runs sync_helper-equivalent operations against one rclone client.
type Executor struct {
	RC   *rclone.Client
	Eval *syncstate.Evaluator
}

func New(rc *rclone.Client) *Executor {
	return &Executor{RC: rc, Eval: syncstate.New(rc)}
}

func unsafe(st *syncstate.Status) error {
	return &rerr.SyncUnsafe{
		LocalExists:  st.LocalPathExists,
		RemoteExists: st.RemotePathExists,
		LocalRecord:  recordString(st.LocalRecord),
		RemoteRecord: recordString(st.RemoteRecord),
		Condition:    string(st.Condition),
	}
}

func recordString(r *model.SyncRecord) string {
	if r == nil {
		return "<none>"
	}
	return r.ULID.String()
}

// Exec runs one sync, returning the status it observed and whether a
// transfer actually took place.
func (e *Executor) Exec(ctx context.Context, p Params) (*syncstate.Status, bool, error) {
	if p.RemotePath == "" {
		return nil, false, &rerr.InvalidRemotePath{}
	}
	if p.Direction == nil && p.Setting != Careful {
		return nil, false, fmt.Errorf("auto sync direction can only be used with the careful sync setting")
	}
	if softint.Check() {
		return nil, false, &rerr.Interrupted{}
	}

	status, err := e.Eval.Evaluate(ctx, p.LocalPath, p.LocalSyncRecordPath, p.Remote, p.RemotePath, p.RemoteSyncRecordPath)
	if err != nil {
		return nil, false, err
	}

	if status.Condition == syncstate.ErrorCondition && p.Setting != Force {
		return status, false, fmt.Errorf("%s", status.ErrorMessage)
	}
	if p.Setting != Force && status.Condition == syncstate.Synced {
		log.Infof("sync not needed for %s", p.RemotePath)
		return status, false, nil
	}

	direction := p.Direction
	if direction == nil {
		d, done, derr := autoDirection(status)
		if derr != nil {
			return status, false, derr
		}
		if done {
			return status, false, nil
		}
		direction = &d
	}

	if p.Setting == Careful {
		if err := validateCareful(*direction, status); err != nil {
			return status, false, err
		}
	}

	if softint.Check() {
		return status, false, &rerr.Interrupted{}
	}

	rec, err := model.NewSyncRecord(false, p.SyncerHostname)
	if err != nil {
		return status, false, err
	}
	backupName := rec.ULID.String()

	var (
		ok           bool
		output       string
		backupRemote string
		backupPath   string
	)

	switch *direction {
	case Pull:
		if err := e.writeRecord(ctx, "", p.LocalSyncRecordPath, rec); err != nil {
			return status, false, err
		}
		backupRemote = ""
		backupPath = path.Join(p.LocalSyncBackupsPath, backupName)

		output, ok, err = e.transfer(ctx, p.Remote, p.RemotePath, "", p.LocalPath, backupRemote, backupPath, status.IsDir, p.SyncOpts)
		if err != nil {
			return status, false, err
		}
		if ok {
			remoteRec, rerr2 := e.readRemoteRecord(ctx, p.Remote, p.RemoteSyncRecordPath)
			if rerr2 != nil {
				return status, false, rerr2
			}
			if remoteRec != nil {
				if err := e.writeRecord(ctx, "", p.LocalSyncRecordPath, remoteRec); err != nil {
					return status, false, err
				}
				rec = remoteRec
			}
		}
	case Push:
		if err := e.writeRecord(ctx, p.Remote, p.RemoteSyncRecordPath, rec); err != nil {
			return status, false, err
		}
		backupRemote = p.Remote
		backupPath = path.Join(p.RemoteSyncBackupsPath, backupName)

		output, ok, err = e.transfer(ctx, "", p.LocalPath, p.Remote, p.RemotePath, backupRemote, backupPath, status.IsDir, p.SyncOpts)
		if err != nil {
			return status, false, err
		}
		if ok {
			complete, cerr := model.NewSyncRecord(true, p.SyncerHostname)
			if cerr != nil {
				return status, false, cerr
			}
			if err := e.writeRecord(ctx, "", p.LocalSyncRecordPath, complete); err != nil {
				return status, false, err
			}
			if err := e.writeRecord(ctx, p.Remote, p.RemoteSyncRecordPath, complete); err != nil {
				return status, false, err
			}
			rec = complete
		}
	default:
		return status, false, fmt.Errorf("unknown sync direction: %s", *direction)
	}

	if !ok {
		failed := &rerr.SyncFailed{Stdout: output}
		if rclone.IsTransientOutput(output) {
			return status, false, &rerr.TransientIO{Cause: failed}
		}
		return status, false, failed
	}

	if p.DeleteBackup {
		if err := e.RC.Purge(ctx, backupRemote, backupPath); err != nil {
			log.Warningf("failed to purge sync backup %s:%s: %v", backupRemote, backupPath, err)
		}
	}

	return status, true, nil
}

func autoDirection(status *syncstate.Status) (Direction, bool, error) {
	switch status.Condition {
	case syncstate.NeedsPush:
		return Push, false, nil
	case syncstate.NeedsPull:
		return Pull, false, nil
	case syncstate.Excluded:
		log.Infof("sync not needed: excluded")
		return "", true, nil
	default:
		return "", false, unsafe(status)
	}
}

func validateCareful(direction Direction, status *syncstate.Status) error {
	switch direction {
	case Push:
		if status.Condition != syncstate.NeedsPush && status.Condition != syncstate.Synced {
			return unsafe(status)
		}
	case Pull:
		if status.Condition != syncstate.NeedsPull && status.Condition != syncstate.Synced {
			return unsafe(status)
		}
	}
	return nil
}

// transfer runs the backup-protected rclone sync, adjusting the
// destination to its parent when the synced item is a file rather than a
// directory (rclone sync requires directory destinations).
func (e *Executor) transfer(ctx context.Context, srcRemote, srcPath, dstRemote, dstPath, backupRemote, backupPath string, isDir bool, opts rclone.SyncOpts) (output string, ok bool, err error) {
	if !isDir {
		dstPath = path.Dir(dstPath)
		if dstPath == "." {
			dstPath = ""
		}
	}
	if err := e.RC.Mkdir(ctx, backupRemote, backupPath); err != nil {
		return "", false, err
	}
	opts.BackupRemote = backupRemote
	opts.BackupPath = backupPath
	output, err = e.RC.Sync(ctx, srcRemote, srcPath, dstRemote, dstPath, opts)
	if err != nil {
		return output, false, nil
	}
	return output, true, nil
}

func (e *Executor) writeRecord(ctx context.Context, remote, recordPath string, rec *model.SyncRecord) error {
	data, err := rec.Marshal()
	if err != nil {
		return err
	}
	if remote == "" {
		return model.WriteFileAtomic(recordPath, data, 0o644)
	}
	return e.RC.WriteFile(ctx, remote, recordPath, data)
}

func (e *Executor) readRemoteRecord(ctx context.Context, remote, recordPath string) (*model.SyncRecord, error) {
	exists, data, err := e.RC.Cat(ctx, remote, recordPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return model.UnmarshalSyncRecord(data)
}
