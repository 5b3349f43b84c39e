// Package rerr defines the typed error kinds this module raises, so the
// CLI layer can switch on kind rather than parse error strings. Every kind
// implements error plus a Kind() string. Call sites wrap these errors with
// fmt.Errorf's %w, and TransientIO exposes its cause through Unwrap, so the
// standard library's errors.As and errors.Unwrap reach them through such
// wrapping.
package rerr

import "fmt"

// LockHeld reports a lock acquisition timeout.
type LockHeld struct {
	LockPath string
	Timeout  string
}

func (e *LockHeld) Kind() string { return "LockHeld" }
func (e *LockHeld) Error() string {
	return fmt.Sprintf("could not acquire lock within %s: %s (if you believe the lock is stale, remove the file at %s)",
		e.Timeout, e.LockPath, e.LockPath)
}

// SyncFailed reports a non-zero rclone invocation.
type SyncFailed struct {
	Stdout string
	Stderr string
}

func (e *SyncFailed) Kind() string { return "SyncFailed" }
func (e *SyncFailed) Error() string {
	return fmt.Sprintf("sync failed. rclone output:\n%s\n%s", e.Stdout, e.Stderr)
}

// SyncUnsafe reports a direction incompatible with the observed condition
// under the CAREFUL safety setting.
type SyncUnsafe struct {
	LocalExists  bool
	RemoteExists bool
	LocalRecord  string
	RemoteRecord string
	Condition    string
}

func (e *SyncUnsafe) Kind() string { return "SyncUnsafe" }
func (e *SyncUnsafe) Error() string {
	return fmt.Sprintf("sync is unsafe. info:\n  local exists: %v\n  remote exists: %v\n  local sync record: %s\n  remote sync record: %s\n  sync condition: %s",
		e.LocalExists, e.RemoteExists, e.LocalRecord, e.RemoteRecord, e.Condition)
}

// InvalidRemotePath reports a disqualified (empty) remote path.
type InvalidRemotePath struct{}

func (e *InvalidRemotePath) Kind() string { return "InvalidRemotePath" }
func (e *InvalidRemotePath) Error() string {
	return "remote path cannot be empty"
}

// LifecycleConflict reports a lifecycle precondition violation: already
// included, tombstoned, not found, group name conflict, parent cycle, etc.
type LifecycleConflict struct {
	Message string
}

func (e *LifecycleConflict) Kind() string { return "LifecycleConflict" }
func (e *LifecycleConflict) Error() string {
	return e.Message
}

// TransientIO reports a transient rclone/filesystem failure. This layer
// never retries; the caller reruns the command.
type TransientIO struct {
	Cause error
}

func (e *TransientIO) Kind() string { return "TransientIO" }
func (e *TransientIO) Error() string {
	return fmt.Sprintf("transient I/O error: %v", e.Cause)
}
func (e *TransientIO) Unwrap() error { return e.Cause }

// Interrupted reports a clean soft-interrupt exit at a part boundary.
type Interrupted struct{}

func (e *Interrupted) Kind() string  { return "Interrupted" }
func (e *Interrupted) Error() string { return "interrupted by signal" }
