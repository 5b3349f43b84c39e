// Package shellutil wraps external subprocess invocation the way the rest
// of this codebase needs it: a restricted environment so that rclone and
// git never inherit surprising ambient state, bash-quoting for debug
// strings, and an exec.Cmd wrapper that traces invocations and unwraps
// *exec.ExitError into something that prefixes stderr per line.
package shellutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"
	"syscall"

	log "github.com/msolo/go-bis/glug"
	"github.com/pkg/errors"
)

// RestrictedEnv returns the minimal environment subprocesses need: enough
// to resolve binaries and a user's home/ssh-agent, nothing ambient that
// could change rclone or git's behavior out from under us.
func RestrictedEnv() []string {
	env := make([]string, 0, 8)
	for _, name := range []string{"PATH", "USER", "LOGNAME", "HOME", "SSH_AUTH_SOCK"} {
		if val, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+val)
		}
	}
	// rclone respects its own config/cache-dir overrides; let those through
	// if the caller set them rather than forcing a particular location.
	for _, name := range []string{"RCLONE_CONFIG", "RCLONE_CACHE_DIR"} {
		if val, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+val)
		}
	}
	return env
}

const safeUnquoted = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789@%_-+=:,./"

// BashQuoteWord quotes s for safe use in a bash command line. It prefers
// an unquoted or single-quoted form; the intended use is producing a
// debug string that can be copy-pasted into a shell.
func BashQuoteWord(s string) string {
	if strings.HasPrefix(s, "~/") {
		return s
	}
	if s == "" {
		return "''"
	}
	hasUnsafe := false
	for _, r := range s {
		if !strings.ContainsRune(safeUnquoted, r) {
			hasUnsafe = true
			break
		}
	}
	if !hasUnsafe {
		return s
	}
	return "'" + strings.Replace(s, "'", "'\"'\"'", -1) + "'"
}

// BashQuoteCmd joins args, quoting each with BashQuoteWord.
func BashQuoteCmd(args []string) string {
	out := make([]string, len(args))
	for i, x := range args {
		out[i] = BashQuoteWord(x)
	}
	return strings.Join(out, " ")
}

// Cmd wraps *exec.Cmd with tracing and error normalization.
type Cmd struct {
	*exec.Cmd
	trace bool
}

var trace = true

// SetTrace toggles subprocess tracing globally; the CLI wires this to a
// verbosity flag.
func SetTrace(t bool) { trace = t }

// ExitError adapts *exec.ExitError so Cause() recovers it through
// github.com/pkg/errors and Error() prefixes each stderr line with the
// binary's basename.
type ExitError struct {
	*exec.ExitError
	*exec.Cmd
}

func (xe *ExitError) Cause() error { return xe.ExitError }

func (xe *ExitError) Error() string {
	return fmt.Sprintf("cmd failed: %s\n%s", xe.ExitError, xe.ExitError.Stderr)
}

// Command builds a restricted-environment Cmd for name/args.
func Command(name string, arg ...string) *Cmd {
	cmd := exec.Command(name, arg...)
	cmd.Env = RestrictedEnv()
	return &Cmd{Cmd: cmd, trace: trace}
}

// CommandContext is Command with a context-scoped deadline/cancellation.
func CommandContext(ctx context.Context, name string, arg ...string) *Cmd {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Env = RestrictedEnv()
	return &Cmd{Cmd: cmd, trace: trace}
}

func wrapErr(err error, cmd *exec.Cmd) error {
	err = errors.Cause(err)
	if exitErr, ok := err.(*exec.ExitError); ok {
		prefix := "  " + path.Base(cmd.Args[0]) + ": "
		if len(exitErr.Stderr) > 0 {
			exitErr.Stderr = append([]byte(prefix),
				bytes.Replace(exitErr.Stderr[:len(exitErr.Stderr)-1], []byte("\n"), []byte("\n"+prefix), -1)...)
			exitErr.Stderr = append(exitErr.Stderr, '\n')
		}
		return &ExitError{exitErr, cmd}
	}
	return err
}

func (cmd *Cmd) bashString() string {
	return BashQuoteCmd(cmd.Args)
}

// Run executes the command, discarding stdout, and returns a normalized error.
func (cmd *Cmd) Run() error {
	if cmd.trace {
		defer log.Tracef("perf: {{.durationStr}} exec: {{.cmd}}", map[string]interface{}{"cmd": cmd.bashString()}).Finish()
	}
	return wrapErr(cmd.Cmd.Run(), cmd.Cmd)
}

// Output runs the command and returns captured stdout.
func (cmd *Cmd) Output() ([]byte, error) {
	if cmd.trace {
		defer log.Tracef("perf: {{.durationStr}} exec: {{.cmd}}", map[string]interface{}{"cmd": cmd.bashString()}).Finish()
	}
	data, err := cmd.Cmd.Output()
	return data, wrapErr(err, cmd.Cmd)
}

// CombinedOutput runs the command and returns combined stdout+stderr.
func (cmd *Cmd) CombinedOutput() ([]byte, error) {
	if cmd.trace {
		defer log.Tracef("perf: {{.durationStr}} exec: {{.cmd}}", map[string]interface{}{"cmd": cmd.bashString()}).Finish()
	}
	data, err := cmd.Cmd.CombinedOutput()
	return data, wrapErr(err, cmd.Cmd)
}

// ExitStatus extracts the process exit status from a wrapped or bare error.
func ExitStatus(err error) (int, error) {
	err = errors.Cause(err)
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.Sys().(syscall.WaitStatus).ExitStatus(), nil
	}
	return 0, errors.New("invalid error type")
}
