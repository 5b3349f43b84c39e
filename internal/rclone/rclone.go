// Package rclone wraps the rclone binary, the single external
// file-transfer tool this module is layered over. Every call here is an
// external subprocess; source and dest are "remote:path" specs, or bare
// local paths when the remote name is empty.
package rclone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	log "github.com/msolo/go-bis/glug"
	"github.com/repoyard/repoyard/internal/shellutil"
	"github.com/tebeka/atexit"
)

// Client issues rclone subprocess calls against a single rclone config file.
type Client struct {
	ConfigPath string
	// ShowProgress, when true, passes --progress to transfer operations.
	// Wired to isatty in cmd/repoyard/cfmt.go.
	ShowProgress bool
}

func New(configPath string) *Client {
	return &Client{ConfigPath: configPath}
}

// spec formats a (remote, path) pair the way rclone expects on the
// command line: "remote:path", or a bare path when remote is "" (a local
// filesystem path, used for this machine's side of every transfer).
func spec(remote, p string) string {
	if remote == "" {
		return p
	}
	return remote + ":" + p
}

func (c *Client) baseArgs() []string {
	if c.ConfigPath == "" {
		return nil
	}
	return []string{"--config", c.ConfigPath}
}

func (c *Client) command(ctx context.Context, args ...string) *shellutil.Cmd {
	full := append(append([]string{}, c.baseArgs()...), args...)
	return shellutil.CommandContext(ctx, "rclone", full...)
}

// Item is one entry from `rclone lsjson`.
type Item struct {
	Path    string `json:"Path"`
	Name    string `json:"Name"`
	Size    int64  `json:"Size"`
	IsDir   bool   `json:"IsDir"`
	ModTime string `json:"ModTime"`
}

// LsJSONOpts controls an `rclone lsjson` invocation.
type LsJSONOpts struct {
	DirsOnly  bool
	FilesOnly bool
	Recursive bool
	MaxDepth  int
}

// LsJSON lists the contents of remote:path. A nonexistent directory
// yields (nil, nil), not an error — callers use Exists first when they
// need to distinguish "empty" from "absent".
func (c *Client) LsJSON(ctx context.Context, remote, p string, opts LsJSONOpts) ([]Item, error) {
	args := []string{"lsjson"}
	if opts.DirsOnly {
		args = append(args, "--dirs-only")
	}
	if opts.FilesOnly {
		args = append(args, "--files-only")
	}
	if opts.Recursive {
		args = append(args, "-R")
	}
	if opts.MaxDepth > 0 {
		args = append(args, "--max-depth", fmt.Sprintf("%d", opts.MaxDepth))
	}
	args = append(args, spec(remote, p))
	out, err := c.command(ctx, args...).Output()
	if err != nil {
		if isNotFoundErr(err) {
			return nil, nil
		}
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("parsing rclone lsjson output: %w", err)
	}
	return items, nil
}

func isNotFoundErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "directory not found") ||
		strings.Contains(msg, "couldn't list files") ||
		strings.Contains(msg, "not found")
}

// transientMarkers are rclone output fragments that indicate a
// retryable environment problem (network or remote hiccup) rather than a
// disagreement about state. Rerunning the command is the fix; nothing at
// this layer retries.
var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"timeout exceeded",
	"temporarily unavailable",
	"temporary failure",
	"TLS handshake",
	"unexpected EOF",
	"no route to host",
	"network is unreachable",
	"too many requests",
	"service unavailable",
	"internal server error",
	"bad gateway",
	"gateway timeout",
}

// IsTransientOutput reports whether failed-transfer output looks like a
// transient network/remote problem rather than a state mismatch.
func IsTransientOutput(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// Exists reports whether remote:p exists, and whether it is a directory.
// The root of a storage location ("" or ".") always exists.
func (c *Client) Exists(ctx context.Context, remote, p string) (exists, isDir bool, err error) {
	clean := path.Clean(p)
	if clean == "." || clean == "" {
		return true, true, nil
	}
	parent := path.Dir(clean)
	base := path.Base(clean)
	items, err := c.LsJSON(ctx, remote, parent, LsJSONOpts{})
	if err != nil {
		return false, false, err
	}
	for _, it := range items {
		if it.Name == base {
			return true, it.IsDir, nil
		}
	}
	return false, false, nil
}

// Mkdir creates remote:p (and any parents), matching rclone mkdir's
// idempotent semantics.
func (c *Client) Mkdir(ctx context.Context, remote, p string) error {
	return c.command(ctx, "mkdir", spec(remote, p)).Run()
}

// Delete removes a single file at remote:p (not a whole tree; see Purge).
func (c *Client) Delete(ctx context.Context, remote, p string) error {
	return c.command(ctx, "deletefile", spec(remote, p)).Run()
}

// Purge removes remote:p and everything under it. Purging a path that
// does not exist is not an error.
func (c *Client) Purge(ctx context.Context, remote, p string) error {
	err := c.command(ctx, "purge", spec(remote, p)).Run()
	if err != nil && isNotFoundErr(err) {
		return nil
	}
	return err
}

// Cat reads a small remote file whole. A nonexistent file yields
// (false, nil, nil), not an error.
func (c *Client) Cat(ctx context.Context, remote, p string) (exists bool, content []byte, err error) {
	out, err := c.command(ctx, "cat", spec(remote, p)).Output()
	if err != nil {
		if isNotFoundErr(err) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, out, nil
}

// WriteFile publishes data as a single small remote file (how sync records
// are written): it stages the content in a local temp file, then copies
// that file to remote:p with CopyTo. The temp file is registered with
// atexit so a hard process exit mid-copy still leaves it cleaned up.
func (c *Client) WriteFile(ctx context.Context, remote, p string, data []byte) error {
	tmp, err := os.CreateTemp("", "repoyard-rec-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	atexit.Register(func() { os.Remove(tmpPath) })
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return c.CopyTo(ctx, "", tmpPath, remote, p)
}

// CopyTo copies a single file from srcRemote:srcPath to dstRemote:dstPath,
// creating/replacing the destination file (used to publish sync records).
func (c *Client) CopyTo(ctx context.Context, srcRemote, srcPath, dstRemote, dstPath string) error {
	return c.command(ctx, "copyto", spec(srcRemote, srcPath), spec(dstRemote, dstPath)).Run()
}

// Copy copies the contents of srcRemote:srcPath into dstRemote:dstPath
// (a directory copy, as opposed to CopyTo's single-file copy), returning
// combined stdout+stderr for diagnostics on failure. Used by copy-out to
// download a repo's DATA tree to an arbitrary destination without going
// through the sync-record bookkeeping Sync implies.
func (c *Client) Copy(ctx context.Context, srcRemote, srcPath, dstRemote, dstPath string) (output string, err error) {
	args := []string{"copy", spec(srcRemote, srcPath), spec(dstRemote, dstPath)}
	if c.ShowProgress {
		args = append(args, "--progress")
	}
	cmd := c.command(ctx, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	log.Infof("rclone copy %s:%s -> %s:%s", srcRemote, srcPath, dstRemote, dstPath)
	err = cmd.Run()
	return buf.String(), err
}

// SyncOpts controls an `rclone sync` invocation: filter files/patterns and
// the backup directory that receives files the sync would otherwise
// overwrite or delete on the destination.
type SyncOpts struct {
	Include      []string
	Exclude      []string
	Filter       []string
	IncludeFile  string
	ExcludeFile  string
	FiltersFile  string
	BackupRemote string
	BackupPath   string
	DryRun       bool
}

// Sync runs a one-way sync of srcRemote:srcPath onto dstRemote:dstPath,
// returning combined stdout+stderr for diagnostics on failure.
func (c *Client) Sync(ctx context.Context, srcRemote, srcPath, dstRemote, dstPath string, opts SyncOpts) (output string, err error) {
	args := []string{"sync", spec(srcRemote, srcPath), spec(dstRemote, dstPath)}
	for _, inc := range opts.Include {
		args = append(args, "--include", inc)
	}
	for _, exc := range opts.Exclude {
		args = append(args, "--exclude", exc)
	}
	for _, f := range opts.Filter {
		args = append(args, "--filter", f)
	}
	if opts.IncludeFile != "" {
		args = append(args, "--include-from", opts.IncludeFile)
	}
	if opts.ExcludeFile != "" {
		args = append(args, "--exclude-from", opts.ExcludeFile)
	}
	if opts.FiltersFile != "" {
		args = append(args, "--filter-from", opts.FiltersFile)
	}
	if opts.BackupPath != "" {
		args = append(args, "--backup-dir", spec(opts.BackupRemote, opts.BackupPath))
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	if c.ShowProgress {
		args = append(args, "--progress")
	}

	cmd := c.command(ctx, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	log.Infof("rclone sync %s:%s -> %s:%s", srcRemote, srcPath, dstRemote, dstPath)
	err = cmd.Run()
	return buf.String(), err
}
