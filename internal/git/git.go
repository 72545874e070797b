// Package git clones workspace templates.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/schaermu/mcmod/internal/errkind"
)

// Client provides git operations for template provisioning
type Client interface {
	// Clone makes a shallow checkout of branch, including submodules, in
	// destDir. destDir must not exist or be empty.
	Clone(ctx context.Context, url, branch, destDir string) error
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct{}

// NewShellClient creates a new git client that uses the git command
func NewShellClient() *ShellClient {
	return &ShellClient{}
}

// Clone runs git clone --branch <branch> --depth 1 --recurse-submodules
func (c *ShellClient) Clone(ctx context.Context, url, branch, destDir string) error {
	if err := prepareDest(destDir); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "git", "clone",
		"--branch", branch,
		"--depth", "1",
		"--recurse-submodules",
		url, destDir)
	if err := c.runCommand(ctx, cmd); err != nil {
		return fmt.Errorf("git clone of %s failed: %w", url, err)
	}
	return nil
}

// runCommand executes a command and returns an error with its output on failure
func (c *ShellClient) runCommand(ctx context.Context, cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errkind.Tool(ctx, "git", err, output)
	}
	return nil
}

// GoGitClient implements Client with the go-git library, for hosts without a
// git binary.
type GoGitClient struct{}

// NewGoGitClient creates a git client backed by go-git
func NewGoGitClient() *GoGitClient {
	return &GoGitClient{}
}

// Clone makes a single-branch clone of branch with submodules
func (c *GoGitClient) Clone(ctx context.Context, url, branch, destDir string) error {
	if err := prepareDest(destDir); err != nil {
		return err
	}

	opts := &gogit.CloneOptions{
		URL:               url,
		ReferenceName:     plumbing.NewBranchReferenceName(branch),
		SingleBranch:      true,
		Depth:             1,
		RecurseSubmodules: gogit.DefaultSubmoduleRecursionDepth,
	}
	// The in-process file transport does not negotiate shallow clones.
	if isLocalPath(url) {
		opts.Depth = 0
	}

	if _, err := gogit.PlainCloneContext(ctx, destDir, false, opts); err != nil {
		_ = os.RemoveAll(destDir)
		if ctx.Err() != nil {
			return errkind.Wrap(errkind.Cancelled, ctx.Err(), "git clone of %s interrupted", url)
		}
		if errors.Is(err, plumbing.ErrReferenceNotFound) || strings.Contains(err.Error(), "couldn't find remote ref") {
			return errkind.Wrap(errkind.NotFound, err, "branch %s not found in %s", branch, url)
		}
		return errkind.Wrap(errkind.ExternalTool, err, "git clone of %s failed", url)
	}
	return nil
}

// prepareDest creates the parent of destDir and rejects a non-empty destDir.
func prepareDest(destDir string) error {
	entries, err := os.ReadDir(destDir)
	if err == nil && len(entries) > 0 {
		return errkind.New(errkind.Conflict, "cannot clone into non-empty directory %s", destDir)
	}
	if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	return nil
}

func isLocalPath(url string) bool {
	if strings.HasPrefix(url, "file://") {
		return true
	}
	if strings.Contains(url, "://") {
		return false
	}
	// scp-like syntax: user@host:path
	if i := strings.Index(url, ":"); i > 0 && !filepath.IsAbs(url) && !strings.ContainsAny(url[:i], `/\`) {
		return false
	}
	return true
}
