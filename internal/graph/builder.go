// Package graph turns a manifest's copy rules into a file-copy build graph
// by walking the declared source trees concurrently.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/fsutil"
	"github.com/schaermu/mcmod/internal/manifest"
	"github.com/schaermu/mcmod/internal/ninja"
)

// Builder walks copy rules and emits one edge per regular file.
type Builder struct {
	rule   ninja.Rule
	logger *slog.Logger
}

// NewBuilder creates a builder emitting edges with the copy rule.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{rule: ninja.CopyRule(), logger: logger}
}

// Build deletes the targets of delete-sentinel rules, then walks every other
// rule's source under sourceRoot and mirrors its directory structure under
// targetRoot. Directories are created eagerly; files become edges.
func (b *Builder) Build(ctx context.Context, sourceRoot, targetRoot string, rules []manifest.CopyRule) (*ninja.Graph, error) {
	for _, rule := range rules {
		if !rule.IsDelete() {
			continue
		}
		target := filepath.Join(targetRoot, filepath.FromSlash(rule.Target))
		removed, err := fsutil.RemoveIfExists(target)
		if err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", target, err)
		}
		if removed {
			b.logger.Info("removed retired copy target", "path", target)
		}
	}

	type root struct{ source, target string }
	var roots []root
	for _, rule := range rules {
		if rule.IsDelete() {
			continue
		}
		source := filepath.Join(sourceRoot, filepath.FromSlash(rule.Source))
		if _, err := os.Stat(source); err != nil {
			return nil, errkind.New(errkind.NotFound,
				"source path '%s' does not exist. Please remove it from %s", source, manifest.FileName)
		}
		roots = append(roots, root{source: source, target: filepath.Join(targetRoot, filepath.FromSlash(rule.Target))})
	}

	graph := ninja.NewGraph(b.rule)
	var g errgroup.Group
	for _, r := range roots {
		g.Go(func() error {
			return b.walk(ctx, graph, r.source, r.target, nil)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return graph, nil
}

// visited is a directory on the path from a walk's root to the current entry.
type visited struct {
	path string
	info os.FileInfo
}

// walk adds the edges for source. For a directory every entry is walked in
// its own goroutine and the call returns after all of them finished.
// ancestors holds the directories above source on this branch; a symlink
// back into one of them is a cycle.
func (b *Builder) walk(ctx context.Context, graph *ninja.Graph, source, target string, ancestors []visited) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Stat follows symlinks.
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", source, err)
	}

	switch {
	case info.IsDir():
		for _, a := range ancestors {
			if os.SameFile(a.info, info) {
				return errkind.New(errkind.InvalidData,
					"symlink cycle: '%s' leads back to '%s'", source, a.path)
			}
		}
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", target, err)
		}
		entries, err := os.ReadDir(source)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", source, err)
		}
		chain := make([]visited, len(ancestors), len(ancestors)+1)
		copy(chain, ancestors)
		chain = append(chain, visited{path: source, info: info})

		var g errgroup.Group
		for _, entry := range entries {
			name := entry.Name()
			g.Go(func() error {
				return b.walk(ctx, graph, filepath.Join(source, name), filepath.Join(target, name), chain)
			})
		}
		return g.Wait()
	case info.Mode().IsRegular():
		return graph.Add(ninja.Edge{Output: target, Input: source})
	default:
		b.logger.Debug("skipping non-regular file", "path", source, "mode", info.Mode().String())
		return nil
	}
}
