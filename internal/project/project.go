// Package project locates an mcmod project on disk and owns its manifest.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/manifest"
)

// Project is a mod project rooted at the directory holding mcmod.yaml.
type Project struct {
	Root string

	once     sync.Once
	manifest *manifest.Manifest
	err      error
}

// New returns a project for a known root directory.
func New(root string) *Project {
	return &Project{Root: root}
}

// Open canonicalizes dir and walks up until a directory containing
// mcmod.yaml is found.
func Open(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errkind.Wrap(errkind.NotFound, err, "failed to resolve %s", dir)
	}

	current := abs
	for {
		if _, err := os.Stat(filepath.Join(current, manifest.FileName)); err == nil {
			return New(current), nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil, errkind.New(errkind.NotFound, "could not find project root: no %s in %s or any parent", manifest.FileName, abs)
		}
		current = parent
	}
}

// Manifest loads the manifest on first use. Later calls, including
// concurrent ones, get the same value or error.
func (p *Project) Manifest() (*manifest.Manifest, error) {
	p.once.Do(func() {
		p.manifest, p.err = manifest.Load(p.ManifestPath(), p.SourceRoot())
	})
	return p.manifest, p.err
}

// Name is the base name of the project directory.
func (p *Project) Name() string {
	return filepath.Base(p.Root)
}

func (p *Project) ManifestPath() string {
	return filepath.Join(p.Root, manifest.FileName)
}

// TargetRoot is the generated gradle workspace.
func (p *Project) TargetRoot() string {
	return filepath.Join(p.Root, "target")
}

func (p *Project) SourceRoot() string {
	return filepath.Join(p.Root, "src")
}

func (p *Project) AssetsRoot() string {
	return filepath.Join(p.Root, "assets")
}

// BuildDescriptionPath is the ninja file describing the copy graph.
func (p *Project) BuildDescriptionPath() string {
	return filepath.Join(p.Root, "build.ninja")
}

// LockPath guards against concurrent syncs of the same project.
func (p *Project) LockPath() string {
	return filepath.Join(p.Root, ".mcmod.lock")
}
