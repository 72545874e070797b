// Package template knows the workspace templates a project can be built on:
// which gradle properties each one expects and where it keeps its libraries,
// run directory and build output.
package template

import (
	"path/filepath"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/manifest"
	"github.com/schaermu/mcmod/internal/props"
)

// Gradle tasks every template provides.
const (
	SetupTask   = "setupDecompWorkspace"
	EclipseTask = "eclipse"
	BuildTask   = "build"
)

// Handler adapts the sync to one workspace template.
type Handler interface {
	// Name is the template name as written in mcmod.yaml.
	Name() manifest.Template
	// GradleProperties derives the template's gradle properties from the
	// manifest.
	GradleProperties(m *manifest.Manifest) (*props.Map, error)
	// JavaVersion is the JDK major version gradle runs task with.
	JavaVersion(task string) int

	LibsDir(targetRoot string) string
	RunDir(targetRoot string) string
	OutputDir(targetRoot string) string
}

// For returns the handler for a template name.
func For(name manifest.Template) (Handler, error) {
	switch name {
	case manifest.TemplateNTMC1710:
		return ntmc{}, nil
	case manifest.TemplateGTNH1710:
		return gtnh{}, nil
	}
	return nil, errkind.New(errkind.NotFound, "no handler for template '%s'", name)
}

// layout is the directory layout shared by the forge 1.7.10 templates.
type layout struct{}

func (layout) LibsDir(targetRoot string) string {
	return filepath.Join(targetRoot, "libs")
}

func (layout) RunDir(targetRoot string) string {
	return filepath.Join(targetRoot, "run")
}

func (layout) OutputDir(targetRoot string) string {
	return filepath.Join(targetRoot, "build", "libs")
}
