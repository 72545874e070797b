package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/schaermu/mcmod/internal/config"
	"github.com/schaermu/mcmod/internal/eclipse"
	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/fsutil"
	"github.com/schaermu/mcmod/internal/git"
	"github.com/schaermu/mcmod/internal/gradle"
	"github.com/schaermu/mcmod/internal/manifest"
	"github.com/schaermu/mcmod/internal/ninja"
	"github.com/schaermu/mcmod/internal/project"
	"github.com/schaermu/mcmod/internal/props"
	"github.com/schaermu/mcmod/internal/template"
)

// GraphBuilder turns copy rules into a copy graph.
type GraphBuilder interface {
	Build(ctx context.Context, sourceRoot, targetRoot string, rules []manifest.CopyRule) (*ninja.Graph, error)
}

// Reconciler keeps a dependency directory in line with declared references.
type Reconciler interface {
	Reconcile(ctx context.Context, targetDir string, declared []manifest.Reference, urlPrefix string) error
}

// EULA makes sure the server EULA is agreed to in a run directory.
type EULA interface {
	Ensure(runDir string) error
}

// Tools are the collaborators the engine drives.
type Tools struct {
	Git        git.Client
	Gradle     gradle.Runner
	Ninja      ninja.Runner
	Graph      GraphBuilder
	Reconciler Reconciler
	EULA       EULA
}

// Engine orchestrates the sync process
type Engine struct {
	project   *project.Project
	cfg       *config.Config
	tools     Tools
	logger    *slog.Logger
	noEclipse bool
}

// NewEngine creates a new sync engine
func NewEngine(p *project.Project, cfg *config.Config, tools Tools, logger *slog.Logger, noEclipse bool) *Engine {
	return &Engine{
		project:   p,
		cfg:       cfg,
		tools:     tools,
		logger:    logger,
		noEclipse: noEclipse,
	}
}

// Run syncs the target workspace with the project. An incremental sync only
// copies sources; it is turned into a full one while the workspace has no
// template.
func (e *Engine) Run(ctx context.Context, incremental bool) error {
	return e.locked(func() error {
		return e.sync(ctx, incremental, !e.noEclipse)
	})
}

// Build fully syncs the project, builds it and returns the directory the
// built jars are in.
func (e *Engine) Build(ctx context.Context) (string, error) {
	if err := e.locked(func() error { return e.sync(ctx, false, true) }); err != nil {
		return "", err
	}
	handler, err := e.handler()
	if err != nil {
		return "", err
	}
	if err := e.gradle(ctx, handler, template.BuildTask); err != nil {
		return "", fmt.Errorf("failed to build: %w", err)
	}
	return handler.OutputDir(e.project.TargetRoot()), nil
}

// RunGame syncs the project and runs a gradle task in the workspace.
// Commands starting with "client" or "server" run the matching runClient…
// and runServer… tasks, the latter after the EULA is agreed to. Any other
// command is passed to gradle as is.
func (e *Engine) RunGame(ctx context.Context, command string, fullSync bool) error {
	if err := e.Run(ctx, !fullSync); err != nil {
		return err
	}
	handler, err := e.handler()
	if err != nil {
		return err
	}

	task := GameTask(command)
	if strings.HasPrefix(command, "server") {
		if err := e.tools.EULA.Ensure(handler.RunDir(e.project.TargetRoot())); err != nil {
			return err
		}
	}
	e.logger.Info("running gradle task", "task", task)
	return e.gradle(ctx, handler, task)
}

// GameTask maps a run command to its gradle task.
func GameTask(command string) string {
	if rest, ok := strings.CutPrefix(command, "client"); ok {
		return "runClient" + rest
	}
	if rest, ok := strings.CutPrefix(command, "server"); ok {
		return "runServer" + rest
	}
	return command
}

// locked runs fn while holding the project lock.
func (e *Engine) locked(fn func() error) error {
	lock := flock.New(e.project.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock project: %w", err)
	}
	if !ok {
		return errkind.New(errkind.Conflict, "another sync is in progress (%s)", e.project.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			e.logger.Warn("failed to release project lock", "path", e.project.LockPath(), "error", err)
		}
	}()
	return fn()
}

func (e *Engine) handler() (template.Handler, error) {
	m, err := e.project.Manifest()
	if err != nil {
		return nil, err
	}
	return template.For(m.Template)
}

func (e *Engine) sync(ctx context.Context, incremental, withEclipse bool) error {
	m, err := e.project.Manifest()
	if err != nil {
		return err
	}
	targetRoot := e.project.TargetRoot()

	state, err := loadState(targetRoot)
	if err != nil {
		if !errkind.Is(err, errkind.InvalidData) {
			return err
		}
		e.logger.Warn("failed to load sync state (will treat as fresh workspace)", "error", err)
		state = &State{}
	}

	d := Decide(state, incremental, m.Template)
	if d.Forced {
		e.logger.Warn("forcing full sync since the template has not been set up")
	}
	e.logger.Info("starting sync",
		"project", e.project.Root,
		"template", m.Template,
		"incremental", d.Incremental)

	if d.Incremental {
		return e.syncSource(ctx, m, false)
	}

	handler, err := template.For(m.Template)
	if err != nil {
		return err
	}

	if d.Reprovision {
		if err := e.provision(ctx, m.Template); err != nil {
			return err
		}
		state = &State{Template: m.Template}
		if err := saveState(targetRoot, state); err != nil {
			return err
		}
	} else {
		e.logger.Info("using existing target template", "template", m.Template)
	}

	e.logger.Info("syncing gradle properties")
	if err := e.syncGradleProperties(m, handler); err != nil {
		return err
	}

	e.logger.Info("syncing source")
	if err := e.syncSource(ctx, m, true); err != nil {
		return err
	}

	e.logger.Info("syncing metadata")
	if err := e.syncMetadata(ctx, m); err != nil {
		return err
	}

	if err := e.syncDependencies(ctx, m, handler); err != nil {
		return err
	}

	if d.NeedsSetup {
		e.logger.Info("setting up target template", "template", m.Template)
		if err := e.gradle(ctx, handler, template.SetupTask); err != nil {
			return fmt.Errorf("failed to set up template: %w", err)
		}
		state.SetupCompleted = true
		if err := saveState(targetRoot, state); err != nil {
			return err
		}
	}

	if !withEclipse {
		e.logger.Info("sync complete", "eclipse", false)
		return nil
	}

	e.logger.Info("syncing eclipse")
	if err := e.syncEclipse(ctx, handler); err != nil {
		return err
	}
	e.logger.Info("sync complete")
	return nil
}

// provision replaces the target workspace with a fresh clone of the template.
func (e *Engine) provision(ctx context.Context, name manifest.Template) error {
	e.logger.Info("template is not initialized or has changed, initializing new target directory",
		"template", name)

	templates, err := config.LoadTemplates(e.cfg.TemplatesFile)
	if err != nil {
		return err
	}
	source, err := templates.Lookup(string(name))
	if err != nil {
		return err
	}

	targetRoot := e.project.TargetRoot()
	if err := os.RemoveAll(targetRoot); err != nil {
		return fmt.Errorf("failed to remove target directory: %w", err)
	}

	e.logger.Info("cloning template", "url", source.URL, "branch", source.Branch)
	if err := e.tools.Git.Clone(ctx, source.URL, source.Branch, targetRoot); err != nil {
		return fmt.Errorf("failed to clone template: %w", err)
	}
	return nil
}

func (e *Engine) syncGradleProperties(m *manifest.Manifest, handler template.Handler) error {
	generated, err := handler.GradleProperties(m)
	if err != nil {
		return err
	}
	generated = generated.Clone()
	generated.Merge(&m.GradleOverrides)

	path := filepath.Join(e.project.TargetRoot(), "gradle.properties")
	if err := props.Merge(path, generated); err != nil {
		return fmt.Errorf("failed to merge gradle properties: %w", err)
	}
	return nil
}

// syncSource regenerates build.ninja and runs ninja. A full sync starts the
// copied sources from scratch; an incremental one lets ninja skip what is
// up to date.
func (e *Engine) syncSource(ctx context.Context, m *manifest.Manifest, wipe bool) error {
	descPath := e.project.BuildDescriptionPath()
	if _, err := fsutil.RemoveIfExists(descPath); err != nil {
		return fmt.Errorf("failed to remove stale build description: %w", err)
	}
	if wipe {
		if err := os.RemoveAll(filepath.Join(e.project.TargetRoot(), "src")); err != nil {
			return fmt.Errorf("failed to remove copied sources: %w", err)
		}
	}

	g, err := e.tools.Graph.Build(ctx, e.project.Root, e.project.TargetRoot(), m.CopyPaths)
	if err != nil {
		return err
	}
	e.logger.Debug("built copy graph", "edges", g.Len())

	if err := fsutil.WriteAtomic(descPath, 0644, func(w io.Writer) error {
		_, err := g.WriteTo(w)
		return err
	}); err != nil {
		return fmt.Errorf("failed to write build description: %w", err)
	}

	return e.tools.Ninja.Run(ctx, e.project.Root)
}

func (e *Engine) syncMetadata(ctx context.Context, m *manifest.Manifest) error {
	resources := filepath.Join(e.project.TargetRoot(), "src", "main", "resources")
	if err := os.MkdirAll(resources, 0755); err != nil {
		return fmt.Errorf("failed to create resources directory: %w", err)
	}

	files := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{name: "mcmod.info", render: m.MCModInfo},
		{name: "pack.mcmeta", render: m.PackMCMeta},
	}

	g, _ := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			data, err := f.render()
			if err != nil {
				return fmt.Errorf("failed to render %s: %w", f.name, err)
			}
			if err := fsutil.WriteFileAtomic(filepath.Join(resources, f.name), data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) syncDependencies(ctx context.Context, m *manifest.Manifest, handler template.Handler) error {
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}

	targetRoot := e.project.TargetRoot()

	e.logger.Info("syncing libs")
	if err := e.tools.Reconciler.Reconcile(ctx, handler.LibsDir(targetRoot), m.Libs, e.cfg.LibsURL); err != nil {
		return fmt.Errorf("failed to sync libs: %w", err)
	}

	e.logger.Info("syncing mods")
	modsDir := filepath.Join(handler.RunDir(targetRoot), "mods")
	if err := e.tools.Reconciler.Reconcile(ctx, modsDir, m.Mods, e.cfg.ModsURL); err != nil {
		return fmt.Errorf("failed to sync mods: %w", err)
	}
	return nil
}

func (e *Engine) syncEclipse(ctx context.Context, handler template.Handler) error {
	if err := e.gradle(ctx, handler, template.EclipseTask); err != nil {
		return fmt.Errorf("failed to generate eclipse project: %w", err)
	}
	info, err := os.Stat(e.project.AssetsRoot())
	return eclipse.Apply(eclipse.Layout{
		ProjectRoot: e.project.Root,
		TargetRoot:  e.project.TargetRoot(),
		Name:        e.project.Name(),
		HasAssets:   err == nil && info.IsDir(),
	})
}

func (e *Engine) gradle(ctx context.Context, handler template.Handler, task string) error {
	return e.tools.Gradle.Run(ctx, e.project.TargetRoot(), handler.JavaVersion(task), task)
}
