// Package watch re-syncs a project whenever its sources or manifest change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schaermu/mcmod/internal/manifest"
	"github.com/schaermu/mcmod/internal/project"
)

// DefaultDelay is how long the tree must be quiet before a sync starts.
const DefaultDelay = 300 * time.Millisecond

// SyncFunc performs one sync. full is set when the manifest changed.
type SyncFunc func(ctx context.Context, full bool) error

// ignored are editor artifacts that never warrant a sync.
var ignored = []string{"*.swp", "*.swx", "*~", ".#*", "4913"}

// SourcesFunc resolves the paths to watch, typically from the manifest.
type SourcesFunc func() ([]string, error)

// Watcher triggers syncs for changes under a project's copy-rule sources.
type Watcher struct {
	root    string
	paths   []string
	ignore  []string
	refresh SourcesFunc
	sync    SyncFunc
	delay   time.Duration
	logger  *slog.Logger

	syncMu      sync.Mutex // guards syncRunning, syncPending and pendingFull
	syncRunning bool       // whether a sync is currently in progress
	syncPending bool       // whether another sync is needed after the current one
	pendingFull bool       // whether the pending sync must be a full one
}

// NewWatcher creates a watcher for the project at root. paths are files or
// directories; directories are watched recursively. The manifest in root is
// always watched.
func NewWatcher(root string, paths []string, fn SyncFunc, logger *slog.Logger) *Watcher {
	return &Watcher{
		root:   root,
		paths:  paths,
		sync:   fn,
		delay:  DefaultDelay,
		logger: logger,
	}
}

// Sources returns the absolute source path of every copying rule in the
// project's manifest, without duplicates.
func Sources(p *project.Project) ([]string, error) {
	m, err := p.Manifest()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(m.CopyPaths))
	var paths []string
	for _, rule := range m.CopyPaths {
		if rule.IsDelete() {
			continue
		}
		path := filepath.Join(p.Root, filepath.FromSlash(rule.Source))
		if seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths, nil
}

// Ignore excludes paths, and everything below them, from watching.
func (w *Watcher) Ignore(paths ...string) {
	w.ignore = append(w.ignore, paths...)
}

// OnManifestChange sets how the watched paths are re-resolved after the
// manifest changed.
func (w *Watcher) OnManifestChange(fn SourcesFunc) {
	w.refresh = fn
}

// SetDelay changes the debounce delay.
func (w *Watcher) SetDelay(d time.Duration) {
	w.delay = d
}

// Start watches until ctx is cancelled and returns once every sync it
// started has finished.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	for _, path := range w.paths {
		if err := w.watchPath(watcher, path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}
	w.logger.Info("watching for changes", "project", w.root)

	var (
		wg     sync.WaitGroup
		timer  *time.Timer
		timerC <-chan time.Time
		full   bool
	)
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("stopped watching")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			isManifest, relevant := w.classify(event)
			if !relevant {
				continue
			}
			if event.Has(fsnotify.Create) && !isManifest {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(watcher, event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if isManifest && w.refresh != nil {
				w.refreshPaths(watcher)
			}
			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			full = full || isManifest

			if timer == nil {
				timer = time.NewTimer(w.delay)
				timerC = timer.C
			} else {
				timer.Reset(w.delay)
			}

		case <-timerC:
			timer, timerC = nil, nil
			runFull := full
			full = false
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.performSync(ctx, runFull)
			}()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// classify reports whether event concerns the manifest and whether it
// should cause a sync at all.
func (w *Watcher) classify(event fsnotify.Event) (isManifest, relevant bool) {
	if event.Op == fsnotify.Chmod {
		return false, false
	}
	base := filepath.Base(event.Name)
	for _, pattern := range ignored {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false, false
		}
	}
	if event.Name == filepath.Join(w.root, manifest.FileName) {
		return true, true
	}
	if w.ignored(event.Name) {
		return false, false
	}
	for _, path := range w.paths {
		if within(event.Name, path) {
			return false, true
		}
	}
	return false, false
}

// refreshPaths re-resolves the watched paths. Watches for paths that are no
// longer sources stay registered; classify drops their events.
func (w *Watcher) refreshPaths(watcher *fsnotify.Watcher) {
	paths, err := w.refresh()
	if err != nil {
		w.logger.Warn("failed to resolve watched paths, keeping current set", "error", err)
		return
	}
	w.paths = paths
	for _, path := range paths {
		if err := w.watchPath(watcher, path); err != nil {
			w.logger.Warn("failed to watch path", "path", path, "error", err)
		}
	}
}

// watchPath registers path: a directory recursively, a file through its
// parent directory. A missing path is picked up through its parent, if that
// exists, once it is created.
func (w *Watcher) watchPath(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		parent := filepath.Dir(path)
		if _, err := os.Stat(parent); err != nil {
			w.logger.Debug("not watching missing path", "path", path)
			return nil
		}
		return watcher.Add(parent)
	case err != nil:
		return err
	case info.IsDir():
		return w.addRecursive(watcher, path)
	}
	return watcher.Add(filepath.Dir(path))
}

func (w *Watcher) ignored(path string) bool {
	for _, ignore := range w.ignore {
		if within(path, ignore) {
			return true
		}
	}
	return false
}

// within reports whether path is base or lies below it.
func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, strings.TrimSuffix(base, string(filepath.Separator))+string(filepath.Separator))
}

// performSync executes the sync operation with single-flight semantics.
// If a sync is already in progress, at most one additional run is queued;
// further requests are merged into it.
func (w *Watcher) performSync(ctx context.Context, full bool) {
	w.syncMu.Lock()
	if w.syncRunning {
		w.syncPending = true
		w.pendingFull = w.pendingFull || full
		w.syncMu.Unlock()
		w.logger.Info("sync already in progress, queuing pending re-run")
		return
	}
	w.syncRunning = true
	w.syncMu.Unlock()

	for {
		if ctx.Err() != nil {
			w.syncMu.Lock()
			w.syncRunning, w.syncPending, w.pendingFull = false, false, false
			w.syncMu.Unlock()
			return
		}

		w.logger.Info("performing sync operation", "full", full)
		if err := w.sync(ctx, full); err != nil {
			w.logger.Error("sync failed", "error", err)
		} else {
			w.logger.Info("sync completed successfully")
		}

		w.syncMu.Lock()
		if !w.syncPending {
			w.syncRunning = false
			w.syncMu.Unlock()
			return
		}
		full = w.pendingFull
		w.syncPending, w.pendingFull = false, false
		w.syncMu.Unlock()

		w.logger.Info("re-running sync due to pending request")
	}
}

func (w *Watcher) addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
