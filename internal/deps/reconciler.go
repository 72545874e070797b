// Package deps keeps a directory of downloaded jars in line with the
// references declared in the manifest.
package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/fsutil"
	"github.com/schaermu/mcmod/internal/manifest"
)

// resultBuffer bounds the channel between transfers and the aggregator.
const resultBuffer = 100

// Reconciler removes undeclared entries from a directory and fetches the
// declared ones that are missing.
type Reconciler struct {
	client *http.Client
	// baseDir resolves local ("./") references.
	baseDir string
	// limit caps concurrent transfers; 0 means unbounded.
	limit  int
	logger *slog.Logger
}

// NewReconciler creates a reconciler. A nil client uses http.DefaultClient.
func NewReconciler(client *http.Client, baseDir string, limit int, logger *slog.Logger) *Reconciler {
	if client == nil {
		client = http.DefaultClient
	}
	return &Reconciler{client: client, baseDir: baseDir, limit: limit, logger: logger}
}

type transfer struct {
	ref    manifest.Reference
	source string
	dest   string
}

type result struct {
	transfer transfer
	err      error
}

// Reconcile makes targetDir contain exactly the declared references. Entries
// whose name matches a declared file name are kept as they are; everything
// else in targetDir is removed before any transfer starts. Missing entries are
// fetched concurrently; the first failure is returned and later ones are
// dropped. Every file lands under its final name only once fully written.
func (r *Reconciler) Reconcile(ctx context.Context, targetDir string, declared []manifest.Reference, urlPrefix string) error {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", targetDir, err)
	}

	pending := make(map[string]manifest.Reference, len(declared))
	order := make([]string, 0, len(declared))
	for _, ref := range declared {
		name, err := ref.FileName()
		if err != nil {
			return err
		}
		if _, dup := pending[name]; !dup {
			order = append(order, name)
		}
		pending[name] = ref
	}

	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", targetDir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if _, ok := pending[name]; ok {
			r.logger.Debug("dependency up to date", "path", filepath.Join(targetDir, name))
			delete(pending, name)
			continue
		}
		path := filepath.Join(targetDir, name)
		if _, err := fsutil.RemoveIfExists(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		r.logger.Info("removed undeclared dependency", "path", path)
	}

	var transfers []transfer
	for _, name := range order {
		ref, ok := pending[name]
		if !ok {
			continue
		}
		t := transfer{ref: ref, dest: filepath.Join(targetDir, name)}
		if ref.Kind == manifest.LocalRef {
			t.source = filepath.Join(r.baseDir, filepath.FromSlash(ref.LocalPath()))
		} else {
			u, err := ref.URL(urlPrefix)
			if err != nil {
				return err
			}
			t.source = u
		}
		transfers = append(transfers, t)
	}
	if len(transfers) == 0 {
		return nil
	}

	return r.run(ctx, transfers)
}

// run executes the transfers. A single aggregator consumes the results; on
// the first failure it closes stop, after which producers drop their results
// instead of blocking and transfers not yet started are skipped.
func (r *Reconciler) run(ctx context.Context, transfers []transfer) error {
	results := make(chan result, resultBuffer)
	stop := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		var first error
		for res := range results {
			if first != nil {
				continue
			}
			if res.err != nil {
				first = res.err
				close(stop)
				continue
			}
			r.logger.Info("fetched dependency", "source", res.transfer.source, "path", res.transfer.dest)
		}
		done <- first
	}()

	var g errgroup.Group
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
launch:
	for _, t := range transfers {
		select {
		case <-stop:
			break launch
		default:
		}
		g.Go(func() error {
			res := result{transfer: t, err: r.transfer(ctx, t)}
			select {
			case results <- res:
			case <-stop:
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	return <-done
}

func (r *Reconciler) transfer(ctx context.Context, t transfer) error {
	if t.ref.Kind == manifest.LocalRef {
		r.logger.Debug("copying dependency", "source", t.source)
		if err := fsutil.CopyFile(t.source, t.dest); err != nil {
			if os.IsNotExist(err) {
				return errkind.WithPath(errkind.NotFound, t.source, err)
			}
			return fmt.Errorf("failed to copy %s: %w", t.source, err)
		}
		return nil
	}
	r.logger.Debug("downloading dependency", "url", t.source)
	return fsutil.WriteAtomic(t.dest, 0644, func(w io.Writer) error {
		return r.download(ctx, t.source, w)
	})
}

func (r *Reconciler) download(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errkind.Wrap(errkind.InvalidData, err, "invalid dependency url '%s'", url)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return errkind.Wrap(errkind.Cancelled, ctx.Err(), "download of '%s' interrupted", url)
		}
		return errkind.Wrap(errkind.Network, err, "failed to download '%s'", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errkind.New(errkind.Network, "failed to download '%s': %s", url, resp.Status)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return errkind.Wrap(errkind.Network, err, "failed to download '%s'", url)
	}
	return nil
}
