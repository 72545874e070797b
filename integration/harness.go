//go:build integration

package integration

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/schaermu/mcmod/internal/config"
	"github.com/schaermu/mcmod/internal/deps"
	"github.com/schaermu/mcmod/internal/eula"
	"github.com/schaermu/mcmod/internal/git"
	"github.com/schaermu/mcmod/internal/gradle"
	"github.com/schaermu/mcmod/internal/graph"
	"github.com/schaermu/mcmod/internal/ninja"
	"github.com/schaermu/mcmod/internal/project"
	mcsync "github.com/schaermu/mcmod/internal/sync"
	"github.com/schaermu/mcmod/internal/testutil"
)

const templateBranch = "1.7.10"

// gradlew stands in for the template's wrapper: it records the tasks it was
// asked to run and leaves behind what the real tasks would.
const gradlew = `#!/bin/sh
echo "$@" >> gradlew.log
case "$1" in
eclipse)
	printf '<?xml version="1.0" encoding="UTF-8"?>\n<classpath>\n\t<classpathentry kind="src" path="src/main/java"/>\n\t<classpathentry kind="src" path="src/main/resources"/>\n</classpath>\n' > .classpath
	printf '<?xml version="1.0" encoding="UTF-8"?>\n<projectDescription>\n\t<name>target</name>\n</projectDescription>\n' > .project
	;;
build)
	mkdir -p build/libs && echo jar > build/libs/mod.jar
	;;
esac
`

// Harness provides a project, a template repository and a jar CDN for
// end-to-end syncs against the real git and ninja binaries.
type Harness struct {
	t             *testing.T
	Root          string
	templateRepo  string
	templatesFile string
	cdn           *httptest.Server
	requests      atomic.Int32
}

// NewHarness creates a new test harness
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("the fake gradle wrapper is a shell script")
	}
	for _, bin := range []string{"git", "ninja"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
	t.Setenv(gradle.JDKHomeVar(8), t.TempDir())

	h := &Harness{t: t, Root: t.TempDir()}
	h.cdn = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		if strings.HasSuffix(r.URL.Path, ".jar") {
			_, _ = io.WriteString(w, "jar:"+r.URL.Path)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(h.cdn.Close)

	h.initTemplateRepo()
	return h
}

func (h *Harness) initTemplateRepo() {
	h.t.Helper()
	h.templateRepo = h.t.TempDir()
	h.git("init", "-b", templateBranch, h.templateRepo)
	h.git("-C", h.templateRepo, "config", "user.email", "test@test.com")
	h.git("-C", h.templateRepo, "config", "user.name", "Test")

	testutil.WriteTree(h.t, h.templateRepo, map[string]string{
		"gradle.properties": "# template\nmodName=Template\nmodId=template\n",
		"gradlew":           gradlew,
	})
	if err := os.Chmod(filepath.Join(h.templateRepo, "gradlew"), 0755); err != nil {
		h.t.Fatal(err)
	}
	h.git("-C", h.templateRepo, "add", ".")
	h.git("-C", h.templateRepo, "commit", "-m", "Initial commit")

	h.templatesFile = filepath.Join(h.t.TempDir(), config.TemplatesFileName)
	registry := "ntmc-1.7.10:\n  url: " + h.templateRepo + "\n  branch: \"" + templateBranch + "\"\n"
	if err := os.WriteFile(h.templatesFile, []byte(registry), 0644); err != nil {
		h.t.Fatal(err)
	}
}

func (h *Harness) git(args ...string) {
	h.t.Helper()
	if out, err := exec.Command("git", args...).CombinedOutput(); err != nil {
		h.t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

// WriteProject writes files into the project root.
func (h *Harness) WriteProject(files map[string]string) {
	h.t.Helper()
	testutil.WriteTree(h.t, h.Root, files)
}

// CDNPrefix is the URL prefix serving name references.
func (h *Harness) CDNPrefix(dir string) string {
	return h.cdn.URL + "/" + dir + "/"
}

// Requests is the number of downloads served so far.
func (h *Harness) Requests() int {
	return int(h.requests.Load())
}

// Engine wires a sync engine with the real tools. A fresh project is opened
// so manifest edits between runs are seen.
func (h *Harness) Engine(backend config.GitBackend) *mcsync.Engine {
	h.t.Helper()
	logger := slog.New(slog.NewTextHandler(&testWriter{t: h.t, prefix: "[mcmod] "}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p, err := project.Open(h.Root)
	if err != nil {
		h.t.Fatalf("failed to open project: %v", err)
	}

	cfg := &config.Config{
		LibsURL:       h.CDNPrefix("devjars"),
		ModsURL:       h.CDNPrefix("jars"),
		TemplatesFile: h.templatesFile,
		GitBackend:    backend,
	}

	var gitClient git.Client = git.NewShellClient()
	if backend == config.GitGoGit {
		gitClient = git.NewGoGitClient()
	}

	wrapper := gradle.NewWrapper(logger)
	wrapper.Stdin = nil
	wrapper.Stdout = &testWriter{t: h.t, prefix: "[gradle] "}
	wrapper.Stderr = wrapper.Stdout

	prompter := eula.NewPrompter(true, logger)

	return mcsync.NewEngine(p, cfg, mcsync.Tools{
		Git:        gitClient,
		Gradle:     wrapper,
		Ninja:      ninja.NewShellRunner(logger),
		Graph:      graph.NewBuilder(logger),
		Reconciler: deps.NewReconciler(h.cdn.Client(), p.Root, 0, logger),
		EULA:       prompter,
	}, logger, false)
}

// GradleLog returns the tasks the fake wrapper ran, one per line.
func (h *Harness) GradleLog() []string {
	h.t.Helper()
	data, err := os.ReadFile(filepath.Join(h.Root, "target", "gradlew.log"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		h.t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// testWriter forwards output to the test log
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (int, error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)
