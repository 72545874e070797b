package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/manifest"
	"github.com/schaermu/mcmod/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBuild_OneEdgePerFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	files := map[string]string{
		"src/main/java/a/A.java":   "a",
		"src/main/java/a/b/B.java": "b",
		"src/main/java/c/C.java":   "c",
		"src/empty/":               "",
		"assets/lang/en_US.lang":   "x=y",
		"README.md":                "readme",
	}
	testutil.WriteTree(t, root, files)

	rules := []manifest.CopyRule{
		{Source: "src", Target: "src"},
		{Source: "assets", Target: "src/main/resources/assets"},
		{Source: "README.md", Target: "README.md"},
	}
	g, err := NewBuilder(testLogger()).Build(context.Background(), root, target, rules)
	require.NoError(t, err)

	assert.Equal(t, 5, g.Len())

	got := make(map[string]string)
	for _, e := range g.Edges() {
		rel, err := filepath.Rel(target, e.Output)
		require.NoError(t, err)
		got[filepath.ToSlash(rel)] = e.Input
	}
	assert.Equal(t, map[string]string{
		"src/main/java/a/A.java":                    filepath.Join(root, "src", "main", "java", "a", "A.java"),
		"src/main/java/a/b/B.java":                  filepath.Join(root, "src", "main", "java", "a", "b", "B.java"),
		"src/main/java/c/C.java":                    filepath.Join(root, "src", "main", "java", "c", "C.java"),
		"src/main/resources/assets/lang/en_US.lang": filepath.Join(root, "assets", "lang", "en_US.lang"),
		"README.md": filepath.Join(root, "README.md"),
	}, got)

	// Directories are mirrored, including empty ones.
	assert.DirExists(t, filepath.Join(target, "src", "empty"))
	assert.DirExists(t, filepath.Join(target, "src", "main", "resources", "assets", "lang"))
}

func TestBuild_DeepTree(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	dir := "src"
	for depth := 0; depth < 20; depth++ {
		dir += fmt.Sprintf("/d%d", depth)
		for i := 0; i < 5; i++ {
			files[fmt.Sprintf("%s/f%d.txt", dir, i)] = "x"
		}
	}
	testutil.WriteTree(t, root, files)

	g, err := NewBuilder(testLogger()).Build(context.Background(), root, filepath.Join(root, "target"),
		[]manifest.CopyRule{{Source: "src", Target: "src"}})
	require.NoError(t, err)
	assert.Equal(t, len(files), g.Len())
}

func TestBuild_MissingSource(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"src/A.java": "a"})

	_, err := NewBuilder(testLogger()).Build(context.Background(), root, filepath.Join(root, "target"),
		[]manifest.CopyRule{{Source: "src", Target: "src"}, {Source: "docs", Target: "docs"}})
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.NotFound))
	assert.Contains(t, err.Error(), "docs")
	assert.Contains(t, err.Error(), "remove it from mcmod.yaml")
}

func TestBuild_DeleteSentinel(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	testutil.WriteTree(t, root, map[string]string{
		"src/A.java":                      "a",
		"target/src/main/java/Example.go": "template example",
		"target/README.txt":               "template readme",
	})

	rules := []manifest.CopyRule{
		{Source: manifest.DeleteSentinel, Target: "src/main/java"},
		{Source: manifest.DeleteSentinel, Target: "README.txt"},
		{Source: manifest.DeleteSentinel, Target: "never-existed"},
		{Source: "src", Target: "src/main/java"},
	}
	g, err := NewBuilder(testLogger()).Build(context.Background(), root, target, rules)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(target, "README.txt"))
	assert.NoFileExists(t, filepath.Join(target, "src", "main", "java", "Example.go"))
	require.Equal(t, 1, g.Len())
	assert.Equal(t, filepath.Join(target, "src", "main", "java", "A.java"), g.Edges()[0].Output)
}

func TestBuild_ConflictingTargets(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a/same.txt": "a",
		"b/same.txt": "b",
	})

	_, err := NewBuilder(testLogger()).Build(context.Background(), root, filepath.Join(root, "target"),
		[]manifest.CopyRule{{Source: "a", Target: "out"}, {Source: "b", Target: "out"}})
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.Conflict))
}

func TestBuild_FollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"shared/lib.txt": "lib",
		"src/A.java":     "a",
	})
	if err := os.Symlink(filepath.Join(root, "shared"), filepath.Join(root, "src", "shared")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	g, err := NewBuilder(testLogger()).Build(context.Background(), root, filepath.Join(root, "target"),
		[]manifest.CopyRule{{Source: "src", Target: "src"}})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
}

func TestBuild_SymlinkCycle(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"src/a/A.java": "a"})
	if err := os.Symlink("..", filepath.Join(root, "src", "a", "loop")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(".", filepath.Join(root, "src", "self")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	target := filepath.Join(root, "target")
	_, err := NewBuilder(testLogger()).Build(context.Background(), root, target,
		[]manifest.CopyRule{{Source: "src", Target: "src"}})
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.InvalidData), "got kind %v", errkind.KindOf(err))
	assert.Contains(t, err.Error(), "symlink cycle")

	_, statErr := os.Stat(filepath.Join(target, "src", "a", "loop"))
	assert.True(t, os.IsNotExist(statErr), "no directory may be created for the cyclic link")
	_, statErr = os.Stat(filepath.Join(target, "src", "self"))
	assert.True(t, os.IsNotExist(statErr), "no directory may be created for the cyclic link")
}

func TestBuild_SharedSymlinkTargetIsNotACycle(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"shared/lib.txt": "lib",
		"src/A.java":     "a",
	})
	for _, name := range []string{"one", "two"} {
		if err := os.Symlink(filepath.Join(root, "shared"), filepath.Join(root, "src", name)); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
	}

	g, err := NewBuilder(testLogger()).Build(context.Background(), root, filepath.Join(root, "target"),
		[]manifest.CopyRule{{Source: "src", Target: "src"}})
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

func TestBuild_Cancelled(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"src/A.java": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(testLogger()).Build(ctx, root, filepath.Join(root, "target"),
		[]manifest.CopyRule{{Source: "src", Target: "src"}})
	assert.ErrorIs(t, err, context.Canceled)
}
