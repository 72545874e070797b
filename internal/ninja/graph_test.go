package ninja

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/mcmod/internal/errkind"
)

func testRule() Rule {
	return Rule{Name: "cp", Command: "cp $in $out", Description: "Copying $in"}
}

func TestGraph_AddConcurrent(t *testing.T) {
	g := NewGraph(testRule())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, g.Add(Edge{
				Output: fmt.Sprintf("/t/%03d", i),
				Input:  fmt.Sprintf("/s/%03d", i),
			}))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 100, g.Len())
	edges := g.Edges()
	assert.Equal(t, "/t/000", edges[0].Output)
	assert.Equal(t, "/t/099", edges[99].Output)
}

func TestGraph_DuplicateOutput(t *testing.T) {
	g := NewGraph(testRule())
	require.NoError(t, g.Add(Edge{Output: "/t/a", Input: "/s/a"}))

	err := g.Add(Edge{Output: "/t/a", Input: "/s/b"})
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.Conflict))
	assert.Equal(t, 1, g.Len())
}

func TestGraph_WriteTo(t *testing.T) {
	g := NewGraph(testRule())
	require.NoError(t, g.Add(Edge{Output: "/t/b.txt", Input: "/s/b.txt"}))
	require.NoError(t, g.Add(Edge{Output: "/t/a b.txt", Input: "/s/a b.txt"}))

	var buf bytes.Buffer
	n, err := g.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	out := buf.String()
	assert.Contains(t, out, "rule cp\n  command = cp $in $out\n  description = Copying $in\n")

	aIdx := strings.Index(out, "build /t/a$ b.txt: cp /s/a$ b.txt\n")
	bIdx := strings.Index(out, "build /t/b.txt: cp /s/b.txt\n")
	require.NotEqual(t, -1, aIdx, out)
	require.NotEqual(t, -1, bIdx, out)
	assert.Less(t, aIdx, bIdx, "edges must be sorted by output")
}

func TestGraph_WriteToRejectsNewline(t *testing.T) {
	g := NewGraph(testRule())
	require.NoError(t, g.Add(Edge{Output: "/t/bad\nname", Input: "/s/x"}))

	_, err := g.WriteTo(io.Discard)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.InvalidData))
}

func TestEscape(t *testing.T) {
	tests := map[string]string{
		"/plain/path":     "/plain/path",
		"/with space":     "/with$ space",
		"C:/windows/path": "C$:/windows/path",
		"/cost$5":         "/cost$$5",
	}
	for in, want := range tests {
		got, err := Escape(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestShellRunner(t *testing.T) {
	if _, err := exec.LookPath("ninja"); err != nil {
		t.Skip("ninja not installed")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	dst := filepath.Join(dir, "out", "copy.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	g := NewGraph(CopyRule())
	require.NoError(t, g.Add(Edge{Output: dst, Input: src}))
	f, err := os.Create(filepath.Join(dir, "build.ninja"))
	require.NoError(t, err)
	_, err = g.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, NewShellRunner(logger).Run(t.Context(), dir))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// A broken description is an external tool failure.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.ninja"), []byte("build x: missing_rule y\n"), 0644))
	err = NewShellRunner(logger).Run(t.Context(), dir)
	assert.True(t, errkind.Is(err, errkind.ExternalTool), "got %v", err)
}
