//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/schaermu/mcmod/internal/config"
	"github.com/schaermu/mcmod/internal/errkind"
)

func manifest(h *Harness) string {
	return `template: ntmc-1.7.10
name: My Mod
modid: mymod
description: Integration test mod
version: 1.0.0
libs:
  - b.jar
  - ` + h.CDNPrefix("direct") + `a.jar
mods:
  - NotEnoughItems-1.0.5.jar
copy-paths:
  - [src, src/main/java]
  - [assets, src/main/resources]
`
}

func TestSync(t *testing.T) {
	for _, backend := range []config.GitBackend{config.GitShell, config.GitGoGit} {
		t.Run(string(backend), func(t *testing.T) {
			h := NewHarness(t)
			h.WriteProject(map[string]string{
				"mcmod.yaml":                          manifest(h),
				"src/com/example/mymod/MyMod.java":    "class MyMod {}\n",
				"src/com/example/mymod/api/Api.java":  "interface Api {}\n",
				"assets/assets/mymod/lang/en_US.lang": "item.test=Test\n",
			})

			t.Run("full", func(t *testing.T) { testFullSync(t, h, backend) })
			t.Run("incremental", func(t *testing.T) { testIncrementalSync(t, h, backend) })
			t.Run("missing source", func(t *testing.T) { testMissingSource(t, h, backend) })
			t.Run("build", func(t *testing.T) { testBuild(t, h, backend) })
		})
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
	return string(data)
}

func testFullSync(t *testing.T, h *Harness, backend config.GitBackend) {
	if err := h.Engine(backend).Run(t.Context(), true); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	target := filepath.Join(h.Root, "target")

	if got := readFile(t, filepath.Join(target, "src/main/java/com/example/mymod/MyMod.java")); got != "class MyMod {}\n" {
		t.Errorf("unexpected copied source %q", got)
	}
	if _, err := os.Stat(filepath.Join(target, "src/main/resources/assets/mymod/lang/en_US.lang")); err != nil {
		t.Errorf("expected copied asset: %v", err)
	}
	if !strings.Contains(readFile(t, filepath.Join(target, "src/main/resources/mcmod.info")), `"modid": "mymod"`) {
		t.Error("unexpected mcmod.info")
	}

	properties := readFile(t, filepath.Join(target, "gradle.properties"))
	for _, want := range []string{"# template\n", "modName = My Mod\n", "modId = mymod\n", "modGroup=com.example.mymod\n"} {
		if !strings.Contains(properties, want) {
			t.Errorf("gradle.properties missing %q:\n%s", want, properties)
		}
	}

	if got := readFile(t, filepath.Join(target, "libs/b.jar")); got != "jar:/devjars/b.jar" {
		t.Errorf("b.jar = %q", got)
	}
	if got := readFile(t, filepath.Join(target, "libs/a.jar")); got != "jar:/direct/a.jar" {
		t.Errorf("a.jar = %q", got)
	}
	if got := readFile(t, filepath.Join(target, "run/mods/NotEnoughItems-1.0.5.jar")); got != "jar:/jars/NotEnoughItems-1.0.5.jar" {
		t.Errorf("mod = %q", got)
	}

	if want := []string{"setupDecompWorkspace", "eclipse"}; !reflect.DeepEqual(h.GradleLog(), want) {
		t.Errorf("gradle tasks = %v, want %v", h.GradleLog(), want)
	}
	if !strings.Contains(readFile(t, filepath.Join(h.Root, ".classpath")), `path="assets"`) {
		t.Error("expected .classpath pointing at assets")
	}
	if !strings.Contains(readFile(t, filepath.Join(h.Root, ".project")), "<name>"+filepath.Base(h.Root)+"</name>") {
		t.Error("expected .project named after the project directory")
	}
}

func testIncrementalSync(t *testing.T, h *Harness, backend config.GitBackend) {
	requests := h.Requests()
	h.WriteProject(map[string]string{
		"src/com/example/mymod/MyMod.java": "class MyMod { int v = 2; }\n",
		"src/com/example/mymod/New.java":   "class New {}\n",
	})

	if err := h.Engine(backend).Run(t.Context(), true); err != nil {
		t.Fatalf("incremental sync failed: %v", err)
	}

	target := filepath.Join(h.Root, "target", "src/main/java/com/example/mymod")
	if got := readFile(t, filepath.Join(target, "MyMod.java")); got != "class MyMod { int v = 2; }\n" {
		t.Errorf("changed source not copied: %q", got)
	}
	readFile(t, filepath.Join(target, "New.java"))

	if h.Requests() != requests {
		t.Error("incremental sync must not download")
	}
	if len(h.GradleLog()) != 2 {
		t.Errorf("incremental sync must not run gradle, got %v", h.GradleLog())
	}
}

func testMissingSource(t *testing.T, h *Harness, backend config.GitBackend) {
	original := manifest(h)
	h.WriteProject(map[string]string{"mcmod.yaml": original + "  - [docs, docs]\n"})
	t.Cleanup(func() { h.WriteProject(map[string]string{"mcmod.yaml": original}) })

	err := h.Engine(backend).Run(t.Context(), false)
	if !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.Root, "build.ninja")); !os.IsNotExist(err) {
		t.Error("build.ninja must not be written when a source is missing")
	}
}

func testBuild(t *testing.T, h *Harness, backend config.GitBackend) {
	out, err := h.Engine(backend).Build(t.Context())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if got := readFile(t, filepath.Join(out, "mod.jar")); got != "jar\n" {
		t.Errorf("unexpected build output %q", got)
	}
	log := h.GradleLog()
	if log[len(log)-1] != "build" {
		t.Errorf("expected build to run last, got %v", log)
	}
}
