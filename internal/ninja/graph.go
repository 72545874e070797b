// Package ninja holds the file-copy build graph and writes it as a ninja
// build description.
package ninja

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/schaermu/mcmod/internal/errkind"
)

// Rule is a ninja rule.
type Rule struct {
	Name        string
	Command     string
	Description string
}

// CopyRule copies $in to $out. Windows hosts use the coreutils multicall
// binary.
func CopyRule() Rule {
	cmd := "cp $in $out"
	if runtime.GOOS == "windows" {
		cmd = "coreutils " + cmd
	}
	return Rule{Name: "cp", Command: cmd, Description: "Copying $in"}
}

// Edge copies one regular file. Both paths are absolute.
type Edge struct {
	Output string
	Input  string
}

// Graph is an append-only set of copy edges sharing one rule. It is safe
// for concurrent use.
type Graph struct {
	rule Rule

	mu    sync.Mutex
	edges map[string]string
}

// NewGraph returns an empty graph using rule for every edge.
func NewGraph(rule Rule) *Graph {
	return &Graph{rule: rule, edges: make(map[string]string)}
}

// Add records an edge. Two edges writing the same output are a conflict.
func (g *Graph) Add(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.edges[e.Output]; ok {
		return errkind.New(errkind.Conflict, "'%s' is copied from both '%s' and '%s'", e.Output, prev, e.Input)
	}
	g.edges[e.Output] = e.Input
	return nil
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edges)
}

// Edges returns a copy of the edges sorted by output.
func (g *Graph) Edges() []Edge {
	g.mu.Lock()
	edges := make([]Edge, 0, len(g.edges))
	for out, in := range g.edges {
		edges = append(edges, Edge{Output: out, Input: in})
	}
	g.mu.Unlock()

	sort.Slice(edges, func(i, j int) bool { return edges[i].Output < edges[j].Output })
	return edges
}

// WriteTo serializes the graph as a ninja file.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	edges := g.Edges()

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	fmt.Fprintln(bw, "# Incremental build file for copying source and assets")
	fmt.Fprintln(bw, "# Run `mcmod sync` to update this file when mcmod.yaml or the file structure changes")
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "rule %s\n", g.rule.Name)
	fmt.Fprintf(bw, "  command = %s\n", g.rule.Command)
	if g.rule.Description != "" {
		fmt.Fprintf(bw, "  description = %s\n", g.rule.Description)
	}
	fmt.Fprintln(bw)

	for _, e := range edges {
		out, err := Escape(e.Output)
		if err != nil {
			return cw.n, err
		}
		in, err := Escape(e.Input)
		if err != nil {
			return cw.n, err
		}
		fmt.Fprintf(bw, "build %s: %s %s\n", out, g.rule.Name, in)
	}

	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("failed to write build description: %w", err)
	}
	return cw.n, nil
}

var escaper = strings.NewReplacer("$", "$$", " ", "$ ", ":", "$:")

// Escape quotes a path for use in a build statement.
func Escape(path string) (string, error) {
	if strings.ContainsAny(path, "\n\r") {
		return "", errkind.New(errkind.InvalidData, "path %q cannot be written to a build description", path)
	}
	return escaper.Replace(path), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
