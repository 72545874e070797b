// Package eclipse moves the IDE descriptors gradle generates in the
// workspace to the project root, pointing them at the project's own source
// and asset directories.
package eclipse

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/fsutil"
)

const (
	ClasspathFile = ".classpath"
	ProjectFile   = ".project"
)

const indent = "    "

// Layout names the directories the descriptors are rewritten against.
type Layout struct {
	ProjectRoot string
	TargetRoot  string
	// Name replaces the project name gradle derived from the workspace.
	Name string
	// HasAssets reports whether the project keeps resources in assets/.
	HasAssets bool
}

// Apply rewrites target/.classpath and target/.project into the project
// root and removes the workspace copies.
func Apply(l Layout) error {
	if err := rewriteFile(l, ClasspathFile, func(r io.Reader, w io.Writer) error {
		return RewriteClasspath(r, w, l.HasAssets)
	}); err != nil {
		return err
	}
	return rewriteFile(l, ProjectFile, func(r io.Reader, w io.Writer) error {
		return RewriteProject(r, w, l.Name)
	})
}

func rewriteFile(l Layout, name string, rewrite func(io.Reader, io.Writer) error) error {
	src := filepath.Join(l.TargetRoot, name)
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errkind.Wrap(errkind.NotFound, err, "gradle did not generate %s", name)
		}
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	dst := filepath.Join(l.ProjectRoot, name)
	err = fsutil.WriteAtomic(dst, 0644, func(w io.Writer) error {
		return rewrite(bytes.NewReader(data), w)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove %s: %w", src, err)
	}
	return nil
}

// RewriteClasspath points the java source entry at src and the resources
// entry at assets (or the copied resources when the project has no assets
// directory), with resources compiled to bin/assets.
func RewriteClasspath(r io.Reader, w io.Writer, hasAssets bool) error {
	return transform(r, w, func(tok xml.Token, _ int) xml.Token {
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "classpathentry" {
			return tok
		}
		i := attrIndex(start.Attr, "path")
		if i < 0 {
			return tok
		}
		switch start.Attr[i].Value {
		case "src/main/java":
			start.Attr[i].Value = "src"
		case "src/main/resources":
			if hasAssets {
				start.Attr[i].Value = "assets"
			} else {
				start.Attr[i].Value = "target/src/main/resources"
			}
			if j := attrIndex(start.Attr, "output"); j >= 0 {
				start.Attr[j].Value = "bin/assets"
			} else {
				start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "output"}, Value: "bin/assets"})
			}
		}
		return start
	})
}

// RewriteProject replaces the text of the first top-level <name> element.
func RewriteProject(r io.Reader, w io.Writer, name string) error {
	inName, done := false, false
	return transform(r, w, func(tok xml.Token, depth int) xml.Token {
		switch t := tok.(type) {
		case xml.StartElement:
			if !done && depth == 1 && t.Name.Local == "name" {
				inName = true
			}
		case xml.CharData:
			if inName {
				return nil
			}
		case xml.EndElement:
			if inName {
				inName, done = false, true
				return nameEnd{name: name, end: t}
			}
		}
		return tok
	})
}

// nameEnd emits the replacement text before closing the name element.
type nameEnd struct {
	name string
	end  xml.EndElement
}

// transform re-encodes the token stream with 4-space indentation. edit sees
// every token with the element depth it occurs at and may replace or drop
// (return nil) it.
func transform(r io.Reader, w io.Writer, edit func(tok xml.Token, depth int) xml.Token) error {
	dec := xml.NewDecoder(r)
	enc := xml.NewEncoder(w)
	enc.Indent("", indent)

	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errkind.Wrap(errkind.InvalidData, err, "malformed eclipse descriptor")
		}
		tok = xml.CopyToken(tok)

		if _, ok := tok.(xml.EndElement); ok {
			depth--
		}
		// The encoder indents on its own.
		if cd, ok := tok.(xml.CharData); ok && len(strings.TrimSpace(string(cd))) == 0 {
			continue
		}

		out := edit(tok, depth)
		if _, ok := tok.(xml.StartElement); ok {
			depth++
		}

		switch t := out.(type) {
		case nil:
			continue
		case nameEnd:
			if err := enc.EncodeToken(xml.CharData(t.name)); err != nil {
				return err
			}
			out = t.end
		}
		if err := enc.EncodeToken(out); err != nil {
			return fmt.Errorf("failed to encode eclipse descriptor: %w", err)
		}
		// The encoder does not break the line after a declaration.
		if _, ok := out.(xml.ProcInst); ok {
			if err := enc.Flush(); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func attrIndex(attrs []xml.Attr, name string) int {
	for i, a := range attrs {
		if a.Name.Local == name {
			return i
		}
	}
	return -1
}
