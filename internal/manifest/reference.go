package manifest

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schaermu/mcmod/internal/errkind"
)

// RefKind is the form a dependency reference was declared in.
type RefKind int

const (
	// NameRef is a bare file name resolved against a category URL prefix.
	NameRef RefKind = iota
	// URLRef is an absolute http(s) URL fetched as-is.
	URLRef
	// LocalRef is a project-relative path ("./...") copied instead of fetched.
	LocalRef
)

func (k RefKind) String() string {
	switch k {
	case URLRef:
		return "url"
	case LocalRef:
		return "local"
	}
	return "name"
}

const localPrefix = "./"

// Reference is one declared library or mod.
type Reference struct {
	Raw  string
	Kind RefKind
}

// ParseReference classifies a declared reference string.
func ParseReference(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reference{}, errkind.New(errkind.InvalidData, "empty dependency reference")
	}
	ref := Reference{Raw: raw}
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		ref.Kind = URLRef
	case strings.HasPrefix(raw, localPrefix):
		ref.Kind = LocalRef
	default:
		if strings.ContainsAny(raw, `/\`) {
			return Reference{}, errkind.New(errkind.InvalidData,
				"dependency '%s' is neither a file name, an http(s) url nor a ./ path", raw)
		}
		ref.Kind = NameRef
	}
	if _, err := ref.FileName(); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// MustParseReference is ParseReference for literals in tests and defaults.
func MustParseReference(raw string) Reference {
	ref, err := ParseReference(raw)
	if err != nil {
		panic(err)
	}
	return ref
}

// FileName is the name the reference is stored under in its target
// directory. It is what reconciliation compares existing entries against.
func (r Reference) FileName() (string, error) {
	var name string
	switch r.Kind {
	case NameRef:
		name = r.Raw
	case URLRef:
		u, err := url.Parse(r.Raw)
		if err != nil {
			return "", errkind.Wrap(errkind.InvalidData, err, "invalid dependency url '%s'", r.Raw)
		}
		name = path.Base(u.Path)
	case LocalRef:
		name = path.Base(strings.ReplaceAll(r.Raw, `\`, "/"))
	}
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", errkind.New(errkind.InvalidData, "cannot find file name in '%s'", r.Raw)
	}
	return name, nil
}

// URL resolves the download location. Local references have no URL.
func (r Reference) URL(prefix string) (string, error) {
	switch r.Kind {
	case URLRef:
		return r.Raw, nil
	case NameRef:
		return prefix + r.Raw, nil
	}
	return "", fmt.Errorf("local reference '%s' has no url", r.Raw)
}

// LocalPath is the project-relative path of a local reference.
func (r Reference) LocalPath() string {
	return strings.TrimPrefix(r.Raw, localPrefix)
}

func (r Reference) String() string {
	return r.Raw
}

// UnmarshalYAML parses a scalar reference.
func (r *Reference) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: dependency reference must be a string", node.Line)
	}
	ref, err := ParseReference(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*r = ref
	return nil
}

// MarshalYAML encodes the reference as its raw string.
func (r Reference) MarshalYAML() (any, error) {
	return r.Raw, nil
}

// checkFileNames enforces that no two references of one category derive the
// same file name; otherwise "already present" would be ambiguous.
func checkFileNames(category string, refs []Reference) error {
	seen := make(map[string]string, len(refs))
	for _, ref := range refs {
		name, err := ref.FileName()
		if err != nil {
			return err
		}
		if prev, dup := seen[name]; dup {
			return errkind.New(errkind.InvalidData,
				"%s '%s' and '%s' both resolve to file name '%s'", category, prev, ref.Raw, name)
		}
		seen[name] = ref.Raw
	}
	return nil
}
