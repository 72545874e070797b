package manifest

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeleteSentinel as a copy rule source means "delete the target, copy nothing".
const DeleteSentinel = "null"

// CopyRule maps a project-relative source path to a workspace-relative target.
// In YAML it is either a single path (source and target are the same) or a
// [source, target] pair.
type CopyRule struct {
	Source string
	Target string
}

// IsDelete reports whether the rule retires its target instead of copying.
func (c CopyRule) IsDelete() bool {
	return c.Source == DeleteSentinel
}

func (c CopyRule) String() string {
	if c.Source == c.Target {
		return c.Source
	}
	return c.Source + " -> " + c.Target
}

// UnmarshalYAML accepts `path` or `[source, target]`; a YAML null source is
// the delete sentinel. yaml.v3 does not call this for a bare null item, which
// decodes to the zero rule and is rejected by validate.
func (c *CopyRule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*c = CopyRule{Source: node.Value, Target: node.Value}
	case yaml.SequenceNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: copy path must be [source, target], got %d elements", node.Line, len(node.Content))
		}
		src, tgt := node.Content[0], node.Content[1]
		if src.Kind != yaml.ScalarNode || tgt.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: copy path elements must be strings", node.Line)
		}
		source := src.Value
		if src.Tag == "!!null" {
			source = DeleteSentinel
		}
		*c = CopyRule{Source: source, Target: tgt.Value}
	default:
		return fmt.Errorf("line %d: copy path must be a string or [source, target]", node.Line)
	}
	return nil
}

// MarshalYAML encodes the short form when source and target match.
func (c CopyRule) MarshalYAML() (any, error) {
	if c.Source == c.Target {
		return c.Source, nil
	}
	return []string{c.Source, c.Target}, nil
}

// validate rejects paths that would read or write outside their roots.
func (c CopyRule) validate() error {
	if c.Target == "" || (!c.IsDelete() && c.Source == "") {
		return fmt.Errorf("copy path %q has an empty path", c.String())
	}
	for _, p := range []string{c.Source, c.Target} {
		if c.IsDelete() && p == c.Source {
			continue
		}
		if filepath.IsAbs(p) {
			return fmt.Errorf("copy path %q must be relative", p)
		}
		clean := filepath.ToSlash(filepath.Clean(p))
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("copy path %q escapes its root", p)
		}
	}
	return nil
}
