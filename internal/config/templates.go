package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schaermu/mcmod/internal/errkind"
)

// TemplatesFileName is the registry file looked up in the data directory.
const TemplatesFileName = "templates.yaml"

// TemplateSource is where a workspace template is cloned from.
type TemplateSource struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
}

// Templates maps template names to their sources.
type Templates map[string]TemplateSource

// LoadTemplates reads the template registry.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.Wrap(errkind.NotFound, err, "template registry not found")
		}
		return nil, fmt.Errorf("failed to read template registry: %w", err)
	}

	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errkind.Wrap(errkind.InvalidData, err, "failed to parse template registry %s", path)
	}

	for _, name := range t.Names() {
		src := t[name]
		if src.URL == "" {
			return nil, errkind.New(errkind.InvalidData, "template %s: url is required", name)
		}
		if src.Branch == "" {
			return nil, errkind.New(errkind.InvalidData, "template %s: branch is required", name)
		}
	}
	return t, nil
}

// Names returns the registered template names in sorted order.
func (t Templates) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the source for name, or NotFound listing what is available.
func (t Templates) Lookup(name string) (TemplateSource, error) {
	src, ok := t[name]
	if !ok {
		return TemplateSource{}, errkind.New(errkind.NotFound,
			"template '%s' not found; available: %s", name, strings.Join(t.Names(), ", "))
	}
	return src, nil
}
