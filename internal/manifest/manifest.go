// Package manifest is the typed view of a project's mcmod.yaml: mod
// metadata, the workspace template, dependency lists, copy rules and gradle
// property overrides.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/props"
)

// FileName is the manifest file at the project root.
const FileName = "mcmod.yaml"

// Template names a supported workspace template.
type Template string

const (
	TemplateNTMC1710 Template = "ntmc-1.7.10"
	TemplateGTNH1710 Template = "gtnh-1.7.10"
)

// Manifest is the declared project configuration.
type Manifest struct {
	Template    Template `yaml:"template" validate:"required,oneof=ntmc-1.7.10 gtnh-1.7.10"`
	Name        string   `yaml:"name" validate:"required"`
	ModID       string   `yaml:"modid" validate:"required"`
	Description string   `yaml:"description" validate:"required"`
	URL         string   `yaml:"url" validate:"omitempty,url"`
	UpdateURL   string   `yaml:"update-url" validate:"omitempty,url"`
	Authors     []string `yaml:"authors"`
	Credits     string   `yaml:"credits"`
	Logo        string   `yaml:"logo"`
	Screenshots []string `yaml:"screenshots"`

	Version          string `yaml:"version"`
	ArtifactVersion  string `yaml:"artifact-version"`
	Group            string `yaml:"group"`
	ArchivesBaseName string `yaml:"archives-base-name"`

	API                string   `yaml:"api"`
	Coremod            string   `yaml:"coremod"`
	AccessTransformers []string `yaml:"access-transformers"`
	Mixins             string   `yaml:"mixins"`

	// Libs are build-time libraries placed in the template's libs directory.
	Libs []Reference `yaml:"libs"`
	// Mods are runtime mods placed in the run directory's mods folder.
	Mods []Reference `yaml:"mods"`

	GradleOverrides props.Map  `yaml:"gradle-overrides"`
	CopyPaths       []CopyRule `yaml:"copy-paths"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml key names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse decodes a manifest document. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, errkind.Wrap(errkind.InvalidData, err, "failed to parse %s", FileName)
	}
	return &m, nil
}

// Load reads, defaults and validates the manifest at path. sourceRoot is
// used to infer the group when it is not declared.
func Load(path, sourceRoot string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.Wrap(errkind.NotFound, err, "manifest not found")
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := m.ApplyDefaults(sourceRoot); err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// ApplyDefaults fills in derived fields that were left empty.
func (m *Manifest) ApplyDefaults(sourceRoot string) error {
	if m.UpdateURL == "" && m.URL != "" {
		m.UpdateURL = m.URL
	}
	if m.ArtifactVersion == "" {
		m.ArtifactVersion = m.Version
	}
	if m.Group == "" && sourceRoot != "" {
		group, err := SourceGroup(sourceRoot)
		if err != nil {
			return fmt.Errorf("failed to infer group from %s: %w", sourceRoot, err)
		}
		m.Group = group
	}
	if m.ArchivesBaseName == "" {
		m.ArchivesBaseName = strings.ReplaceAll(m.Name, " ", "-")
	}
	return nil
}

// Validate checks required fields, the template and the invariants between
// dependency references and copy rules.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return errkind.New(errkind.InvalidData, "invalid %s: %s", FileName, strings.Join(msgs, "; "))
		}
		return errkind.Wrap(errkind.InvalidData, err, "invalid %s", FileName)
	}

	if strings.ContainsAny(m.ModID, " /\\") {
		return errkind.New(errkind.InvalidData, "invalid %s: modid '%s' must not contain spaces or slashes", FileName, m.ModID)
	}

	if err := checkFileNames("libs", m.Libs); err != nil {
		return err
	}
	if err := checkFileNames("mods", m.Mods); err != nil {
		return err
	}

	targets := make(map[string]bool, len(m.CopyPaths))
	for _, rule := range m.CopyPaths {
		if err := rule.validate(); err != nil {
			return errkind.Wrap(errkind.InvalidData, err, "invalid %s", FileName)
		}
		if rule.IsDelete() {
			continue
		}
		if targets[rule.Target] {
			return errkind.New(errkind.InvalidData, "invalid %s: copy target '%s' declared twice", FileName, rule.Target)
		}
		targets[rule.Target] = true
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got '%v'", fe.Field(), fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a url, got '%v'", fe.Field(), fe.Value())
	}
	return fmt.Sprintf("%s failed '%s' validation", fe.Field(), fe.Tag())
}
