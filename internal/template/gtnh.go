package template

import (
	"strings"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/manifest"
	"github.com/schaermu/mcmod/internal/props"
)

type gtnh struct {
	layout
}

func (gtnh) Name() manifest.Template {
	return manifest.TemplateGTNH1710
}

// JavaVersion selects Java 17 for the *17 task variants (runClient17, ...).
func (gtnh) JavaVersion(task string) int {
	if strings.HasSuffix(task, "17") {
		return 17
	}
	return 8
}

// GradleProperties maps the manifest onto the GTNH buildscript. Packages are
// given relative to the mod group.
func (gtnh) GradleProperties(m *manifest.Manifest) (*props.Map, error) {
	if m.Version != "" || m.ArtifactVersion != "" {
		return nil, errkind.New(errkind.InvalidData,
			"the %s template derives the version from git; remove version and artifact-version from %s",
			manifest.TemplateGTNH1710, manifest.FileName)
	}

	p := props.FromPairs(
		"modName", m.Name,
		"modId", m.ModID,
		"modGroup", m.Group,
		"customArchiveBaseName", m.ArchivesBaseName,
		"generateGradleTokenClass", m.Group+".Tags_GENERATED",
	)

	api, err := inGroup(m.Group, "api package", m.API)
	if err != nil {
		return nil, err
	}
	p.Set("apiPackage", api)
	p.Set("accessTransformersFile", strings.Join(m.AccessTransformers, " "))

	if m.Mixins == "" {
		p.Set("usesMixins", "false")
		p.Set("mixinsPackage", "")
		p.Set("mixinPlugin", "")
	} else {
		if m.Coremod == "" {
			return nil, errkind.New(errkind.InvalidData,
				"coremod class must be specified (and implement IMixinConfigPlugin) if mixins are used")
		}
		mixins, err := inGroup(m.Group, "mixins package", m.Mixins)
		if err != nil {
			return nil, err
		}
		p.Set("usesMixins", "true")
		p.Set("mixinsPackage", mixins)
		p.Set("mixinPlugin", "")
	}

	coremod, err := inGroup(m.Group, "coremod class", m.Coremod)
	if err != nil {
		return nil, err
	}
	p.Set("coreModClass", coremod)
	if m.Mixins != "" {
		p.Set("mixinPlugin", coremod)
	}

	p.Set("disableSpotless", "true")
	return p, nil
}

// inGroup strips the group prefix from a fully qualified name. Empty stays
// empty.
func inGroup(group, what, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	rel, ok := strings.CutPrefix(name, group+".")
	if !ok {
		return "", errkind.New(errkind.InvalidData, "%s '%s' must be in the same group as the mod ('%s')", what, name, group)
	}
	return rel, nil
}
