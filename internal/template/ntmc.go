package template

import (
	"strings"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/manifest"
	"github.com/schaermu/mcmod/internal/props"
)

type ntmc struct {
	layout
}

func (ntmc) Name() manifest.Template {
	return manifest.TemplateNTMC1710
}

func (ntmc) JavaVersion(string) int {
	return 8
}

func (ntmc) GradleProperties(m *manifest.Manifest) (*props.Map, error) {
	if m.Mixins != "" {
		return nil, errkind.New(errkind.InvalidData, "mixins are not supported by the %s template", manifest.TemplateNTMC1710)
	}

	apiPattern := ""
	if m.API != "" {
		apiPattern = strings.ReplaceAll(m.API, ".", "/")
		if !strings.HasSuffix(apiPattern, "/") {
			apiPattern += "/"
		}
		apiPattern += "**"
	}

	return props.FromPairs(
		"modName", m.Name,
		"modId", m.ModID,
		"modVersion", m.Version,
		"modArtifactVersion", m.ArtifactVersion,
		"modGroup", m.Group,
		"modArchivesBaseName", m.ArchivesBaseName,
		"modGroupInternal", strings.ReplaceAll(m.Group, ".", "/"),
		"modAccessTransformer", strings.Join(m.AccessTransformers, " "),
		"modCoremod", m.Coremod,
		"modApiPattern", apiPattern,
	), nil
}
