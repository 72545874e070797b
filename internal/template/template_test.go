package template

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/manifest"
	"github.com/schaermu/mcmod/internal/props"
)

func toMap(p *props.Map) map[string]string {
	out := make(map[string]string, p.Len())
	p.Range(func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

func TestFor(t *testing.T) {
	h, err := For(manifest.TemplateNTMC1710)
	require.NoError(t, err)
	assert.Equal(t, manifest.TemplateNTMC1710, h.Name())

	h, err = For(manifest.TemplateGTNH1710)
	require.NoError(t, err)
	assert.Equal(t, manifest.TemplateGTNH1710, h.Name())

	_, err = For("forge-1.12.2")
	assert.True(t, errkind.Is(err, errkind.NotFound))
}

func TestLayout(t *testing.T) {
	h, err := For(manifest.TemplateGTNH1710)
	require.NoError(t, err)

	root := filepath.Join("p", "target")
	assert.Equal(t, filepath.Join(root, "libs"), h.LibsDir(root))
	assert.Equal(t, filepath.Join(root, "run"), h.RunDir(root))
	assert.Equal(t, filepath.Join(root, "build", "libs"), h.OutputDir(root))
}

func TestNTMC_GradleProperties(t *testing.T) {
	m := &manifest.Manifest{
		Name:               "My Mod",
		ModID:              "mymod",
		Version:            "1.2.0",
		ArtifactVersion:    "1.2.0-mc1.7.10",
		Group:              "com.example.mymod",
		ArchivesBaseName:   "My-Mod",
		AccessTransformers: []string{"a_at.cfg", "b_at.cfg"},
		Coremod:            "com.example.mymod.Core",
		API:                "com.example.mymod.api",
	}

	p, err := ntmc{}.GradleProperties(m)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"modName":              "My Mod",
		"modId":                "mymod",
		"modVersion":           "1.2.0",
		"modArtifactVersion":   "1.2.0-mc1.7.10",
		"modGroup":             "com.example.mymod",
		"modArchivesBaseName":  "My-Mod",
		"modGroupInternal":     "com/example/mymod",
		"modAccessTransformer": "a_at.cfg b_at.cfg",
		"modCoremod":           "com.example.mymod.Core",
		"modApiPattern":        "com/example/mymod/api/**",
	}, toMap(p))

	m.API = ""
	p, err = ntmc{}.GradleProperties(m)
	require.NoError(t, err)
	v, _ := p.Get("modApiPattern")
	assert.Empty(t, v)

	m.Mixins = "com.example.mymod.mixins"
	_, err = ntmc{}.GradleProperties(m)
	assert.True(t, errkind.Is(err, errkind.InvalidData))
}

func TestNTMC_JavaVersion(t *testing.T) {
	assert.Equal(t, 8, ntmc{}.JavaVersion("runClient17"))
}

func TestGTNH_GradleProperties(t *testing.T) {
	base := func() *manifest.Manifest {
		return &manifest.Manifest{
			Name:             "My Mod",
			ModID:            "mymod",
			Group:            "com.example.mymod",
			ArchivesBaseName: "My-Mod",
		}
	}

	t.Run("minimal", func(t *testing.T) {
		p, err := gtnh{}.GradleProperties(base())
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"modName":                  "My Mod",
			"modId":                    "mymod",
			"modGroup":                 "com.example.mymod",
			"customArchiveBaseName":    "My-Mod",
			"generateGradleTokenClass": "com.example.mymod.Tags_GENERATED",
			"apiPackage":               "",
			"accessTransformersFile":   "",
			"usesMixins":               "false",
			"mixinsPackage":            "",
			"mixinPlugin":              "",
			"coreModClass":             "",
			"disableSpotless":          "true",
		}, toMap(p))
	})

	t.Run("mixins", func(t *testing.T) {
		m := base()
		m.Mixins = "com.example.mymod.mixins"
		m.Coremod = "com.example.mymod.core.Plugin"
		m.API = "com.example.mymod.api"

		p, err := gtnh{}.GradleProperties(m)
		require.NoError(t, err)
		got := toMap(p)
		assert.Equal(t, "true", got["usesMixins"])
		assert.Equal(t, "mixins", got["mixinsPackage"])
		assert.Equal(t, "core.Plugin", got["coreModClass"])
		assert.Equal(t, "core.Plugin", got["mixinPlugin"])
		assert.Equal(t, "api", got["apiPackage"])
	})

	tests := []struct {
		name   string
		mutate func(m *manifest.Manifest)
	}{
		{name: "version set", mutate: func(m *manifest.Manifest) { m.Version = "1.0" }},
		{name: "artifact version set", mutate: func(m *manifest.Manifest) { m.ArtifactVersion = "1.0" }},
		{name: "api outside group", mutate: func(m *manifest.Manifest) { m.API = "org.other.api" }},
		{name: "mixins without coremod", mutate: func(m *manifest.Manifest) { m.Mixins = "com.example.mymod.mixins" }},
		{
			name: "mixins outside group",
			mutate: func(m *manifest.Manifest) {
				m.Mixins = "org.other.mixins"
				m.Coremod = "com.example.mymod.Core"
			},
		},
		{name: "coremod outside group", mutate: func(m *manifest.Manifest) { m.Coremod = "org.other.Core" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			_, err := gtnh{}.GradleProperties(m)
			require.Error(t, err)
			assert.True(t, errkind.Is(err, errkind.InvalidData))
		})
	}
}

func TestGTNH_JavaVersion(t *testing.T) {
	assert.Equal(t, 8, gtnh{}.JavaVersion(SetupTask))
	assert.Equal(t, 8, gtnh{}.JavaVersion("runClient"))
	assert.Equal(t, 17, gtnh{}.JavaVersion("runClient17"))
	assert.Equal(t, 17, gtnh{}.JavaVersion("runServer17"))
}
