package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/schaermu/mcmod/internal/errkind"
)

// SourceGroup infers the java package group from the source tree: starting
// at root, as long as a directory holds exactly one entry and that entry is a
// directory, its name is appended and the walk descends.
// src/com/example/mymod/{A.java,B.java} yields "com.example.mymod".
func SourceGroup(root string) (string, error) {
	var parts []string
	current := root
	for {
		info, err := os.Stat(current)
		if err != nil || !info.IsDir() {
			break
		}
		entries, err := os.ReadDir(current)
		if err != nil {
			return "", err
		}
		if len(entries) != 1 || !entries[0].IsDir() {
			break
		}
		parts = append(parts, entries[0].Name())
		current = filepath.Join(current, entries[0].Name())
	}
	return strings.Join(parts, "."), nil
}

type modInfo struct {
	ModID        string   `json:"modid"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	MCVersion    string   `json:"mcversion"`
	URL          string   `json:"url"`
	UpdateURL    string   `json:"updateUrl"`
	AuthorList   []string `json:"authorList"`
	Credits      string   `json:"credits"`
	LogoFile     string   `json:"logoFile"`
	Screenshots  []string `json:"screenshots"`
	Dependencies []string `json:"dependencies"`
}

// MCModInfo renders the mcmod.info resource. Version fields are left as
// gradle placeholders so the build fills them in.
func (m *Manifest) MCModInfo() ([]byte, error) {
	info := []modInfo{{
		ModID:        m.ModID,
		Name:         m.Name,
		Description:  m.Description,
		Version:      "${version}",
		MCVersion:    "${mcversion}",
		URL:          m.URL,
		UpdateURL:    m.UpdateURL,
		AuthorList:   nonNil(m.Authors),
		Credits:      m.Credits,
		LogoFile:     m.Logo,
		Screenshots:  nonNil(m.Screenshots),
		Dependencies: []string{},
	}}
	return marshal(info)
}

type packMeta struct {
	Pack struct {
		PackFormat  int    `json:"pack_format"`
		Description string `json:"description"`
	} `json:"pack"`
}

// PackMCMeta renders the pack.mcmeta resource.
func (m *Manifest) PackMCMeta() ([]byte, error) {
	var meta packMeta
	meta.Pack.PackFormat = 1
	meta.Pack.Description = "Resources used for " + m.Name
	return marshal(meta)
}

func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errkind.Wrap(errkind.InvalidData, err, "failed to render metadata")
	}
	return data, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
