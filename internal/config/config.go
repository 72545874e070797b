// Package config holds mcmod's own settings, as opposed to a project's
// manifest: CDN prefixes, the template registry, and tool behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/schaermu/mcmod/internal/errkind"
)

// EnvPrefix is prepended to every setting when read from the environment,
// e.g. MCMOD_LIBS_URL.
const EnvPrefix = "MCMOD"

// GitBackend selects how templates are cloned.
type GitBackend string

const (
	GitShell GitBackend = "shell"
	GitGoGit GitBackend = "go-git"
)

const (
	DefaultLibsURL = "https://cdn.pistonite.org/minecraft/devjars/"
	DefaultModsURL = "https://cdn.pistonite.org/minecraft/jars/"
)

// Config represents the resolved mcmod settings
type Config struct {
	LibsURL       string        `mapstructure:"libs_url"`
	ModsURL       string        `mapstructure:"mods_url"`
	TemplatesFile string        `mapstructure:"templates_file"`
	GitBackend    GitBackend    `mapstructure:"git_backend"`
	EULAAutoAgree bool          `mapstructure:"eula_auto_agree"`
	FetchLimit    int           `mapstructure:"fetch_limit"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("libs_url", DefaultLibsURL)
	v.SetDefault("mods_url", DefaultModsURL)
	v.SetDefault("templates_file", "")
	v.SetDefault("git_backend", string(GitShell))
	v.SetDefault("eula_auto_agree", false)
	v.SetDefault("fetch_limit", 0)
	v.SetDefault("fetch_timeout", 5*time.Minute)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultConfigPath is $XDG_CONFIG_HOME/mcmod/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "mcmod", "config.yaml")
}

// Load reads the configuration file into v and resolves the settings. An
// explicit path that does not exist is an error; the default path is
// optional.
func Load(v *viper.Viper, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errkind.Wrap(errkind.InvalidData, err, "failed to parse config file %s", path)
		}
	} else if explicit {
		return nil, errkind.Wrap(errkind.NotFound, err, "failed to read config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errkind.Wrap(errkind.InvalidData, err, "failed to decode configuration")
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in settings whose default depends on the host.
func (c *Config) applyDefaults() {
	c.TemplatesFile = os.ExpandEnv(c.TemplatesFile)
	if c.TemplatesFile == "" {
		c.TemplatesFile = defaultTemplatesFile()
	}
}

// defaultTemplatesFile prefers the user's data dir and falls back to a
// registry shipped next to the executable.
func defaultTemplatesFile() string {
	userFile := filepath.Join(xdg.DataHome, "mcmod", TemplatesFileName)
	if _, err := os.Stat(userFile); err == nil {
		return userFile
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), TemplatesFileName)
	}
	return userFile
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var result error
	prefixes := []struct{ key, value string }{{"libs_url", c.LibsURL}, {"mods_url", c.ModsURL}}
	for _, p := range prefixes {
		key, prefix := p.key, p.value
		if !strings.HasPrefix(prefix, "http://") && !strings.HasPrefix(prefix, "https://") {
			result = multierror.Append(result, fmt.Errorf("%s must be an http(s) url: %s", key, prefix))
			continue
		}
		if !strings.HasSuffix(prefix, "/") {
			result = multierror.Append(result, fmt.Errorf("%s must end with '/': %s", key, prefix))
		}
	}

	switch c.GitBackend {
	case GitShell, GitGoGit:
		// valid
	default:
		result = multierror.Append(result, fmt.Errorf("invalid git_backend: %s (must be shell or go-git)", c.GitBackend))
	}

	if c.FetchLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("fetch_limit must not be negative: %d", c.FetchLimit))
	}
	if c.FetchTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("fetch_timeout must not be negative: %s", c.FetchTimeout))
	}

	if result != nil {
		return errkind.Wrap(errkind.InvalidData, result, "")
	}
	return nil
}
