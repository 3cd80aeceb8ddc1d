// config.go — project-level defaults from .buddyscript.yaml.
//
// The CLI looks for the file in the script's directory, walking up to the
// filesystem root and falling back to the user's home directory. Flags
// always win over the file.
package buddyscript

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// ConfigFileName is what the CLI searches for.
const ConfigFileName = ".buddyscript.yaml"

// Config mirrors the run options a project may pin in its config file.
// Pointer fields distinguish "unset" from an explicit false/zero.
type Config struct {
	Workdir       string `yaml:"workdir"`
	DryRun        *bool  `yaml:"dry-run"`
	EnableFileOps *bool  `yaml:"enable-file-ops"`
	EnableBash    *bool  `yaml:"enable-bash"`
	EnableAI      *bool  `yaml:"enable-ai"`
	Verbose       *bool  `yaml:"verbose"`
	TimeoutMs     *int   `yaml:"timeout-ms"`
}

// LoadConfig reads and parses a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfig walks from dir toward the root looking for ConfigFileName,
// then tries the home directory. Returns "" when nothing is found.
func FindConfig(dir string) string {
	d, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(d, ConfigFileName)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ConfigFileName)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return ""
}

// Apply overlays the config's set fields onto opts and returns the result.
func (c *Config) Apply(opts Options) Options {
	if c == nil {
		return opts
	}
	if c.Workdir != "" && opts.Workdir == "" {
		opts.Workdir = c.Workdir
	}
	if c.DryRun != nil {
		opts.DryRun = *c.DryRun
	}
	if c.EnableFileOps != nil {
		opts.EnableFileOps = *c.EnableFileOps
	}
	if c.EnableBash != nil {
		opts.EnableBash = *c.EnableBash
	}
	if c.EnableAI != nil {
		opts.EnableAI = *c.EnableAI
	}
	if c.Verbose != nil {
		opts.Verbose = *c.Verbose
	}
	if c.TimeoutMs != nil {
		opts.TimeoutMs = *c.TimeoutMs
	}
	return opts
}
