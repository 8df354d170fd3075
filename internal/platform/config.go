package platform

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the content of filesdb.yaml.
type FileConfig struct {
	Adapter   string `yaml:"adapter"`
	Path      string `yaml:"path"`
	SystemDir string `yaml:"system_dir"`
	ReadOnly  bool   `yaml:"read_only"`
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	MCPConfig string `yaml:"mcp_config"`
	Server    string `yaml:"server"`

	// Dir is the directory the file was loaded from. Relative paths in the
	// file are resolved against it.
	Dir string `yaml:"-"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(abs)
	return &cfg, nil
}

// FindConfig looks upwards from startDir for filesdb.yaml. It returns nil
// without error when no root holds one.
func FindConfig(startDir string) (*FileConfig, error) {
	root, err := FindRoot(startDir)
	if err != nil {
		return nil, nil
	}
	path := filepath.Join(root, ConfigFileName)
	if !hasFile(root, ConfigFileName) {
		return nil, nil
	}
	return LoadConfig(path)
}

// ResolvedPath returns Path relative to the config file's directory.
func (c *FileConfig) ResolvedPath() string {
	return c.resolve(c.Path)
}

// ResolvedMCPConfig returns MCPConfig relative to the config file's directory.
func (c *FileConfig) ResolvedMCPConfig() string {
	return c.resolve(c.MCPConfig)
}

func (c *FileConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Options converts the file settings into options. Empty settings add
// nothing, so later options override file values.
func (c *FileConfig) Options() []Option {
	var opts []Option
	if c.Adapter != "" {
		opts = append(opts, WithAdapter(c.Adapter))
	}
	if c.SystemDir != "" {
		opts = append(opts, WithSystemDir(c.SystemDir))
	}
	if c.ReadOnly {
		opts = append(opts, WithReadOnly(true))
	}
	if c.MCPConfig != "" {
		opts = append(opts, WithMCPConfig(c.ResolvedMCPConfig()))
	}
	return opts
}

// Level parses LogLevel. Unknown or empty values give Info.
func (c *FileConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
