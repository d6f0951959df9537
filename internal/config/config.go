// Package config handles the .pbltrack directory and its config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the per-workspace directory holding the database, snapshot and logs.
	Dir = ".pbltrack"

	defaultPort = 8000
)

const defaultConfigYAML = `# pbltrack configuration
version: 1

# Paths are relative to the directory pbltrack runs in.
db_path: .pbltrack/pbltrack.db
snapshot_path: .pbltrack/snapshot.jsonl

web:
  port: 8000

# debug logs every request and transition; info logs writes only.
log_level: info
`

type WebConfig struct {
	Port int `yaml:"port"`
}

// Config models .pbltrack/config.yaml.
type Config struct {
	Version      int       `yaml:"version"`
	DBPath       string    `yaml:"db_path"`
	SnapshotPath string    `yaml:"snapshot_path"`
	Web          WebConfig `yaml:"web"`
	LogLevel     string    `yaml:"log_level"`
}

// Default returns the configuration used when no config.yaml exists.
func Default() Config {
	return Config{
		Version:      1,
		DBPath:       filepath.Join(Dir, "pbltrack.db"),
		SnapshotPath: filepath.Join(Dir, "snapshot.jsonl"),
		Web:          WebConfig{Port: defaultPort},
		LogLevel:     "info",
	}
}

// Path returns the config file location under workDir.
func Path(workDir string) string {
	return filepath.Join(workDir, Dir, "config.yaml")
}

// Load reads workDir/.pbltrack/config.yaml. A missing file yields defaults.
// Relative paths are resolved against workDir.
func Load(workDir string) (Config, error) {
	cfg := Default()
	path := Path(workDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize(workDir)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.normalize(workDir)
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Init creates workDir/.pbltrack with a .gitignore and a default config.yaml.
// Existing files are left alone.
func Init(workDir string) error {
	dir := filepath.Join(workDir, Dir)
	for _, d := range []string{dir, filepath.Join(dir, "logs")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("config: create %s: %w", d, err)
		}
	}
	if err := writeIfMissing(filepath.Join(dir, ".gitignore"), "pbltrack.db*\nlogs/\n"); err != nil {
		return err
	}
	return writeIfMissing(Path(workDir), defaultConfigYAML)
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Version == 0 {
		c.Version = d.Version
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = d.DBPath
	}
	if strings.TrimSpace(c.SnapshotPath) == "" {
		c.SnapshotPath = d.SnapshotPath
	}
	if c.Web.Port == 0 {
		c.Web.Port = d.Web.Port
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

func (c *Config) normalize(base string) {
	c.DBPath = resolvePath(base, c.DBPath)
	c.SnapshotPath = resolvePath(base, c.SnapshotPath)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

func (c *Config) validate() error {
	if c.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port %d out of range", c.Web.Port)
	}
	switch c.LogLevel {
	case "debug", "info":
		return nil
	default:
		return fmt.Errorf("log_level must be 'debug' or 'info'")
	}
}

// Debug reports whether verbose logging is on.
func (c Config) Debug() bool {
	return c.LogLevel == "debug"
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" || trimmed == ":memory:" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
