package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds user-configurable defaults. Command-line flags override it.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Support   SupportConfig   `yaml:"support"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Collector CollectorConfig `yaml:"collector"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// SupportConfig holds the account-specific fields of filed cases.
type SupportConfig struct {
	Region       string `yaml:"region"`
	ServiceCode  string `yaml:"service_code"`
	CategoryCode string `yaml:"category_code"`
	Language     string `yaml:"language"`
	IssueType    string `yaml:"issue_type"`
}

type MetadataConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Disabled bool          `yaml:"disabled"`
}

type CollectorConfig struct {
	// Timeout bounds each collector; 0 disables the limit.
	Timeout    time.Duration `yaml:"timeout"`
	ScratchDir string        `yaml:"scratch_dir"`
}

// Default returns a config with sensible defaults.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Support: SupportConfig{
			Region:       "us-east-1",
			ServiceCode:  "amazon-elastic-compute-cloud-linux",
			CategoryCode: "performance",
			Language:     "en",
			IssueType:    "technical",
		},
		Metadata: MetadataConfig{Timeout: 2 * time.Second},
		Collector: CollectorConfig{
			Timeout: 10 * time.Minute,
		},
	}
}

// Path returns ~/.config/perfdiag/config.yaml (or under XDG_CONFIG_HOME).
// Returns empty string if home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "perfdiag", "config.yaml")
}

// Load reads the config at path. A missing file yields defaults and no
// error; a malformed file yields defaults and the parse error so the caller
// can warn.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	parsed := Default()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := parsed.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return parsed, nil
}

// Validate rejects values no run could use.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log rotation limits must not be negative")
	}
	if c.Metadata.Timeout <= 0 {
		return fmt.Errorf("metadata.timeout %s: must be positive", c.Metadata.Timeout)
	}
	if c.Collector.Timeout < 0 {
		return fmt.Errorf("collector.timeout %s: must not be negative", c.Collector.Timeout)
	}
	if c.Support.Region == "" {
		return errors.New("support.region is required")
	}
	return nil
}
