package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults when the corresponding field is unset.
const (
	DefaultAddr           = "127.0.0.1:5000"
	DefaultModelsDir      = "~/.kairos/models"
	DefaultDatabase       = "~/.kairos/kairos.db"
	DefaultContextSize    = 4096
	DefaultMaxTokens      = 2048
	DefaultBackend        = "auto"
	DefaultLogLevel       = "info"
	DefaultMaxQueueDepth  = 8
	DefaultMaxWaitSeconds = 30
)

// ModelEntry is a statically configured catalog entry.
type ModelEntry struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	DisplayName string `json:"display_name" yaml:"display_name" toml:"display_name"`
	Description string `json:"description" yaml:"description" toml:"description"`
	SizeBytes   int64  `json:"size_bytes" yaml:"size_bytes" toml:"size_bytes"`
	DownloadURL string `json:"download_url" yaml:"download_url" toml:"download_url"`
	Category    string `json:"category" yaml:"category" toml:"category"`
	Recommended bool   `json:"recommended" yaml:"recommended" toml:"recommended"`
}

// Config holds runtime parameters for the application.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr           string       `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir      string       `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Database       string       `json:"database" yaml:"database" toml:"database"`
	ContextSize    int          `json:"context_size" yaml:"context_size" toml:"context_size"`
	MaxTokens      int          `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Threads        int          `json:"threads" yaml:"threads" toml:"threads"`
	Backend        string       `json:"backend" yaml:"backend" toml:"backend"`
	LogLevel       string       `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxQueueDepth  int          `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds int          `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	CORSOrigins    []string     `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	DefaultModel   string       `json:"default_model" yaml:"default_model" toml:"default_model"`
	Models         []ModelEntry `json:"models" yaml:"models" toml:"models"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field with its package default.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.ContextSize <= 0 {
		c.ContextSize = DefaultContextSize
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWaitSeconds <= 0 {
		c.MaxWaitSeconds = DefaultMaxWaitSeconds
	}
}

// Validate rejects catalog entries without a name or with duplicate names.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if filepath.Base(m.Name) != m.Name || strings.ContainsAny(m.Name, `/\`) || m.Name == ".." || m.Name == "." {
			return fmt.Errorf("models[%d]: name %q must be a plain file name", i, m.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("models[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	switch strings.ToLower(c.Backend) {
	case "", "auto", "cpu", "cuda", "directml", "npu":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}
