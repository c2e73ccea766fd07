package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Model contains the text-generation service connection settings.
type Model struct {
	Name       string `toml:"name"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	MaxRetries int    `toml:"max_retries"`
}

// Limits bounds model usage across every run in the process.
type Limits struct {
	MaxConcurrentCalls int `toml:"max_concurrent_calls"`
	TokenBudget        int `toml:"token_budget"`
}

// Server contains the HTTP trigger surface settings.
type Server struct {
	Bind string `toml:"bind"`
}

// Trace contains per-run trace file settings.
type Trace struct {
	Enabled       bool   `toml:"enabled"`
	Directory     string `toml:"directory"`
	MaxFiles      int    `toml:"max_files"`
	RetentionDays int    `toml:"retention_days"`
}

// Store contains run persistence settings.
type Store struct {
	Path string `toml:"path"`
}

// Logging contains log output settings.
type Logging struct {
	Level string `toml:"level"`
}

// Config is the full quill configuration.
type Config struct {
	Model   Model   `toml:"model"`
	Limits  Limits  `toml:"limits"`
	Server  Server  `toml:"server"`
	Trace   Trace   `toml:"trace"`
	Store   Store   `toml:"store"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the standard config location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "quill", "config.toml"), nil
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields the defaults. The QUILL_API_KEY environment
// variable overrides the configured API key.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if key := os.Getenv("QUILL_API_KEY"); key != "" {
		cfg.Model.APIKey = key
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, true, nil
}

func (c *Config) normalize() error {
	for _, field := range []*string{&c.Store.Path, &c.Trace.Directory} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandPath(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
