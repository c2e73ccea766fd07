package config

import (
	"fmt"
	"log/slog"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("model.max_retries must not be negative, got %d", c.Model.MaxRetries)
	}
	if c.Limits.MaxConcurrentCalls < 1 {
		return fmt.Errorf("limits.max_concurrent_calls must be at least 1, got %d", c.Limits.MaxConcurrentCalls)
	}
	if c.Limits.TokenBudget < 0 {
		return fmt.Errorf("limits.token_budget must not be negative, got %d", c.Limits.TokenBudget)
	}
	if c.Server.Bind == "" {
		return fmt.Errorf("server.bind is required")
	}
	if _, ok := logLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

// LogLevel maps the configured level name to its slog level.
func (c *Config) LogLevel() slog.Level {
	if level, ok := logLevels[c.Logging.Level]; ok {
		return level
	}
	return slog.LevelInfo
}
