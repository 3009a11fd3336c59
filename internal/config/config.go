// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// background task engine.
//
// Configuration file locations (in order of precedence):
//   - ~/.rigrun/tasks.toml
//   - ~/.rigrun/tasks.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete task engine configuration.
type Config struct {
	// Executor configuration
	Executor ExecutorConfig `toml:"executor" json:"executor"`

	// Dispatch configuration
	Dispatch DispatchConfig `toml:"dispatch" json:"dispatch"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`
}

// ExecutorConfig controls how tasks are admitted, throttled and tracked.
type ExecutorConfig struct {
	// MaxConcurrent caps the number of running work functions (0 = unlimited).
	// Tasks over the cap wait in Pending.
	MaxConcurrent int `toml:"max_concurrent" json:"max_concurrent"`
	// ProgressIntervalMs is the minimum spacing between two progress
	// deliveries of one task, in milliseconds (0 = no throttling)
	ProgressIntervalMs int `toml:"progress_interval_ms" json:"progress_interval_ms"`
	// History is the number of finished tasks kept for inspection (0 = unlimited)
	History int `toml:"history" json:"history"`
	// NotificationBuffer is the capacity of the finish notification channel
	NotificationBuffer int `toml:"notification_buffer" json:"notification_buffer"`
	// ShutdownTimeoutSecs bounds how long shutdown waits for workers
	ShutdownTimeoutSecs int `toml:"shutdown_timeout_secs" json:"shutdown_timeout_secs"`
}

// ProgressInterval returns ProgressIntervalMs as a duration.
func (c ExecutorConfig) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMs) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutSecs as a duration.
func (c ExecutorConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// DispatchConfig controls the consumer dispatch loop.
type DispatchConfig struct {
	// BacklogWarn logs a warning when this many requests are queued (0 = never)
	BacklogWarn int `toml:"backlog_warn" json:"backlog_warn"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// Format is "text" or "json"
	Format string `toml:"format" json:"format"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			MaxConcurrent:       0, // one goroutine per task
			ProgressIntervalMs:  0, // deliver as fast as the consumer drains
			History:             100,
			NotificationBuffer:  100,
			ShutdownTimeoutSecs: 30,
		},
		Dispatch: DispatchConfig{
			BacklogWarn: 10000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigrun configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tasks.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tasks.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Values missing from the file come from Default.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// Determine file type and load accordingly
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to a TOML file atomically.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# rigrun task engine configuration\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := atomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// atomicWriteFile writes data to a temp file in the target directory,
// fsyncs it and renames it over path, so readers (and the watcher) never
// observe a partially written file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	nonNegative := []struct {
		field string
		value int
	}{
		{"executor.max_concurrent", c.Executor.MaxConcurrent},
		{"executor.progress_interval_ms", c.Executor.ProgressIntervalMs},
		{"executor.history", c.Executor.History},
		{"executor.notification_buffer", c.Executor.NotificationBuffer},
		{"executor.shutdown_timeout_secs", c.Executor.ShutdownTimeoutSecs},
		{"dispatch.backlog_warn", c.Dispatch.BacklogWarn},
	}
	for _, v := range nonNegative {
		if v.value < 0 {
			errs = append(errs, ValidationError{
				Field:   v.field,
				Message: fmt.Sprintf("must not be negative, got %d", v.value),
			})
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: text, json", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills fields whose zero value is not meaningful.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Executor.ShutdownTimeoutSecs == 0 {
		c.Executor.ShutdownTimeoutSecs = defaults.Executor.ShutdownTimeoutSecs
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGRUN_TASKS_MAX_CONCURRENT: overrides executor.max_concurrent
//   - RIGRUN_TASKS_PROGRESS_INTERVAL_MS: overrides executor.progress_interval_ms
//   - RIGRUN_TASKS_HISTORY: overrides executor.history
//   - RIGRUN_TASKS_LOG_LEVEL: overrides log.level
//   - RIGRUN_TASKS_LOG_FORMAT: overrides log.format
//
// Unparseable integers are ignored with a warning on stderr.
func (c *Config) ApplyEnvOverrides() {
	intOverrides := []struct {
		env    string
		target *int
	}{
		{"RIGRUN_TASKS_MAX_CONCURRENT", &c.Executor.MaxConcurrent},
		{"RIGRUN_TASKS_PROGRESS_INTERVAL_MS", &c.Executor.ProgressIntervalMs},
		{"RIGRUN_TASKS_HISTORY", &c.Executor.History},
	}
	for _, o := range intOverrides {
		raw := os.Getenv(o.env)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: ignoring %s=%q: %v\n", o.env, raw, err)
			continue
		}
		*o.target = n
	}

	if level := os.Getenv("RIGRUN_TASKS_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("RIGRUN_TASKS_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
}
