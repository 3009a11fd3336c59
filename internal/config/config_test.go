// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, 0, cfg.Executor.MaxConcurrent)
	assert.Equal(t, 100, cfg.Executor.History)
	assert.Equal(t, 30*time.Second, cfg.Executor.ShutdownTimeout())
	assert.Equal(t, time.Duration(0), cfg.Executor.ProgressInterval())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			mutate: func(c *Config) {},
		},
		{
			name:    "negative max concurrent",
			mutate:  func(c *Config) { c.Executor.MaxConcurrent = -1 },
			wantErr: "executor.max_concurrent",
		},
		{
			name:    "negative progress interval",
			mutate:  func(c *Config) { c.Executor.ProgressIntervalMs = -5 },
			wantErr: "executor.progress_interval_ms",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "chatty" },
			wantErr: "log.level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:   "level is case insensitive",
			mutate: func(c *Config) { c.Log.Level = "DEBUG" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var verrs ValidateErrors
			assert.True(t, errors.As(err, &verrs))
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Executor.History = -1
	cfg.Log.Format = "yaml"

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestConfig_LoadFromPathTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.toml")
	content := `
[executor]
max_concurrent = 4
progress_interval_ms = 50

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Executor.MaxConcurrent)
	assert.Equal(t, 50*time.Millisecond, cfg.Executor.ProgressInterval())
	assert.Equal(t, "debug", cfg.Log.Level)

	// Keys absent from the file keep their defaults
	assert.Equal(t, 100, cfg.Executor.History)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestConfig_LoadFromPathJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	content := `{"executor": {"history": 5}, "log": {"format": "json"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Executor.History)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 100, cfg.Executor.NotificationBuffer)
}

func TestConfig_LoadFromPathRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"loud\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestConfig_LoadFromPathMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.toml")
	require.NoError(t, os.WriteFile(path, []byte("[executor\nmax_concurrent = "), 0600))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("RIGRUN_TASKS_MAX_CONCURRENT", "8")
	t.Setenv("RIGRUN_TASKS_PROGRESS_INTERVAL_MS", "not-a-number")
	t.Setenv("RIGRUN_TASKS_LOG_LEVEL", "warn")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, 8, cfg.Executor.MaxConcurrent)
	assert.Equal(t, 0, cfg.Executor.ProgressIntervalMs, "unparseable value is ignored")
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestConfig_LoadUsesHomeDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Executor, cfg.Executor)

	path, err := ConfigPathTOML()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("[executor]\nhistory = 7\n"), 0600))

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Executor.History)
}

func TestConfig_SaveTOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.toml")

	cfg := Default()
	cfg.Executor.MaxConcurrent = 2
	cfg.Dispatch.BacklogWarn = 0
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
