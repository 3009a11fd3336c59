// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// background task engine.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ExecutorConfig: Admission, throttling and history settings
//   - DispatchConfig: Consumer loop settings
//   - LogConfig: Logger level and format
//   - Watcher: Reloads a config file when it changes
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGRUN_TASKS_*)
//   - ~/.rigrun/tasks.toml
//   - ~/.rigrun/tasks.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Reload on change:
//
//	w, err := config.NewWatcher(path, 200*time.Millisecond, func(c *config.Config) {
//	    executor.Reconfigure(c.Executor)
//	}, nil)
//	if err == nil {
//	    _ = w.Watch()
//	    defer w.Close()
//	}
package config
