// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the CLI configuration: the event store location,
// logging, and the adapter definitions the registry is built from.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Adapter kinds accepted in adapter definitions.
const (
	KindNull       = "null"
	KindSubprocess = "subprocess"
	KindFactory    = "factory"
)

// Config represents the complete nexus-router CLI configuration.
type Config struct {
	// DBPath is the SQLite database path for the event store.
	// Environment: NEXUS_ROUTER_DB
	// Default: nexus-router.db
	DBPath string `yaml:"db_path"`

	Log      LogConfig      `yaml:"log"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Environment: LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// DispatchConfig declares the adapters available to runs.
type DispatchConfig struct {
	// DefaultAdapter is the adapter used when a run request names none.
	// Environment: NEXUS_ROUTER_DEFAULT_ADAPTER
	// Default: null
	DefaultAdapter string `yaml:"default_adapter"`

	// Adapters are the adapter definitions to register. The built-in null
	// adapter is always registered, even with an empty list.
	Adapters []AdapterEntry `yaml:"adapters,omitempty"`
}

// AdapterEntry defines one adapter to register.
type AdapterEntry struct {
	// ID is the unique adapter identifier.
	ID string `yaml:"id"`

	// Kind selects the adapter implementation: null, subprocess, or
	// factory.
	Kind string `yaml:"kind"`

	// BaseCmd is the command prefix for subprocess adapters. Required for
	// kind subprocess.
	BaseCmd []string `yaml:"base_cmd,omitempty"`

	// Timeout bounds each subprocess call. Zero means the built-in
	// default.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Cwd is the working directory for subprocess calls.
	Cwd string `yaml:"cwd,omitempty"`

	// Env is merged over the parent environment for subprocess calls.
	Env map[string]string `yaml:"env,omitempty"`

	// StrictStderr makes any stderr output on a zero exit an error.
	StrictStderr bool `yaml:"strict_stderr,omitempty"`

	// MaxStdoutChars and MaxStderrChars bound captured output. Zero means
	// the built-in defaults.
	MaxStdoutChars int `yaml:"max_stdout_chars,omitempty"`
	MaxStderrChars int `yaml:"max_stderr_chars,omitempty"`

	// FactoryRef names a registered factory ("package:function") for kind
	// factory.
	FactoryRef string `yaml:"factory_ref,omitempty"`

	// Config is passed to the factory for kind factory.
	Config map[string]any `yaml:"config,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "nexus-router.db",
		Log: LogConfig{
			Level:     "info",
			Format:    "json",
			AddSource: false,
		},
		Dispatch: DispatchConfig{
			DefaultAdapter: "null",
		},
	}
}

// Load loads configuration from environment variables and optionally from a
// YAML file. Environment variables take precedence over file-based
// configuration. If configPath is empty, only environment variables are
// used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", configPath, err)
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero values with sensible defaults. This allows
// minimal configs (e.g. just adapters) to work without specifying all
// fields explicitly.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.DBPath == "" {
		c.DBPath = defaults.DBPath
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Dispatch.DefaultAdapter == "" {
		c.Dispatch.DefaultAdapter = defaults.Dispatch.DefaultAdapter
	}
	for i := range c.Dispatch.Adapters {
		if c.Dispatch.Adapters[i].Kind == "" {
			c.Dispatch.Adapters[i].Kind = KindSubprocess
		}
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("NEXUS_ROUTER_DB"); val != "" {
		c.DBPath = val
	}
	if val := os.Getenv("NEXUS_ROUTER_DEFAULT_ADAPTER"); val != "" {
		c.Dispatch.DefaultAdapter = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.DBPath == "" {
		errs = append(errs, "db_path must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	seen := map[string]bool{"null": true}
	for i, entry := range c.Dispatch.Adapters {
		where := fmt.Sprintf("dispatch.adapters[%d]", i)
		if entry.ID == "" {
			errs = append(errs, where+": id is required")
		} else {
			if seen[entry.ID] {
				errs = append(errs, fmt.Sprintf("%s: duplicate adapter id %q", where, entry.ID))
			}
			seen[entry.ID] = true
		}

		switch entry.Kind {
		case KindNull:
		case KindSubprocess:
			if len(entry.BaseCmd) == 0 {
				errs = append(errs, fmt.Sprintf("%s (%s): base_cmd is required for subprocess adapters", where, entry.ID))
			}
			if entry.Timeout < 0 {
				errs = append(errs, fmt.Sprintf("%s (%s): timeout must be non-negative, got %v", where, entry.ID, entry.Timeout))
			}
		case KindFactory:
			if entry.FactoryRef == "" {
				errs = append(errs, fmt.Sprintf("%s (%s): factory_ref is required for factory adapters", where, entry.ID))
			}
		default:
			errs = append(errs, fmt.Sprintf("%s (%s): kind must be one of [null, subprocess, factory], got %q", where, entry.ID, entry.Kind))
		}
	}

	if c.Dispatch.DefaultAdapter != "" && !seen[c.Dispatch.DefaultAdapter] {
		errs = append(errs, fmt.Sprintf("dispatch.default_adapter %q is not a configured adapter", c.Dispatch.DefaultAdapter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
