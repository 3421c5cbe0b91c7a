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

package shared

import (
	"log/slog"

	"github.com/tombee/nexus-router/internal/config"
	"github.com/tombee/nexus-router/internal/log"
	"github.com/tombee/nexus-router/pkg/dispatch"
	"github.com/tombee/nexus-router/pkg/plugins"
)

// factories is the process-wide adapter factory table. Embedding builds
// populate it from main before command execution; the stock CLI ships it
// empty.
var factories = plugins.NewFactoryTable()

// Factories returns the adapter factory table used by factory adapter
// definitions and the validate-adapter command.
func Factories() *plugins.FactoryTable {
	return factories
}

// Environment is everything a subcommand needs to execute: the loaded
// configuration, a logger honoring the global flags, and the adapter
// registry built from the adapter definitions.
type Environment struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *dispatch.AdapterRegistry
}

// LoadEnvironment loads the configuration (respecting --config and --db),
// builds the logger and the adapter registry. Failures map to
// ExitConfigError.
func LoadEnvironment() (*Environment, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("loading configuration", err)
	}
	if db := GetDBPath(); db != "" {
		cfg.DBPath = db
	}

	logCfg := &log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		AddSource: cfg.Log.AddSource,
	}
	if GetVerbose() {
		logCfg.Level = "debug"
	}

	registry, err := config.BuildRegistry(cfg, factories)
	if err != nil {
		return nil, NewConfigError("building adapter registry", err)
	}

	return &Environment{
		Config:   cfg,
		Logger:   log.New(logCfg),
		Registry: registry,
	}, nil
}
