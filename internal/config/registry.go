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

package config

import (
	"fmt"

	"github.com/tombee/nexus-router/pkg/dispatch"
	"github.com/tombee/nexus-router/pkg/plugins"
)

// BuildRegistry constructs the adapter registry from the configured adapter
// definitions. The built-in null adapter is always registered under the id
// "null". Factory adapters are resolved against table; a nil table rejects
// any factory entries.
func BuildRegistry(cfg *Config, table *plugins.FactoryTable) (*dispatch.AdapterRegistry, error) {
	registry := dispatch.NewAdapterRegistry(cfg.Dispatch.DefaultAdapter)
	if err := registry.Register(dispatch.NewNullAdapter("null")); err != nil {
		return nil, err
	}

	for _, entry := range cfg.Dispatch.Adapters {
		adapter, err := buildAdapter(entry, table)
		if err != nil {
			return nil, fmt.Errorf("config: adapter %q: %w", entry.ID, err)
		}
		if err := registry.Register(adapter); err != nil {
			return nil, fmt.Errorf("config: adapter %q: %w", entry.ID, err)
		}
	}
	return registry, nil
}

func buildAdapter(entry AdapterEntry, table *plugins.FactoryTable) (dispatch.Adapter, error) {
	switch entry.Kind {
	case KindNull:
		return dispatch.NewNullAdapter(entry.ID), nil

	case KindSubprocess:
		opts := []dispatch.SubprocessOption{dispatch.WithAdapterID(entry.ID)}
		if entry.Timeout > 0 {
			opts = append(opts, dispatch.WithTimeout(entry.Timeout))
		}
		if entry.Cwd != "" {
			opts = append(opts, dispatch.WithCwd(entry.Cwd))
		}
		if len(entry.Env) > 0 {
			opts = append(opts, dispatch.WithEnv(entry.Env))
		}
		if entry.MaxStdoutChars > 0 || entry.MaxStderrChars > 0 {
			opts = append(opts, dispatch.WithOutputLimits(entry.MaxStdoutChars, entry.MaxStderrChars))
		}
		if entry.StrictStderr {
			opts = append(opts, dispatch.WithStrictStderr())
		}
		return dispatch.NewSubprocessAdapter(entry.BaseCmd, opts...)

	case KindFactory:
		if table == nil {
			return nil, fmt.Errorf("no adapter factories registered")
		}
		return table.Load(entry.FactoryRef, entry.Config)

	default:
		return nil, fmt.Errorf("unknown adapter kind %q", entry.Kind)
	}
}
