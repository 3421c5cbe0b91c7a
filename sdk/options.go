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

package sdk

import (
	"log/slog"

	"github.com/tombee/nexus-router/pkg/dispatch"
	"github.com/tombee/nexus-router/pkg/router"
	"github.com/tombee/nexus-router/schemas"
)

type options struct {
	registry *dispatch.AdapterRegistry
	planner  router.Planner
	logger   *slog.Logger
	metrics  *router.Metrics
	compiler *schemas.Compiler
}

// Option configures an sdk call.
type Option func(*options)

// WithRegistry supplies the adapter registry for a run. Without it, runs
// get a registry holding a single NullAdapter as the default.
func WithRegistry(registry *dispatch.AdapterRegistry) Option {
	return func(o *options) { o.registry = registry }
}

// WithPlanner overrides the pass-through planner.
func WithPlanner(p router.Planner) Option {
	return func(o *options) { o.planner = p }
}

// WithLogger sets the structured logger for the run.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics attaches run/step/tool-call metrics collection.
func WithMetrics(m *router.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCompiler reuses a compiled-schema cache across calls. Without it,
// each call compiles the schemas it needs.
func WithCompiler(c *schemas.Compiler) Option {
	return func(o *options) { o.compiler = c }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.compiler == nil {
		o.compiler = schemas.NewCompiler()
	}
	return o
}

func (o *options) routerOptions() []router.Option {
	var out []router.Option
	if o.planner != nil {
		out = append(out, router.WithPlanner(o.planner))
	}
	if o.logger != nil {
		out = append(out, router.WithLogger(o.logger))
	}
	if o.metrics != nil {
		out = append(out, router.WithMetrics(o.metrics))
	}
	return out
}

func (o *options) registryOrDefault() *dispatch.AdapterRegistry {
	if o.registry != nil {
		return o.registry
	}
	reg := dispatch.NewAdapterRegistry("null")
	// Register cannot fail for a fresh registry and a well-formed adapter.
	_ = reg.Register(dispatch.NewNullAdapter("null"))
	return reg
}
