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

// Package schemas embeds the versioned JSON Schemas for every tool surface
// and compiles them on demand. The compiled-schema cache is an object, not
// package state, so each host owns its own cache lifetime.
package schemas

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed *.json
var schemaFS embed.FS

// Schema document names.
const (
	RunRequest      = "nexus-router.run.request.v0.7.json"
	RunResponse     = "nexus-router.run.response.v0.7.json"
	InspectRequest  = "nexus-router.inspect.request.v0.2.json"
	InspectResponse = "nexus-router.inspect.response.v0.2.json"
	ReplayRequest   = "nexus-router.replay.request.v0.2.json"
	ReplayResponse  = "nexus-router.replay.response.v0.2.json"
	ExportRequest   = "nexus-router.export.request.v0.3.json"
	ExportResponse  = "nexus-router.export.response.v0.3.json"
	ImportRequest   = "nexus-router.import.request.v0.3.json"
	ImportResponse  = "nexus-router.import.response.v0.3.json"
)

// Names returns every embedded schema name.
func Names() []string {
	return []string{
		RunRequest, RunResponse,
		InspectRequest, InspectResponse,
		ReplayRequest, ReplayResponse,
		ExportRequest, ExportResponse,
		ImportRequest, ImportResponse,
	}
}

// Raw returns the embedded schema document bytes.
func Raw(name string) ([]byte, error) {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("schemas: unknown schema %q", name)
	}
	return raw, nil
}

// Compiler compiles embedded schemas lazily and caches the results. Safe
// for concurrent use.
type Compiler struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewCompiler returns an empty compiler cache.
func NewCompiler() *Compiler {
	return &Compiler{compiled: make(map[string]*jsonschema.Schema)}
}

// Schema returns the compiled schema for name, compiling it on first use.
func (c *Compiler) Schema(name string) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.compiled[name]; ok {
		return s, nil
	}

	raw, err := Raw(name)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schemas: %s is not valid JSON: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("schemas: add resource %s: %w", name, err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("schemas: compile %s: %w", name, err)
	}
	c.compiled[name] = s
	return s, nil
}

// Validate checks raw JSON against the named schema.
func (c *Compiler) Validate(name string, raw []byte) error {
	s, err := c.Schema(name)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("schemas: instance is not valid JSON: %w", err)
	}
	return s.Validate(instance)
}

// ValidateValue checks an in-memory document against the named schema. The
// value is round-tripped through encoding/json so struct instances and
// json.Number payloads validate the same way their serialized form would.
func (c *Compiler) ValidateValue(name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("schemas: instance is not serializable: %w", err)
	}
	return c.Validate(name, raw)
}
