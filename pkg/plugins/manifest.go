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

package plugins

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestSchemaVersion is the only manifest schema version this release
// understands.
const ManifestSchemaVersion = 1

// manifestConfigTypes are the allowed config_schema parameter types.
var manifestConfigTypes = map[string]struct{}{
	"string":  {},
	"number":  {},
	"boolean": {},
	"object":  {},
	"array":   {},
}

func sortedConfigTypes() []string {
	out := make([]string, 0, len(manifestConfigTypes))
	for t := range manifestConfigTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Manifest is an adapter package's declarative self-description:
//
//	schema_version: 1
//	kind: http
//	capabilities: [dry_run, apply]
//	supported_router_versions: ">=0.5,<0.8"   # optional
//	error_codes: [TIMEOUT, NONZERO_EXIT]      # optional
//	config_schema:                            # optional
//	  base_url: {type: string, required: true}
//
// It is kept as a raw document rather than a struct so schema violations
// surface as validation findings instead of silent decode failures.
type Manifest map[string]any

// ParseManifest decodes a YAML or JSON manifest document.
func ParseManifest(raw []byte) (Manifest, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("plugins: manifest is not valid YAML: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("plugins: manifest is empty")
	}
	return Manifest(doc), nil
}

// Validate checks the manifest structure and returns one message per
// violation, empty when the manifest is well formed.
func (m Manifest) Validate() []string {
	var errs []string

	if v, ok := m["schema_version"]; !ok {
		errs = append(errs, "missing required field: schema_version")
	} else if n, isInt := intValue(v); !isInt || n != ManifestSchemaVersion {
		errs = append(errs, fmt.Sprintf("invalid schema_version: %v (expected %d)",
			v, ManifestSchemaVersion))
	}

	if v, ok := m["kind"]; !ok {
		errs = append(errs, "missing required field: kind")
	} else if s, isStr := v.(string); !isStr || s == "" {
		errs = append(errs, "field 'kind' must be a non-empty string")
	}

	if v, ok := m["capabilities"]; !ok {
		errs = append(errs, "missing required field: capabilities")
	} else if _, listErr := stringList(v); listErr != "" {
		errs = append(errs, "field 'capabilities' "+listErr)
	}

	if v, ok := m["supported_router_versions"]; ok {
		if _, isStr := v.(string); !isStr {
			errs = append(errs, "field 'supported_router_versions' must be a string")
		}
	}

	if v, ok := m["error_codes"]; ok {
		if _, listErr := stringList(v); listErr != "" {
			errs = append(errs, "field 'error_codes' "+listErr)
		}
	}

	if v, ok := m["config_schema"]; ok {
		schema, isMap := asStringMap(v)
		if !isMap {
			errs = append(errs, "field 'config_schema' must be an object")
		} else {
			keys := make([]string, 0, len(schema))
			for key := range schema {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				param, isParamMap := asStringMap(schema[key])
				if !isParamMap {
					errs = append(errs, fmt.Sprintf("config_schema[%q] must be an object", key))
					continue
				}
				if pt, present := param["type"]; !present {
					errs = append(errs, fmt.Sprintf("config_schema[%q] missing required field: type", key))
				} else if s, isStr := pt.(string); !isStr || !isConfigType(s) {
					errs = append(errs, fmt.Sprintf("config_schema[%q].type invalid: %v (must be one of %s)",
						key, pt, strings.Join(sortedConfigTypes(), ", ")))
				}
				if req, present := param["required"]; !present {
					errs = append(errs, fmt.Sprintf("config_schema[%q] missing required field: required", key))
				} else if _, isBool := req.(bool); !isBool {
					errs = append(errs, fmt.Sprintf("config_schema[%q].required must be a boolean", key))
				}
			}
		}
	}

	return errs
}

// Kind returns the declared adapter kind, or "".
func (m Manifest) Kind() string {
	s, _ := m["kind"].(string)
	return s
}

// CapabilityNames returns the declared capabilities, or nil.
func (m Manifest) CapabilityNames() []string {
	v, ok := m["capabilities"]
	if !ok {
		return nil
	}
	names, listErr := stringList(v)
	if listErr != "" {
		return nil
	}
	return names
}

// ErrorCodes returns the declared error codes, or nil.
func (m Manifest) ErrorCodes() []string {
	v, ok := m["error_codes"]
	if !ok {
		return nil
	}
	codes, listErr := stringList(v)
	if listErr != "" {
		return nil
	}
	return codes
}

// SupportedRouterVersions returns the declared version constraint, or "".
func (m Manifest) SupportedRouterVersions() string {
	s, _ := m["supported_router_versions"].(string)
	return s
}

// ConfigParam is a rendered config_schema entry.
type ConfigParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	HasDefault  bool   `json:"-"`
	Description string `json:"description,omitempty"`
}

// ConfigParams returns the config_schema entries sorted by name. Malformed
// entries degrade to type "unknown" rather than being dropped.
func (m Manifest) ConfigParams() []ConfigParam {
	v, ok := m["config_schema"]
	if !ok {
		return nil
	}
	schema, isMap := asStringMap(v)
	if !isMap || len(schema) == 0 {
		return nil
	}

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ConfigParam, 0, len(names))
	for _, name := range names {
		param := ConfigParam{Name: name, Type: "unknown"}
		entry, isEntryMap := asStringMap(schema[name])
		if isEntryMap {
			if t, isStr := entry["type"].(string); isStr {
				param.Type = t
			}
			param.Required, _ = entry["required"].(bool)
			if def, present := entry["default"]; present {
				param.Default = def
				param.HasDefault = true
			}
			param.Description, _ = entry["description"].(string)
		}
		out = append(out, param)
	}
	return out
}

func isConfigType(name string) bool {
	_, ok := manifestConfigTypes[name]
	return ok
}

// intValue accepts the integer encodings the YAML and JSON decoders
// produce.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

func stringList(v any) ([]string, string) {
	items, ok := v.([]any)
	if !ok {
		if ss, isStrings := v.([]string); isStrings {
			return ss, ""
		}
		return nil, "must be a list"
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, isStr := item.(string)
		if !isStr {
			return nil, "must contain only strings"
		}
		out[i] = s
	}
	return out, ""
}

func asStringMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	if m, ok := v.(Manifest); ok {
		return m, true
	}
	return nil, false
}
