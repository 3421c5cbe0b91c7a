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

package dispatch

import "context"

// NullAdapter returns deterministic placeholder outputs. It is the default
// adapter for dry_run mode and for development without external
// dependencies. It declares only the dry_run capability, so apply-mode
// dispatch against it fails pre-flight instead of doing silent no-ops.
type NullAdapter struct {
	adapterID string
}

// NewNullAdapter creates a NullAdapter. An empty id defaults to "null".
func NewNullAdapter(adapterID string) *NullAdapter {
	if adapterID == "" {
		adapterID = "null"
	}
	return &NullAdapter{adapterID: adapterID}
}

// AdapterID implements Adapter.
func (a *NullAdapter) AdapterID() string { return a.adapterID }

// AdapterKind implements Adapter.
func (a *NullAdapter) AdapterKind() string { return "null" }

// Capabilities implements Adapter.
func (a *NullAdapter) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapabilityDryRun)
}

// Call returns a deterministic placeholder result.
func (a *NullAdapter) Call(_ context.Context, tool, method string, args map[string]any) (map[string]any, error) {
	return map[string]any{
		"simulated": true,
		"tool":      tool,
		"method":    method,
		"args_echo": args,
		"result":    nil,
	}, nil
}
