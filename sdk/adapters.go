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
	"github.com/tombee/nexus-router/pkg/dispatch"
	"github.com/tombee/nexus-router/pkg/plugins"
)

// AdaptersResponse lists registered adapters.
type AdaptersResponse struct {
	Adapters         []dispatch.AdapterInfo `json:"adapters"`
	DefaultAdapterID string                 `json:"default_adapter_id"`
	Total            int                    `json:"total"`
}

// ListAdapters returns the registry's adapters, optionally restricted to
// those declaring a capability.
func ListAdapters(registry *dispatch.AdapterRegistry, capability string) *AdaptersResponse {
	var list []dispatch.AdapterInfo
	if capability != "" {
		for _, id := range registry.FindByCapability(capability) {
			adapter, err := registry.Get(id)
			if err != nil {
				continue
			}
			list = append(list, dispatch.AdapterInfo{
				AdapterID:    adapter.AdapterID(),
				AdapterKind:  adapter.AdapterKind(),
				Capabilities: adapter.Capabilities().Sorted(),
			})
		}
	} else {
		list = registry.ListAdapters()
	}
	if list == nil {
		list = []dispatch.AdapterInfo{}
	}
	return &AdaptersResponse{
		Adapters:         list,
		DefaultAdapterID: registry.DefaultAdapterID(),
		Total:            len(list),
	}
}

// AdapterCheckRequest names an adapter factory to validate or inspect.
type AdapterCheckRequest struct {
	FactoryRef string         `json:"factory_ref"`
	Config     map[string]any `json:"config,omitempty"`
	Strict     *bool          `json:"strict,omitempty"`
	Render     bool           `json:"render,omitempty"`
}

func (r *AdapterCheckRequest) validateOptions() plugins.ValidateOptions {
	return plugins.ValidateOptions{
		Config: r.Config,
		Strict: r.Strict == nil || *r.Strict,
	}
}

// ValidateAdapter lints an adapter factory without dispatching.
func ValidateAdapter(table *plugins.FactoryTable, req AdapterCheckRequest) *plugins.ValidationResult {
	return plugins.ValidateAdapter(table, req.FactoryRef, req.validateOptions())
}

// InspectAdapterResponse is an inspection result with an optional rendered
// report.
type InspectAdapterResponse struct {
	*plugins.InspectionResult
	Rendered string `json:"rendered,omitempty"`
}

// InspectAdapter validates an adapter and extracts its manifest metadata;
// with Render set, the response includes the human-readable report.
func InspectAdapter(table *plugins.FactoryTable, req AdapterCheckRequest) *InspectAdapterResponse {
	result := plugins.InspectAdapter(table, req.FactoryRef, req.validateOptions())
	resp := &InspectAdapterResponse{InspectionResult: result}
	if req.Render {
		resp.Rendered = result.Render()
	}
	return resp
}

// GenerateAdapterDocs renders markdown documentation for the given adapter
// entries from their manifests.
func GenerateAdapterDocs(table *plugins.FactoryTable, entries []plugins.DocEntry, opts plugins.DocsOptions) *plugins.DocsResult {
	return plugins.GenerateDocs(table, entries, opts)
}
