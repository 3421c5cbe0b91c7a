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

import (
	"fmt"
	"sort"

	nxerrors "github.com/tombee/nexus-router/pkg/errors"
)

// AdapterRegistry is an in-process, non-global adapter collection owned by
// the host. It is constructed before runs start and treated as read-only
// during execution; an adapter belongs to at most one registry.
type AdapterRegistry struct {
	adapters         map[string]Adapter
	defaultAdapterID string
}

// NewAdapterRegistry creates an empty registry. defaultAdapterID names the
// adapter returned by GetDefault; it may be registered later.
func NewAdapterRegistry(defaultAdapterID string) *AdapterRegistry {
	return &AdapterRegistry{
		adapters:         make(map[string]Adapter),
		defaultAdapterID: defaultAdapterID,
	}
}

// Register adds an adapter. Registering a duplicate adapter_id is a host
// configuration mistake and fails outright.
func (r *AdapterRegistry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter must not be nil")
	}
	id := adapter.AdapterID()
	if id == "" {
		return fmt.Errorf("adapter_id must not be empty")
	}
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("adapter %q already registered", id)
	}
	r.adapters[id] = adapter
	return nil
}

// Get returns the adapter with the given id. An unknown id is operational
// UNKNOWN_ADAPTER carrying the available adapter ids.
func (r *AdapterRegistry) Get(adapterID string) (Adapter, error) {
	adapter, ok := r.adapters[adapterID]
	if !ok {
		return nil, nxerrors.Operationalf(nxerrors.CodeUnknownAdapter,
			"adapter %q not registered", adapterID).
			WithDetails(map[string]any{
				"adapter_id":         adapterID,
				"available_adapters": r.ListIDs(),
			})
	}
	return adapter, nil
}

// DefaultAdapterID returns the configured default adapter id.
func (r *AdapterRegistry) DefaultAdapterID() string {
	return r.defaultAdapterID
}

// GetDefault returns the default adapter.
func (r *AdapterRegistry) GetDefault() (Adapter, error) {
	return r.Get(r.defaultAdapterID)
}

// ListIDs returns the registered adapter ids, lexicographically sorted.
func (r *AdapterRegistry) ListIDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListAdapters returns adapter descriptions sorted by adapter_id.
func (r *AdapterRegistry) ListAdapters() []AdapterInfo {
	infos := make([]AdapterInfo, 0, len(r.adapters))
	for _, id := range r.ListIDs() {
		adapter := r.adapters[id]
		infos = append(infos, AdapterInfo{
			AdapterID:    id,
			AdapterKind:  adapter.AdapterKind(),
			Capabilities: adapter.Capabilities().Sorted(),
		})
	}
	return infos
}

// FindByCapability returns the ids of adapters declaring the capability,
// sorted lexicographically.
func (r *AdapterRegistry) FindByCapability(capability string) []string {
	var ids []string
	for id, adapter := range r.adapters {
		if adapter.Capabilities().Has(capability) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasCapability reports whether the adapter declares the capability.
// Unknown adapters report false.
func (r *AdapterRegistry) HasCapability(adapterID, capability string) bool {
	adapter, ok := r.adapters[adapterID]
	return ok && adapter.Capabilities().Has(capability)
}

// RequireCapability returns operational CAPABILITY_MISSING when the adapter
// lacks the capability, and passes through Get's UNKNOWN_ADAPTER for
// unknown ids.
func (r *AdapterRegistry) RequireCapability(adapterID, capability string) error {
	adapter, err := r.Get(adapterID)
	if err != nil {
		return err
	}
	if !adapter.Capabilities().Has(capability) {
		return nxerrors.Operationalf(nxerrors.CodeCapabilityMissing,
			"adapter %q lacks required capability %q", adapterID, capability).
			WithDetails(map[string]any{
				"adapter_id":           adapterID,
				"required_capability":  capability,
				"adapter_capabilities": adapter.Capabilities().Sorted(),
			})
	}
	return nil
}
