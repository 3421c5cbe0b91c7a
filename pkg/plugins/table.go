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

// Package plugins resolves adapter factory references, validates adapter
// packages against the platform contract, and renders read-only inspection
// reports and documentation from their declarative manifests.
//
// A factory reference has the form "package:function". Resolution happens
// against a host-owned FactoryTable: the embedding program registers every
// factory it is willing to construct, so there is no dynamic code loading
// and no init-time side effects from adapter packages.
package plugins

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tombee/nexus-router/pkg/dispatch"
	nxerrors "github.com/tombee/nexus-router/pkg/errors"
)

// Factory constructs an adapter from a config mapping. Factories must be
// pure: no process-wide state, no partial construction on error.
type Factory func(config map[string]any) (dispatch.Adapter, error)

// FactoryTable maps adapter package names to their factories and optional
// manifests. Tables are safe for concurrent use once populated; like the
// adapter registry, they are built before runs start.
type FactoryTable struct {
	mu       sync.RWMutex
	packages map[string]*packageEntry
}

type packageEntry struct {
	factories map[string]Factory
	manifest  Manifest
}

// NewFactoryTable returns an empty table.
func NewFactoryTable() *FactoryTable {
	return &FactoryTable{packages: make(map[string]*packageEntry)}
}

// Register adds a factory under pkg:function. Empty names and duplicate
// registrations are rejected.
func (t *FactoryTable) Register(pkg, function string, factory Factory) error {
	if pkg == "" || function == "" {
		return fmt.Errorf("plugins: package and function names must be non-empty")
	}
	if factory == nil {
		return fmt.Errorf("plugins: factory for %s:%s is nil", pkg, function)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.packages[pkg]
	if entry == nil {
		entry = &packageEntry{factories: make(map[string]Factory)}
		t.packages[pkg] = entry
	}
	if _, exists := entry.factories[function]; exists {
		return fmt.Errorf("plugins: factory %s:%s already registered", pkg, function)
	}
	entry.factories[function] = factory
	return nil
}

// SetManifest attaches a declarative manifest to a package. The manifest is
// stored as-is; validation happens during ValidateAdapter.
func (t *FactoryTable) SetManifest(pkg string, m Manifest) error {
	if pkg == "" {
		return fmt.Errorf("plugins: package name must be non-empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.packages[pkg]
	if entry == nil {
		entry = &packageEntry{factories: make(map[string]Factory)}
		t.packages[pkg] = entry
	}
	entry.manifest = m
	return nil
}

// Manifest returns the manifest registered for pkg, or nil.
func (t *FactoryTable) Manifest(pkg string) Manifest {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if entry := t.packages[pkg]; entry != nil {
		return entry.manifest
	}
	return nil
}

// Packages returns the registered package names in sorted order.
func (t *FactoryTable) Packages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.packages))
	for name := range t.packages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParseRef splits a "package:function" reference. The function part is
// everything after the last colon, so package names may themselves contain
// colons.
func ParseRef(ref string) (pkg, function string, err error) {
	if !strings.Contains(ref, ":") {
		return "", "", loadError(ref, nil,
			"invalid factory_ref format: %q (expected \"package:function\")", ref)
	}
	idx := strings.LastIndex(ref, ":")
	pkg, function = ref[:idx], ref[idx+1:]
	if pkg == "" || function == "" {
		return "", "", loadError(ref, nil,
			"invalid factory_ref format: %q (package and function must be non-empty)", ref)
	}
	return pkg, function, nil
}

// Load resolves ref against the table and invokes the factory with config.
// Every failure mode is operational ADAPTER_LOAD_FAILED: a malformed ref, an
// unknown package or function, a factory error or panic, or a nil adapter.
func (t *FactoryTable) Load(ref string, config map[string]any) (adapter dispatch.Adapter, err error) {
	pkg, function, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	entry := t.packages[pkg]
	t.mu.RUnlock()
	if entry == nil {
		return nil, loadError(ref, nil, "unknown adapter package %q", pkg)
	}
	factory, ok := entry.factories[function]
	if !ok {
		return nil, loadError(ref, nil, "package %q has no factory %q", pkg, function)
	}

	if config == nil {
		config = map[string]any{}
	}

	// A panicking factory must not take the validator down with it.
	defer func() {
		if r := recover(); r != nil {
			adapter = nil
			err = loadError(ref, fmt.Errorf("%v", r), "factory %q panicked: %v", function, r)
		}
	}()

	adapter, ferr := factory(config)
	if ferr != nil {
		return nil, loadError(ref, ferr, "factory %q failed: %v", function, ferr)
	}
	if adapter == nil {
		return nil, loadError(ref, nil, "factory %q returned a nil adapter", function)
	}
	return adapter, nil
}

func loadError(ref string, cause error, format string, args ...any) *nxerrors.OperationalError {
	details := map[string]any{"factory_ref": ref}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return nxerrors.Operationalf(nxerrors.CodeAdapterLoadFailed, format, args...).
		WithDetails(details)
}
