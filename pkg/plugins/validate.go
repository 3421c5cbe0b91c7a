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
	"fmt"
	"sort"
	"strings"

	"github.com/tombee/nexus-router/pkg/dispatch"
)

// Check statuses.
const (
	StatusPass = "pass"
	StatusFail = "fail"
	StatusWarn = "warn"
	StatusSkip = "skip"
)

// Check identifiers, in evaluation order.
const (
	CheckLoadOK            = "LOAD_OK"
	CheckProtocolFields    = "PROTOCOL_FIELDS"
	CheckAdapterIDFormat   = "ADAPTER_ID_FORMAT"
	CheckAdapterKindFormat = "ADAPTER_KIND_FORMAT"
	CheckCapabilitiesType  = "CAPABILITIES_TYPE"
	CheckCapabilitiesValid = "CAPABILITIES_VALID"
	CheckManifestPresent   = "MANIFEST_PRESENT"
	CheckManifestSchema    = "MANIFEST_SCHEMA"
	CheckManifestKindMatch = "MANIFEST_KIND_MATCH"
	CheckManifestCapsMatch = "MANIFEST_CAPS_MATCH"
)

// Check is one validation finding.
type Check struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Metadata describes the constructed adapter.
type Metadata struct {
	AdapterID    string   `json:"adapter_id"`
	AdapterKind  string   `json:"adapter_kind"`
	Capabilities []string `json:"capabilities"`
	Manifest     Manifest `json:"manifest,omitempty"`
}

// ValidationResult is the outcome of ValidateAdapter. OK is true when no
// check failed; warns and skips do not count against it.
type ValidationResult struct {
	OK       bool      `json:"ok"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Checks   []Check   `json:"checks"`
	Error    string    `json:"error,omitempty"`
}

// Errors returns the failed checks.
func (r *ValidationResult) Errors() []Check {
	return r.byStatus(StatusFail)
}

// Warnings returns the warning checks.
func (r *ValidationResult) Warnings() []Check {
	return r.byStatus(StatusWarn)
}

func (r *ValidationResult) byStatus(status string) []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

// ValidateOptions configures ValidateAdapter.
type ValidateOptions struct {
	// Config is passed to the adapter factory.
	Config map[string]any

	// Strict makes unknown capabilities a failure instead of a warning.
	Strict bool
}

// ValidateAdapter constructs the adapter behind ref and runs the fixed
// check list against it and the package's optional manifest. It never
// dispatches a call. A load failure short-circuits: the result carries the
// single failed LOAD_OK check plus the load error.
func ValidateAdapter(table *FactoryTable, ref string, opts ValidateOptions) *ValidationResult {
	var checks []Check

	adapter, err := table.Load(ref, opts.Config)
	if err != nil {
		checks = append(checks, Check{CheckLoadOK, StatusFail,
			fmt.Sprintf("failed to load adapter: %v", err)})
		return &ValidationResult{OK: false, Checks: checks, Error: err.Error()}
	}
	checks = append(checks, Check{CheckLoadOK, StatusPass,
		fmt.Sprintf("loaded adapter from %q", ref)})

	// The interface guarantees the protocol surface; the check survives as
	// a recorded pass so reports stay comparable across hosts.
	checks = append(checks, Check{CheckProtocolFields, StatusPass,
		"all required protocol fields present and valid"})

	metadata := &Metadata{
		AdapterID:    adapter.AdapterID(),
		AdapterKind:  adapter.AdapterKind(),
		Capabilities: adapter.Capabilities().Sorted(),
	}

	if metadata.AdapterID == "" {
		checks = append(checks, Check{CheckAdapterIDFormat, StatusFail,
			"adapter_id must be a non-empty string"})
	} else {
		checks = append(checks, Check{CheckAdapterIDFormat, StatusPass,
			fmt.Sprintf("adapter_id=%q", metadata.AdapterID)})
	}

	if metadata.AdapterKind == "" {
		checks = append(checks, Check{CheckAdapterKindFormat, StatusFail,
			"adapter_kind must be a non-empty string"})
	} else {
		checks = append(checks, Check{CheckAdapterKindFormat, StatusPass,
			fmt.Sprintf("adapter_kind=%q", metadata.AdapterKind)})
	}

	checks = append(checks, checkCapabilities(metadata.Capabilities, opts.Strict)...)

	pkg := ref
	if p, _, perr := ParseRef(ref); perr == nil {
		pkg = p
	}
	manifestChecks, manifest := checkManifest(table.Manifest(pkg), pkg, metadata)
	checks = append(checks, manifestChecks...)
	metadata.Manifest = manifest

	ok := true
	for _, c := range checks {
		if c.Status == StatusFail {
			ok = false
			break
		}
	}
	return &ValidationResult{OK: ok, Metadata: metadata, Checks: checks}
}

func checkCapabilities(caps []string, strict bool) []Check {
	var checks []Check

	typeOK := true
	for _, name := range caps {
		if name == "" {
			checks = append(checks, Check{CheckCapabilitiesType, StatusFail,
				"capabilities contains an empty name"})
			typeOK = false
			break
		}
	}
	if typeOK {
		checks = append(checks, Check{CheckCapabilitiesType, StatusPass,
			fmt.Sprintf("capabilities is a valid set of %d names", len(caps))})
	}

	if !typeOK {
		checks = append(checks, Check{CheckCapabilitiesValid, StatusSkip,
			"skipped due to CAPABILITIES_TYPE failure"})
		return checks
	}

	var unknown []string
	for _, name := range caps {
		if !dispatch.IsStandardCapability(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		status := StatusWarn
		if strict {
			status = StatusFail
		}
		checks = append(checks, Check{CheckCapabilitiesValid, status,
			fmt.Sprintf("unknown capabilities: %s", strings.Join(unknown, ", "))})
	} else {
		checks = append(checks, Check{CheckCapabilitiesValid, StatusPass,
			fmt.Sprintf("all capabilities are standard: %s", strings.Join(caps, ", "))})
	}
	return checks
}

func checkManifest(manifest Manifest, pkg string, metadata *Metadata) ([]Check, Manifest) {
	var checks []Check

	if manifest == nil {
		checks = append(checks,
			Check{CheckManifestPresent, StatusWarn,
				fmt.Sprintf("no manifest registered for package %q (optional but recommended)", pkg)},
			Check{CheckManifestSchema, StatusSkip, "skipped: no manifest present"},
			Check{CheckManifestKindMatch, StatusSkip, "skipped: no manifest present"},
			Check{CheckManifestCapsMatch, StatusSkip, "skipped: no manifest present"},
		)
		return checks, nil
	}

	checks = append(checks, Check{CheckManifestPresent, StatusPass,
		fmt.Sprintf("manifest registered for package %q", pkg)})

	if schemaErrs := manifest.Validate(); len(schemaErrs) > 0 {
		checks = append(checks,
			Check{CheckManifestSchema, StatusFail,
				"invalid manifest schema: " + strings.Join(schemaErrs, "; ")},
			Check{CheckManifestKindMatch, StatusSkip, "skipped: manifest schema invalid"},
			Check{CheckManifestCapsMatch, StatusSkip, "skipped: manifest schema invalid"},
		)
		return checks, manifest
	}
	checks = append(checks, Check{CheckManifestSchema, StatusPass, "manifest schema is valid"})

	if kind := manifest.Kind(); kind != metadata.AdapterKind {
		checks = append(checks, Check{CheckManifestKindMatch, StatusFail,
			fmt.Sprintf("manifest kind %q does not match adapter_kind %q", kind, metadata.AdapterKind)})
	} else {
		checks = append(checks, Check{CheckManifestKindMatch, StatusPass,
			fmt.Sprintf("manifest kind matches adapter_kind: %q", kind)})
	}

	manifestCaps := manifest.CapabilityNames()
	if diff := capsMismatch(manifestCaps, metadata.Capabilities); diff != "" {
		checks = append(checks, Check{CheckManifestCapsMatch, StatusFail,
			"manifest capabilities do not match adapter: " + diff})
	} else {
		checks = append(checks, Check{CheckManifestCapsMatch, StatusPass,
			fmt.Sprintf("manifest capabilities match adapter: %s",
				strings.Join(metadata.Capabilities, ", "))})
	}

	return checks, manifest
}

// capsMismatch compares the two capability sets and returns a description
// of the difference, or "" when they are equal.
func capsMismatch(manifestCaps, adapterCaps []string) string {
	inManifest := toSet(manifestCaps)
	inAdapter := toSet(adapterCaps)

	var extra, missing []string
	for name := range inManifest {
		if _, ok := inAdapter[name]; !ok {
			extra = append(extra, name)
		}
	}
	for name := range inAdapter {
		if _, ok := inManifest[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(extra) == 0 && len(missing) == 0 {
		return ""
	}

	var parts []string
	if len(extra) > 0 {
		sort.Strings(extra)
		parts = append(parts, "extra in manifest: "+strings.Join(extra, ", "))
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		parts = append(parts, "missing from manifest: "+strings.Join(missing, ", "))
	}
	return strings.Join(parts, "; ")
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}
