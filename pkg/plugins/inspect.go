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
	"strings"
)

// InspectionResult is the introspection view of an adapter package:
// validation outcome plus the manifest-derived documentation fields.
type InspectionResult struct {
	OK                      bool              `json:"ok"`
	AdapterID               string            `json:"adapter_id,omitempty"`
	AdapterKind             string            `json:"adapter_kind,omitempty"`
	Capabilities            []string          `json:"capabilities,omitempty"`
	SupportedRouterVersions string            `json:"supported_router_versions,omitempty"`
	ConfigParams            []ConfigParam     `json:"config_params,omitempty"`
	ErrorCodes              []string          `json:"error_codes,omitempty"`
	Manifest                Manifest          `json:"manifest,omitempty"`
	Validation              *ValidationResult `json:"validation"`
}

// InspectAdapter validates the adapter behind ref and layers manifest
// metadata on top for display. Read-only; never dispatches.
func InspectAdapter(table *FactoryTable, ref string, opts ValidateOptions) *InspectionResult {
	validation := ValidateAdapter(table, ref, opts)

	result := &InspectionResult{
		OK:         validation.OK,
		Validation: validation,
	}
	if validation.Metadata != nil {
		result.AdapterID = validation.Metadata.AdapterID
		result.AdapterKind = validation.Metadata.AdapterKind
		result.Capabilities = validation.Metadata.Capabilities
		if m := validation.Metadata.Manifest; m != nil {
			result.Manifest = m
			result.ConfigParams = m.ConfigParams()
			result.ErrorCodes = m.ErrorCodes()
			result.SupportedRouterVersions = m.SupportedRouterVersions()
		}
	}
	return result
}

func statusIcon(status string) string {
	switch status {
	case StatusPass:
		return "✓"
	case StatusFail:
		return "✗"
	case StatusWarn:
		return "⚠"
	case StatusSkip:
		return "○"
	}
	return "?"
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}

// Render produces the human-readable inspection report.
func (r *InspectionResult) Render() string {
	var b strings.Builder

	if r.OK {
		b.WriteString("✓ Adapter validation PASSED\n\n")
	} else {
		b.WriteString("✗ Adapter validation FAILED\n\n")
	}

	b.WriteString("## Adapter Info\n")
	fmt.Fprintf(&b, "  ID:           %s\n", orUnknown(r.AdapterID))
	fmt.Fprintf(&b, "  Kind:         %s\n", orUnknown(r.AdapterKind))
	caps := strings.Join(r.Capabilities, ", ")
	if caps == "" {
		caps = "(none)"
	}
	fmt.Fprintf(&b, "  Capabilities: %s\n\n", caps)

	b.WriteString("## Validation\n")
	for _, check := range r.Validation.Checks {
		fmt.Fprintf(&b, "  %s %s\n", statusIcon(check.Status), check.ID)
	}
	b.WriteString("\n")

	if errs := r.Validation.Errors(); len(errs) > 0 {
		b.WriteString("## Errors\n")
		for _, c := range errs {
			fmt.Fprintf(&b, "  ✗ %s: %s\n", c.ID, c.Message)
		}
		b.WriteString("\n")
	}
	if warns := r.Validation.Warnings(); len(warns) > 0 {
		b.WriteString("## Warnings\n")
		for _, c := range warns {
			fmt.Fprintf(&b, "  ⚠ %s: %s\n", c.ID, c.Message)
		}
		b.WriteString("\n")
	}

	if r.Manifest != nil {
		b.WriteString("## Manifest\n")
		if r.SupportedRouterVersions != "" {
			fmt.Fprintf(&b, "  Router versions: %s\n", r.SupportedRouterVersions)
		}
		if len(r.ErrorCodes) > 0 {
			fmt.Fprintf(&b, "  Error codes:     %s\n", strings.Join(r.ErrorCodes, ", "))
		}
		b.WriteString("\n")

		if len(r.ConfigParams) > 0 {
			b.WriteString("## Configuration Parameters\n")
			for _, param := range r.ConfigParams {
				req := "optional"
				if param.Required {
					req = "required"
				}
				defaultStr := ""
				if param.HasDefault {
					defaultStr = fmt.Sprintf(", default=%v", param.Default)
				}
				fmt.Fprintf(&b, "  %s (%s, %s%s)\n", param.Name, param.Type, req, defaultStr)
				if param.Description != "" {
					fmt.Fprintf(&b, "    %s\n", param.Description)
				}
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}
