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
	"time"
)

// DocEntry names one adapter package to document.
type DocEntry struct {
	FactoryRef  string         `json:"factory_ref"`
	PackageName string         `json:"package_name"`
	RepoURL     string         `json:"repo_url,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// DocsResult is the outcome of GenerateDocs.
type DocsResult struct {
	Markdown       string   `json:"markdown"`
	AdaptersOK     int      `json:"adapters_ok"`
	AdaptersFailed int      `json:"adapters_failed"`
	Errors         []string `json:"errors"`
}

// DocsOptions configures GenerateDocs.
type DocsOptions struct {
	Title         string
	IncludeHeader bool
	IncludeFooter bool

	// Now overrides the generation timestamp, for reproducible output.
	Now func() time.Time
}

// DefaultDocsOptions returns the standard docs configuration.
func DefaultDocsOptions() DocsOptions {
	return DocsOptions{
		Title:         "Official Adapters",
		IncludeHeader: true,
		IncludeFooter: true,
	}
}

// GenerateDocs inspects each entry against the table and renders markdown
// documentation from the manifests. Entries that fail inspection get a
// failure section instead of aborting the whole document.
func GenerateDocs(table *FactoryTable, entries []DocEntry, opts DocsOptions) *DocsResult {
	if opts.Title == "" {
		opts.Title = "Official Adapters"
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	var sections []string
	result := &DocsResult{Errors: []string{}}

	if opts.IncludeHeader {
		stamp := now().UTC().Format("2006-01-02 15:04:05 UTC")
		sections = append(sections,
			"<!-- AUTO-GENERATED FILE - DO NOT EDIT MANUALLY -->",
			fmt.Sprintf("<!-- Generated: %s -->", stamp),
			"",
			fmt.Sprintf("# %s", opts.Title),
			"",
			"This file is auto-generated from adapter manifests.",
			"",
		)
	}

	inspections := make([]*InspectionResult, len(entries))
	for i, entry := range entries {
		insp := InspectAdapter(table, entry.FactoryRef, ValidateOptions{
			Config: entry.Config,
			Strict: true,
		})
		inspections[i] = insp
		if insp.OK {
			sections = append(sections, renderAdapterSection(entry, insp))
			result.AdaptersOK++
		} else {
			var msgs []string
			for _, c := range insp.Validation.Errors() {
				msgs = append(msgs, fmt.Sprintf("%s: %s", c.ID, c.Message))
			}
			if len(msgs) == 0 && insp.Validation.Error != "" {
				msgs = append(msgs, insp.Validation.Error)
			}
			sections = append(sections, renderFailedAdapter(entry, strings.Join(msgs, "\n")))
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: validation failed", entry.FactoryRef))
			result.AdaptersFailed++
		}
	}

	if opts.IncludeHeader && len(entries) > 0 {
		summary := renderSummaryTable(entries, inspections)
		// Summary sits right after the header block.
		head := sections[:7:7]
		sections = append(append(head, summary), sections[7:]...)
	}

	if opts.IncludeFooter {
		sections = append(sections,
			"---",
			"",
			fmt.Sprintf("_%d adapters documented_", result.AdaptersOK),
			"",
		)
	}

	result.Markdown = strings.Join(sections, "\n")
	return result
}

func renderSummaryTable(entries []DocEntry, inspections []*InspectionResult) string {
	lines := []string{
		"## Summary",
		"",
		"| Adapter | Kind | Capabilities | Status |",
		"|---------|------|--------------|--------|",
	}
	for i, entry := range entries {
		insp := inspections[i]
		kind := insp.AdapterKind
		if kind == "" {
			kind = "?"
		}
		status := "✓"
		if !insp.OK {
			status = "✗"
		}
		lines = append(lines, fmt.Sprintf("| [%s](#%s-adapter) | %s | %s | %s |",
			entry.PackageName, kind, kind, strings.Join(insp.Capabilities, ", "), status))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func renderAdapterSection(entry DocEntry, insp *InspectionResult) string {
	var lines []string

	kind := insp.AdapterKind
	if kind == "" {
		kind = "unknown"
	}
	lines = append(lines, fmt.Sprintf("### %s adapter", kind), "")

	if entry.RepoURL != "" {
		badge := fmt.Sprintf("[![adapter-ci](%s/actions/workflows/adapter-ci.yml/badge.svg)](%s/actions/workflows/adapter-ci.yml)",
			entry.RepoURL, entry.RepoURL)
		lines = append(lines, badge, "")
	}

	lines = append(lines,
		fmt.Sprintf("**Package:** `%s`", entry.PackageName),
		fmt.Sprintf("**Factory:** `%s`", entry.FactoryRef),
	)
	if insp.SupportedRouterVersions != "" {
		lines = append(lines, fmt.Sprintf("**Supported router versions:** `%s`", insp.SupportedRouterVersions))
	}
	lines = append(lines, "")

	if len(insp.Capabilities) > 0 {
		quoted := make([]string, len(insp.Capabilities))
		for i, c := range insp.Capabilities {
			quoted[i] = "`" + c + "`"
		}
		lines = append(lines, "**Capabilities:** "+strings.Join(quoted, ", "), "")
	}

	lines = append(lines,
		"#### Installation",
		"",
		"```bash",
		fmt.Sprintf("go get %s", entry.PackageName),
		"```",
		"",
		"#### Configuration",
		"",
		renderConfigTable(insp.ConfigParams),
		"",
	)

	if len(insp.ErrorCodes) > 0 {
		lines = append(lines, "#### Error Codes", "")
		for _, code := range insp.ErrorCodes {
			lines = append(lines, fmt.Sprintf("- `%s`", code))
		}
		lines = append(lines, "")
	}

	if entry.RepoURL != "" {
		lines = append(lines, fmt.Sprintf("**Repository:** [%s](%s)", entry.RepoURL, entry.RepoURL), "")
	}

	return strings.Join(lines, "\n")
}

func renderFailedAdapter(entry DocEntry, errMsg string) string {
	return strings.Join([]string{
		fmt.Sprintf("### %s", entry.PackageName),
		"",
		fmt.Sprintf("**Package:** `%s`", entry.PackageName),
		fmt.Sprintf("**Factory:** `%s`", entry.FactoryRef),
		"",
		"**Inspection failed:**",
		"",
		"```",
		errMsg,
		"```",
		"",
	}, "\n")
}

func renderConfigTable(params []ConfigParam) string {
	if len(params) == 0 {
		return "_No configuration parameters documented._\n"
	}
	lines := []string{
		"| Parameter | Type | Required | Default | Description |",
		"|-----------|------|----------|---------|-------------|",
	}
	for _, p := range params {
		required := "No"
		if p.Required {
			required = "Yes"
		}
		defaultStr := "-"
		if p.HasDefault {
			defaultStr = fmt.Sprintf("`%v`", p.Default)
		}
		desc := p.Description
		if desc == "" {
			desc = "-"
		}
		lines = append(lines, fmt.Sprintf("| `%s` | %s | %s | %s | %s |",
			p.Name, p.Type, required, defaultStr, desc))
	}
	return strings.Join(lines, "\n") + "\n"
}
