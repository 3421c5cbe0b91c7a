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

// Package dispatch implements the transport layer for tool calls: the
// adapter contract, the built-in adapters, and the adapter registry. The
// router decides what to call; the adapter decides how to call it.
package dispatch

import (
	"context"
	"sort"
)

// Standard capabilities. Capabilities are declarative tags used for
// pre-flight selection and enforcement; the set is stable across versions.
const (
	CapabilityDryRun   = "dry_run"
	CapabilityApply    = "apply"
	CapabilityTimeout  = "timeout"
	CapabilityExternal = "external"
)

// StandardCapabilities returns the four standard capability names.
func StandardCapabilities() []string {
	return []string{CapabilityApply, CapabilityDryRun, CapabilityExternal, CapabilityTimeout}
}

// IsStandardCapability reports whether name is one of the standard four.
func IsStandardCapability(name string) bool {
	switch name {
	case CapabilityDryRun, CapabilityApply, CapabilityTimeout, CapabilityExternal:
		return true
	}
	return false
}

// CapabilitySet is an immutable set of capability names.
type CapabilitySet struct {
	caps map[string]struct{}
}

// NewCapabilitySet builds a capability set from the given names.
func NewCapabilitySet(names ...string) CapabilitySet {
	caps := make(map[string]struct{}, len(names))
	for _, n := range names {
		caps[n] = struct{}{}
	}
	return CapabilitySet{caps: caps}
}

// Has reports whether the set contains name.
func (c CapabilitySet) Has(name string) bool {
	_, ok := c.caps[name]
	return ok
}

// Len returns the number of capabilities in the set.
func (c CapabilitySet) Len() int {
	return len(c.caps)
}

// Sorted returns the capability names in lexicographic order. Events and
// listings always carry capabilities sorted, for determinism.
func (c CapabilitySet) Sorted() []string {
	out := make([]string, 0, len(c.caps))
	for name := range c.caps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Adapter is the contract every transport honors.
//
// Platform rules for implementations: no mutation of process-wide state, no
// swallowing of bugs, no partial work on operational failure (idempotent at
// the caller's granularity), and tolerate never being called in dry_run.
type Adapter interface {
	// AdapterID returns the stable identifier, unique within a registry.
	AdapterID() string

	// AdapterKind identifies the transport family (null, fake,
	// subprocess, ...). Emitted into events for observability.
	AdapterKind() string

	// Capabilities returns the adapter's immutable capability set.
	Capabilities() CapabilitySet

	// Call executes a tool call. The result must be a JSON-serializable
	// mapping, deterministic given args. Failures must be an
	// *errors.OperationalError or *errors.BugError; anything else is
	// treated as a bug by the router.
	Call(ctx context.Context, tool, method string, args map[string]any) (map[string]any, error)
}

// AdapterInfo describes a registered adapter for listings.
type AdapterInfo struct {
	AdapterID    string   `json:"adapter_id"`
	AdapterKind  string   `json:"adapter_kind"`
	Capabilities []string `json:"capabilities"`
}
