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
	"context"

	nxerrors "github.com/tombee/nexus-router/pkg/errors"
)

// Response is one configured FakeAdapter outcome for a (tool, method) pair:
// a literal value, a factory computed from args, or an error of a chosen
// kind. Exactly one field is set.
type Response struct {
	literal     map[string]any
	factory     func(args map[string]any) (map[string]any, error)
	operational *nxerrors.OperationalError
	bug         *nxerrors.BugError
}

// Literal returns a Response that yields a fixed value.
func Literal(value map[string]any) Response {
	return Response{literal: value}
}

// Factory returns a Response computed from the call's args.
func Factory(fn func(args map[string]any) (map[string]any, error)) Response {
	return Response{factory: fn}
}

// OperationalFailure returns a Response that fails operationally.
func OperationalFailure(code, message string) Response {
	if code == "" {
		code = "TOOL_ERROR"
	}
	return Response{operational: nxerrors.NewOperational(code, message)}
}

// BugFailure returns a Response that fails as a bug.
func BugFailure(code, message string) Response {
	if code == "" {
		code = "ADAPTER_BUG"
	}
	return Response{bug: nxerrors.NewBug(code, message)}
}

func (r Response) produce(args map[string]any) (map[string]any, error) {
	switch {
	case r.operational != nil:
		return nil, r.operational
	case r.bug != nil:
		return nil, r.bug
	case r.factory != nil:
		return r.factory(args)
	default:
		return r.literal, nil
	}
}

// CallRecord is one logged FakeAdapter invocation.
type CallRecord struct {
	Tool   string
	Method string
	Args   map[string]any
}

type responseKey struct {
	tool   string
	method string
}

// FakeAdapter is a test adapter with a configurable response table keyed by
// (tool, method). By default it declares dry_run and apply so it can stand
// in for a real transport in either mode.
type FakeAdapter struct {
	adapterID    string
	capabilities CapabilitySet
	responses    map[responseKey]Response
	defaultResp  *Response
	callLog      []CallRecord
}

// FakeOption configures a FakeAdapter.
type FakeOption func(*FakeAdapter)

// WithFakeCapabilities overrides the default {dry_run, apply} capability set.
func WithFakeCapabilities(names ...string) FakeOption {
	return func(a *FakeAdapter) {
		a.capabilities = NewCapabilitySet(names...)
	}
}

// NewFakeAdapter creates a FakeAdapter. An empty id defaults to "fake".
func NewFakeAdapter(adapterID string, opts ...FakeOption) *FakeAdapter {
	if adapterID == "" {
		adapterID = "fake"
	}
	a := &FakeAdapter{
		adapterID:    adapterID,
		capabilities: NewCapabilitySet(CapabilityDryRun, CapabilityApply),
		responses:    make(map[responseKey]Response),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AdapterID implements Adapter.
func (a *FakeAdapter) AdapterID() string { return a.adapterID }

// AdapterKind implements Adapter.
func (a *FakeAdapter) AdapterKind() string { return "fake" }

// Capabilities implements Adapter.
func (a *FakeAdapter) Capabilities() CapabilitySet { return a.capabilities }

// SetResponse configures the response for a specific (tool, method) pair.
func (a *FakeAdapter) SetResponse(tool, method string, resp Response) {
	a.responses[responseKey{tool, method}] = resp
}

// SetDefaultResponse configures the response for unregistered pairs.
func (a *FakeAdapter) SetDefaultResponse(resp Response) {
	a.defaultResp = &resp
}

// CallLog returns the calls made so far, in order.
func (a *FakeAdapter) CallLog() []CallRecord {
	return a.callLog
}

// Reset clears configured responses and the call log.
func (a *FakeAdapter) Reset() {
	a.responses = make(map[responseKey]Response)
	a.defaultResp = nil
	a.callLog = nil
}

// Call executes the configured response, logging the invocation.
func (a *FakeAdapter) Call(_ context.Context, tool, method string, args map[string]any) (map[string]any, error) {
	a.callLog = append(a.callLog, CallRecord{Tool: tool, Method: method, Args: args})

	if resp, ok := a.responses[responseKey{tool, method}]; ok {
		return resp.produce(args)
	}
	if a.defaultResp != nil {
		return a.defaultResp.produce(args)
	}
	return map[string]any{
		"fake":      true,
		"tool":      tool,
		"method":    method,
		"args_echo": args,
		"result":    nil,
	}, nil
}
