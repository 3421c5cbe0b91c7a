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

// Package sdk is the embedding surface for nexus-router: versioned,
// schema-validated tool entry points over the router, event store, replay,
// and bundle layers. Each call opens the store, does its work, and closes
// the store again; callers hold no long-lived handles.
//
// # Quick Start
//
// Execute a dry run against an ephemeral database:
//
//	request := []byte(`{
//	    "goal": "summarize inputs",
//	    "mode": "dry_run",
//	    "plan_override": [
//	        {"step_id": "s1", "intent": "read", "call": {"tool": "fs", "method": "read", "args": {}}}
//	    ]
//	}`)
//
//	resp, err := sdk.Run(ctx, "nexus.db", request)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Run.RunID, resp.Summary.Steps)
//
// Requests are validated against the embedded JSON Schemas before any work
// happens; see the schemas package for the documents.
package sdk
