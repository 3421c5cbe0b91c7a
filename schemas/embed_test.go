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

package schemas

import (
	"encoding/json"
	"testing"
)

func TestAllSchemasEmbeddedAndCompile(t *testing.T) {
	compiler := NewCompiler()

	for _, name := range Names() {
		raw, err := Raw(name)
		if err != nil {
			t.Fatalf("Raw(%s): %v", name, err)
		}
		if len(raw) == 0 {
			t.Fatalf("schema %s is empty", name)
		}

		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			t.Fatalf("schema %s is not valid JSON: %v", name, err)
		}
		for _, field := range []string{"$schema", "$id", "title"} {
			if _, ok := doc[field]; !ok {
				t.Errorf("schema %s missing %s field", name, field)
			}
		}

		if _, err := compiler.Schema(name); err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
	}
}

func TestRawUnknownSchema(t *testing.T) {
	if _, err := Raw("nope.json"); err == nil {
		t.Fatal("expected error for unknown schema")
	}
}

func TestValidateRunRequest(t *testing.T) {
	compiler := NewCompiler()

	valid := []byte(`{
		"goal": "summarize",
		"mode": "dry_run",
		"plan_override": [
			{"step_id": "s1", "intent": "x", "call": {"tool": "t", "method": "m", "args": {}}}
		]
	}`)
	if err := compiler.Validate(RunRequest, valid); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	invalid := [][]byte{
		[]byte(`{}`),
		[]byte(`{"goal": ""}`),
		[]byte(`{"goal": "g", "mode": "simulate"}`),
		[]byte(`{"goal": "g", "unknown_field": 1}`),
		[]byte(`{"goal": "g", "policy": {"max_steps": -1}}`),
		[]byte(`{"goal": "g", "plan_override": [{"call": {"tool": "t", "method": "m"}}]}`),
	}
	for i, raw := range invalid {
		if err := compiler.Validate(RunRequest, raw); err == nil {
			t.Errorf("invalid request %d accepted: %s", i, raw)
		}
	}
}

func TestValidateCachesCompiledSchemas(t *testing.T) {
	compiler := NewCompiler()
	first, err := compiler.Schema(RunRequest)
	if err != nil {
		t.Fatal(err)
	}
	second, err := compiler.Schema(RunRequest)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected cached schema instance on second lookup")
	}
}
