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

package shared

import (
	"encoding/json"
	"io"
	"os"
)

// EmitJSON marshals a response to indented JSON on stdout. Logs go to
// stderr, so stdout stays machine-parseable.
func EmitJSON(response any) error {
	return EmitJSONTo(os.Stdout, response)
}

// EmitJSONTo marshals a response to indented JSON on w.
func EmitJSONTo(w io.Writer, response any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// ReadRequest reads a JSON request document from path. "-" or "" reads
// stdin.
func ReadRequest(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
