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

package router

import "github.com/tombee/nexus-router/pkg/canonical"

// BuildProvenance derives the audit bundle from the request and results
// alone. It is a pure function: same inputs, same bundle, no clock, no
// store access.
func BuildProvenance(req *Request, results []Result) (Provenance, error) {
	prov := Provenance{
		Artifacts: []Artifact{},
		Records:   []ProvenanceRecord{},
	}
	if req.Context != nil && len(req.Context.Artifacts) > 0 {
		prov.Artifacts = append(prov.Artifacts, req.Context.Artifacts...)
	}
	for _, r := range results {
		digest, err := canonical.SHA256Hex(r.Output)
		if err != nil {
			return Provenance{}, err
		}
		prov.Records = append(prov.Records, ProvenanceRecord{
			StepID:       r.StepID,
			Status:       r.Status,
			Simulated:    r.Simulated,
			OutputDigest: digest,
		})
	}
	return prov, nil
}
