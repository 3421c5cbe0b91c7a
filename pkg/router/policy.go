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

import nxerrors "github.com/tombee/nexus-router/pkg/errors"

// gateApply checks the policy before any apply-mode tool call. apply must be
// opted into explicitly; denial is operational, never a bug.
func gateApply(policy *Policy) error {
	if policy == nil || !policy.AllowApply {
		return nxerrors.NewOperational(nxerrors.CodePermissionDenied,
			"apply mode requires policy.allow_apply=true")
	}
	return nil
}
