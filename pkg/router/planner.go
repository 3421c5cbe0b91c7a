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

// Planner turns a request into an ordered plan of steps.
type Planner interface {
	CreatePlan(req *Request) ([]Step, error)
}

// PassthroughPlanner is the default planner: it returns the request's
// plan_override verbatim. Planning is not a design surface here; the plan
// is an input.
type PassthroughPlanner struct{}

// CreatePlan implements Planner.
func (PassthroughPlanner) CreatePlan(req *Request) ([]Step, error) {
	return req.PlanOverride, nil
}
