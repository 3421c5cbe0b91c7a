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

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the router. Registered against a caller-provided
// registerer; there is no process-global state.
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	stepsTotal       *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
}

// NewMetrics registers router metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus_router",
			Name:      "runs_total",
			Help:      "Completed runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus_router",
			Name:      "steps_total",
			Help:      "Executed steps by status.",
		}, []string{"status"}),
		toolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexus_router",
			Name:      "tool_call_duration_seconds",
			Help:      "Wall-clock duration of adapter calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"adapter_kind"}),
	}
}

func (m *Metrics) observeRun(mode, outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) observeStep(status string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) observeToolCall(adapterKind string, seconds float64) {
	if m == nil {
		return
	}
	m.toolCallDuration.WithLabelValues(adapterKind).Observe(seconds)
}
