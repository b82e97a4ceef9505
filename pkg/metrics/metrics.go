/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics holds the Prometheus collectors the controller registers
// against the controller-runtime metrics registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	Namespace = "growth"

	optimiserSubsystem   = "optimiser"
	noderequestSubsystem = "noderequests"
	providerSubsystem    = "provider"

	OutcomeLabel = "outcome"
	PhaseLabel   = "phase"
	ReasonLabel  = "reason"
)

var (
	// SolveDurationSeconds tracks how long each optimiser solve call takes,
	// labeled by outcome so regressions in a single solution kind stand out.
	SolveDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: optimiserSubsystem,
			Name:      "solve_duration_seconds",
			Help:      "Time spent solving for a placement, labeled by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{OutcomeLabel},
	)

	// SolveOutcomesTotal counts each solve by its SolutionKind.
	SolveOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: optimiserSubsystem,
			Name:      "solve_outcomes_total",
			Help:      "Number of optimiser solves, labeled by outcome (no_demands, all_placed, incomplete_placement).",
		},
		[]string{OutcomeLabel},
	)

	// UnmetDemandsTotal counts individual pods the solver soft-failed
	// instead of placing, across all solves.
	UnmetDemandsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: optimiserSubsystem,
			Name:      "unmet_demands_total",
			Help:      "Number of pod demands the solver soft-failed instead of placing.",
		},
	)

	// NodeRequestsCreatedTotal counts NodeRequest objects created by the
	// provisioning reconciler.
	NodeRequestsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: noderequestSubsystem,
			Name:      "created_total",
			Help:      "Number of NodeRequests created.",
		},
	)

	// NodeRequestPhaseTransitionsTotal counts NodeRequest phase changes,
	// labeled by the phase being entered.
	NodeRequestPhaseTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: noderequestSubsystem,
			Name:      "phase_transitions_total",
			Help:      "Number of NodeRequest phase transitions, labeled by the phase entered.",
		},
		[]string{PhaseLabel},
	)

	// ProviderCallErrorsTotal counts cloudprovider.Provider call failures,
	// labeled by the ProviderErrorKind reason.
	ProviderCallErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: providerSubsystem,
			Name:      "call_errors_total",
			Help:      "Number of cloudprovider.Provider call failures, labeled by error reason.",
		},
		[]string{ReasonLabel},
	)
)

// MustRegister registers every collector in this package against the
// controller-runtime metrics registry. Call once during manager setup.
func MustRegister() {
	crmetrics.Registry.MustRegister(
		SolveDurationSeconds,
		SolveOutcomesTotal,
		UnmetDemandsTotal,
		NodeRequestsCreatedTotal,
		NodeRequestPhaseTransitionsTotal,
		ProviderCallErrorsTotal,
	)
}
