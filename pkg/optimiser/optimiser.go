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

// Package optimiser solves for the cheapest set of nodes that can host a
// batch of unschedulable pods, soft-failing any demand that can't be
// placed rather than blocking the whole batch. The solve is a 0/1 integer
// program: which candidate node instances to activate, and which demand
// goes on which instance.
package optimiser

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lissahyacinth/growth/pkg/metrics"
	"github.com/lissahyacinth/growth/pkg/offering"
)

// SolveOptions tunes the solve. Zero value is a reasonable default.
type SolveOptions struct {
	// MaxInstancesPerOffering bounds how many copies of each offering type
	// the solver may consider activating. Zero defaults to 10.
	MaxInstancesPerOffering uint32
	// UnmetDemandPenalty is the objective cost charged per pod left
	// unplaced. Zero defaults to 1,000,000, chosen to strictly exceed the
	// total hourly cost of activating every candidate of the most
	// expensive offering across all replicas, so the solver always
	// prefers placing a demand over leaving it unmet, unless doing so is
	// truly infeasible.
	UnmetDemandPenalty float64
	// TimeLimit bounds how long the underlying MIP solve may run before
	// returning its best incumbent. Zero means no limit.
	TimeLimit time.Duration
}

func (o SolveOptions) maxInstances() uint32 {
	if o.MaxInstancesPerOffering == 0 {
		return 10
	}
	return o.MaxInstancesPerOffering
}

func (o SolveOptions) penalty() float64 {
	if o.UnmetDemandPenalty == 0 {
		return 1_000_000.0
	}
	return o.UnmetDemandPenalty
}

// SolutionKind discriminates the shape of a PlacementSolution.
type SolutionKind int

const (
	// NoDemands - there was nothing to place; the solver was never invoked.
	NoDemands SolutionKind = iota
	// AllPlaced - every demand was placed on an activated node.
	AllPlaced
	// IncompletePlacement - at least one demand could not be placed.
	IncompletePlacement
)

func (k SolutionKind) String() string {
	switch k {
	case NoDemands:
		return "no_demands"
	case AllPlaced:
		return "all_placed"
	case IncompletePlacement:
		return "incomplete_placement"
	default:
		return "unknown"
	}
}

// PotentialNode is one node the solver decided to activate, and the set of
// demands it carries.
type PotentialNode struct {
	Offering offering.Offering
	Pods     []offering.PodID
}

// PlacementSolution is the result of a solve: which nodes to stand up and
// which pods go on each, plus any pods the solve could not place.
type PlacementSolution struct {
	Kind  SolutionKind
	Nodes []PotentialNode
	Unmet []offering.PodID
}

// TotalCostPerHour sums CostPerHour across activated nodes.
func (s PlacementSolution) TotalCostPerHour() float64 {
	var total float64
	for _, n := range s.Nodes {
		total += n.Offering.CostPerHour
	}
	return total
}

// SolveError wraps a failure of the underlying MIP solver.
type SolveError struct {
	Reason string
	Cause  error
}

func (e *SolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("optimiser: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("optimiser: %s", e.Reason)
}

func (e *SolveError) Unwrap() error { return e.Cause }

// candidate is one (offering type, replica index) pair the solver may
// choose to activate, e.g. node type 0 with max_instances=3 contributes
// candidates (0,0), (0,1), (0,2).
type candidate struct {
	offeringIndex int
	replica       uint32
}

func buildCandidates(offerings []offering.Offering, maxInstances uint32) []candidate {
	out := make([]candidate, 0, len(offerings)*int(maxInstances))
	for t := range offerings {
		for i := uint32(0); i < maxInstances; i++ {
			out = append(out, candidate{offeringIndex: t, replica: i})
		}
	}
	return out
}

// compatible reports whether candidate c's offering can ever host demand d,
// independent of capacity - used to pre-filter the (demand, candidate)
// variable space so the solver never has to learn GPU-model incompatibility
// through a constraint.
func compatible(d offering.PodResources, off offering.Offering) bool {
	if d.Resources.GPU > 0 {
		if off.Resources.GPU == 0 {
			return false
		}
		if d.Resources.GPUModel != nil {
			if off.Resources.GPUModel == nil || !off.Resources.GPUModel.Equal(*d.Resources.GPUModel) {
				return false
			}
		}
	}
	return true
}

// Solve picks the cheapest set of node instances (drawn from offerings,
// each usable up to opts.MaxInstancesPerOffering times) that can host
// demands, soft-failing any demand that cannot be placed.
//
// Solve never returns (PlacementSolution{}, err) for infeasibility of an
// individual demand - that is represented in the solution's Unmet field.
// SolveError is reserved for the underlying solver failing to run at all.
func Solve(ctx context.Context, logger *zap.SugaredLogger, demands []offering.PodResources, offerings []offering.Offering, opts SolveOptions) (PlacementSolution, error) {
	start := time.Now()
	if len(demands) == 0 {
		recordSolve(NoDemands, 0, time.Since(start))
		return PlacementSolution{Kind: NoDemands}, nil
	}
	if len(offerings) == 0 {
		solution := PlacementSolution{
			Kind:  IncompletePlacement,
			Unmet: lo.Map(demands, func(d offering.PodResources, _ int) offering.PodID { return d.ID }),
		}
		recordSolve(solution.Kind, len(solution.Unmet), time.Since(start))
		return solution, nil
	}

	candidates := buildCandidates(offerings, opts.maxInstances())
	if logger != nil {
		logger.Debugw("built candidate offerings", "candidates", len(candidates), "demands", len(demands), "offerings", len(offerings))
	}

	compat := make([][]bool, len(demands))
	for d, dem := range demands {
		compat[d] = make([]bool, len(candidates))
		for c, cand := range candidates {
			compat[d][c] = compatible(dem, offerings[cand.offeringIndex])
		}
	}

	result, err := solveWithBackend(ctx, demands, offerings, candidates, compat, opts)
	if err != nil {
		return PlacementSolution{}, &SolveError{Reason: "MIP solve failed", Cause: err}
	}

	solution := extractSolution(demands, offerings, candidates, result)
	recordSolve(solution.Kind, len(solution.Unmet), time.Since(start))
	if logger != nil {
		logger.Infow("solve result", "nodes", len(solution.Nodes), "unmet", len(solution.Unmet), "total_cost_per_hour", solution.TotalCostPerHour())
	}
	return solution, nil
}

func recordSolve(kind SolutionKind, unmet int, elapsed time.Duration) {
	outcome := kind.String()
	metrics.SolveOutcomesTotal.WithLabelValues(outcome).Inc()
	metrics.SolveDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if unmet > 0 {
		metrics.UnmetDemandsTotal.Add(float64(unmet))
	}
}

// backendResult is the raw 0/1 assignment read back from the MIP solver.
type backendResult struct {
	// placed[d][c] is true if demand d was assigned to candidate c.
	placed [][]bool
	// active[c] is true if candidate c was activated.
	active []bool
	// unmet[d] is true if demand d was left unplaced.
	unmet []bool
}

func extractSolution(demands []offering.PodResources, offerings []offering.Offering, candidates []candidate, r backendResult) PlacementSolution {
	nodes := make([]PotentialNode, 0, len(candidates))
	nodeIndexByCandidate := make(map[int]int, len(candidates))

	for c, cand := range candidates {
		if !r.active[c] {
			continue
		}
		nodeIndexByCandidate[c] = len(nodes)
		nodes = append(nodes, PotentialNode{Offering: offerings[cand.offeringIndex]})
	}

	var unmet []offering.PodID
	for d, dem := range demands {
		if r.unmet[d] {
			unmet = append(unmet, dem.ID)
			continue
		}
		for c := range candidates {
			if r.placed[d][c] {
				ni := nodeIndexByCandidate[c]
				nodes[ni].Pods = append(nodes[ni].Pods, dem.ID)
				break
			}
		}
	}

	kind := AllPlaced
	if len(unmet) > 0 {
		kind = IncompletePlacement
	}
	return PlacementSolution{Kind: kind, Nodes: nodes, Unmet: unmet}
}
