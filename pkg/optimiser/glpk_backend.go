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

package optimiser

import (
	"context"
	"fmt"

	"github.com/lukpank/go-glpk/glpk"

	"github.com/lissahyacinth/growth/pkg/offering"
)

// solveWithBackend builds and solves the 0/1 program:
//
//	minimise   sum(active[c] * cost[c]) + sum(unmet[d] * penalty)
//	subject to sum(placed[d][c] for c) + unmet[d] == 1          for each demand d
//	           placed[d][c] <= active[c]                         for each d, c
//	           sum(placed[d][c] * cpu[d]  for d) <= cpu[c]       for each candidate c
//	           sum(placed[d][c] * mem[d]  for d) <= mem[c]       for each candidate c
//	           sum(placed[d][c] * gpu[d]  for d) <= gpu[c]       for each candidate c
//	           sum(placed[d][c] * disk[d] for d) <= disk[c]      for each candidate c (disk[c] = 0 if unset)
//	           placed[d][c] == 0 where !compat[d][c]
//
// Variable layout: placements are numbered first (demand-major), then
// activation variables, then unmet variables.
func solveWithBackend(ctx context.Context, demands []offering.PodResources, offerings []offering.Offering, candidates []candidate, compat [][]bool, opts SolveOptions) (backendResult, error) {
	nD := len(demands)
	nC := len(candidates)

	placementVar := func(d, c int) int { return d*nC + c + 1 } // 1-indexed
	activeVar := func(c int) int { return nD*nC + c + 1 }
	unmetVar := func(d int) int { return nD*nC + nC + d + 1 }
	nVars := nD*nC + nC + nD

	lp := glpk.New()
	defer lp.Delete()

	lp.SetProbName("growth-placement")
	lp.SetObjDir(glpk.MIN)

	lp.AddCols(nVars)
	for d := 0; d < nD; d++ {
		for c := 0; c < nC; c++ {
			j := placementVar(d, c)
			lp.SetColKind(j, glpk.BV)
			lp.SetColBnds(j, glpk.DB, 0, 1)
			if !compat[d][c] {
				// Pin incompatible (demand, candidate) pairs to zero rather
				// than encoding compatibility as a linear constraint.
				lp.SetColBnds(j, glpk.FX, 0, 0)
			}
			lp.SetObjCoef(j, 0)
		}
	}
	for c := 0; c < nC; c++ {
		j := activeVar(c)
		lp.SetColKind(j, glpk.BV)
		lp.SetColBnds(j, glpk.DB, 0, 1)
		lp.SetObjCoef(j, offerings[candidates[c].offeringIndex].CostPerHour)
	}
	for d := 0; d < nD; d++ {
		j := unmetVar(d)
		lp.SetColKind(j, glpk.BV)
		lp.SetColBnds(j, glpk.DB, 0, 1)
		lp.SetObjCoef(j, opts.penalty())
	}

	nRows := nD /* assignment */ + nD*nC /* activation */ + nC*4 /* capacity: cpu, mem, gpu, disk */
	lp.AddRows(nRows)
	row := 1

	// Each demand is placed exactly once, or recorded unmet.
	for d := 0; d < nD; d++ {
		ind := make([]int32, 0, nC+1)
		val := make([]float64, 0, nC+1)
		for c := 0; c < nC; c++ {
			ind = append(ind, int32(placementVar(d, c)))
			val = append(val, 1.0)
		}
		ind = append(ind, int32(unmetVar(d)))
		val = append(val, 1.0)
		lp.SetRowBnds(row, glpk.FX, 1, 1)
		lp.SetMatRow(row, ind, val)
		row++
	}

	// A demand can only be placed on an activated candidate.
	for d := 0; d < nD; d++ {
		for c := 0; c < nC; c++ {
			ind := []int32{int32(placementVar(d, c)), int32(activeVar(c))}
			val := []float64{1.0, -1.0}
			lp.SetRowBnds(row, glpk.UP, 0, 0)
			lp.SetMatRow(row, ind, val)
			row++
		}
	}

	// Capacity constraints per candidate.
	for c := 0; c < nC; c++ {
		off := offerings[candidates[c].offeringIndex]

		addCapacityRow := func(limit float64, demandAmount func(offering.PodResources) float64) {
			ind := make([]int32, 0, nD)
			val := make([]float64, 0, nD)
			for d := 0; d < nD; d++ {
				amount := demandAmount(demands[d])
				if amount == 0 {
					continue
				}
				ind = append(ind, int32(placementVar(d, c)))
				val = append(val, amount)
			}
			lp.SetRowBnds(row, glpk.UP, 0, limit)
			if len(ind) > 0 {
				lp.SetMatRow(row, ind, val)
			}
			row++
		}

		addCapacityRow(float64(off.Resources.CPU), func(p offering.PodResources) float64 { return float64(p.Resources.CPU) })
		addCapacityRow(float64(off.Resources.MemoryMiB), func(p offering.PodResources) float64 { return float64(p.Resources.MemoryMiB) })
		addCapacityRow(float64(off.Resources.GPU), func(p offering.PodResources) float64 { return float64(p.Resources.GPU) })

		diskLimit := 0.0
		if off.Resources.EphemeralStorageGiB != nil {
			diskLimit = float64(*off.Resources.EphemeralStorageGiB)
		}
		addCapacityRow(diskLimit, func(p offering.PodResources) float64 {
			if p.Resources.EphemeralStorageGiB == nil {
				return 0
			}
			return float64(*p.Resources.EphemeralStorageGiB)
		})
	}

	iocp := glpk.NewIocp()
	iocp.SetPresolve(true)
	if opts.TimeLimit > 0 {
		iocp.SetTmLim(int(opts.TimeLimit.Milliseconds()))
	}
	if err := ctx.Err(); err != nil {
		return backendResult{}, err
	}
	if err := lp.Intopt(iocp); err != nil {
		return backendResult{}, fmt.Errorf("glpk intopt: %w", err)
	}

	result := backendResult{
		placed: make([][]bool, nD),
		active: make([]bool, nC),
		unmet:  make([]bool, nD),
	}
	for d := 0; d < nD; d++ {
		result.placed[d] = make([]bool, nC)
		for c := 0; c < nC; c++ {
			result.placed[d][c] = lp.MipColVal(placementVar(d, c)) > 0.5
		}
		result.unmet[d] = lp.MipColVal(unmetVar(d)) > 0.5
	}
	for c := 0; c < nC; c++ {
		result.active[c] = lp.MipColVal(activeVar(c)) > 0.5
	}
	return result, nil
}
