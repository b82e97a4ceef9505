package optimiser

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lissahyacinth/growth/pkg/offering"
)

func u32(n uint32) *uint32 { return &n }

func demand(name string, cpu, memMiB uint32) offering.PodResources {
	return offering.PodResources{
		ID:        offering.PodID{Namespace: "default", Name: name},
		Resources: offering.Resources{CPU: cpu, MemoryMiB: memMiB},
	}
}

func off(instanceType string, cpu, memMiB uint32, cost float64) offering.Offering {
	return offering.Offering{
		InstanceType: offering.InstanceType(instanceType),
		Resources:    offering.Resources{CPU: cpu, MemoryMiB: memMiB},
		CostPerHour:  cost,
	}
}

func TestSolveNoDemandsReturnsWithoutInvokingSolver(t *testing.T) {
	sol, err := Solve(context.Background(), nil, nil, []offering.Offering{off("cx22", 2, 4096, 0.01)}, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, NoDemands, sol.Kind)
	assert.Empty(t, sol.Nodes)
}

func TestSolveNoOfferingsLeavesEverythingUnmet(t *testing.T) {
	demands := []offering.PodResources{demand("web-0", 1, 2048)}
	sol, err := Solve(context.Background(), nil, demands, nil, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, IncompletePlacement, sol.Kind)
	require.Len(t, sol.Unmet, 1)
	assert.Equal(t, "default/web-0", sol.Unmet[0].String())
	assert.Empty(t, sol.Nodes)
}

// S2 - single pod, one offering fits.
func TestSolveSinglePodSingleOffering(t *testing.T) {
	demands := []offering.PodResources{demand("web-0", 1, 2048)}
	offerings := []offering.Offering{off("cx22", 2, 4096, 0.01)}

	sol, err := Solve(context.Background(), nil, demands, offerings, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, AllPlaced, sol.Kind)
	require.Len(t, sol.Nodes, 1)
	assert.Equal(t, offering.InstanceType("cx22"), sol.Nodes[0].Offering.InstanceType)
	assert.Equal(t, []offering.PodID{{Namespace: "default", Name: "web-0"}}, sol.Nodes[0].Pods)
}

// S3 - bin-packing three pods into two nodes.
func TestSolveBinPacksThreePodsIntoTwoNodes(t *testing.T) {
	demands := []offering.PodResources{
		demand("a", 1, 2048),
		demand("b", 1, 2048),
		demand("c", 1, 2048),
	}
	offerings := []offering.Offering{off("cx22", 2, 4096, 0.01)}

	sol, err := Solve(context.Background(), nil, demands, offerings, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, AllPlaced, sol.Kind)
	assert.Len(t, sol.Nodes, 2)

	totalPods := 0
	for _, n := range sol.Nodes {
		assert.LessOrEqual(t, len(n.Pods), 2)
		totalPods += len(n.Pods)
	}
	assert.Equal(t, 3, totalPods)
}

// S5 - cost preference: cheaper offering wins when both fit.
func TestSolvePrefersCheaperOffering(t *testing.T) {
	demands := []offering.PodResources{demand("web-0", 2, 4096)}
	offerings := []offering.Offering{
		off("expensive", 4, 8192, 1.00),
		off("cheap", 2, 4096, 0.01),
	}

	sol, err := Solve(context.Background(), nil, demands, offerings, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, AllPlaced, sol.Kind)
	require.Len(t, sol.Nodes, 1)
	assert.Equal(t, offering.InstanceType("cheap"), sol.Nodes[0].Offering.InstanceType)
}

// S6 - scale: 40 small pods across two offering types stay within the
// MaxInstancesPerOffering*offerings bound and all get placed.
func TestSolveScaleFortyPods(t *testing.T) {
	var demands []offering.PodResources
	for i := 0; i < 40; i++ {
		demands = append(demands, demand(fmt.Sprintf("pod-%d", i), 1, 512))
	}
	offerings := []offering.Offering{
		off("small", 2, 4096, 0.01),
		off("medium", 4, 8192, 0.018),
	}

	sol, err := Solve(context.Background(), nil, demands, offerings, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, AllPlaced, sol.Kind)
	assert.GreaterOrEqual(t, len(sol.Nodes), 1)
	assert.LessOrEqual(t, len(sol.Nodes), 20)
}

func TestSolveGPUModelMustMatch(t *testing.T) {
	a100 := offering.GpuA100
	t4 := offering.GpuT4

	d := offering.PodResources{
		ID:        offering.PodID{Namespace: "default", Name: "trainer"},
		Resources: offering.Resources{CPU: 1, MemoryMiB: 1024, GPU: 1, GPUModel: &a100},
	}
	offerings := []offering.Offering{
		{InstanceType: "gpu-t4-1", Resources: offering.Resources{CPU: 4, MemoryMiB: 16384, GPU: 1, GPUModel: &t4}, CostPerHour: 0.5},
		{InstanceType: "gpu-a100-1", Resources: offering.Resources{CPU: 12, MemoryMiB: 131072, GPU: 1, GPUModel: &a100}, CostPerHour: 1.8},
	}

	sol, err := Solve(context.Background(), nil, []offering.PodResources{d}, offerings, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, AllPlaced, sol.Kind)
	require.Len(t, sol.Nodes, 1)
	assert.Equal(t, offering.InstanceType("gpu-a100-1"), sol.Nodes[0].Offering.InstanceType)
}

func TestSolveEphemeralStorageCapacityEnforced(t *testing.T) {
	disk20 := u32(20)
	disk10 := u32(10)
	d := offering.PodResources{
		ID:        offering.PodID{Namespace: "default", Name: "with-disk"},
		Resources: offering.Resources{CPU: 1, MemoryMiB: 1024, EphemeralStorageGiB: disk20},
	}
	offerings := []offering.Offering{
		{InstanceType: "small-disk", Resources: offering.Resources{CPU: 4, MemoryMiB: 8192, EphemeralStorageGiB: disk10}, CostPerHour: 0.01},
		{InstanceType: "big-disk", Resources: offering.Resources{CPU: 4, MemoryMiB: 8192, EphemeralStorageGiB: u32(40)}, CostPerHour: 0.02},
	}

	sol, err := Solve(context.Background(), nil, []offering.PodResources{d}, offerings, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, AllPlaced, sol.Kind)
	require.Len(t, sol.Nodes, 1)
	assert.Equal(t, offering.InstanceType("big-disk"), sol.Nodes[0].Offering.InstanceType)
}

func TestSolveSoftFailsUnplaceableDemand(t *testing.T) {
	huge := demand("huge", 64, 131072)
	small := demand("small", 1, 512)
	offerings := []offering.Offering{off("cx22", 2, 4096, 0.01)}

	sol, err := Solve(context.Background(), nil, []offering.PodResources{huge, small}, offerings, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, IncompletePlacement, sol.Kind)
	require.Len(t, sol.Unmet, 1)
	assert.Equal(t, "default/huge", sol.Unmet[0].String())
	require.Len(t, sol.Nodes, 1)
	assert.Equal(t, []offering.PodID{{Namespace: "default", Name: "small"}}, sol.Nodes[0].Pods)
}
