package provisioning

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	growthv1alpha1 "github.com/lissahyacinth/growth/pkg/apis/v1alpha1"
	cpfake "github.com/lissahyacinth/growth/pkg/cloudprovider/fake"
	"github.com/lissahyacinth/growth/pkg/clusterstate"
	"github.com/lissahyacinth/growth/pkg/offering"
	"github.com/lissahyacinth/growth/pkg/optimiser"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, corev1.AddToScheme(scheme))
	require.NoError(t, growthv1alpha1.AddToScheme(scheme))
	return scheme
}

// newClient builds a fake client with the status.phase pod index Gather
// relies on, matching what RegisterIndexes installs against a real manager.
func newClient(t *testing.T) client.Client {
	t.Helper()
	return fake.NewClientBuilder().
		WithScheme(newScheme(t)).
		WithIndex(&corev1.Pod{}, clusterstate.PodPhaseField, func(o client.Object) []string {
			return []string{string(o.(*corev1.Pod).Status.Phase)}
		}).
		Build()
}

func unschedulablePod(name, cpu, memory string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name: "worker",
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse(cpu),
						corev1.ResourceMemory: resource.MustParse(memory),
					},
				},
			}},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodPending,
			Conditions: []corev1.PodCondition{{
				Type:   corev1.PodScheduled,
				Status: corev1.ConditionFalse,
				Reason: "Unschedulable",
			}},
		},
	}
}

// S1 - empty pending set.
func TestControllerLoopSingleNoPendingPodsCreatesNothing(t *testing.T) {
	c := newClient(t)
	provider := cpfake.New().WithOfferings([]offering.Offering{
		{InstanceType: "cx22", Resources: offering.Resources{CPU: 2, MemoryMiB: 4096}, CostPerHour: 0.01},
	})

	err := ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, clusterstate.Options{})
	require.NoError(t, err)

	var list growthv1alpha1.NodeRequestList
	require.NoError(t, c.List(context.Background(), &list))
	assert.Empty(t, list.Items)
}

// S2 - single pod, one offering fits.
func TestControllerLoopSingleOnePodCreatesOneNodeRequest(t *testing.T) {
	c := newClient(t)
	require.NoError(t, c.Create(context.Background(), unschedulablePod("test-pod", "1", "2048Mi")))

	provider := cpfake.New().WithOfferings([]offering.Offering{
		{InstanceType: "cx22", Resources: offering.Resources{CPU: 2, MemoryMiB: 4096}, CostPerHour: 0.01},
	})

	err := ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, clusterstate.Options{})
	require.NoError(t, err)

	var list growthv1alpha1.NodeRequestList
	require.NoError(t, c.List(context.Background(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "cx22", list.Items[0].Spec.TargetOffering)
}

// S3 - bin-packing three pods into two nodes.
func TestControllerLoopSingleBinPacksThreePodsIntoTwoNodeRequests(t *testing.T) {
	c := newClient(t)
	require.NoError(t, c.Create(context.Background(), unschedulablePod("pod-a", "1", "2048Mi")))
	require.NoError(t, c.Create(context.Background(), unschedulablePod("pod-b", "1", "2048Mi")))
	require.NoError(t, c.Create(context.Background(), unschedulablePod("pod-c", "1", "2048Mi")))

	provider := cpfake.New().WithOfferings([]offering.Offering{
		{InstanceType: "cx22", Resources: offering.Resources{CPU: 2, MemoryMiB: 4096}, CostPerHour: 0.01},
	})

	err := ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, clusterstate.Options{})
	require.NoError(t, err)

	var list growthv1alpha1.NodeRequestList
	require.NoError(t, c.List(context.Background(), &list))
	assert.Len(t, list.Items, 2)
}

// S4 - catalogue changes between calls.
func TestControllerLoopSingleCatalogueChangesBetweenCalls(t *testing.T) {
	small := offering.Offering{InstanceType: "small", Resources: offering.Resources{CPU: 1, MemoryMiB: 1024}, CostPerHour: 0.005}
	large := offering.Offering{InstanceType: "large", Resources: offering.Resources{CPU: 4, MemoryMiB: 8192}, CostPerHour: 0.02}

	provider := cpfake.New().WithOfferingsSequence([][]offering.Offering{
		{small},
		{small, large},
	})

	c1 := newClient(t)
	require.NoError(t, c1.Create(context.Background(), unschedulablePod("pod-1", "1", "512Mi")))
	require.NoError(t, ControllerLoopSingle(context.Background(), c1, provider, optimiser.SolveOptions{}, clusterstate.Options{}))
	var list1 growthv1alpha1.NodeRequestList
	require.NoError(t, c1.List(context.Background(), &list1))
	require.Len(t, list1.Items, 1)
	assert.Equal(t, "small", list1.Items[0].Spec.TargetOffering)

	c2 := newClient(t)
	require.NoError(t, c2.Create(context.Background(), unschedulablePod("pod-2", "3", "4096Mi")))
	require.NoError(t, ControllerLoopSingle(context.Background(), c2, provider, optimiser.SolveOptions{}, clusterstate.Options{}))
	var list2 growthv1alpha1.NodeRequestList
	require.NoError(t, c2.List(context.Background(), &list2))
	require.Len(t, list2.Items, 1)
	assert.Equal(t, "large", list2.Items[0].Spec.TargetOffering)
}

// S5 - cost preference.
func TestControllerLoopSinglePrefersCheaperOffering(t *testing.T) {
	c := newClient(t)
	require.NoError(t, c.Create(context.Background(), unschedulablePod("pod", "2", "4096Mi")))

	provider := cpfake.New().WithOfferings([]offering.Offering{
		{InstanceType: "expensive", Resources: offering.Resources{CPU: 4, MemoryMiB: 8192}, CostPerHour: 1.00},
		{InstanceType: "cheap", Resources: offering.Resources{CPU: 2, MemoryMiB: 4096}, CostPerHour: 0.01},
	})

	require.NoError(t, ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, clusterstate.Options{}))

	var list growthv1alpha1.NodeRequestList
	require.NoError(t, c.List(context.Background(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "cheap", list.Items[0].Spec.TargetOffering)
}

// S6 - scale.
func TestControllerLoopSingleScaleFortyPods(t *testing.T) {
	c := newClient(t)
	for i := 0; i < 40; i++ {
		require.NoError(t, c.Create(context.Background(), unschedulablePod(fmt.Sprintf("pod-%d", i), "1", "512Mi")))
	}

	provider := cpfake.New().WithOfferings([]offering.Offering{
		{InstanceType: "small", Resources: offering.Resources{CPU: 2, MemoryMiB: 4096}, CostPerHour: 0.01},
		{InstanceType: "medium", Resources: offering.Resources{CPU: 4, MemoryMiB: 8192}, CostPerHour: 0.018},
	})

	require.NoError(t, ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, clusterstate.Options{}))

	var list growthv1alpha1.NodeRequestList
	require.NoError(t, c.List(context.Background(), &list))
	assert.GreaterOrEqual(t, len(list.Items), 1)
	assert.LessOrEqual(t, len(list.Items), 20)
}

// S7 - persistent duplication: default behaviour does not subtract
// in-flight NodeRequests, so calling twice doubles the count.
func TestControllerLoopSingleCalledTwiceDuplicatesByDefault(t *testing.T) {
	c := newClient(t)
	require.NoError(t, c.Create(context.Background(), unschedulablePod("pod", "1", "2048Mi")))

	provider := cpfake.New().WithOfferings([]offering.Offering{
		{InstanceType: "cx22", Resources: offering.Resources{CPU: 2, MemoryMiB: 4096}, CostPerHour: 0.01},
	})

	require.NoError(t, ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, clusterstate.Options{}))
	require.NoError(t, ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, clusterstate.Options{}))

	var list growthv1alpha1.NodeRequestList
	require.NoError(t, c.List(context.Background(), &list))
	assert.Len(t, list.Items, 2, "reconciler does not subtract in-flight NodeRequests by default")
}

// S7-prime - with SubtractInFlight enabled, the second call sees the first
// NodeRequest as already covering the demand and creates nothing new.
func TestControllerLoopSingleSubtractInFlightAvoidsDuplication(t *testing.T) {
	c := newClient(t)
	require.NoError(t, c.Create(context.Background(), unschedulablePod("pod", "1", "2048Mi")))

	provider := cpfake.New().WithOfferings([]offering.Offering{
		{InstanceType: "cx22", Resources: offering.Resources{CPU: 2, MemoryMiB: 4096}, CostPerHour: 0.01},
	})

	opts := clusterstate.Options{SubtractInFlight: true}
	require.NoError(t, ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, opts))
	require.NoError(t, ControllerLoopSingle(context.Background(), c, provider, optimiser.SolveOptions{}, opts))

	var list growthv1alpha1.NodeRequestList
	require.NoError(t, c.List(context.Background(), &list))
	assert.Len(t, list.Items, 1, "the second reconcile should see the first NodeRequest as already covering the pod")
}
