package clusterstate

import (
	"context"
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
	"github.com/lissahyacinth/growth/pkg/offering"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, corev1.AddToScheme(scheme))
	require.NoError(t, growthv1alpha1.AddToScheme(scheme))
	return scheme
}

// newClient builds a fake client with the same status.phase pod index
// RegisterIndexes installs against a real manager, so Gather's
// MatchingFields query works the same way under test.
func newClient(t *testing.T) client.Client {
	t.Helper()
	return fake.NewClientBuilder().
		WithScheme(newScheme(t)).
		WithIndex(&corev1.Pod{}, PodPhaseField, func(o client.Object) []string {
			return []string{string(o.(*corev1.Pod).Status.Phase)}
		}).
		Build()
}

func pendingUnschedulablePod(name, cpu, memory string) *corev1.Pod {
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
				Type:    corev1.PodScheduled,
				Status:  corev1.ConditionFalse,
				Reason:  "Unschedulable",
				Message: "insufficient resources",
			}},
		},
	}
}

func TestIsPodUnschedulable(t *testing.T) {
	pod := pendingUnschedulablePod("p", "1", "1Gi")
	assert.True(t, IsPodUnschedulable(pod))

	scheduled := pendingUnschedulablePod("p", "1", "1Gi")
	scheduled.Status.Conditions[0].Status = corev1.ConditionTrue
	assert.False(t, IsPodUnschedulable(scheduled))
}

func TestGatherSkipsDaemonSetPods(t *testing.T) {
	c := newClient(t)

	ds := pendingUnschedulablePod("ds-pod", "1", "1Gi")
	ds.OwnerReferences = []metav1.OwnerReference{{Kind: "DaemonSet", Name: "x", APIVersion: "apps/v1", UID: "1"}}
	require.NoError(t, c.Create(context.Background(), ds))

	normal := pendingUnschedulablePod("normal-pod", "1", "1Gi")
	require.NoError(t, c.Create(context.Background(), normal))

	provider := cpfake.New().WithOfferings([]offering.Offering{{InstanceType: "cx22", Resources: offering.Resources{CPU: 2, MemoryMiB: 4096}, CostPerHour: 0.01}})
	state, err := Gather(context.Background(), c, provider, Options{})
	require.NoError(t, err)
	require.Len(t, state.Demands, 1)
	assert.Equal(t, "normal-pod", state.Demands[0].ID.Name)
}

func TestSuitableOfferingsFiltersByDemand(t *testing.T) {
	state := ClusterState{
		Demands: []offering.PodResources{
			{ID: offering.PodID{Name: "a"}, Resources: offering.Resources{CPU: 1, MemoryMiB: 512}},
		},
		Offerings: []offering.Offering{
			{InstanceType: "tiny", Resources: offering.Resources{CPU: 1, MemoryMiB: 512}},
			{InstanceType: "huge", Resources: offering.Resources{CPU: 64, MemoryMiB: 131072}},
			{InstanceType: "unrelated-gpu", Resources: offering.Resources{CPU: 0, MemoryMiB: 0}},
		},
	}
	suitable := state.SuitableOfferings()
	require.Len(t, suitable, 2)
}

func TestGatherSubtractInFlightCountsNonTerminalNodeRequests(t *testing.T) {
	c := newClient(t)

	pending := &growthv1alpha1.NodeRequest{
		ObjectMeta: metav1.ObjectMeta{Name: "PoolsAreFake-1", Namespace: "default"},
		Spec:       growthv1alpha1.NodeRequestSpec{TargetOffering: "cx22"},
		Status:     growthv1alpha1.NodeRequestStatus{Phase: growthv1alpha1.NodeRequestPhaseProvisioning},
	}
	ready := &growthv1alpha1.NodeRequest{
		ObjectMeta: metav1.ObjectMeta{Name: "PoolsAreFake-2", Namespace: "default"},
		Spec:       growthv1alpha1.NodeRequestSpec{TargetOffering: "cx22"},
		Status:     growthv1alpha1.NodeRequestStatus{Phase: growthv1alpha1.NodeRequestPhaseReady},
	}
	require.NoError(t, c.Create(context.Background(), pending))
	require.NoError(t, c.Create(context.Background(), ready))

	provider := cpfake.New()
	state, err := Gather(context.Background(), c, provider, Options{SubtractInFlight: true})
	require.NoError(t, err)
	assert.Equal(t, 1, state.InFlight[offering.InstanceType("cx22")])
}

func TestGatherWithoutSubtractInFlightLeavesInFlightNil(t *testing.T) {
	c := newClient(t)
	provider := cpfake.New()
	state, err := Gather(context.Background(), c, provider, Options{})
	require.NoError(t, err)
	assert.Nil(t, state.InFlight)
}
