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

// Package clusterstate gathers the inputs the optimiser needs: pods stuck
// Pending/Unschedulable, and the provider's current offering catalogue.
package clusterstate

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	growthv1alpha1 "github.com/lissahyacinth/growth/pkg/apis/v1alpha1"
	"github.com/lissahyacinth/growth/pkg/cloudprovider"
	"github.com/lissahyacinth/growth/pkg/offering"
)

// ClusterState is the gathered snapshot a single optimiser solve runs over.
type ClusterState struct {
	Demands   []offering.PodResources
	Offerings []offering.Offering
	// InFlight counts non-terminal NodeRequests (Pending/Provisioning) per
	// offering type, populated only when Options.SubtractInFlight is set.
	InFlight map[offering.InstanceType]int
}

// SuitableOfferings returns the subset of Offerings that can satisfy at
// least one current demand - there is no point handing the solver an
// instance type nothing needs.
func (s ClusterState) SuitableOfferings() []offering.Offering {
	var out []offering.Offering
	for _, off := range s.Offerings {
		for _, d := range s.Demands {
			if off.Satisfies(d.Resources) {
				out = append(out, off)
				break
			}
		}
	}
	return out
}

// IsPodUnschedulable reports whether pod carries the
// PodScheduled=False/Unschedulable condition.
func IsPodUnschedulable(pod *corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodScheduled && c.Status == corev1.ConditionFalse && c.Reason == "Unschedulable" {
			return true
		}
	}
	return false
}

// isDaemonSetPod reports whether pod is owned by a DaemonSet. DaemonSet
// pods target every node, including ones that will never exist for other
// reasons - scaling to satisfy them is never the right response.
func isDaemonSetPod(pod *corev1.Pod) bool {
	for _, ref := range pod.OwnerReferences {
		if ref.Kind == "DaemonSet" {
			return true
		}
	}
	return false
}

// PodPhaseField is the field index name registered against the manager's
// cache so pods can be looked up by phase through the cache's index rather
// than filtered after a full cluster-wide list. See RegisterIndexes.
const PodPhaseField = "status.phase"

func listUnschedulablePods(ctx context.Context, c client.Client) ([]corev1.Pod, error) {
	var list corev1.PodList
	if err := c.List(ctx, &list, client.MatchingFields{PodPhaseField: string(corev1.PodPending)}); err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}

	out := make([]corev1.Pod, 0, len(list.Items))
	for _, pod := range list.Items {
		if IsPodUnschedulable(&pod) && !isDaemonSetPod(&pod) {
			out = append(out, pod)
		}
	}
	return out, nil
}

// RegisterIndexes registers the field indexes Gather's queries depend on.
// Must be called once against the manager before the cache starts.
func RegisterIndexes(ctx context.Context, indexer client.FieldIndexer) error {
	if err := indexer.IndexField(ctx, &corev1.Pod{}, PodPhaseField, func(o client.Object) []string {
		return []string{string(o.(*corev1.Pod).Status.Phase)}
	}); err != nil {
		return fmt.Errorf("indexing pod phase: %w", err)
	}
	return nil
}

// Options tunes Gather.
type Options struct {
	// SubtractInFlight, when true, also lists non-terminal NodeRequests and
	// populates ClusterState.InFlight so callers can avoid re-requesting
	// nodes a previous reconcile already asked the provider for.
	SubtractInFlight bool
}

// Gather lists unschedulable pods and the provider's current offerings,
// assembling the state a single solve operates over.
func Gather(ctx context.Context, c client.Client, provider cloudprovider.Provider, opts Options) (ClusterState, error) {
	pods, err := listUnschedulablePods(ctx, c)
	if err != nil {
		return ClusterState{}, err
	}

	offerings, err := provider.Offerings(ctx)
	if err != nil {
		return ClusterState{}, fmt.Errorf("listing offerings: %w", err)
	}

	demands := make([]offering.PodResources, 0, len(pods))
	for i := range pods {
		pr, err := offering.PodResourcesFromPod(&pods[i])
		if err != nil {
			return ClusterState{}, fmt.Errorf("parsing resources for pod %s/%s: %w", pods[i].Namespace, pods[i].Name, err)
		}
		demands = append(demands, pr)
	}

	state := ClusterState{Demands: demands, Offerings: offerings}

	if opts.SubtractInFlight {
		inFlight, err := countInFlightNodeRequests(ctx, c)
		if err != nil {
			return ClusterState{}, err
		}
		state.InFlight = inFlight
	}

	return state, nil
}

func countInFlightNodeRequests(ctx context.Context, c client.Client) (map[offering.InstanceType]int, error) {
	var list growthv1alpha1.NodeRequestList
	if err := c.List(ctx, &list); err != nil {
		return nil, fmt.Errorf("listing node requests: %w", err)
	}

	counts := map[offering.InstanceType]int{}
	for _, nr := range list.Items {
		switch nr.Status.Phase {
		case growthv1alpha1.NodeRequestPhasePending, growthv1alpha1.NodeRequestPhaseProvisioning, "":
			counts[offering.InstanceType(nr.Spec.TargetOffering)]++
		}
	}
	return counts, nil
}
