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

// Package provisioning is the reconcile engine: it watches unschedulable
// pods, solves for the cheapest set of nodes to cover them, and creates
// NodeRequests for the provider to fulfil.
package provisioning

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"knative.dev/pkg/logging"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	growthv1alpha1 "github.com/lissahyacinth/growth/pkg/apis/v1alpha1"
	"github.com/lissahyacinth/growth/pkg/clusterstate"
	"github.com/lissahyacinth/growth/pkg/cloudprovider"
	"github.com/lissahyacinth/growth/pkg/offering"
	"github.com/lissahyacinth/growth/pkg/optimiser"
)

// requeueAfter is the safety-net interval: if provider provisioning is
// still in progress we need to re-check even without a new pod event.
const requeueAfter = 30 * time.Second

// errorBackoff is how long to wait before re-attempting a reconcile that
// failed outright (Gather, solve, or NodeRequest creation erroring).
const errorBackoff = 5 * time.Second

// NodeRequestDemand is one node the solver decided to stand up, annotated
// with which pool should own it.
type NodeRequestDemand struct {
	Pool           string
	TargetOffering offering.Offering
}

// ReconcilePods solves state for the cheapest covering set of nodes and
// returns the NodeRequests that should be created for it, along with the
// pods the solve left unmet so the caller can log/surface them - a solve
// with unmet demand still creates NodeRequests for whatever it did place.
// Every returned NodeRequestDemand is attributed to pool.
//
// When state.InFlight is populated (clusterstate.Options.SubtractInFlight),
// a solved node whose offering type still has in-flight credit is treated
// as already covered and does not get a new NodeRequest; the credit is
// consumed so it only applies once per in-flight NodeRequest.
func ReconcilePods(ctx context.Context, logger *zap.SugaredLogger, state clusterstate.ClusterState, opts optimiser.SolveOptions, pool string) ([]NodeRequestDemand, []offering.PodID, error) {
	solution, err := optimiser.Solve(ctx, logger, state.Demands, state.SuitableOfferings(), opts)
	if err != nil {
		return nil, nil, err
	}

	inFlight := make(map[offering.InstanceType]int, len(state.InFlight))
	for k, v := range state.InFlight {
		inFlight[k] = v
	}

	var demands []NodeRequestDemand
	for _, node := range solution.Nodes {
		if credit := inFlight[node.Offering.InstanceType]; credit > 0 {
			inFlight[node.Offering.InstanceType] = credit - 1
			continue
		}
		demands = append(demands, NodeRequestDemand{Pool: pool, TargetOffering: node.Offering})
	}
	return demands, solution.Unmet, nil
}

// Reconciler drives pod reconciliation: gather cluster state, solve, and
// create any NodeRequests the solve calls for.
type Reconciler struct {
	Client        client.Client
	Provider      cloudprovider.Provider
	SolveOptions  optimiser.SolveOptions
	GatherOptions clusterstate.Options
}

// Reconcile handles a single Pod event.
func (r *Reconciler) Reconcile(ctx context.Context, pod *corev1.Pod) (reconcile.Result, error) {
	logger := logging.FromContext(ctx)

	if !clusterstate.IsPodUnschedulable(pod) {
		return reconcile.Result{}, nil
	}

	logger.Infow("pod is unschedulable, running reconciliation", "pod", pod.Name)

	if err := r.reconcileOnce(ctx); err != nil {
		logger.Warnw("reconcile failed, requeuing", "error", err)
		return reconcile.Result{RequeueAfter: errorBackoff}, nil
	}
	return reconcile.Result{RequeueAfter: requeueAfter}, nil
}

// ControllerLoopSingle runs one gather-solve-create cycle without being
// triggered by a specific pod event; used by the controller binary's
// periodic provisioning loop and by tests that exercise whole-loop scenarios.
func ControllerLoopSingle(ctx context.Context, c client.Client, provider cloudprovider.Provider, opts optimiser.SolveOptions, gatherOpts clusterstate.Options) error {
	r := &Reconciler{Client: c, Provider: provider, SolveOptions: opts, GatherOptions: gatherOpts}
	return r.reconcileOnce(ctx)
}

func (r *Reconciler) reconcileOnce(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	state, err := clusterstate.Gather(ctx, r.Client, r.Provider, r.GatherOptions)
	if err != nil {
		return err
	}

	// TODO: real pool selection once pools exist; every node request
	// is attributed to a single placeholder pool for now.
	demands, unmet, err := ReconcilePods(ctx, logger, state, r.SolveOptions, "PoolsAreFake")
	if err != nil {
		return err
	}
	if len(unmet) > 0 {
		logger.Warnw("solve left demands unmet, creating NodeRequests for the partial solution", "unmet_count", len(unmet))
	}

	var errs error
	for _, d := range demands {
		if _, err := CreateNodeRequest(ctx, r.Client, d.Pool, growthv1alpha1.NodeRequestSpec{
			TargetOffering: string(d.TargetOffering.InstanceType),
		}); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
