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

// Package noderequest drives a single NodeRequest through its lifecycle:
// Pending -> Provisioning -> Ready | Unmet, with Deprovisioning reserved for
// a node that was created but never joined in time.
package noderequest

import (
	"context"
	"errors"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/clock"
	"knative.dev/pkg/logging"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	growthv1alpha1 "github.com/lissahyacinth/growth/pkg/apis/v1alpha1"
	"github.com/lissahyacinth/growth/pkg/cloudprovider"
	"github.com/lissahyacinth/growth/pkg/events"
	"github.com/lissahyacinth/growth/pkg/metrics"
	"github.com/lissahyacinth/growth/pkg/offering"
)

// defaultJoinTimeout bounds how long a Provisioning NodeRequest waits for a
// matching Node to appear and go Ready before it's torn down.
const defaultJoinTimeout = 10 * time.Minute

// defaultUnmetTTL bounds how long an Unmet NodeRequest sticks around before
// being deleted, so a burst of unsatisfiable demand doesn't accumulate dead
// objects forever.
const defaultUnmetTTL = 5 * time.Minute

// provisioningRequeue is how often a Provisioning NodeRequest is re-checked
// for its Node joining.
const provisioningRequeue = 15 * time.Second

// Reconciler drives one NodeRequest's state machine.
type Reconciler struct {
	Client      client.Client
	Provider    cloudprovider.Provider
	Recorder    events.Recorder
	Clock       clock.Clock
	JoinTimeout time.Duration
	UnmetTTL    time.Duration
}

func (r *Reconciler) clock() clock.Clock {
	if r.Clock == nil {
		return clock.RealClock{}
	}
	return r.Clock
}

func (r *Reconciler) joinTimeout() time.Duration {
	if r.JoinTimeout == 0 {
		return defaultJoinTimeout
	}
	return r.JoinTimeout
}

func (r *Reconciler) unmetTTL() time.Duration {
	if r.UnmetTTL == 0 {
		return defaultUnmetTTL
	}
	return r.UnmetTTL
}

// Reconcile advances nr by one phase transition, if one is due.
func (r *Reconciler) Reconcile(ctx context.Context, nr *growthv1alpha1.NodeRequest) (reconcile.Result, error) {
	ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("noderequest", nr.Name))
	phase := nr.Status.Phase
	if phase == "" {
		phase = growthv1alpha1.NodeRequestPhasePending
	}

	switch phase {
	case growthv1alpha1.NodeRequestPhasePending:
		return r.reconcilePending(ctx, nr)
	case growthv1alpha1.NodeRequestPhaseProvisioning:
		return r.reconcileProvisioning(ctx, nr)
	case growthv1alpha1.NodeRequestPhaseUnmet:
		return r.reconcileUnmet(ctx, nr)
	case growthv1alpha1.NodeRequestPhaseDeprovisioning:
		return r.reconcileDeprovisioning(ctx, nr)
	default:
		// Ready is terminal; nothing left to do.
		return reconcile.Result{}, nil
	}
}

func (r *Reconciler) reconcilePending(ctx context.Context, nr *growthv1alpha1.NodeRequest) (reconcile.Result, error) {
	logger := logging.FromContext(ctx)

	off, err := r.resolveOffering(ctx, nr.Spec.TargetOffering)
	if err != nil {
		return r.transitionToUnmet(ctx, nr, fmt.Sprintf("resolving offering: %s", err))
	}

	nodeID, err := r.Provider.Create(ctx, off, cloudprovider.InstanceConfig{})
	if err != nil {
		var perr *cloudprovider.ProviderError
		if errors.As(err, &perr) {
			metrics.ProviderCallErrorsTotal.WithLabelValues(perr.Kind.String()).Inc()
			if perr.Kind == cloudprovider.OfferingUnavailable {
				return r.transitionToUnmet(ctx, nr, perr.Error())
			}
		}
		logger.Warnw("provider create failed, will retry", "error", err)
		return reconcile.Result{RequeueAfter: provisioningRequeue}, nil
	}

	id := string(nodeID)
	stored := nr.DeepCopy()
	nr.Status.Phase = growthv1alpha1.NodeRequestPhaseProvisioning
	nr.Status.NodeID = &id
	nr.Status.Events = append(nr.Status.Events, growthv1alpha1.NodeRequestEvent{
		At:   metav1.Now(),
		Name: "nodeProvisioned",
	})
	if err := r.patchStatus(ctx, stored, nr); err != nil {
		return reconcile.Result{}, err
	}
	r.publish(events.NodeProvisioned(nr, id))
	metrics.NodeRequestPhaseTransitionsTotal.WithLabelValues(nr.Status.Phase.String()).Inc()
	return reconcile.Result{RequeueAfter: provisioningRequeue}, nil
}

func (r *Reconciler) reconcileProvisioning(ctx context.Context, nr *growthv1alpha1.NodeRequest) (reconcile.Result, error) {
	if nr.Status.NodeID == nil {
		return r.transitionToUnmet(ctx, nr, "provisioning with no node id recorded")
	}

	node := &corev1.Node{}
	err := r.Client.Get(ctx, types.NamespacedName{Name: *nr.Status.NodeID}, node)
	switch {
	case err == nil:
		if nodeIsReady(node) {
			return r.transitionToReady(ctx, nr, node.Name)
		}
	case kerrors.IsNotFound(err):
		// Node hasn't appeared yet; fall through to the timeout check below.
	default:
		return reconcile.Result{}, fmt.Errorf("getting node for node request: %w", err)
	}

	if r.clock().Now().After(nr.CreationTimestamp.Add(r.joinTimeout())) {
		r.publish(events.JoinTimeout(nr))
		return r.transitionToDeprovisioning(ctx, nr)
	}
	return reconcile.Result{RequeueAfter: provisioningRequeue}, nil
}

func (r *Reconciler) reconcileUnmet(ctx context.Context, nr *growthv1alpha1.NodeRequest) (reconcile.Result, error) {
	lastEventAt := nr.CreationTimestamp.Time
	if n := len(nr.Status.Events); n > 0 {
		lastEventAt = nr.Status.Events[n-1].At.Time
	}
	if r.clock().Now().After(lastEventAt.Add(r.unmetTTL())) {
		if err := r.Client.Delete(ctx, nr); err != nil && !kerrors.IsNotFound(err) {
			return reconcile.Result{}, fmt.Errorf("deleting unmet node request: %w", err)
		}
		r.publish(events.NodeRequestDeleted(nr, "unmet TTL expired"))
		return reconcile.Result{}, nil
	}
	return reconcile.Result{RequeueAfter: r.unmetTTL()}, nil
}

func (r *Reconciler) reconcileDeprovisioning(ctx context.Context, nr *growthv1alpha1.NodeRequest) (reconcile.Result, error) {
	if nr.Status.NodeID != nil {
		if err := r.Provider.Delete(ctx, cloudprovider.NodeID(*nr.Status.NodeID)); err != nil {
			return reconcile.Result{}, fmt.Errorf("tearing down node: %w", err)
		}
	}
	if err := r.Client.Delete(ctx, nr); err != nil && !kerrors.IsNotFound(err) {
		return reconcile.Result{}, fmt.Errorf("deleting deprovisioned node request: %w", err)
	}
	r.publish(events.NodeRequestDeleted(nr, "node never became ready"))
	return reconcile.Result{}, nil
}

func (r *Reconciler) transitionToUnmet(ctx context.Context, nr *growthv1alpha1.NodeRequest, reason string) (reconcile.Result, error) {
	stored := nr.DeepCopy()
	nr.Status.Phase = growthv1alpha1.NodeRequestPhaseUnmet
	nr.Status.Events = append(nr.Status.Events, growthv1alpha1.NodeRequestEvent{
		At:     metav1.Now(),
		Name:   "unmet",
		Reason: &reason,
	})
	if err := r.patchStatus(ctx, stored, nr); err != nil {
		return reconcile.Result{}, err
	}
	r.publish(events.OfferingUnavailable(nr, errors.New(reason)))
	metrics.NodeRequestPhaseTransitionsTotal.WithLabelValues(nr.Status.Phase.String()).Inc()
	return reconcile.Result{RequeueAfter: r.unmetTTL()}, nil
}

func (r *Reconciler) transitionToReady(ctx context.Context, nr *growthv1alpha1.NodeRequest, nodeName string) (reconcile.Result, error) {
	stored := nr.DeepCopy()
	nr.Status.Phase = growthv1alpha1.NodeRequestPhaseReady
	nr.Status.Events = append(nr.Status.Events, growthv1alpha1.NodeRequestEvent{
		At:   metav1.Now(),
		Name: "nodeReady",
	})
	if err := r.patchStatus(ctx, stored, nr); err != nil {
		return reconcile.Result{}, err
	}
	r.publish(events.NodeReady(nr, nodeName))
	metrics.NodeRequestPhaseTransitionsTotal.WithLabelValues(nr.Status.Phase.String()).Inc()
	return reconcile.Result{}, nil
}

func (r *Reconciler) transitionToDeprovisioning(ctx context.Context, nr *growthv1alpha1.NodeRequest) (reconcile.Result, error) {
	stored := nr.DeepCopy()
	nr.Status.Phase = growthv1alpha1.NodeRequestPhaseDeprovisioning
	nr.Status.Events = append(nr.Status.Events, growthv1alpha1.NodeRequestEvent{
		At:   metav1.Now(),
		Name: "deprovisioning",
	})
	if err := r.patchStatus(ctx, stored, nr); err != nil {
		return reconcile.Result{}, err
	}
	metrics.NodeRequestPhaseTransitionsTotal.WithLabelValues(nr.Status.Phase.String()).Inc()
	return reconcile.Result{}, nil
}

func (r *Reconciler) patchStatus(ctx context.Context, stored, nr *growthv1alpha1.NodeRequest) error {
	if equality.Semantic.DeepEqual(stored, nr) {
		return nil
	}
	if err := r.Client.Status().Patch(ctx, nr, client.MergeFrom(stored)); err != nil {
		return fmt.Errorf("patching node request status: %w", err)
	}
	return nil
}

func (r *Reconciler) publish(evt events.Event) {
	if r.Recorder != nil {
		r.Recorder.Publish(evt)
	}
}

// resolveOffering fetches the current catalogue and finds the offering
// matching targetType. NodeRequests store the offering by instance type
// rather than a full snapshot, so the catalogue is re-checked on every
// Pending reconcile - if it has gone away since the solve ran, that's
// reported as OfferingUnavailable rather than attempted anyway.
func (r *Reconciler) resolveOffering(ctx context.Context, targetType string) (offering.Offering, error) {
	offerings, err := r.Provider.Offerings(ctx)
	if err != nil {
		return offering.Offering{}, fmt.Errorf("listing offerings: %w", err)
	}
	for _, o := range offerings {
		if string(o.InstanceType) == targetType {
			return o, nil
		}
	}
	return offering.Offering{}, cloudprovider.NewOfferingUnavailable(targetType)
}

// nodeIsReady reports whether node carries a true Ready condition.
func nodeIsReady(node *corev1.Node) bool {
	for _, c := range node.Status.Conditions {
		if c.Type == corev1.NodeReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}
