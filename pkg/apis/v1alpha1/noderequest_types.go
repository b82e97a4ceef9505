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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NodeRequestSpec is the desired state of a NodeRequest - a request to
// provision a single node of a given offering.
type NodeRequestSpec struct {
	// TargetOffering is the instance type to provision, e.g. "cax11".
	TargetOffering string `json:"targetOffering"`
}

// NodeRequestPhase tracks a NodeRequest through Pending -> Provisioning ->
// Ready | Unmet, with Deprovisioning reserved for a node that failed its
// readiness check after being created.
type NodeRequestPhase string

const (
	// NodeRequestPhasePending is the initial phase, waiting to be sent to
	// the provider.
	NodeRequestPhasePending NodeRequestPhase = "Pending"
	// NodeRequestPhaseProvisioning means the provider accepted the request
	// and the node is being created.
	NodeRequestPhaseProvisioning NodeRequestPhase = "Provisioning"
	// NodeRequestPhaseReady means the node joined the cluster successfully.
	NodeRequestPhaseReady NodeRequestPhase = "Ready"
	// NodeRequestPhaseUnmet means the provider couldn't fulfil the
	// request. Cleaned up via TTL.
	NodeRequestPhaseUnmet NodeRequestPhase = "Unmet"
	// NodeRequestPhaseDeprovisioning means the node failed its readiness
	// check and is being torn down.
	NodeRequestPhaseDeprovisioning NodeRequestPhase = "Deprovisioning"
)

func (p NodeRequestPhase) String() string { return string(p) }

// NodeRequestEvent is a timestamped entry in a NodeRequest's append-only
// event log.
type NodeRequestEvent struct {
	// At is when the event occurred.
	At metav1.Time `json:"at"`
	// Name is a short event name, e.g. "nodeRequested", "nodeProvisioned".
	Name string `json:"name"`
	// Reason carries detail for failure events.
	// +optional
	Reason *string `json:"reason,omitempty"`
}

// NodeRequestStatus is the observed state of a NodeRequest.
type NodeRequestStatus struct {
	// Phase is the current lifecycle phase. Defaults to Pending.
	// +optional
	Phase NodeRequestPhase `json:"phase,omitempty"`
	// NodeID is the provider-assigned node identifier, set once the
	// provider accepts the request.
	// +optional
	NodeID *string `json:"nodeID,omitempty"`
	// Events is the ordered history of lifecycle events.
	// +optional
	Events []NodeRequestEvent `json:"events,omitempty"`
}

// NodeRequest tracks provisioning of a single node, from the moment a
// demand couldn't be scheduled through to the node joining (or the request
// being abandoned). Its name is prefixed with the pool it was created for.
// An Unmet NodeRequest is deleted once its TTL expires; a Ready one is
// kept and not deleted by the reconciler.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:path=noderequests,scope=Namespaced,categories=growth
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=".status.phase"
// +kubebuilder:printcolumn:name="Offering",type=string,JSONPath=".spec.targetOffering"
type NodeRequest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   NodeRequestSpec   `json:"spec,omitempty"`
	Status NodeRequestStatus `json:"status,omitempty"`
}

// NodeRequestList contains a list of NodeRequest.
// +kubebuilder:object:root=true
type NodeRequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NodeRequest `json:"items"`
}
