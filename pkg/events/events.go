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

package events

import (
	"fmt"

	v1 "k8s.io/api/core/v1"

	growthv1alpha1 "github.com/lissahyacinth/growth/pkg/apis/v1alpha1"
)

func NodeRequested(nr *growthv1alpha1.NodeRequest) Event {
	return Event{
		InvolvedObject: nr,
		Type:           v1.EventTypeNormal,
		Reason:         "NodeRequested",
		Message:        fmt.Sprintf("Requested node of offering %s", nr.Spec.TargetOffering),
		DedupeValues:   []string{nr.Name},
	}
}

func NodeProvisioned(nr *growthv1alpha1.NodeRequest, nodeID string) Event {
	return Event{
		InvolvedObject: nr,
		Type:           v1.EventTypeNormal,
		Reason:         "NodeProvisioned",
		Message:        fmt.Sprintf("Provider accepted request, node id %s", nodeID),
		DedupeValues:   []string{nr.Name, nodeID},
	}
}

func NodeReady(nr *growthv1alpha1.NodeRequest, nodeName string) Event {
	return Event{
		InvolvedObject: nr,
		Type:           v1.EventTypeNormal,
		Reason:         "NodeReady",
		Message:        fmt.Sprintf("Node %s joined the cluster", nodeName),
		DedupeValues:   []string{nr.Name, nodeName},
	}
}

func OfferingUnavailable(nr *growthv1alpha1.NodeRequest, err error) Event {
	return Event{
		InvolvedObject: nr,
		Type:           v1.EventTypeWarning,
		Reason:         "OfferingUnavailable",
		Message:        fmt.Sprintf("Offering %s unavailable: %s", nr.Spec.TargetOffering, err),
		DedupeValues:   []string{nr.Name},
	}
}

func JoinTimeout(nr *growthv1alpha1.NodeRequest) Event {
	return Event{
		InvolvedObject: nr,
		Type:           v1.EventTypeWarning,
		Reason:         "JoinTimeout",
		Message:        "Node did not join the cluster within the expected window",
		DedupeValues:   []string{nr.Name},
	}
}

func NodeRequestDeleted(nr *growthv1alpha1.NodeRequest, reason string) Event {
	return Event{
		InvolvedObject: nr,
		Type:           v1.EventTypeNormal,
		Reason:         "NodeRequestDeleted",
		Message:        fmt.Sprintf("Cleaned up NodeRequest: %s", reason),
		DedupeValues:   []string{nr.Name},
	}
}
