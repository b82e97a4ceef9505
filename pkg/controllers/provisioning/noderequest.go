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

package provisioning

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	growthv1alpha1 "github.com/lissahyacinth/growth/pkg/apis/v1alpha1"
	"github.com/lissahyacinth/growth/pkg/metrics"
)

// DefaultNamespace is where NodeRequests are created. There is no
// per-tenant namespacing in this system - a single cluster has a single
// autoscaler.
const DefaultNamespace = "default"

// CreateNodeRequest creates a NodeRequest in Pending phase, named
// `{pool}-{uuid}` so concurrent reconciles never collide on a name.
func CreateNodeRequest(ctx context.Context, c client.Client, pool string, spec growthv1alpha1.NodeRequestSpec) (*growthv1alpha1.NodeRequest, error) {
	name := fmt.Sprintf("%s-%s", pool, uuid.New().String())
	nr := &growthv1alpha1.NodeRequest{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: DefaultNamespace,
		},
		Spec: spec,
		Status: growthv1alpha1.NodeRequestStatus{
			Phase: growthv1alpha1.NodeRequestPhasePending,
		},
	}
	if err := c.Create(ctx, nr); err != nil {
		return nil, fmt.Errorf("creating node request %s: %w", name, err)
	}
	metrics.NodeRequestsCreatedTotal.Inc()
	return nr, nil
}
