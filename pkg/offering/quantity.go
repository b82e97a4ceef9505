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

package offering

import (
	"fmt"
	"strconv"
	"strings"

	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// QuantityParseError is returned when a pod carries a resource quantity
// string this package doesn't know how to interpret.
type QuantityParseError struct {
	Raw   string
	Cause error
}

func (e *QuantityParseError) Error() string {
	return fmt.Sprintf("failed to parse quantity %q: %v", e.Raw, e.Cause)
}

func (e *QuantityParseError) Unwrap() error { return e.Cause }

func parseErr(raw string, cause error) *QuantityParseError {
	return &QuantityParseError{Raw: raw, Cause: cause}
}

func divCeilU64(n, d uint64) uint64 {
	return (n + d - 1) / d
}

// parseCPU parses a Kubernetes CPU quantity into a whole vCPU count,
// rounding up. Handles bare integers ("4") and millicores ("500m").
func parseCPU(q resource.Quantity) (uint32, error) {
	s := q.String()
	if millis, ok := strings.CutSuffix(s, "m"); ok {
		m, err := strconv.ParseUint(millis, 10, 64)
		if err != nil {
			return 0, parseErr(s, err)
		}
		return uint32(divCeilU64(m, 1000)), nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, parseErr(s, err)
	}
	return uint32(n), nil
}

// parseMemoryMiB parses a Kubernetes memory quantity into MiB, rounding up.
// Handles Gi, Mi, Ki suffixes and bare bytes.
func parseMemoryMiB(q resource.Quantity) (uint32, error) {
	s := q.String()
	if v, ok := strings.CutSuffix(s, "Gi"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, parseErr(s, err)
		}
		return uint32(n) * 1024, nil
	}
	if v, ok := strings.CutSuffix(s, "Mi"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, parseErr(s, err)
		}
		return uint32(n), nil
	}
	if v, ok := strings.CutSuffix(s, "Ki"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, parseErr(s, err)
		}
		return uint32(divCeilU64(n, 1024)), nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, parseErr(s, err)
	}
	return uint32(divCeilU64(n, 1024*1024)), nil
}

// parseStorageGiB parses a Kubernetes ephemeral-storage quantity into GiB,
// rounding up. Handles Gi, Mi, Ki suffixes and bare bytes.
func parseStorageGiB(q resource.Quantity) (uint32, error) {
	s := q.String()
	if v, ok := strings.CutSuffix(s, "Gi"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, parseErr(s, err)
		}
		return uint32(n), nil
	}
	if v, ok := strings.CutSuffix(s, "Mi"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, parseErr(s, err)
		}
		return uint32(divCeilU64(n, 1024)), nil
	}
	if v, ok := strings.CutSuffix(s, "Ki"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, parseErr(s, err)
		}
		return uint32(divCeilU64(n, 1024*1024)), nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, parseErr(s, err)
	}
	return uint32(divCeilU64(n, 1024*1024*1024)), nil
}

func parseGPU(q resource.Quantity) (uint32, error) {
	s := q.String()
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, parseErr(s, err)
	}
	return uint32(n), nil
}

const gpuResourceName v1.ResourceName = "nvidia.com/gpu"

// ResourcesFromPod extracts total resource requests from a Pod by summing
// across all regular containers.
//
// TODO: account for init containers; the correct rule is
// max(max over init containers, sum over regular containers) per dimension.
func ResourcesFromPod(pod *v1.Pod) (Resources, error) {
	var r Resources
	var ephemeral *uint32
	for _, c := range pod.Spec.Containers {
		if c.Resources.Requests == nil {
			continue
		}
		requests := c.Resources.Requests
		if q, ok := requests[v1.ResourceCPU]; ok {
			cpu, err := parseCPU(q)
			if err != nil {
				return Resources{}, err
			}
			r.CPU += cpu
		}
		if q, ok := requests[v1.ResourceMemory]; ok {
			mem, err := parseMemoryMiB(q)
			if err != nil {
				return Resources{}, err
			}
			r.MemoryMiB += mem
		}
		if q, ok := requests[gpuResourceName]; ok {
			gpu, err := parseGPU(q)
			if err != nil {
				return Resources{}, err
			}
			r.GPU += gpu
		}
		if q, ok := requests[v1.ResourceEphemeralStorage]; ok {
			gib, err := parseStorageGiB(q)
			if err != nil {
				return Resources{}, err
			}
			if ephemeral == nil {
				ephemeral = new(uint32)
			}
			*ephemeral += gib
		}
	}
	r.EphemeralStorageGiB = ephemeral
	return r, nil
}

// PodResourcesFromPod builds a PodResources from a Kubernetes Pod,
// extracting its namespace/name and summing resource requests across its
// regular containers (see ResourcesFromPod).
func PodResourcesFromPod(pod *v1.Pod) (PodResources, error) {
	res, err := ResourcesFromPod(pod)
	if err != nil {
		return PodResources{}, err
	}
	return PodResources{
		ID: PodID{
			Namespace: pod.Namespace,
			Name:      pod.Name,
		},
		Resources: res,
	}, nil
}
