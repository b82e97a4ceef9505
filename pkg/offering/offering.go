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

// Package offering holds the domain model shared by the optimiser, the
// cluster-state assembly and the cloud-provider contract: purchasable node
// types (Offering), pod identity (PodID) and the resource bundle both are
// measured in (Resources).
package offering

import "fmt"

// Region is a provider-specific region identifier. A distinct type from
// Zone and InstanceType so the three can't be accidentally swapped when
// threading strings through provider code.
type Region string

// Zone is a provider-specific zone identifier, scoped within a Region.
type Zone string

// Location is where an Offering is purchasable. Not every provider has
// zones; Zone is left empty when the provider doesn't distinguish them.
type Location struct {
	Region Region
	Zone   Zone
}

// InstanceType is the provider's own identifier for a purchasable node
// type, e.g. "cx22" or "m5.large". Opaque to every caller except the
// provider adapter that issued it.
type InstanceType string

// GpuModel is a closed enumeration of known GPU models, with an escape
// hatch for anything the catalogue doesn't name explicitly.
type GpuModel struct {
	known  knownGpuModel
	custom string
}

type knownGpuModel int

const (
	gpuModelUnset knownGpuModel = iota
	gpuModelT4
	gpuModelA100
	gpuModelL4
	gpuModelH100
	gpuModelA10G
	gpuModelOther
)

var (
	GpuT4   = GpuModel{known: gpuModelT4}
	GpuA100 = GpuModel{known: gpuModelA100}
	GpuL4   = GpuModel{known: gpuModelL4}
	GpuH100 = GpuModel{known: gpuModelH100}
	GpuA10G = GpuModel{known: gpuModelA10G}
)

// OtherGpu builds the string-escape-hatch variant of GpuModel for a model
// not in the known enumeration.
func OtherGpu(name string) GpuModel {
	return GpuModel{known: gpuModelOther, custom: name}
}

func (g GpuModel) String() string {
	switch g.known {
	case gpuModelT4:
		return "T4"
	case gpuModelA100:
		return "A100"
	case gpuModelL4:
		return "L4"
	case gpuModelH100:
		return "H100"
	case gpuModelA10G:
		return "A10G"
	case gpuModelOther:
		return g.custom
	default:
		return ""
	}
}

// Equal reports whether two GpuModel values name the same model.
func (g GpuModel) Equal(o GpuModel) bool {
	return g.known == o.known && (g.known != gpuModelOther || g.custom == o.custom)
}

// Resources is a bundle of integer capacity dimensions: the unit both an
// Offering's capacity and a pod's demand are expressed in.
type Resources struct {
	// CPU is a whole vCPU count.
	CPU uint32
	// MemoryMiB is memory in mebibytes, not gibibytes, to avoid rounding
	// small instances (e.g. 512Mi) up to a whole GiB.
	MemoryMiB uint32
	// EphemeralStorageGiB is included ephemeral storage, when the
	// provider/demand tracks it separately.
	EphemeralStorageGiB *uint32
	// GPU is a GPU count; zero for non-GPU instances.
	GPU uint32
	// GPUModel identifies the GPU model when GPU > 0.
	GPUModel *GpuModel
}

// Offering is an immutable purchasable node type.
type Offering struct {
	InstanceType InstanceType
	Resources    Resources
	// CostPerHour is the hourly cost in USD.
	CostPerHour float64
}

// Satisfies reports whether this Offering has enough capacity to host a
// single demand of the given Resources. Per dimension: CPU and Memory must
// meet or exceed the demand; GPU count must meet or exceed; the GPU model
// must match when the demand names one; ephemeral storage must meet or
// exceed when the demand requires it.
func (o Offering) Satisfies(need Resources) bool {
	if o.Resources.CPU < need.CPU || o.Resources.MemoryMiB < need.MemoryMiB || o.Resources.GPU < need.GPU {
		return false
	}
	if need.GPUModel != nil {
		if o.Resources.GPUModel == nil || !o.Resources.GPUModel.Equal(*need.GPUModel) {
			return false
		}
	}
	if need.EphemeralStorageGiB != nil {
		if o.Resources.EphemeralStorageGiB == nil || *o.Resources.EphemeralStorageGiB < *need.EphemeralStorageGiB {
			return false
		}
	}
	return true
}

// PodID is a pod's stable identity: (namespace, name).
type PodID struct {
	Namespace string
	Name      string
}

func (p PodID) String() string {
	return fmt.Sprintf("%s/%s", p.Namespace, p.Name)
}

// PodResources is a demand: a PodID plus its summed resource requests.
type PodResources struct {
	ID        PodID
	Resources Resources
}
