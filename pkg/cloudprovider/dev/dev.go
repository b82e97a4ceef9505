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

// Package dev is a development/demo cloudprovider.Provider that posts
// capacity-only Node objects against a real API server (or a local KWOK
// install) rather than talking to a cloud API. It exists so the reconcile
// engine and optimiser can be exercised end to end without cloud
// credentials: offerings are a fixed, fictional catalogue and Create
// fabricates a Node with the matching capacity/allocatable fields.
package dev

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/lissahyacinth/growth/pkg/cloudprovider"
	"github.com/lissahyacinth/growth/pkg/offering"
)

func off(name string, cpu, memoryMiB, diskGiB uint32, costPerHour float64) offering.Offering {
	disk := diskGiB
	return offering.Offering{
		InstanceType: offering.InstanceType(name),
		Resources: offering.Resources{
			CPU:                 cpu,
			MemoryMiB:           memoryMiB,
			EphemeralStorageGiB: &disk,
		},
		CostPerHour: costPerHour,
	}
}

func gpuOff(name string, cpu, memoryMiB, diskGiB, gpu uint32, model offering.GpuModel, costPerHour float64) offering.Offering {
	o := off(name, cpu, memoryMiB, diskGiB, costPerHour)
	o.Resources.GPU = gpu
	o.Resources.GPUModel = &model
	return o
}

// catalogue is a fixed, fictional instance-type list spanning shared x86,
// shared AMD, ARM, dedicated x86, and GPU families - broad enough to
// exercise every dimension the optimiser constrains on.
var catalogue = []offering.Offering{
	// CX - shared x86
	off("cx22", 2, 4_096, 40, 0.0066),
	off("cx32", 4, 8_192, 80, 0.0106),
	off("cx42", 8, 16_384, 160, 0.0211),
	off("cx52", 16, 32_768, 320, 0.0423),

	// CPX - shared AMD
	off("cpx12", 2, 2_048, 40, 0.0072),
	off("cpx22", 3, 4_096, 80, 0.0129),
	off("cpx32", 4, 8_192, 160, 0.0248),
	off("cpx42", 8, 16_384, 256, 0.0496),
	off("cpx52", 16, 32_768, 360, 0.0991),

	// CAX - ARM (Ampere)
	off("cax11", 2, 4_096, 40, 0.0058),
	off("cax21", 4, 8_192, 80, 0.0106),
	off("cax31", 8, 16_384, 160, 0.0211),
	off("cax41", 16, 32_768, 320, 0.0423),

	// CCX - dedicated x86
	off("ccx13", 2, 8_192, 80, 0.0159),
	off("ccx23", 4, 16_384, 160, 0.0317),
	off("ccx33", 8, 32_768, 240, 0.0635),
	off("ccx43", 16, 65_536, 360, 0.1270),
	off("ccx53", 32, 131_072, 600, 0.2540),
	off("ccx63", 48, 196_608, 960, 0.3810),

	// GPU - fictional, for exercising GPU-model-aware scheduling.
	gpuOff("gpu-a100-1", 12, 131_072, 200, 1, offering.GpuA100, 1.80),
	gpuOff("gpu-a100-4", 48, 524_288, 800, 4, offering.GpuA100, 6.90),
}

var _ cloudprovider.Provider = (*Provider)(nil)

// Provider is the development cloud provider. It never talks to a real
// cloud API: Create posts a Node carrying the offering's resources as
// capacity/allocatable, labelled so it's recognisable as synthetic.
type Provider struct {
	client client.Client
}

// New returns a Provider that creates Node objects through c.
func New(c client.Client) *Provider {
	return &Provider{client: c}
}

func (p *Provider) Offerings(context.Context) ([]offering.Offering, error) {
	return catalogue, nil
}

func toResourceList(r offering.Resources) corev1.ResourceList {
	list := corev1.ResourceList{
		corev1.ResourceCPU:    *resource.NewQuantity(int64(r.CPU), resource.DecimalSI),
		corev1.ResourceMemory: *resource.NewQuantity(int64(r.MemoryMiB)*1024*1024, resource.BinarySI),
	}
	if r.EphemeralStorageGiB != nil {
		list[corev1.ResourceEphemeralStorage] = *resource.NewQuantity(int64(*r.EphemeralStorageGiB)*1024*1024*1024, resource.BinarySI)
	}
	if r.GPU > 0 {
		list[corev1.ResourceName("nvidia.com/gpu")] = *resource.NewQuantity(int64(r.GPU), resource.DecimalSI)
	}
	return list
}

func (p *Provider) Create(ctx context.Context, off offering.Offering, _ cloudprovider.InstanceConfig) (cloudprovider.NodeID, error) {
	name := fmt.Sprintf("growth-dev-%s", uuid.New().String())
	capacity := toResourceList(off.Resources)

	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				"node.growth.dev/provider":     "dev",
				"node.kubernetes.io/instance-type": string(off.InstanceType),
				"app.kubernetes.io/managed-by": "growth",
			},
			Annotations: map[string]string{
				"growth.dev/fake-node": "true",
			},
		},
	}
	if err := p.client.Create(ctx, node); err != nil {
		return "", cloudprovider.NewCreationFailed(err.Error())
	}

	node.Status.Capacity = capacity
	node.Status.Allocatable = capacity
	node.Status.Conditions = []corev1.NodeCondition{{
		Type:   corev1.NodeReady,
		Status: corev1.ConditionTrue,
	}}
	if err := p.client.Status().Update(ctx, node); err != nil {
		_ = p.client.Delete(ctx, node)
		return "", cloudprovider.NewJoinTimeout(nil)
	}

	return cloudprovider.NodeID(name), nil
}

func (p *Provider) Delete(ctx context.Context, id cloudprovider.NodeID) error {
	node := &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: string(id)}}
	if err := p.client.Delete(ctx, node); err != nil {
		return cloudprovider.NewInternal(err)
	}
	return nil
}
