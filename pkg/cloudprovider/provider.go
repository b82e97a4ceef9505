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

// Package cloudprovider defines the contract the reconcile engine consumes
// to turn an Offering into a running node: list the current catalogue,
// create a node of a given offering, and tear one down. Concrete adapters
// (a deterministic fake, a development/demo provider) live in sibling
// packages and are chosen at construction time — there is no
// open/dynamic provider registry.
package cloudprovider

import (
	"context"
	"fmt"

	"github.com/lissahyacinth/growth/pkg/offering"
)

// NodeID is the provider-assigned identifier for a created node.
type NodeID string

// InstanceConfig carries provider-specific bootstrap configuration for a
// Create call. Empty today; reserved for the concrete adapters this
// contract's implementations are expected to grow (bootstrap scripts,
// subnet/security-group selection, and the like).
type InstanceConfig struct{}

// ProviderError is the closed taxonomy of ways a provider call can fail.
type ProviderError struct {
	Kind    ProviderErrorKind
	Message string
	NodeID  *NodeID
	Field   string
	Cause   error
}

// ProviderErrorKind discriminates ProviderError variants.
type ProviderErrorKind int

const (
	// CreationFailed - the provider couldn't create the resource at all:
	// bad permissions, quota exceeded, invalid config, etc.
	CreationFailed ProviderErrorKind = iota
	// JoinTimeout - the resource was created but the node never joined the
	// cluster. The provider should attempt cleanup before returning this.
	JoinTimeout
	// OfferingUnavailable - the requested offering isn't available (sold
	// out, wrong region, etc).
	OfferingUnavailable
	// MissingConfig - a required config field is missing for this provider.
	MissingConfig
	// Internal - an underlying API/network error.
	Internal
)

func (k ProviderErrorKind) String() string {
	switch k {
	case CreationFailed:
		return "creation_failed"
	case JoinTimeout:
		return "join_timeout"
	case OfferingUnavailable:
		return "offering_unavailable"
	case MissingConfig:
		return "missing_config"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

func (e *ProviderError) Error() string {
	switch e.Kind {
	case CreationFailed:
		return fmt.Sprintf("creation failed: %s", e.Message)
	case JoinTimeout:
		if e.NodeID != nil {
			return fmt.Sprintf("node failed to join cluster within timeout: %s", *e.NodeID)
		}
		return "node failed to join cluster within timeout"
	case OfferingUnavailable:
		return fmt.Sprintf("offering unavailable: %s", e.Message)
	case MissingConfig:
		return fmt.Sprintf("missing required config: %s", e.Field)
	case Internal:
		return fmt.Sprintf("internal provider error: %v", e.Cause)
	default:
		return "unknown provider error"
	}
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func NewCreationFailed(message string) *ProviderError {
	return &ProviderError{Kind: CreationFailed, Message: message}
}

func NewJoinTimeout(nodeID *NodeID) *ProviderError {
	return &ProviderError{Kind: JoinTimeout, NodeID: nodeID}
}

func NewOfferingUnavailable(name string) *ProviderError {
	return &ProviderError{Kind: OfferingUnavailable, Message: name}
}

func NewMissingConfig(field string) *ProviderError {
	return &ProviderError{Kind: MissingConfig, Field: field}
}

func NewInternal(cause error) *ProviderError {
	return &ProviderError{Kind: Internal, Cause: cause}
}

// Provider is the contract the reconcile engine drives. Implementations
// must either eventually cause a created node to join the cluster, or fail
// loudly - there is no silent partial success.
type Provider interface {
	// Offerings returns the current catalogue. It may change between
	// calls; callers must re-fetch per reconcile rather than cache it.
	Offerings(ctx context.Context) ([]offering.Offering, error)
	// Create asynchronously requests a node of the given offering.
	Create(ctx context.Context, off offering.Offering, config InstanceConfig) (NodeID, error)
	// Delete decommissions a provisioned node.
	Delete(ctx context.Context, id NodeID) error
}
