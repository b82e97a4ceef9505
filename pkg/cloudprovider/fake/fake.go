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

// Package fake is a deterministic, in-memory cloudprovider.Provider used to
// test the reconcile engine without a real cloud API: offerings are static
// or sequenced, and create/delete behaviours are queued per-call with a
// fallback default once the queue empties.
package fake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lissahyacinth/growth/pkg/cloudprovider"
	"github.com/lissahyacinth/growth/pkg/offering"
)

var _ cloudprovider.Provider = (*Provider)(nil)

// CreateBehavior is what happens on the next Create call.
type CreateBehavior struct {
	kind  createBehaviorKind
	delay time.Duration
	msg   string
}

type createBehaviorKind int

const (
	CreateSucceed createBehaviorKind = iota
	CreateSucceedButNodeNeverJoins
	CreateSucceedAfterDelay
	CreateOfferingUnavailable
	CreateCreationFailed
	CreateJoinTimeout
	CreateInternalError
)

func Succeed() CreateBehavior                   { return CreateBehavior{kind: CreateSucceed} }
func SucceedButNodeNeverJoins() CreateBehavior   { return CreateBehavior{kind: CreateSucceedButNodeNeverJoins} }
func SucceedAfterDelay(d time.Duration) CreateBehavior {
	return CreateBehavior{kind: CreateSucceedAfterDelay, delay: d}
}
func OfferingUnavailableBehavior() CreateBehavior { return CreateBehavior{kind: CreateOfferingUnavailable} }
func CreationFailedBehavior(msg string) CreateBehavior {
	return CreateBehavior{kind: CreateCreationFailed, msg: msg}
}
func JoinTimeoutBehavior() CreateBehavior { return CreateBehavior{kind: CreateJoinTimeout} }
func InternalErrorBehavior(msg string) CreateBehavior {
	return CreateBehavior{kind: CreateInternalError, msg: msg}
}

// DeleteBehavior is what happens on the next Delete call.
type DeleteBehavior struct {
	kind deleteBehaviorKind
	msg  string
}

type deleteBehaviorKind int

const (
	DeleteSucceed deleteBehaviorKind = iota
	DeleteNoop
	DeleteFail
)

func DeleteSucceedBehavior() DeleteBehavior      { return DeleteBehavior{kind: DeleteSucceed} }
func DeleteNoopBehavior() DeleteBehavior         { return DeleteBehavior{kind: DeleteNoop} }
func DeleteFailBehavior(msg string) DeleteBehavior { return DeleteBehavior{kind: DeleteFail, msg: msg} }

// CreateCall is a logged record of a Create call.
type CreateCall struct {
	Offering     offering.Offering
	ResultNodeID *cloudprovider.NodeID
}

// DeleteCall is a logged record of a Delete call.
type DeleteCall struct {
	NodeID cloudprovider.NodeID
}

type offeringsMode int

const (
	offeringsStatic offeringsMode = iota
	offeringsSequence
)

type state struct {
	mu sync.Mutex

	offeringsMode   offeringsMode
	staticOfferings []offering.Offering
	sequence        [][]offering.Offering

	createBehaviors []CreateBehavior
	deleteBehaviors []DeleteBehavior
	defaultCreate   CreateBehavior
	defaultDelete   DeleteBehavior

	createCalls []CreateCall
	deleteCalls []DeleteCall
}

// Provider is a deterministic in-memory cloudprovider.Provider for tests.
// Its test state is shared across concurrent reconciles and guarded by a
// mutex; the node-id counter is a separate atomic so id issuance never
// blocks on the same lock as behaviour bookkeeping.
type Provider struct {
	st     *state
	nextID *atomic.Uint64
}

// New returns a Provider with an empty static catalogue and a default
// "succeed" behaviour on both Create and Delete.
func New() *Provider {
	return &Provider{
		st: &state{
			defaultCreate: Succeed(),
			defaultDelete: DeleteSucceedBehavior(),
		},
		nextID: new(atomic.Uint64),
	}
}

// WithOfferings configures Offerings to return the same set every call.
func (p *Provider) WithOfferings(offs []offering.Offering) *Provider {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	p.st.offeringsMode = offeringsStatic
	p.st.staticOfferings = offs
	return p
}

// WithOfferingsSequence configures Offerings to return successive elements
// of seq, sticking on the final element once the sequence is exhausted.
func (p *Provider) WithOfferingsSequence(seq [][]offering.Offering) *Provider {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	p.st.offeringsMode = offeringsSequence
	p.st.sequence = seq
	return p
}

// OnNextCreate queues a behaviour to apply to the next Create call.
func (p *Provider) OnNextCreate(b CreateBehavior) *Provider {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	p.st.createBehaviors = append(p.st.createBehaviors, b)
	return p
}

// OnNextDelete queues a behaviour to apply to the next Delete call.
func (p *Provider) OnNextDelete(b DeleteBehavior) *Provider {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	p.st.deleteBehaviors = append(p.st.deleteBehaviors, b)
	return p
}

// WithDefaultCreate sets the behaviour applied once the Create queue is empty.
func (p *Provider) WithDefaultCreate(b CreateBehavior) *Provider {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	p.st.defaultCreate = b
	return p
}

// WithDefaultDelete sets the behaviour applied once the Delete queue is empty.
func (p *Provider) WithDefaultDelete(b DeleteBehavior) *Provider {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	p.st.defaultDelete = b
	return p
}

// CreateCalls returns the audit log of Create calls made so far.
func (p *Provider) CreateCalls() []CreateCall {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	out := make([]CreateCall, len(p.st.createCalls))
	copy(out, p.st.createCalls)
	return out
}

// DeleteCalls returns the audit log of Delete calls made so far.
func (p *Provider) DeleteCalls() []DeleteCall {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	out := make([]DeleteCall, len(p.st.deleteCalls))
	copy(out, p.st.deleteCalls)
	return out
}

func (p *Provider) nextNodeID() cloudprovider.NodeID {
	n := p.nextID.Add(1)
	return cloudprovider.NodeID(fmt.Sprintf("fake-node-%d", n))
}

func (p *Provider) Offerings(context.Context) ([]offering.Offering, error) {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	switch p.st.offeringsMode {
	case offeringsSequence:
		if len(p.st.sequence) > 1 {
			next := p.st.sequence[0]
			p.st.sequence = p.st.sequence[1:]
			return next, nil
		}
		if len(p.st.sequence) == 1 {
			return p.st.sequence[0], nil
		}
		return nil, nil
	default:
		return p.st.staticOfferings, nil
	}
}

func (p *Provider) popCreateBehavior() CreateBehavior {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	if len(p.st.createBehaviors) == 0 {
		return p.st.defaultCreate
	}
	b := p.st.createBehaviors[0]
	p.st.createBehaviors = p.st.createBehaviors[1:]
	return b
}

func (p *Provider) popDeleteBehavior() DeleteBehavior {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	if len(p.st.deleteBehaviors) == 0 {
		return p.st.defaultDelete
	}
	b := p.st.deleteBehaviors[0]
	p.st.deleteBehaviors = p.st.deleteBehaviors[1:]
	return b
}

func (p *Provider) Create(ctx context.Context, off offering.Offering, _ cloudprovider.InstanceConfig) (cloudprovider.NodeID, error) {
	behavior := p.popCreateBehavior()

	var id cloudprovider.NodeID
	var err error
	switch behavior.kind {
	case CreateSucceed, CreateSucceedButNodeNeverJoins:
		id = p.nextNodeID()
	case CreateSucceedAfterDelay:
		select {
		case <-time.After(behavior.delay):
		case <-ctx.Done():
			err = ctx.Err()
			break
		}
		if err == nil {
			id = p.nextNodeID()
		}
	case CreateOfferingUnavailable:
		err = cloudprovider.NewOfferingUnavailable(fmt.Sprintf("%s not available", off.InstanceType))
	case CreateCreationFailed:
		err = cloudprovider.NewCreationFailed(behavior.msg)
	case CreateJoinTimeout:
		err = cloudprovider.NewJoinTimeout(nil)
	case CreateInternalError:
		err = cloudprovider.NewInternal(fmt.Errorf("%s", behavior.msg))
	}

	p.st.mu.Lock()
	call := CreateCall{Offering: off}
	if err == nil {
		idCopy := id
		call.ResultNodeID = &idCopy
	}
	p.st.createCalls = append(p.st.createCalls, call)
	p.st.mu.Unlock()

	return id, err
}

func (p *Provider) Delete(_ context.Context, id cloudprovider.NodeID) error {
	behavior := p.popDeleteBehavior()

	p.st.mu.Lock()
	p.st.deleteCalls = append(p.st.deleteCalls, DeleteCall{NodeID: id})
	p.st.mu.Unlock()

	switch behavior.kind {
	case DeleteSucceed, DeleteNoop:
		return nil
	case DeleteFail:
		return cloudprovider.NewCreationFailed(behavior.msg)
	default:
		return nil
	}
}
