// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flowalloc implements the flow allocator (C10): the per-flow
// fa_req/fa_resp/flow_deallocated FSM and the DFT-backed destination
// resolution that precedes it. Grounded on the teacher's internal/state
// replica-set bookkeeping (a mutex-guarded map keyed by an opaque id,
// with explicit create/confirm/remove lifecycle methods).
package flowalloc

import (
	"sync"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/policy"
)

const component = "flowalloc"

// State is a flow's allocation lifecycle state.
type State int

const (
	StateNull State = iota
	StatePending
	StateAllocated
	StateDeallocated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAllocated:
		return "allocated"
	case StateDeallocated:
		return "deallocated"
	default:
		return "null"
	}
}

// QoSParams are the per-flow tunables declared in the policy registry
// (spec.md §4.10), snapshotted onto the Flow at creation time so a later
// policy_param_mod does not change the parameters of flows already in
// flight.
type QoSParams struct {
	ForceFlowControl bool
	MaxCWQLen        int64
	InitialCredit    int64
	InitialA         int64
	InitialRtxTimeout int64
	MaxRtxQLen       int64
}

// Flow is one N-flow's allocation state (not to be confused with a
// NeighFlow, which is an N-1 flow to a neighbor).
type Flow struct {
	PortID      uint32
	SrcApplName string
	DstApplName string
	DstAddr     addr.Addr
	State       State
	QoS         QoSParams
}

// Resolver resolves an application name to a DIF address, backed in
// practice by the directory forwarding table (C8).
type Resolver interface {
	Resolve(applName string) addr.Addr
}

// Allocator tracks all locally originated and terminated N-flows.
type Allocator struct {
	mu sync.Mutex

	reg      *policy.Registry
	resolver Resolver
	flows    map[uint32]*Flow
	nextPort uint32
}

// New creates an Allocator and declares its policy-registry parameters
// with spec.md §4.10's defaults.
func New(reg *policy.Registry, resolver Resolver) *Allocator {
	reg.DeclareParam(component, "force-flow-control", policy.NewBoolParam(false))
	reg.DeclareParam(component, "max-cwq-len", policy.NewIntParam(128, 1, 1<<20))
	reg.DeclareParam(component, "initial-credit", policy.NewIntParam(256, 1, 1<<20))
	reg.DeclareParam(component, "initial-a", policy.NewIntParam(0, 0, 60000))
	reg.DeclareParam(component, "initial-rtx-timeout", policy.NewIntParam(1000, 1, 600000))
	reg.DeclareParam(component, "max-rtxq-len", policy.NewIntParam(256, 1, 1<<20))
	return &Allocator{reg: reg, resolver: resolver, flows: make(map[uint32]*Flow), nextPort: 1}
}

func (a *Allocator) currentQoS() QoSParams {
	return QoSParams{
		ForceFlowControl:  a.reg.Param(component, "force-flow-control").BoolVal,
		MaxCWQLen:         a.reg.Param(component, "max-cwq-len").IntVal,
		InitialCredit:     a.reg.Param(component, "initial-credit").IntVal,
		InitialA:          a.reg.Param(component, "initial-a").IntVal,
		InitialRtxTimeout: a.reg.Param(component, "initial-rtx-timeout").IntVal,
		MaxRtxQLen:        a.reg.Param(component, "max-rtxq-len").IntVal,
	}
}

// Request implements fa_req: resolve dstApplName via the DFT and create
// a pending Flow. Errors KindResource if the destination is unknown.
func (a *Allocator) Request(srcApplName, dstApplName string) (*Flow, error) {
	dstAddr := a.resolver.Resolve(dstApplName)
	if dstAddr == addr.NullAddr {
		return nil, errors.Errorf(errors.KindResource, "flowalloc: %q not found in directory", dstApplName)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	portID := a.nextPort
	a.nextPort++
	f := &Flow{
		PortID:      portID,
		SrcApplName: srcApplName,
		DstApplName: dstApplName,
		DstAddr:     dstAddr,
		State:       StatePending,
		QoS:         a.currentQoS(),
	}
	a.flows[portID] = f
	return f, nil
}

// Accept implements a positive fa_resp: a pending flow becomes allocated.
func (a *Allocator) Accept(portID uint32) error {
	return a.transition(portID, StatePending, StateAllocated)
}

// Reject implements a negative fa_resp: a pending flow is torn down
// without ever reaching StateAllocated.
func (a *Allocator) Reject(portID uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.flows[portID]
	if !ok || f.State != StatePending {
		return errors.Errorf(errors.KindProtocolViolation, "flowalloc: reject on port %d not pending", portID)
	}
	delete(a.flows, portID)
	return nil
}

// Deallocate implements flow_deallocated: an allocated flow is removed.
func (a *Allocator) Deallocate(portID uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.flows[portID]
	if !ok {
		return errors.Errorf(errors.KindProtocolViolation, "flowalloc: deallocate on unknown port %d", portID)
	}
	f.State = StateDeallocated
	delete(a.flows, portID)
	return nil
}

// AcceptIncoming implements the destination side of fa_req: a peer IPCP
// resolved dstApplName to this node and is requesting a flow to it. The
// Flow is created directly in StateAllocated since there is no local
// application decision to wait on here (spec.md §4.8 leaves admission
// control to the registered application, out of scope for this daemon).
func (a *Allocator) AcceptIncoming(srcApplName, dstApplName string, dstAddr addr.Addr) *Flow {
	a.mu.Lock()
	defer a.mu.Unlock()
	portID := a.nextPort
	a.nextPort++
	f := &Flow{
		PortID:      portID,
		SrcApplName: srcApplName,
		DstApplName: dstApplName,
		DstAddr:     dstAddr,
		State:       StateAllocated,
		QoS:         a.currentQoS(),
	}
	a.flows[portID] = f
	return f
}

// Get returns the Flow for portID, if still tracked.
func (a *Allocator) Get(portID uint32) (*Flow, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.flows[portID]
	return f, ok
}

func (a *Allocator) transition(portID uint32, from, to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.flows[portID]
	if !ok || f.State != from {
		return errors.Errorf(errors.KindProtocolViolation, "flowalloc: port %d not in state %s", portID, from)
	}
	f.State = to
	return nil
}
