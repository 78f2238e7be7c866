// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package addralloc implements the nack-wait address allocator (C9):
// a node proposes a candidate address, waits nack-wait-secs for a
// challenge from the DIF, and claims the address if none arrives.
// Grounded on the teacher's internal/state leader-election style (a
// single-shot timer racing against a competing claim, resolved by
// comparing a tie-breaker) adapted from leadership to address ownership.
package addralloc

import (
	"sync"
	"time"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/policy"
)

// State is the allocator's own lifecycle, independent of the enrollment
// FSM (an address can be (re)allocated long after enrollment completes).
type State int

const (
	StateIdle State = iota
	StateProbing
	StateAssigned
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateAssigned:
		return "assigned"
	default:
		return "idle"
	}
}

const component = "addralloc"

// Allocator runs the nack-wait claim protocol for a single IPCP instance.
type Allocator struct {
	mu sync.Mutex

	reg *policy.Registry

	state     State
	candidate addr.Addr
	tieBreak  uint64
	assigned  addr.Addr
	timer     *time.Timer
}

// New creates an Allocator and declares its policy-registry parameters
// with their spec.md §4.9 defaults (nack-wait-secs: default 2, range
// [1,60]).
func New(reg *policy.Registry) *Allocator {
	reg.DeclareParam(component, "nack-wait-secs", policy.NewIntParam(2, 1, 60))
	return &Allocator{reg: reg, state: StateIdle}
}

// NackWait returns the currently configured nack-wait duration.
func (a *Allocator) NackWait() time.Duration {
	return time.Duration(a.reg.Param(component, "nack-wait-secs").IntVal) * time.Second
}

// Assigned returns the claimed address, or addr.NullAddr if none.
func (a *Allocator) Assigned() addr.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.assigned
}

// State returns the allocator's current lifecycle state.
func (a *Allocator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Propose begins probing candidate, arming the nack-wait timer. onExpire
// is invoked (once, from a separate goroutine) if no conflict is raised
// before the deadline; the caller is expected to call Claim in response.
// tieBreak is this node's collision tie-breaker (e.g. a random nonce or
// the requesting process's uuid-derived value).
func (a *Allocator) Propose(candidate addr.Addr, tieBreak uint64, onExpire func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.state = StateProbing
	a.candidate = candidate
	a.tieBreak = tieBreak
	a.timer = time.AfterFunc(a.NackWait(), onExpire)
}

// Claim finalizes the probing candidate as the assigned address. Errors
// KindProtocolViolation if called outside StateProbing.
func (a *Allocator) Claim() (addr.Addr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateProbing {
		return addr.NullAddr, errors.Errorf(errors.KindProtocolViolation, "addralloc: claim called in state %s", a.state)
	}
	a.assigned = a.candidate
	a.state = StateAssigned
	a.timer = nil
	return a.assigned, nil
}

// HandleConflict processes a challenge from another node also proposing
// candidate. yield reports whether this node must abandon its candidate
// (true) or may keep probing and the challenger must yield instead
// (false). The smaller tie-breaker yields; this makes resolution
// commutative without any coordinator.
func (a *Allocator) HandleConflict(candidate addr.Addr, theirTieBreak uint64) (yield bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateProbing || candidate != a.candidate {
		return false
	}
	if a.tieBreak < theirTieBreak {
		a.abandonLocked()
		return true
	}
	return false
}

// Release relinquishes the assigned (or probing) address, returning the
// allocator to StateIdle. Used when an address conflict is detected
// after assignment by check_for_address_conflicts (spec.md §4.9).
func (a *Allocator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abandonLocked()
	a.assigned = addr.NullAddr
}

func (a *Allocator) abandonLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.state = StateIdle
	a.candidate = addr.NullAddr
}

// CheckConflicts scans a view of address->claimant-count observed on the
// DIF (e.g. via DFT or neighbor gossip) and reports whether this node's
// assigned address is claimed by more than one node, per spec.md §4.9's
// periodic check_for_address_conflicts task.
func (a *Allocator) CheckConflicts(claimants map[addr.Addr]int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateAssigned {
		return false
	}
	return claimants[a.assigned] > 1
}
