// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package neighbor

import (
	"sync"
	"time"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/errors"
)

// Neighbor is a peer IPCP we have one or more NeighFlows to (C4). Most
// neighbors have exactly one flow; a second briefly exists only during
// management-flow promotion (spec.md §4.4).
type Neighbor struct {
	mu sync.Mutex

	Name          addr.Name
	Address       addr.Addr
	Enroller      bool
	flows         map[uint32]*Flow // keyed by port_id
	mgmtPortID    uint32
	hasMgmt       bool
	UnheardSince  time.Time
}

// New creates a Neighbor with no flows yet.
func New(name addr.Name, enroller bool) *Neighbor {
	return &Neighbor{
		Name:     name,
		Enroller: enroller,
		flows:    make(map[uint32]*Flow),
	}
}

// AddFlow attaches a NeighFlow under its port id.
func (n *Neighbor) AddFlow(f *Flow) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.flows[f.PortID] = f
}

// RemoveFlow detaches and returns the flow for portID, if any. If it was
// the management flow, the management-flow pointer is cleared.
func (n *Neighbor) RemoveFlow(portID uint32) *Flow {
	n.mu.Lock()
	defer n.mu.Unlock()
	f := n.flows[portID]
	delete(n.flows, portID)
	if n.hasMgmt && n.mgmtPortID == portID {
		n.hasMgmt = false
	}
	return f
}

// Flow returns the NeighFlow for portID, or nil.
func (n *Neighbor) Flow(portID uint32) *Flow {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.flows[portID]
}

// Flows returns a snapshot of all flows, in no particular order.
func (n *Neighbor) Flows() []*Flow {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Flow, 0, len(n.flows))
	for _, f := range n.flows {
		out = append(out, f)
	}
	return out
}

// HasMgmtFlow reports whether a management flow is designated, per
// spec.md §4.4 has_mgmt_flow().
func (n *Neighbor) HasMgmtFlow() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hasMgmt
}

// MgmtConn returns the management NeighFlow, per
// spec.md §4.4 mgmt_conn(). Errors KindResource if none is designated.
func (n *Neighbor) MgmtConn() (*Flow, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.hasMgmt {
		return nil, errors.New(errors.KindResource, "neighbor has no management flow")
	}
	return n.flows[n.mgmtPortID], nil
}

// PromoteToMgmt designates portID's flow as the management flow, demoting
// any previous one. The previous flow is returned so the caller can tear
// it down once the new one is confirmed ENROLLED (spec.md §4.4 promotion
// sequencing).
func (n *Neighbor) PromoteToMgmt(portID uint32) (previous *Flow, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.flows[portID]; !ok {
		return nil, errors.Errorf(errors.KindInternal, "promote: no flow for port %d", portID)
	}
	if n.hasMgmt && n.mgmtPortID != portID {
		previous = n.flows[n.mgmtPortID]
	}
	n.mgmtPortID = portID
	n.hasMgmt = true
	return previous, nil
}

// Enrolled reports whether the management flow (if any) has completed
// enrollment.
func (n *Neighbor) Enrolled() bool {
	n.mu.Lock()
	mgmtPort, ok := n.mgmtPortID, n.hasMgmt
	flow := n.flows[mgmtPort]
	n.mu.Unlock()
	if !ok || flow == nil {
		return false
	}
	return flow.State() == StateEnrolled
}

// MarkHeard resets the unheard_since watermark (spec.md §4.9 periodic
// task: neighbors unheard from for too long are considered dead).
func (n *Neighbor) MarkHeard(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.UnheardSince = time.Time{}
	_ = now
}

// MarkUnheard sets the unheard_since watermark to now if not already set.
func (n *Neighbor) MarkUnheard(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.UnheardSince.IsZero() {
		n.UnheardSince = now
	}
}

// UnheardFor reports how long the neighbor has been unheard from, or
// zero if it is currently considered alive.
func (n *Neighbor) UnheardFor(now time.Time) time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.UnheardSince.IsZero() {
		return 0
	}
	return now.Sub(n.UnheardSince)
}
