// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package neighbor

import (
	"context"
	"io"
	"time"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/errors"
)

// AllocFlowTimeout is the spec.md §4.2 hard limit on an OS-level N-1 flow
// allocation request.
const AllocFlowTimeout = 2 * time.Second

// AllocatedFlow is what a LowerFlowAllocator hands back once an N-1 flow
// has actually been opened.
type AllocatedFlow struct {
	PortID      uint32
	IO          io.ReadWriteCloser
	LowerIPCPID string
	Reliable    bool
}

// LowerFlowAllocator is the boundary toward the OS-level flow allocation
// API, out of scope per spec.md §1 ("the OS-level flow allocation API by
// which N-1 flows are opened"). A real implementation asks the kernel (or
// a sibling IPCP process) to open a flow to peer over suppDIF; this
// package only depends on the narrow contract below.
type LowerFlowAllocator interface {
	AllocateFlow(ctx context.Context, suppDIF string, peer addr.Name) (AllocatedFlow, error)
}

// AllocateFlow implements spec.md §4.2's N-1 flow allocation: it selects a
// lower IPCP via suppDIF, issues the OS-level flow-allocate request bounded
// by AllocFlowTimeout, and installs the resulting NeighFlow on n. The first
// flow installed on a Neighbor automatically becomes its management flow.
func (n *Neighbor) AllocateFlow(ctx context.Context, allocator LowerFlowAllocator, suppDIF string, initiator bool) (*Flow, error) {
	ctx, cancel := context.WithTimeout(ctx, AllocFlowTimeout)
	defer cancel()

	got, err := allocator.AllocateFlow(ctx, suppDIF, n.Name)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindResource, "neighbor: allocate N-1 flow")
	}

	f := NewFlow(n.Name, suppDIF, got.PortID, got.IO, got.Reliable, initiator)
	f.LowerIPCPID = got.LowerIPCPID

	n.AddFlow(f)
	if !n.HasMgmtFlow() {
		if _, err := n.PromoteToMgmt(got.PortID); err != nil {
			// AddFlow just ran under its own lock; this can only fail if
			// the port id collided with one racing concurrently, which
			// callers already avoid by holding the RIB mutex around
			// allocation.
			return nil, err
		}
	}
	return f, nil
}
