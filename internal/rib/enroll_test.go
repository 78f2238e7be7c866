// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/lfdb"
	"rina.dev/ipcpd/internal/neighbor"
)

// pipeAllocator is a LowerFlowAllocator that always hands back the same
// preset AllocatedFlow, wrapping a net.Pipe() half so EnrollNeighbor can
// run its handshake without a real N-1 transport.
type pipeAllocator struct {
	flow neighbor.AllocatedFlow
}

func (p pipeAllocator) AllocateFlow(ctx context.Context, suppDIF string, peer addr.Name) (neighbor.AllocatedFlow, error) {
	return p.flow, nil
}

func waitEnrolled(t *testing.T, r *RIB, peer addr.Name) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		n, ok := r.neighbors[peer.String()]
		r.mu.Unlock()
		return ok && n.Enrolled()
	}, 2*time.Second, 5*time.Millisecond, "neighbor %s never reached ENROLLED", peer.String())
}

// TestScenario_S1TwoNodeEnrollmentOverRIB drives the full RIB-level S1
// handshake (spec.md §8) over an in-process net.Pipe N-1 flow and checks
// the invariant onEnrolledFor is supposed to establish (spec.md §4.3, §4.4,
// §8): both sides commit a LowerFlow for their own direction, end up with
// the same two-entry LFDB {(1,2),(2,1)} at cost 1 seqnum 1, and compute
// the peer as their own next hop.
func TestScenario_S1TwoNodeEnrollmentOverRIB(t *testing.T) {
	nameA := addr.Name{ProcessName: "nodeA"}
	nameB := addr.Name{ProcessName: "nodeB"}

	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	rA := New(Config{MyName: nameA, MyAddr: 1, EnrollerEnabled: true}, nil, nil)
	t.Cleanup(func() { rA.Close() })

	rB := New(Config{
		MyName:    nameB,
		Allocator: pipeAllocator{flow: neighbor.AllocatedFlow{PortID: 1, IO: client, Reliable: true}},
	}, nil, nil)
	t.Cleanup(func() { rB.Close() })

	rA.AcceptNeighborFlow(nameB, "shim-dif", neighbor.AllocatedFlow{PortID: 1, IO: server, Reliable: true})

	done := make(chan error, 1)
	go func() { done <- rB.EnrollNeighbor(nameA, "shim-dif", true) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("enrollment over RIB timed out")
	}

	waitEnrolled(t, rA, nameB)

	require.Equal(t, addr.Addr(1), rA.MyAddr())
	require.Equal(t, addr.Addr(2), rB.MyAddr())

	want := map[addr.Addr]map[addr.Addr]lfdb.LowerFlow{
		1: {2: lfdb.LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 1, State: lfdb.StateUp}},
		2: {1: lfdb.LowerFlow{Local: 2, Remote: 1, Cost: 1, Seqnum: 1, State: lfdb.StateUp}},
	}
	for _, r := range []*RIB{rA, rB} {
		require.Eventually(t, func() bool {
			entries := r.lfdb.Snapshot()
			if len(entries) != 2 {
				return false
			}
			for _, e := range entries {
				e.Age = 0
				if want[e.Local][e.Remote] != e {
					return false
				}
			}
			return true
		}, 2*time.Second, 5*time.Millisecond, "RIB never converged to the {(1,2),(2,1)} LFDB invariant")
	}

	require.Eventually(t, func() bool {
		rA.mu.Lock()
		defer rA.mu.Unlock()
		next, ok := rA.nextHops[addr.Addr(2)]
		return ok && next == addr.Addr(2)
	}, 2*time.Second, 5*time.Millisecond, "rA never computed nodeB as its own next hop")

	require.Eventually(t, func() bool {
		rB.mu.Lock()
		defer rB.mu.Unlock()
		next, ok := rB.nextHops[addr.Addr(1)]
		return ok && next == addr.Addr(1)
	}, 2*time.Second, 5*time.Millisecond, "rB never computed nodeA as its own next hop")
}
