// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package routing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/kernelrt"
	"rina.dev/ipcpd/internal/lfdb"
)

func biLink(db *lfdb.DB, a, b addr.Addr, cost uint32, seq uint64) {
	db.Add(lfdb.LowerFlow{Local: a, Remote: b, Cost: cost, Seqnum: seq, State: lfdb.StateUp})
	db.Add(lfdb.LowerFlow{Local: b, Remote: a, Cost: cost, Seqnum: seq, State: lfdb.StateUp})
}

// TestScenario_S2ThreeNodeLinear covers spec.md §8 scenario S2.
func TestScenario_S2ThreeNodeLinear(t *testing.T) {
	db := lfdb.New(1) // this node is A
	biLink(db, 1, 2, 1, 1)
	biLink(db, 2, 3, 1, 1)

	g := BuildGraph(db)
	nextHops := ShortestPaths(1, g)
	require.Equal(t, addr.Addr(2), nextHops[3], "A's next hop to C must be B")

	// From C's perspective.
	nextHopsFromC := ShortestPaths(3, g)
	require.Equal(t, addr.Addr(2), nextHopsFromC[1], "C's next hop to A must be B")

	// Remove the A-B lower flow and rerun: A has no route to C.
	db.Del(1, 2)
	db.Del(2, 1)
	g = BuildGraph(db)
	nextHops = ShortestPaths(1, g)
	_, ok := nextHops[3]
	require.False(t, ok, "A must have no route to C once the A-B link is gone")
}

// TestScenario_S4AsymmetricEdgeExcluded covers spec.md §8 scenario S4.
func TestScenario_S4AsymmetricEdgeExcluded(t *testing.T) {
	db := lfdb.New(1)
	db.Add(lfdb.LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 1, State: lfdb.StateUp})
	// No reverse (2, 1) entry.

	g := BuildGraph(db)
	nextHops := ShortestPaths(1, g)
	_, ok := nextHops[2]
	require.False(t, ok, "asymmetric advertisement must not be usable for routing")
}

func TestShortestPaths_NextHopIsDirectNeighbor(t *testing.T) {
	db := lfdb.New(1)
	biLink(db, 1, 2, 1, 1)
	biLink(db, 2, 3, 1, 1)
	biLink(db, 1, 4, 10, 1)
	biLink(db, 4, 3, 1, 1)

	g := BuildGraph(db)
	nextHops := ShortestPaths(1, g)
	// Cheapest path to 3 is via 2 (cost 2) not via 4 (cost 11).
	require.Equal(t, addr.Addr(2), nextHops[3])

	// Invariant: next_hops[x] is always a direct neighbor of myaddr.
	for dest, next := range nextHops {
		_, hasDirect := g[1][next]
		require.True(t, hasDirect, "next hop %v for dest %v must be a direct neighbor", next, dest)
	}
}

type fakeResolver map[addr.Addr]uint32

func (f fakeResolver) PortForNextHop(next addr.Addr) (uint32, bool) {
	p, ok := f[next]
	return p, ok
}

func TestPDUFTSync(t *testing.T) {
	prog := kernelrt.NewRecording()
	resolver := fakeResolver{2: 7}
	nextHops := map[addr.Addr]addr.Addr{3: 2, 9: 5 /* no management flow */}

	err := PDUFTSync(prog, nextHops, resolver, nil)
	require.NoError(t, err)

	entries := prog.Entries()
	require.Equal(t, uint32(7), entries[3])
	_, ok := entries[9]
	require.False(t, ok, "destination with no management flow must be skipped")
	require.Equal(t, 1, prog.Flushes())
}
