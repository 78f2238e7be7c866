// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package routing implements the shortest-path engine (C7): building a
// graph from the Lower Flow Database, running Dijkstra from this IPCP's
// own address, and translating the result into a next-hop table. No
// teacher analogue exists for this (flywall doesn't compute routes); this
// is a direct, textbook rendering of spec.md §4.5.
package routing

import (
	"container/heap"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/lfdb"
)

// Graph is an adjacency list: Local -> remote addr -> cost, containing only
// edges for which the reverse edge exists with an identical cost.
type Graph map[addr.Addr]map[addr.Addr]uint32

// BuildGraph scans db and keeps only edges (u, v, cost) for which the
// reverse (v, u, cost) also exists with an identical cost and both sides
// are up. Asymmetric or cost-mismatched advertisements are dropped,
// defending the shortest-path engine against partial updates (spec.md
// §4.5, scenario S4).
func BuildGraph(db *lfdb.DB) Graph {
	entries := db.Snapshot()
	g := make(Graph)

	for _, lf := range entries {
		if lf.State != lfdb.StateUp {
			continue
		}
		if !db.HasReverse(lf.Local, lf.Remote, lf.Cost) {
			continue
		}
		if g[lf.Local] == nil {
			g[lf.Local] = make(map[addr.Addr]uint32)
		}
		g[lf.Local][lf.Remote] = lf.Cost
	}
	return g
}

// heapItem is one entry in the Dijkstra priority queue.
type heapItem struct {
	node addr.Addr
	dist uint64
}

type priorityQueue []heapItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(heapItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPaths runs Dijkstra from myAddr over g and returns, for every
// reachable destination, the next hop directly reachable from myAddr on
// the chosen path. Tie-breaking among equal-cost paths is unspecified.
func ShortestPaths(myAddr addr.Addr, g Graph) map[addr.Addr]addr.Addr {
	dist := map[addr.Addr]uint64{myAddr: 0}
	// firstHop[v] is the neighbor of myAddr that begins the shortest path to v.
	firstHop := map[addr.Addr]addr.Addr{}
	visited := map[addr.Addr]bool{}

	pq := &priorityQueue{{node: myAddr, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(heapItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		for next, cost := range g[cur.node] {
			nd := cur.dist + uint64(cost)
			if d, ok := dist[next]; ok && d <= nd {
				continue
			}
			dist[next] = nd
			if cur.node == myAddr {
				firstHop[next] = next
			} else {
				firstHop[next] = firstHop[cur.node]
			}
			heap.Push(pq, heapItem{node: next, dist: nd})
		}
	}

	delete(firstHop, myAddr)
	return firstHop
}
