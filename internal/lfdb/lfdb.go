// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package lfdb implements the Lower Flow Database (C6): the replicated
// link-state table that feeds the shortest-path engine. Grounded on the
// teacher's internal/state replication pattern (versioned overwrite of a
// keyed entry), adapted from an opaque byte blob to individual LowerFlow
// entries so each one can be aged and split-horizon rebroadcast
// independently.
package lfdb

import (
	"sync"

	"rina.dev/ipcpd/internal/addr"
)

// LinkState is the reachability state of a LowerFlow entry.
type LinkState int

const (
	StateDown LinkState = iota
	StateUp
)

func (s LinkState) String() string {
	if s == StateUp {
		return "up"
	}
	return "down"
}

// LowerFlow is one (local, remote) link-state advertisement.
type LowerFlow struct {
	Local   addr.Addr
	Remote  addr.Addr
	Cost    uint32
	Seqnum  uint64
	State   LinkState
	Age     uint32 // seconds since last refresh
}

// LowerFlowList is the wire form carried on M_CREATE/M_DELETE of
// /mgmt/routing/lfdb.
type LowerFlowList struct {
	Entries []LowerFlow
}

// DB is the Lower Flow Database. Mutations happen under the owning RIB's
// mutex; DB itself also takes its own lock so it can be unit tested and
// reused outside the RIB in isolation.
type DB struct {
	mu      sync.Mutex
	myAddr  addr.Addr
	entries map[addr.Addr]map[addr.Addr]LowerFlow
}

// New creates an empty LFDB for the IPCP at myAddr. myAddr gates the aging
// exemption in IncrAge: entries this IPCP itself owns are never aged out
// locally, since the owner re-announces them implicitly (spec.md §3).
func New(myAddr addr.Addr) *DB {
	return &DB{
		myAddr:  myAddr,
		entries: make(map[addr.Addr]map[addr.Addr]LowerFlow),
	}
}

// Add applies overwrite-with-higher-seqnum semantics: an unknown key is
// inserted with age reset to 0; a known key with a strictly higher seqnum
// replaces the entry, age reset to 0; otherwise the call is a no-op.
// Returns whether a mutation occurred.
func (d *DB) Add(lf LowerFlow) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	remotes := d.entries[lf.Local]
	if remotes == nil {
		remotes = make(map[addr.Addr]LowerFlow)
		d.entries[lf.Local] = remotes
	}

	existing, ok := remotes[lf.Remote]
	if ok && lf.Seqnum <= existing.Seqnum {
		return false
	}

	lf.Age = 0
	remotes[lf.Remote] = lf
	return true
}

// Del removes the (local, remote) entry if present, returning whether it
// existed.
func (d *DB) Del(local, remote addr.Addr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	remotes, ok := d.entries[local]
	if !ok {
		return false
	}
	if _, ok := remotes[remote]; !ok {
		return false
	}
	delete(remotes, remote)
	if len(remotes) == 0 {
		delete(d.entries, local)
	}
	return true
}

// Get returns the (local, remote) entry, if present.
func (d *DB) Get(local, remote addr.Addr) (LowerFlow, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	remotes, ok := d.entries[local]
	if !ok {
		return LowerFlow{}, false
	}
	lf, ok := remotes[remote]
	return lf, ok
}

// HasReverse reports whether a LowerFlow(remote, local, cost) exists with
// the given cost and state up — the precondition the shortest-path engine
// requires before trusting a forward edge (spec.md §3, §4.5).
func (d *DB) HasReverse(local, remote addr.Addr, cost uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	remotes, ok := d.entries[remote]
	if !ok {
		return false
	}
	rev, ok := remotes[local]
	return ok && rev.Cost == cost && rev.State == StateUp
}

// Snapshot returns every entry currently stored, in no particular order.
func (d *DB) Snapshot() []LowerFlow {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []LowerFlow
	for _, remotes := range d.entries {
		for _, lf := range remotes {
			out = append(out, lf)
		}
	}
	return out
}

// IncrAge increments the age of every entry whose local address isn't
// myAddr by intervalSecs, then discards any entry whose age exceeds
// maxAgeSecs. Returns the discarded entries so the caller can decide
// whether to rerun the shortest-path engine and push a new forwarding
// table (spec.md §4.4).
func (d *DB) IncrAge(intervalSecs, maxAgeSecs uint32) []LowerFlow {
	d.mu.Lock()
	defer d.mu.Unlock()

	var discarded []LowerFlow
	for local, remotes := range d.entries {
		if local == d.myAddr {
			continue
		}
		for remote, lf := range remotes {
			lf.Age += intervalSecs
			if lf.Age > maxAgeSecs {
				discarded = append(discarded, lf)
				delete(remotes, remote)
				continue
			}
			remotes[remote] = lf
		}
		if len(remotes) == 0 {
			delete(d.entries, local)
		}
	}
	return discarded
}
