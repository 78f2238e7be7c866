// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dft implements the Directory Forwarding Table (C8):
// application-name to address mapping, replicated the same way the LFDB
// is (grounded on the same teacher replication pattern as internal/lfdb,
// reused here for a second replicated table).
package dft

import (
	"sync"
	"time"

	"rina.dev/ipcpd/internal/addr"
)

// RLAddrNull is returned by Resolve on a miss.
const RLAddrNull = addr.NullAddr

// Entry is one DFT row.
type Entry struct {
	ApplName  string
	Address   addr.Addr
	Timestamp time.Time
}

// Slice is the wire form carried on M_CREATE/M_DELETE of /mgmt/dft/table.
type Slice struct {
	Entries []Entry
}

// ReplicationPolicy decides which peers learn about a DFT change. The
// default, Full, replicates to every enrolled neighbor; it's pluggable per
// spec.md §4.6.
type ReplicationPolicy interface {
	Name() string
}

// Full is the default replication policy: full replication to every
// enrolled neighbor.
type Full struct{}

func (Full) Name() string { return "full" }

// Table is the Directory Forwarding Table.
type Table struct {
	mu      sync.Mutex
	entries map[string]Entry
	policy  ReplicationPolicy
	now     func() time.Time
}

// New creates an empty Table using the default full-replication policy.
func New() *Table {
	return &Table{
		entries: make(map[string]Entry),
		policy:  Full{},
		now:     time.Now,
	}
}

// SetPolicy swaps the replication policy.
func (t *Table) SetPolicy(p ReplicationPolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policy = p
}

// Policy returns the current replication policy.
func (t *Table) Policy() ReplicationPolicy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy
}

// Set inserts or overwrites the entry for applName, stamping the current
// time. Returns the entry so callers can distribute it.
func (t *Table) Set(applName string, address addr.Addr) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := Entry{ApplName: applName, Address: address, Timestamp: t.now()}
	t.entries[applName] = e
	return e
}

// Delete removes applName's entry, if present.
func (t *Table) Delete(applName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[applName]; !ok {
		return false
	}
	delete(t.entries, applName)
	return true
}

// Resolve returns the address registered for applName, or RLAddrNull on
// a miss.
func (t *Table) Resolve(applName string) addr.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[applName]
	if !ok {
		return RLAddrNull
	}
	return e.Address
}

// Snapshot returns every entry, for a full initial sync toward a newly
// enrolled peer.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Apply merges remote entries learned via M_CREATE into the table,
// returning the ones that actually changed value (for split-horizon
// rebroadcast), same shape as lfdb.DB.Add's mutation-reporting contract.
func (t *Table) Apply(entries []Entry) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var changed []Entry
	for _, e := range entries {
		existing, ok := t.entries[e.ApplName]
		if ok && existing.Address == e.Address {
			continue
		}
		t.entries[e.ApplName] = e
		changed = append(changed, e)
	}
	return changed
}
