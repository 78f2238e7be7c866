// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rib implements the RIB dispatcher (C11): the object-name handler
// table, the management-frame I/O loop, and the periodic tasks that tie
// every other component (neighbors, LFDB, DFT, address/flow allocators,
// policy registry) into one running IPCP instance. Grounded on the
// teacher's internal/ctlplane.Server (a central hub struct holding every
// subsystem behind a handler table) and internal/supervisor (periodic
// bookkeeping on its own goroutine).
package rib

// CDAP object namespace (spec.md §6). These names are bit-exact: they
// traverse the wire and must never be altered without a corresponding
// protocol version bump.
const (
	ObjADATA        = "/a_data"
	ClassADATA      = "a_data"
	ObjDFT          = "/mgmt/dft/table"
	ClassDFT        = "dft_entries"
	ObjLFDB         = "/mgmt/routing/lfdb"
	ClassLFDB       = "lfdb_entries"
	ObjNeighbors    = "/mgmt/neighbors/entries"
	ClassNeighbors  = "neigh_entries"
	ObjFlowAlloc    = "/mgmt/flowalloc/flows"
	ClassFlow       = "flow"
	ObjAddrAlloc    = "/mgmt/addralloc/table"
	ClassAddrAlloc  = "aa_entries"
	ObjEnrollment   = "/mgmt/enrollment"
	ClassEnrollment = "enrollment"
	ObjOperStatus   = "/mgmt/operational_status"
	ObjKeepalive    = "/mgmt/keepalive"
	ObjLowerFlow    = "/mgmt/lowerflow"
)

const (
	policySuffix = "/policy"
	paramsSuffix = "/params"
)
