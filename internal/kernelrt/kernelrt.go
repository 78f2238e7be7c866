// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kernelrt is the boundary toward the datapath kernel module,
// which spec.md §1 places out of scope. Programmer is the interface the
// out-of-scope module would implement; this package ships a Linux
// netlink-backed reference implementation and an in-memory fake for tests
// and non-Linux builds.
package kernelrt

import "rina.dev/ipcpd/internal/addr"

// Programmer installs the PDU forwarding table this IPCP computes into
// whatever actually forwards data PDUs.
type Programmer interface {
	// Flush removes every previously installed entry.
	Flush() error
	// Set installs a destination address -> local port id forwarding
	// entry.
	Set(dest addr.Addr, portID uint32) error
}
