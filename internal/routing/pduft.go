// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package routing

import (
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/kernelrt"
	"rina.dev/ipcpd/internal/logging"
)

// PortResolver maps a next-hop address to the local port id of the
// management flow to that neighbor, per spec.md §4.5 ("neighbors without a
// management flow yield no port and are skipped with a warning").
type PortResolver interface {
	PortForNextHop(next addr.Addr) (portID uint32, ok bool)
}

// PDUFTSync translates nextHops into port ids via resolver and installs
// them into programmer, flushing prior entries first so the push is atomic
// from the kernel's viewpoint.
func PDUFTSync(programmer kernelrt.Programmer, nextHops map[addr.Addr]addr.Addr, resolver PortResolver, log *logging.Logger) error {
	if log == nil {
		log = logging.Nop()
	}
	if err := programmer.Flush(); err != nil {
		return err
	}

	for dest, next := range nextHops {
		portID, ok := resolver.PortForNextHop(next)
		if !ok {
			log.Warn("pduft_sync: skipping destination with no management flow", "dest", dest, "next_hop", next)
			continue
		}
		if err := programmer.Set(dest, portID); err != nil {
			return err
		}
	}
	return nil
}
