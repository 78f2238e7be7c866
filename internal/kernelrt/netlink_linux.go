// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package kernelrt

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"rina.dev/ipcpd/internal/addr"
)

// Netlink programs the kernel's routing table as a concrete rendering of
// "push a fresh forwarding table to the kernel" (spec.md §4.5). Each RINA
// address is rendered into a /32 destination within a dedicated routing
// table so it never collides with the host's own IP routes; each port id
// is taken to be the ifindex of the local interface carrying that N-1
// flow, which is how a real datapath module would expose a port to
// userspace for this purpose.
type Netlink struct {
	table int
}

// NewNetlink creates a Netlink programmer that manages routes in the given
// routing table id (the caller picks one unused by the rest of the host,
// conventionally >= 100).
func NewNetlink(table int) *Netlink {
	return &Netlink{table: table}
}

func destNet(dest addr.Addr) *net.IPNet {
	a := uint32(dest)
	ip := net.IPv4(byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(32, 32)}
}

// Flush removes every IPv4 route in this programmer's table, whether or
// not this programmer installed it.
func (n *Netlink) Flush() error {
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_V4, &netlink.Route{Table: n.table}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return fmt.Errorf("kernelrt: list routes in table %d: %w", n.table, err)
	}
	for _, r := range routes {
		if err := netlink.RouteDel(&r); err != nil {
			return fmt.Errorf("kernelrt: flush route %s: %w", r.Dst, err)
		}
	}
	return nil
}

// Set installs a destination -> local port id (ifindex) route.
func (n *Netlink) Set(dest addr.Addr, portID uint32) error {
	route := &netlink.Route{
		Table:     n.table,
		Dst:       destNet(dest),
		LinkIndex: int(portID),
	}
	if err := netlink.RouteReplace(route); err != nil {
		return fmt.Errorf("kernelrt: install route for addr %s via port %d: %w", dest, portID, err)
	}
	return nil
}
