// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package kernelrt

import (
	"testing"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/testutil"
)

// TestNetlink_FlushSetRoundTrip exercises the real netlink programmer
// against the kernel's routing tables. It needs CAP_NET_ADMIN (or root)
// and a loopback-style interface to attach routes to, so it only runs
// when IPCPD_NETLINK_TEST is set.
func TestNetlink_FlushSetRoundTrip(t *testing.T) {
	testutil.RequireNetlink(t)

	n := NewNetlink(254) // table 254 ("main") always exists
	require.NoError(t, n.Flush())
	require.NoError(t, n.Set(addr.Addr(1), 1)) // ifindex 1 is always loopback
	require.NoError(t, n.Flush())
}
