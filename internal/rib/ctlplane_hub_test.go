// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/neighbor"
)

// fakeAllocatedFlow builds an AllocatedFlow over an in-memory pipe, good
// enough to exercise AcceptNeighborFlow without a real N-1 transport.
func fakeAllocatedFlow() neighbor.AllocatedFlow {
	client, server := net.Pipe()
	go discardReads(client)
	return neighbor.AllocatedFlow{PortID: 1, IO: server, LowerIPCPID: "shim-dif", Reliable: true}
}

func discardReads(c net.Conn) {
	buf := make([]byte, 256)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}

func TestRegisterUnregister(t *testing.T) {
	r := newTestRIB(t)
	require.NoError(t, r.Register("rina.apps.echo", "shim-dif"))
	require.Equal(t, addr.NullAddr, r.MyAddr())

	require.NoError(t, r.Unregister("rina.apps.echo"))
	require.Error(t, r.Unregister("rina.apps.echo")) // already gone
}

func TestDFTSetAndRIBShow(t *testing.T) {
	r := newTestRIB(t)
	require.NoError(t, r.DFTSet("rina.apps.echo", 7))

	out, err := r.RIBShow()
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "rina.apps.echo -> 7"))
}

func TestRoutingShow_EmptyWhenNoNextHops(t *testing.T) {
	r := newTestRIB(t)
	out, err := r.RoutingShow()
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestPolicyModParamListRoundTrip(t *testing.T) {
	r := newTestRIB(t)
	require.NoError(t, r.PolicyParamMod("flowalloc", "max-cwq-len", "99"))

	params, err := r.PolicyParamList("flowalloc")
	require.NoError(t, err)
	require.Equal(t, "99", params["max-cwq-len"])
}

func TestNeighDisconnect_UnknownNeighborErrors(t *testing.T) {
	r := newTestRIB(t)
	err := r.NeighDisconnect("ghost/1")
	require.Error(t, err)
}

func TestEnrollerDisabled_RejectsInboundFlow(t *testing.T) {
	r := newTestRIB(t) // EnrollerEnabled defaults to false
	f := r.AcceptNeighborFlow(addr.Name{ProcessName: "peer", ProcessInstance: "1"}, "shim-dif",
		fakeAllocatedFlow())
	require.Nil(t, f)
}
