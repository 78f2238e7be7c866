// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tcpflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/addr"
)

func TestAllocateFlow_NoDialAddressErrors(t *testing.T) {
	a := New(addr.Name{ProcessName: "initiator"})
	_, err := a.AllocateFlow(context.Background(), "shim-dif", addr.Name{ProcessName: "peer"})
	require.Error(t, err)
}

func TestListenAcceptRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	initiator := New(addr.Name{ProcessName: "initiator", ProcessInstance: "1"})
	initiator.AddPeer("shim-dif", addr.Name{ProcessName: "enroller", ProcessInstance: "1"}, ln.Addr().String())

	type result struct {
		in  Inbound
		err error
	}
	acceptCh := make(chan result, 1)
	go func() {
		in, err := ln.Accept()
		acceptCh <- result{in, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	flow, err := initiator.AllocateFlow(ctx, "shim-dif", addr.Name{ProcessName: "enroller", ProcessInstance: "1"})
	require.NoError(t, err)
	defer flow.IO.Close()
	require.True(t, flow.Reliable)
	require.Equal(t, "shim-dif", flow.LowerIPCPID)

	res := <-acceptCh
	require.NoError(t, res.err)
	defer res.in.Flow.IO.Close()
	require.Equal(t, "initiator/1", res.in.Peer.ProcessName+"/"+res.in.Peer.ProcessInstance)
	require.Equal(t, "shim-dif", res.in.SuppDIF)
	require.True(t, res.in.Flow.Reliable)

	// the preamble must be fully consumed: subsequent bytes on the
	// connection are untouched application data, not buffered ahead.
	done := make(chan struct{})
	go func() {
		_, _ = flow.IO.Write([]byte("payload"))
		close(done)
	}()
	buf := make([]byte, len("payload"))
	_, err = res.in.Flow.IO.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf))
	<-done
}
