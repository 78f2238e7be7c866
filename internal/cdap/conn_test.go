// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cdap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConn_RejectsWritesUntilConnected(t *testing.T) {
	c := NewConn(nil)
	_, err := c.MsgSer(Message{Opcode: MStart}, 1)
	require.Error(t, err)

	c.Advance(MConnect)
	_, err = c.MsgSer(Message{Opcode: MStart}, 1)
	require.NoError(t, err)
}

func TestConn_ReleaseCycle(t *testing.T) {
	c := NewConn(nil)
	c.Advance(MConnect)
	require.Equal(t, ConnConnected, c.State())

	c.Advance(MRelease)
	require.Equal(t, ConnAwaitingRelease, c.State())

	c.Advance(MReleaseR)
	require.Equal(t, ConnDisconnected, c.State())
}

func TestConn_Reset(t *testing.T) {
	c := NewConn(nil)
	c.Advance(MConnect)
	c.Reset()
	require.Equal(t, ConnDisconnected, c.State())
}

type enrollmentInfoTestObj struct {
	Address   uint64
	LowerDIFs []string
}

func TestConn_RoundTrip(t *testing.T) {
	c := NewConn(GobCodec{})
	c.Advance(MConnect)

	body, err := GobCodec{}.Marshal(enrollmentInfoTestObj{Address: 7, LowerDIFs: []string{"shim-eth0"}})
	require.NoError(t, err)

	wire, err := c.MsgSer(Message{Opcode: MStart, ObjClass: "enrollment", Body: body}, 3)
	require.NoError(t, err)

	back, err := c.MsgDeser(wire)
	require.NoError(t, err)
	require.Equal(t, uint32(3), back.InvokeID)
	require.Equal(t, "enrollment", back.ObjClass)

	var obj enrollmentInfoTestObj
	require.NoError(t, GobCodec{}.Unmarshal(back.Body, &obj))
	require.Equal(t, uint64(7), obj.Address)
	require.Equal(t, []string{"shim-eth0"}, obj.LowerDIFs)
}
