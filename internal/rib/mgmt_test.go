// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame_WriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{
		Header: Header{Type: FrameOutLocalPort, LocalPort: 7, RemoteAddr: 42, Flags: 0x1},
		Body:   []byte("hello cdap"),
	}
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, f.Header, got.Header)
	require.Equal(t, f.Body, got.Body)
}

func TestWriteFrame_OversizedRejectedEFBIG(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Header: Header{Type: FrameIn}, Body: make([]byte, MaxFrame)}
	err := WriteFrame(&buf, f)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "EFBIG"))
	require.Equal(t, 0, buf.Len())
}

func TestReadFrame_ShortHeaderErrors(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
}
