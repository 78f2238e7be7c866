// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cdap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvokeIDPool_AllocateNeverZero(t *testing.T) {
	p := NewInvokeIDPool()
	for i := 0; i < 10; i++ {
		id := p.Allocate()
		require.NotZero(t, id)
	}
}

func TestInvokeIDPool_Recycle(t *testing.T) {
	p := NewInvokeIDPool()
	a := p.Allocate()
	b := p.Allocate()
	require.NoError(t, p.Release(a))
	require.Equal(t, 1, p.Outstanding())

	c := p.Allocate()
	require.Equal(t, a, c, "released id should be recycled before minting a new one")
	require.NotEqual(t, b, c)
}

func TestInvokeIDPool_ReleaseNotOutstanding(t *testing.T) {
	p := NewInvokeIDPool()
	err := p.Release(42)
	require.Error(t, err)
}
