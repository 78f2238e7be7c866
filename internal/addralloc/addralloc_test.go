// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package addralloc

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/policy"
)

func TestPropose_ExpiresIntoClaim(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg)
	require.NoError(t, reg.PolicyParamMod(component, "nack-wait-secs", "1"))

	var wg sync.WaitGroup
	wg.Add(1)
	a.Propose(100, 42, func() {
		defer wg.Done()
		addrs, err := a.Claim()
		require.NoError(t, err)
		require.EqualValues(t, 100, addrs)
	})
	wg.Wait()
	require.Equal(t, StateAssigned, a.State())
	require.EqualValues(t, 100, a.Assigned())
}

func TestHandleConflict_SmallerTieBreakYields(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg)
	a.Propose(100, 5, func() {})

	yield := a.HandleConflict(100, 10)
	require.True(t, yield)
	require.Equal(t, StateIdle, a.State())
}

func TestHandleConflict_LargerTieBreakKeeps(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg)
	a.Propose(100, 10, func() {})

	yield := a.HandleConflict(100, 5)
	require.False(t, yield)
	require.Equal(t, StateProbing, a.State())
}

func TestClaim_WithoutProbingErrors(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg)
	_, err := a.Claim()
	require.Error(t, err)
}

func TestCheckConflicts(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg)
	a.Propose(50, 1, func() {})
	_, err := a.Claim()
	require.NoError(t, err)

	require.False(t, a.CheckConflicts(map[addr.Addr]int{50: 1}))
	require.True(t, a.CheckConflicts(map[addr.Addr]int{50: 2}))
}

func TestRelease(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg)
	a.Propose(50, 1, func() {})
	_, err := a.Claim()
	require.NoError(t, err)

	a.Release()
	require.Equal(t, StateIdle, a.State())
	require.Equal(t, addr.NullAddr, a.Assigned())
}

func TestNackWait_DefaultIsTwoSeconds(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg)
	require.Equal(t, 2*time.Second, a.NackWait())
}
