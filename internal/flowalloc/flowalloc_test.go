// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/policy"
)

type fakeResolver map[string]addr.Addr

func (r fakeResolver) Resolve(applName string) addr.Addr {
	if a, ok := r[applName]; ok {
		return a
	}
	return addr.NullAddr
}

func TestRequest_UnknownDestinationErrors(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg, fakeResolver{})
	_, err := a.Request("app.client", "app.server")
	require.Error(t, err)
}

func TestRequest_AcceptLifecycle(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg, fakeResolver{"app.server": 42})

	f, err := a.Request("app.client", "app.server")
	require.NoError(t, err)
	require.Equal(t, StatePending, f.State)
	require.EqualValues(t, 42, f.DstAddr)

	require.NoError(t, a.Accept(f.PortID))
	got, ok := a.Get(f.PortID)
	require.True(t, ok)
	require.Equal(t, StateAllocated, got.State)
}

func TestRequest_RejectRemovesFlow(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg, fakeResolver{"app.server": 42})
	f, err := a.Request("app.client", "app.server")
	require.NoError(t, err)

	require.NoError(t, a.Reject(f.PortID))
	_, ok := a.Get(f.PortID)
	require.False(t, ok)
}

func TestDeallocate(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg, fakeResolver{"app.server": 42})
	f, err := a.Request("app.client", "app.server")
	require.NoError(t, err)
	require.NoError(t, a.Accept(f.PortID))

	require.NoError(t, a.Deallocate(f.PortID))
	_, ok := a.Get(f.PortID)
	require.False(t, ok)

	require.Error(t, a.Deallocate(f.PortID))
}

func TestQoSParamsSnapshottedAtCreation(t *testing.T) {
	reg := policy.NewRegistry()
	a := New(reg, fakeResolver{"app.server": 42})
	require.NoError(t, reg.PolicyParamMod(component, "initial-credit", "512"))

	f, err := a.Request("app.client", "app.server")
	require.NoError(t, err)
	require.EqualValues(t, 512, f.QoS.InitialCredit)

	require.NoError(t, reg.PolicyParamMod(component, "initial-credit", "1024"))
	require.EqualValues(t, 512, f.QoS.InitialCredit, "existing flow must not see later param changes")
}
