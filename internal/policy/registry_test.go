// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/errors"
)

type fakePolicy struct {
	name         string
	reconfigured int
}

func (p *fakePolicy) Name() string { return p.name }
func (p *fakePolicy) Reconfigure() { p.reconfigured++ }

func TestPolicyMod_SwapAndReconfigure(t *testing.T) {
	r := NewRegistry()
	first := &fakePolicy{name: "full"}
	second := &fakePolicy{name: "selective"}
	r.Register("dft", "full", func() Policy { return first })
	r.Register("dft", "selective", func() Policy { return second })
	r.SetDefault("dft", first)

	require.NoError(t, r.PolicyMod("dft", "selective"))
	require.Equal(t, second, r.Current("dft"))
	require.Equal(t, 1, second.reconfigured)
}

// TestPolicyMod_NoOpWhenUnchanged covers the idempotence property from
// spec.md §8: "policy_mod(c, name) with the current policy is a no-op".
func TestPolicyMod_NoOpWhenUnchanged(t *testing.T) {
	r := NewRegistry()
	first := &fakePolicy{name: "full"}
	r.Register("dft", "full", func() Policy { return first })
	r.SetDefault("dft", first)

	require.NoError(t, r.PolicyMod("dft", "full"))
	require.Equal(t, 0, first.reconfigured, "no-op must not rebuild or reconfigure")
}

func TestPolicyMod_UnknownIsConfigError(t *testing.T) {
	r := NewRegistry()
	err := r.PolicyMod("dft", "nonexistent")
	require.Error(t, err)
	require.Equal(t, errors.KindConfig, errors.GetKind(err))
}

// TestScenario_S6PolicyParamRangeCheck covers spec.md §8 scenario S6.
func TestScenario_S6PolicyParamRangeCheck(t *testing.T) {
	r := NewRegistry()
	r.DeclareParam("addralloc", "nack-wait-secs", NewIntParam(2, 1, 60))

	err := r.PolicyParamMod("addralloc", "nack-wait-secs", "0")
	require.Error(t, err)
	require.Equal(t, errors.KindConfig, errors.GetKind(err))
	require.Contains(t, err.Error(), "range")

	// Parameter must retain its previous value.
	require.EqualValues(t, 2, r.Param("addralloc", "nack-wait-secs").IntVal)
}

func TestPolicyParamMod_BoolExactStrings(t *testing.T) {
	r := NewRegistry()
	r.DeclareParam("flowalloc", "force-flow-control", NewBoolParam(false))

	require.Error(t, r.PolicyParamMod("flowalloc", "force-flow-control", "yes"))
	require.NoError(t, r.PolicyParamMod("flowalloc", "force-flow-control", "true"))
	require.True(t, r.Param("flowalloc", "force-flow-control").BoolVal)
}

func TestParam_PanicsOnUnknownKey(t *testing.T) {
	r := NewRegistry()
	require.Panics(t, func() {
		r.Param("addralloc", "does-not-exist")
	})
}
