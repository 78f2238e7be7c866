// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"testing"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/cdap"
)

func newTestRIB(t *testing.T) *RIB {
	t.Helper()
	r := New(Config{}, nil, nil)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestDispatch_UnknownObjectErrors(t *testing.T) {
	r := newTestRIB(t)
	err := r.Dispatch(&dispatchCtx{}, cdap.Message{Opcode: cdap.MCreate, ObjName: "/no/such/object"})
	require.Error(t, err)
}

func TestDispatch_HierarchicalFallback(t *testing.T) {
	r := newTestRIB(t)
	// /mgmt/dft/table is registered; a nested child object name should
	// fall back to it once the exact name misses (spec.md §4.9).
	err := r.Dispatch(&dispatchCtx{}, cdap.Message{Opcode: cdap.MCreate, ObjName: ObjDFT + "/entry-1"})
	require.NoError(t, err)
}

func TestDispatch_PolicyObjectRoutedBySuffix(t *testing.T) {
	r := newTestRIB(t)
	body, err := codec.Marshal(struct{ Name, Value string }{Name: "max-cwq-len", Value: "64"})
	require.NoError(t, err)

	err = r.Dispatch(&dispatchCtx{}, cdap.Message{Opcode: cdap.MWrite, ObjName: "/flowalloc/params", Body: body})
	require.NoError(t, err)
	require.Equal(t, int64(64), r.reg.Param("flowalloc", "max-cwq-len").IntVal)
}

func TestHandleFrame_RoutesByLocalPort(t *testing.T) {
	r := newTestRIB(t)
	err := r.HandleFrame(Header{Type: FrameIn, LocalPort: 999}, cdap.Message{Opcode: cdap.MConnect})
	require.Error(t, err) // no neighbor owns port 999
}
