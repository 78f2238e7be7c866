// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ctlplane

import (
	"net/rpc"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/logging"
)

type fakeHub struct {
	registered map[string]string
	enroller   bool
}

func newFakeHub() *fakeHub { return &fakeHub{registered: make(map[string]string)} }

func (h *fakeHub) Register(applName, difName string) error {
	h.registered[applName] = difName
	return nil
}
func (h *fakeHub) Unregister(applName string) error {
	if _, ok := h.registered[applName]; !ok {
		return errors.New(errors.KindResource, "not registered")
	}
	delete(h.registered, applName)
	return nil
}
func (h *fakeHub) Enroll(neighName, suppDIF string, wait bool) error { return nil }
func (h *fakeHub) EnrollerEnable(enable bool) error                 { h.enroller = enable; return nil }
func (h *fakeHub) DFTSet(applName string, address uint64) error     { return nil }
func (h *fakeHub) RIBShow() (string, error)                         { return "rib-dump", nil }
func (h *fakeHub) RoutingShow() (string, error)                     { return "routing-dump", nil }
func (h *fakeHub) PolicyMod(component, name string) error           { return nil }
func (h *fakeHub) PolicyList(component string) ([]string, error)    { return []string{"full", "selective"}, nil }
func (h *fakeHub) PolicyParamMod(component, name, value string) error {
	return errors.New(errors.KindConfig, "out of range")
}
func (h *fakeHub) PolicyParamList(component string) (map[string]string, error) {
	return map[string]string{"nack-wait-secs": "2"}, nil
}
func (h *fakeHub) NeighDisconnect(neighName string) error { return nil }
func (h *fakeHub) LowerDIFDetach(difName string) error    { return nil }

func startServer(t *testing.T, hub Hub) (*rpc.Client, func()) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	stop := make(chan struct{})

	srv := NewServer(hub, logging.Nop())
	go ListenAndServe(sock, srv, stop)

	var client *rpc.Client
	var err error
	for i := 0; i < 50; i++ {
		client, err = rpc.Dial("unix", sock)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	return client, func() { client.Close(); close(stop) }
}

func TestRegisterUnregister(t *testing.T) {
	hub := newFakeHub()
	client, done := startServer(t, hub)
	defer done()

	var rep Reply
	require.NoError(t, client.Call("Server.Register", RegisterArgs{ApplName: "app.x", DIFName: "dif1"}, &rep))
	require.Equal(t, 0, rep.Code)
	require.Equal(t, "dif1", hub.registered["app.x"])

	require.NoError(t, client.Call("Server.Unregister", "app.x", &rep))
	require.Equal(t, 0, rep.Code)

	require.NoError(t, client.Call("Server.Unregister", "app.x", &rep))
	require.NotEqual(t, 0, rep.Code)
}

func TestRIBShow(t *testing.T) {
	hub := newFakeHub()
	client, done := startServer(t, hub)
	defer done()

	var rep Reply
	require.NoError(t, client.Call("Server.RIBShow", struct{}{}, &rep))
	require.Equal(t, "rib-dump", rep.Message)
}

func TestPolicyParamMod_FailureReturnsNonZeroExit(t *testing.T) {
	hub := newFakeHub()
	client, done := startServer(t, hub)
	defer done()

	var rep Reply
	require.NoError(t, client.Call("Server.PolicyParamMod", PolicyParamModArgs{Component: "addralloc", Name: "nack-wait-secs", Value: "0"}, &rep))
	require.Equal(t, 2, rep.Code)
	require.Contains(t, rep.Message, "out of range")
}
