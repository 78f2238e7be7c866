// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/policy"
)

const sampleHCL = `
process_name     = "ipcpd-node-a"
process_instance = "1"
lower_difs       = ["shim-eth-0"]
mgmt_fd_path     = "/run/ipcpd/mgmt.sock"
ctlsock_path     = "/run/ipcpd/ctl.sock"

policy "dft" {
  name = "full"
}

policy "addralloc" {
  name = "default"
  params = {
    "nack-wait-secs" = "3"
  }
}
`

func TestLoadString(t *testing.T) {
	cfg, err := LoadString(sampleHCL, "test.hcl")
	require.NoError(t, err)
	require.Equal(t, "ipcpd-node-a", cfg.ProcessName)
	require.Equal(t, []string{"shim-eth-0"}, cfg.LowerDIFs)
	require.Len(t, cfg.Policies, 2)
}

func TestLoadString_MissingRequiredField(t *testing.T) {
	_, err := LoadString(`process_instance = "1"`, "bad.hcl")
	require.Error(t, err)
}

func TestApplyPolicies(t *testing.T) {
	cfg, err := LoadString(sampleHCL, "test.hcl")
	require.NoError(t, err)

	reg := policy.NewRegistry()
	reg.Register("dft", "full", func() policy.Policy { return fakePolicy{"full"} })
	reg.SetDefault("dft", fakePolicy{"full"})
	reg.Register("addralloc", "default", func() policy.Policy { return fakePolicy{"default"} })
	reg.SetDefault("addralloc", fakePolicy{"default"})
	reg.DeclareParam("addralloc", "nack-wait-secs", policy.NewIntParam(2, 1, 60))

	require.NoError(t, cfg.ApplyPolicies(reg))
	require.EqualValues(t, 3, reg.Param("addralloc", "nack-wait-secs").IntVal)
}

type fakePolicy struct{ name string }

func (p fakePolicy) Name() string { return p.name }
