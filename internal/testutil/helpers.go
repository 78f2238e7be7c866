// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import (
	"os"
	"testing"
)

// RequireNetlink skips the test if the IPCPD_NETLINK_TEST environment
// variable is not set. This ensures that tests requiring real kernel
// capabilities (a routable netlink socket, CAP_NET_ADMIN) only run in an
// environment set up for it.
func RequireNetlink(t *testing.T) {
	t.Helper()
	if os.Getenv("IPCPD_NETLINK_TEST") == "" {
		t.Skip("Skipping test: requires IPCPD_NETLINK_TEST environment")
	}
}
