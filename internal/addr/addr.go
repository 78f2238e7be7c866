// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package addr holds the identifiers shared by every RIB component: the
// IPCP address space and the IPCP name tuple.
package addr

import "fmt"

// Addr is an IPCP address within a DIF. The zero value is the null address.
type Addr uint64

// NullAddr is the unassigned/invalid address.
const NullAddr Addr = 0

// Valid reports whether a is a real, assigned address.
func (a Addr) Valid() bool {
	return a != NullAddr
}

func (a Addr) String() string {
	if a == NullAddr {
		return "null"
	}
	return fmt.Sprintf("%d", uint64(a))
}

// Name is the 4-tuple RINA application/IPCP name.
type Name struct {
	ProcessName     string
	ProcessInstance string
	EntityName      string
	EntityInstance  string
}

// String renders the canonical wire form of a Name.
func (n Name) String() string {
	return fmt.Sprintf("%s/%s::%s/%s", n.ProcessName, n.ProcessInstance, n.EntityName, n.EntityInstance)
}

// IsZero reports whether n carries no identifying information at all.
func (n Name) IsZero() bool {
	return n == Name{}
}

// Matches reports whether n identifies the same process as other, ignoring
// entity name/instance (used to compare IPCP identities, not application
// endpoints within them).
func (n Name) Matches(other Name) bool {
	return n.ProcessName == other.ProcessName && n.ProcessInstance == other.ProcessInstance
}
