// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrollment

import (
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/dft"
	"rina.dev/ipcpd/internal/lfdb"
	"rina.dev/ipcpd/internal/neighbor"
)

// Snapshot is the initial RIB state shipped by the enroller in M_START_R
// and applied by the enrollee while handling that message, right after
// it enters I_WAIT_STOP: the
// enrollee's DIF membership is established atomically from a single
// snapshot, not incrementally, per spec.md §4.3's full-initial-sync step.
// Candidates carries the neighbor-candidate list, including the enroller
// itself, per that same step.
type Snapshot struct {
	Address    addr.Addr
	LowerFlows []lfdb.LowerFlow
	DFTEntries []dft.Entry
	Candidates []neighbor.Candidate
}
