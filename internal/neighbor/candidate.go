// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package neighbor

import "rina.dev/ipcpd/internal/addr"

// Candidate is a NeighborCandidate (spec.md §3): a peer identity learned
// from gossip rather than from a direct enrollment, carried on
// /mgmt/neighbors/entries so the DIF's membership can be discovered
// transitively.
type Candidate struct {
	APName     string
	APInstance string
	Address    addr.Addr
	LowerDIFs  []string
}

// CandidateList is the wire form of a batch of Candidates.
type CandidateList struct {
	Entries []Candidate
}
