// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"context"
	"time"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/addralloc"
	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/enrollment"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/neighbor"
)

// EnrollNeighbor implements enroll(neigh_name, supp_dif_name, wait)
// (spec.md §6): allocate an N-1 flow to neighName over suppDIF and drive
// the enrollee side of the handshake. If wait, block until the handshake
// finishes and return its terminal error.
func (r *RIB) EnrollNeighbor(neighName addr.Name, suppDIF string, wait bool) error {
	r.mu.Lock()
	neigh, ok := r.neighbors[neighName.String()]
	if !ok {
		neigh = neighbor.New(neighName, false)
		r.neighbors[neighName.String()] = neigh
		r.metrics.Neighbors.Set(float64(len(r.neighbors)))
	}
	allocator := r.cfg.Allocator
	r.mu.Unlock()

	if allocator == nil {
		return errors.New(errors.KindConfig, "rib: no lower flow allocator configured")
	}

	flow, err := neigh.AllocateFlow(context.Background(), allocator, suppDIF, true)
	if err != nil {
		r.metrics.RecordEnrollment("rejected")
		return err
	}

	w := r.spawnWorker(neigh, flow, enrollment.RoleEnrollee)

	r.mu.Lock()
	r.portOwner[flow.PortID] = neigh
	r.mu.Unlock()

	if flow.Reliable {
		go r.serveReliableFlow(flow)
	}
	go w.Run()

	if !wait {
		return nil
	}
	return w.WaitForCompletion()
}

// AcceptNeighborFlow is the enroller-side counterpart of EnrollNeighbor:
// called once the lower DIF notifies this IPCP that a peer has opened an
// N-1 flow to it. It creates (or reuses) the Neighbor, registers the
// flow, and starts the enroller side of the handshake.
func (r *RIB) AcceptNeighborFlow(peerName addr.Name, suppDIF string, allocated neighbor.AllocatedFlow) *neighbor.Flow {
	r.mu.Lock()
	enrollerEnabled := r.cfg.EnrollerEnabled
	r.mu.Unlock()
	if !enrollerEnabled {
		r.log.Warn("rib: rejecting enrollment request, enroller disabled", "neighbor", peerName.String())
		allocated.IO.Close()
		return nil
	}

	r.mu.Lock()
	neigh, ok := r.neighbors[peerName.String()]
	if !ok {
		neigh = neighbor.New(peerName, true)
		r.neighbors[peerName.String()] = neigh
		r.metrics.Neighbors.Set(float64(len(r.neighbors)))
	}
	r.mu.Unlock()

	flow := neighbor.NewFlow(peerName, suppDIF, allocated.PortID, allocated.IO, allocated.Reliable, false)
	flow.LowerIPCPID = allocated.LowerIPCPID
	neigh.AddFlow(flow)
	if !neigh.HasMgmtFlow() {
		neigh.PromoteToMgmt(flow.PortID)
	}

	r.mu.Lock()
	r.portOwner[flow.PortID] = neigh
	r.mu.Unlock()

	w := r.spawnWorker(neigh, flow, enrollment.RoleEnroller)
	if flow.Reliable {
		go r.serveReliableFlow(flow)
	}
	go w.Run()
	return flow
}

// serveReliableFlow reads CDAP messages directly off a reliable N-1
// flow's dedicated fd (no management-frame header: it isn't multiplexed
// with anything else) and feeds them to the dispatcher.
func (r *RIB) serveReliableFlow(f *neighbor.Flow) {
	buf := make([]byte, MaxFrame)
	for {
		n, err := f.FlowIO.Read(buf)
		if err != nil {
			return
		}
		var msg cdap.Message
		if err := codec.Unmarshal(buf[:n], &msg); err != nil {
			r.log.Warn("rib: malformed reliable-flow message", "port", f.PortID, "error", err)
			continue
		}
		if err := r.HandleIncoming(f.PortID, msg); err != nil {
			r.log.Warn("rib: dispatch failed", "port", f.PortID, "error", err)
		}
	}
}

// spawnWorker builds and registers an enrollment.Worker for flow, wiring
// its Callbacks back into the RIB. The caller is responsible for starting
// w.Run() on its own goroutine.
func (r *RIB) spawnWorker(neigh *neighbor.Neighbor, flow *neighbor.Flow, role enrollment.Role) *enrollment.Worker {
	timeout := defaultEnrollTimeout
	if p := r.reg.Param(component, "enrollment-timeout-ms"); p.IntVal > 0 {
		timeout = time.Duration(p.IntVal) * time.Millisecond
	}

	cb := enrollment.Callbacks{
		Send: func(f *neighbor.Flow, wire []byte) error {
			return r.send(f, wire)
		},
		ExportSnapshot: r.exportSnapshotFor(neigh),
		ApplySnapshot:  r.applySnapshotFor(neigh),
		OnEnrolled:     r.onEnrolledFor(neigh),
		OnAborted:      r.onAborted,
	}

	w := enrollment.NewWorker(flow, role, cb, timeout, r.log)
	r.mu.Lock()
	r.workers[flow.PortID] = w
	r.mu.Unlock()
	return w
}

// onEnrolledFor returns the OnEnrolled callback for neigh: it commits and
// announces this IPCP's own LowerFlow to the peer (spec.md §4.3, §4.4
// update_local) before the usual bookkeeping.
func (r *RIB) onEnrolledFor(neigh *neighbor.Neighbor) func(*neighbor.Flow) {
	return func(f *neighbor.Flow) {
		r.updateLocal(neigh)

		r.mu.Lock()
		delete(r.workers, f.PortID)
		r.mu.Unlock()
		r.metrics.RecordEnrollment("success")
		r.enroll.Broadcast()
		r.log.Info("rib: enrollment complete", "neighbor", f.NeighName.String(), "port", f.PortID)
	}
}

func (r *RIB) onAborted(f *neighbor.Flow, err error) {
	r.mu.Lock()
	delete(r.workers, f.PortID)
	r.mu.Unlock()

	result := "timeout"
	if errors.GetKind(err) == errors.KindProtocolViolation {
		result = "rejected"
	}
	r.metrics.RecordEnrollment(result)
	r.enroll.Broadcast()
	r.log.Warn("rib: enrollment aborted", "neighbor", f.NeighName.String(), "port", f.PortID, "error", err)
}

// exportSnapshotFor returns the ExportSnapshot callback for the enroller
// side: a full initial sync of LFDB, DFT, and known neighbor candidates
// (spec.md §4.3), plus granting neigh an address if it doesn't have one.
func (r *RIB) exportSnapshotFor(neigh *neighbor.Neighbor) func() enrollment.Snapshot {
	return func() enrollment.Snapshot {
		r.mu.Lock()
		defer r.mu.Unlock()

		a := neigh.Address
		if !a.Valid() {
			a = r.allocateAddressForPeerLocked(neigh)
		}

		return enrollment.Snapshot{
			Address:    a,
			LowerFlows: r.lfdb.Snapshot(),
			DFTEntries: r.dft.Snapshot(),
			Candidates: r.candidateListLocked(),
		}
	}
}

// applySnapshotFor returns the ApplySnapshot callback for the enrollee
// side: adopt the granted address, take the enroller's own address from
// its entry in the candidate list, and merge the enroller's RIB state
// wholesale in one shot, per spec.md §4.3's full-initial-sync step.
func (r *RIB) applySnapshotFor(neigh *neighbor.Neighbor) func(enrollment.Snapshot) {
	return func(snap enrollment.Snapshot) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if !r.myAddr.Valid() && snap.Address.Valid() {
			r.setMyAddr(snap.Address)
		}

		for _, lf := range snap.LowerFlows {
			r.lfdb.Add(lf)
		}
		for _, e := range snap.DFTEntries {
			r.dft.Set(e.ApplName, e.Address)
		}
		for _, c := range snap.Candidates {
			r.candSeen[c.APName] = c
			if c.APName == neigh.Name.ProcessName && c.APInstance == neigh.Name.ProcessInstance {
				neigh.Address = c.Address
			}
		}
		r.runSPLocked()
	}
}

// candidateListLocked builds the neighbor-candidate list including this
// IPCP itself, per spec.md §4.3's full-initial-sync step. Must be called
// with r.mu held.
func (r *RIB) candidateListLocked() []neighbor.Candidate {
	out := make([]neighbor.Candidate, 0, 1+len(r.candSeen))
	out = append(out, neighbor.Candidate{
		APName:     r.cfg.MyName.ProcessName,
		APInstance: r.cfg.MyName.ProcessInstance,
		Address:    r.myAddr,
		LowerDIFs:  r.cfg.LowerDIFs,
	})
	for _, c := range r.candSeen {
		out = append(out, c)
	}
	return out
}

// allocateAddressForPeerLocked runs the nack-wait address grant protocol
// (spec.md §4.9) for a peer enrolling without an address: propose the
// next candidate, broadcast the challenge, and commit it once nack-wait
// elapses without a conflicting claim. Must be called with r.mu held.
func (r *RIB) allocateAddressForPeerLocked(neigh *neighbor.Neighbor) addr.Addr {
	candidate := r.nextCand
	r.nextCand++

	alloc := addralloc.New(r.reg)
	r.addrGrant[candidate] = alloc

	tieBreak := r.cfg.TieBreak
	body, err := codec.Marshal(addrAllocEntry{Candidate: candidate, TieBreak: tieBreak})
	if err == nil {
		r.broadcastExceptLocked(nil, ClassAddrAlloc, ObjAddrAlloc, cdap.MCreate, body)
	}

	alloc.Propose(candidate, tieBreak, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if a, err := alloc.Claim(); err == nil {
			neigh.Address = a
		}
		delete(r.addrGrant, candidate)
	})
	return candidate
}

// checkReenrollment implements spec.md §4.3's two re-enrollment rules. It
// reports whether it fully handled msg (in which case HandleIncoming must
// not also dispatch it) and any error from doing so.
func (r *RIB) checkReenrollment(neigh *neighbor.Neighbor, flow *neighbor.Flow, msg cdap.Message) (bool, error) {
	if msg.Opcode == cdap.MConnect && flow.State() == neighbor.StateEnrolled {
		flow.Conn.Reset()
		flow.SetState(neighbor.StateNone)

		r.mu.Lock()
		delete(r.workers, flow.PortID)
		r.mu.Unlock()

		w := r.spawnWorker(neigh, flow, enrollment.RoleEnroller)
		go w.Run()
		return true, w.Feed(msg)
	}

	if msg.Opcode == cdap.MStart && neigh.HasMgmtFlow() {
		if cur, err := neigh.MgmtConn(); err == nil && cur.PortID != flow.PortID {
			old, perr := neigh.PromoteToMgmt(flow.PortID)
			if perr != nil {
				return true, perr
			}
			if old != nil {
				r.mu.Lock()
				delete(r.workers, old.PortID)
				r.mu.Unlock()
				old.Close()
			}
		}
	}
	return false, nil
}
