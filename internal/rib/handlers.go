// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/dft"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/lfdb"
	"rina.dev/ipcpd/internal/neighbor"
)

var codec = cdap.GobCodec{}

// handleLFDB implements spec.md §4.4's M_CREATE/M_DELETE handler for
// /mgmt/routing/lfdb: apply every entry, collect the ones that actually
// changed, split-horizon rebroadcast them to every other enrolled
// neighbor, and rerun the shortest-path engine.
func handleLFDB(r *RIB, ctx *dispatchCtx, msg cdap.Message) error {
	var list lfdb.LowerFlowList
	if len(msg.Body) > 0 {
		if err := codec.Unmarshal(msg.Body, &list); err != nil {
			return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode lfdb entries")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []lfdb.LowerFlow
	switch msg.Opcode {
	case cdap.MCreate:
		for _, e := range list.Entries {
			if r.lfdb.Add(e) {
				changed = append(changed, e)
			}
		}
	case cdap.MDelete:
		for _, e := range list.Entries {
			if r.lfdb.Del(e.Local, e.Remote) {
				changed = append(changed, e)
			}
		}
	default:
		return errors.Errorf(errors.KindProtocolViolation, "rib: unexpected opcode %s for lfdb object", msg.Opcode)
	}
	if len(changed) == 0 {
		return nil
	}

	if body, err := codec.Marshal(lfdb.LowerFlowList{Entries: changed}); err == nil {
		r.broadcastExceptLocked(ctx.Neigh, ClassLFDB, ObjLFDB, msg.Opcode, body)
	}
	r.runSPLocked()
	return nil
}

// handleDFT implements spec.md §4.6's M_CREATE/M_DELETE handler for
// /mgmt/dft/table.
func handleDFT(r *RIB, ctx *dispatchCtx, msg cdap.Message) error {
	var slice dft.Slice
	if len(msg.Body) > 0 {
		if err := codec.Unmarshal(msg.Body, &slice); err != nil {
			return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode dft entries")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Opcode {
	case cdap.MCreate:
		changed := r.dft.Apply(slice.Entries)
		if len(changed) == 0 {
			return nil
		}
		if body, err := codec.Marshal(dft.Slice{Entries: changed}); err == nil {
			r.broadcastExceptLocked(ctx.Neigh, ClassDFT, ObjDFT, cdap.MCreate, body)
		}
	case cdap.MDelete:
		for _, e := range slice.Entries {
			r.dft.Delete(e.ApplName)
		}
		if body, err := codec.Marshal(slice); err == nil {
			r.broadcastExceptLocked(ctx.Neigh, ClassDFT, ObjDFT, cdap.MDelete, body)
		}
	default:
		return errors.Errorf(errors.KindProtocolViolation, "rib: unexpected opcode %s for dft object", msg.Opcode)
	}
	return nil
}

// handleNeighbors merges gossipped NeighborCandidates into the local
// cache. Per spec.md §9's open question, the outer Neighbor the message
// arrived on is deliberately unused: only the candidates carried in the
// body matter here.
func handleNeighbors(r *RIB, _ *dispatchCtx, msg cdap.Message) error {
	var list neighbor.CandidateList
	if len(msg.Body) > 0 {
		if err := codec.Unmarshal(msg.Body, &list); err != nil {
			return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode neighbor candidates")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cand := range list.Entries {
		r.candSeen[cand.APName] = cand
	}
	return nil
}

// flowAllocRequest is the wire form of an fa_req, carried on
// /mgmt/flowalloc/flows (spec.md §4.8).
type flowAllocRequest struct {
	SrcApplName string
	DstApplName string
	SrcPortID   uint32
}

// flowAllocResponse is the wire form of an fa_resp.
type flowAllocResponse struct {
	SrcPortID uint32
	DstPortID uint32
	Accept    bool
}

// handleFlowAlloc implements the destination and origin halves of the
// flow allocator FSM (spec.md §4.8): an inbound M_CREATE is a fa_req to
// accept or reject locally; an inbound M_CREATE_R is the fa_resp driving
// our own pending request; an inbound M_DELETE is flow_deallocated.
func handleFlowAlloc(r *RIB, ctx *dispatchCtx, msg cdap.Message) error {
	switch msg.Opcode {
	case cdap.MCreate:
		var req flowAllocRequest
		if err := codec.Unmarshal(msg.Body, &req); err != nil {
			return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode flow alloc request")
		}

		r.mu.Lock()
		dstAddr := r.dft.Resolve(req.DstApplName)
		var resp flowAllocResponse
		if dstAddr == addr.NullAddr || dstAddr != r.myAddr {
			resp = flowAllocResponse{SrcPortID: req.SrcPortID, Accept: false}
		} else {
			f := r.flowalloc.AcceptIncoming(req.SrcApplName, req.DstApplName, dstAddr)
			resp = flowAllocResponse{SrcPortID: req.SrcPortID, DstPortID: f.PortID, Accept: true}
		}
		r.mu.Unlock()

		body, err := codec.Marshal(resp)
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "rib: encode flow alloc response")
		}
		if ctx.Flow == nil {
			return errors.New(errors.KindProtocolViolation, "rib: flow alloc request carries no origin flow")
		}
		return r.writeToFlow(ctx.Flow, cdap.Message{
			Opcode: cdap.MCreateR, ObjClass: ClassFlow, ObjName: ObjFlowAlloc,
			Src: r.cfg.MyName.String(), Body: body,
		})

	case cdap.MCreateR:
		var resp flowAllocResponse
		if err := codec.Unmarshal(msg.Body, &resp); err != nil {
			return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode flow alloc response")
		}
		if resp.Accept {
			return r.flowalloc.Accept(resp.SrcPortID)
		}
		return r.flowalloc.Reject(resp.SrcPortID)

	case cdap.MDelete:
		var req flowAllocRequest
		if err := codec.Unmarshal(msg.Body, &req); err != nil {
			return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode flow dealloc")
		}
		return r.flowalloc.Deallocate(req.SrcPortID)

	default:
		return errors.Errorf(errors.KindProtocolViolation, "rib: unexpected opcode %s for flow alloc object", msg.Opcode)
	}
}

// addrAllocEntry is the wire form of an address-allocation proposal or
// challenge, carried on /mgmt/addralloc/table (spec.md §4.7).
type addrAllocEntry struct {
	Candidate addr.Addr
	TieBreak  uint64
}

// handleAddrAlloc implements the nack side of the nack-wait protocol: a
// competing claim for a candidate we are currently probing triggers
// HandleConflict, and if we must yield, a negative M_CREATE_R is sent
// back to the challenger.
func handleAddrAlloc(r *RIB, ctx *dispatchCtx, msg cdap.Message) error {
	if msg.Opcode != cdap.MCreate {
		return errors.Errorf(errors.KindProtocolViolation, "rib: unexpected opcode %s for addralloc object", msg.Opcode)
	}
	var e addrAllocEntry
	if err := codec.Unmarshal(msg.Body, &e); err != nil {
		return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode addralloc entry")
	}

	r.mu.Lock()
	grant, ok := r.addrGrant[e.Candidate]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if !grant.HandleConflict(e.Candidate, e.TieBreak) {
		return nil
	}
	if ctx.Flow == nil {
		return nil
	}
	return r.writeToFlow(ctx.Flow, cdap.Message{
		Opcode: cdap.MCreateR, ObjClass: ClassAddrAlloc, ObjName: ObjAddrAlloc,
		Result: 1, Src: r.cfg.MyName.String(),
	})
}

func handleOperStatus(r *RIB, ctx *dispatchCtx, msg cdap.Message) error {
	if ctx.Neigh != nil {
		r.log.Info("rib: operational status", "neighbor", ctx.Neigh.Name.String(), "src", msg.Src)
	}
	return nil
}

func handleKeepalive(r *RIB, ctx *dispatchCtx, msg cdap.Message) error {
	// HandleIncoming already touched the flow and marked the neighbor
	// heard; a keepalive's only job is to exist.
	return nil
}

// handleLowerFlowStatus applies a single-entry LowerFlow push on
// /mgmt/lowerflow — the non-batched sibling of /mgmt/routing/lfdb. This
// IPCP's own update_local announcement goes out on /mgmt/routing/lfdb
// (see updateLocal), not on this object.
func handleLowerFlowStatus(r *RIB, _ *dispatchCtx, msg cdap.Message) error {
	var lf lfdb.LowerFlow
	if err := codec.Unmarshal(msg.Body, &lf); err != nil {
		return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode lower flow status")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch msg.Opcode {
	case cdap.MCreate:
		if r.lfdb.Add(lf) {
			r.runSPLocked()
		}
	case cdap.MDelete:
		if r.lfdb.Del(lf.Local, lf.Remote) {
			r.runSPLocked()
		}
	default:
		return errors.Errorf(errors.KindProtocolViolation, "rib: unexpected opcode %s for lowerflow object", msg.Opcode)
	}
	return nil
}

func handlePolicyMod(r *RIB, component string, msg cdap.Message) error {
	name := string(msg.Body)
	return r.reg.PolicyMod(component, name)
}

func handlePolicyParamMod(r *RIB, component string, msg cdap.Message) error {
	var kv struct{ Name, Value string }
	if err := codec.Unmarshal(msg.Body, &kv); err != nil {
		return errors.Wrap(err, errors.KindProtocolViolation, "rib: decode policy param")
	}
	return r.reg.PolicyParamMod(component, kv.Name, kv.Value)
}
