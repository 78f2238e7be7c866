// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"strings"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/neighbor"
)

func (r *RIB) registerHandlers() {
	r.handlers[ObjLFDB] = handleLFDB
	r.handlers[ObjDFT] = handleDFT
	r.handlers[ObjNeighbors] = handleNeighbors
	r.handlers[ObjFlowAlloc] = handleFlowAlloc
	r.handlers[ObjAddrAlloc] = handleAddrAlloc
	r.handlers[ObjOperStatus] = handleOperStatus
	r.handlers[ObjKeepalive] = handleKeepalive
	r.handlers[ObjLowerFlow] = handleLowerFlowStatus
}

// HandleFrame is the event loop's entry point for a parsed management
// frame: A-DATA envelopes (recognized by class/name, spec.md §4.9) are
// dispatched with the frame header's remote address standing in for a
// NeighFlow; everything else is routed by local_port to the owning
// NeighFlow via HandleIncoming.
func (r *RIB) HandleFrame(h Header, msg cdap.Message) error {
	if msg.ObjClass == ClassADATA && msg.ObjName == ObjADATA {
		return r.handleADATA(addr.Addr(h.RemoteAddr), msg)
	}
	return r.HandleIncoming(h.LocalPort, msg)
}

// handleADATA unwraps a sessionless envelope and redispatches its nested
// CDAP message with src standing in for the missing NeighFlow. Per
// spec.md §7, A-DATA handlers never return non-zero: there is no flow to
// tear down, so failures are only logged.
func (r *RIB) handleADATA(src addr.Addr, msg cdap.Message) error {
	var nested cdap.Message
	if err := (cdap.GobCodec{}).Unmarshal(msg.Body, &nested); err != nil {
		r.log.Warn("rib: malformed a_data envelope", "src", src, "error", err)
		return nil
	}
	ctx := &dispatchCtx{SrcAddr: src, ADATA: true}
	if err := r.Dispatch(ctx, nested); err != nil {
		r.log.Warn("rib: a_data dispatch failed", "src", src, "error", err)
	}
	return nil
}

// HandleIncoming locates the NeighFlow a non-A-DATA message arrived on,
// routes it either to that flow's active enrollment worker or into the
// object handler table, and updates the neighbor's unheard_since
// watermark, per spec.md §2's control flow.
func (r *RIB) HandleIncoming(portID uint32, msg cdap.Message) error {
	r.mu.Lock()
	neigh := r.portOwner[portID]
	var flow *neighbor.Flow
	var neighAddr addr.Addr
	if neigh != nil {
		flow = neigh.Flow(portID)
		neighAddr = neigh.Address
	}
	worker := r.workers[portID]
	r.mu.Unlock()

	if flow == nil {
		return errors.Errorf(errors.KindProtocolViolation, "rib: no neighbor flow for port %d", portID)
	}
	neigh.MarkHeard(timeNow())
	flow.Touch(timeNow())

	if handled, err := r.checkReenrollment(neigh, flow, msg); handled {
		return err
	}

	if worker != nil {
		return worker.Feed(msg)
	}

	ctx := &dispatchCtx{Flow: flow, Neigh: neigh, SrcAddr: neighAddr}
	return r.Dispatch(ctx, msg)
}

// Dispatch looks up msg's object name in the handler table, falling back
// once to the container name (stripping the last path segment) per
// spec.md §4.9's hierarchical fallback, and invokes the handler. Policy
// objects (/{component}/policy, /{component}/params) are matched by
// suffix instead, since the component name varies.
func (r *RIB) Dispatch(ctx *dispatchCtx, msg cdap.Message) error {
	if h, comp, ok := policyHandler(msg.ObjName); ok {
		return h(r, comp, msg)
	}

	h, ok := r.handlers[msg.ObjName]
	if !ok {
		if idx := strings.LastIndex(msg.ObjName, "/"); idx > 0 {
			h, ok = r.handlers[msg.ObjName[:idx]]
		}
	}
	if !ok {
		return errors.Errorf(errors.KindProtocolViolation, "rib: no handler for object %q", msg.ObjName)
	}
	return h(r, ctx, msg)
}

type policyHandlerFunc func(r *RIB, component string, msg cdap.Message) error

// policyHandler recognizes /{component}/policy and /{component}/params
// object names and returns the matching handler plus the extracted
// component name.
func policyHandler(objName string) (policyHandlerFunc, string, bool) {
	switch {
	case strings.HasSuffix(objName, policySuffix):
		return handlePolicyMod, strings.TrimSuffix(objName, policySuffix), true
	case strings.HasSuffix(objName, paramsSuffix):
		return handlePolicyParamMod, strings.TrimSuffix(objName, paramsSuffix), true
	default:
		return nil, "", false
	}
}
