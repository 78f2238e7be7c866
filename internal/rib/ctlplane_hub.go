// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"fmt"
	"sort"
	"strings"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/dft"
	"rina.dev/ipcpd/internal/errors"
)

// This file implements ctlplane.Hub on *RIB (spec.md §6's control socket
// commands), grounded on the teacher's ctlplane.Server pattern of a thin
// transport calling straight into the real subsystem.

// Register publishes applName as reachable at this IPCP's own address.
func (r *RIB) Register(applName, difName string) error {
	e := r.dft.Set(applName, r.MyAddr())

	body, err := codec.Marshal(dft.Slice{Entries: []dft.Entry{e}})
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "rib: encode dft entry")
	}
	r.mu.Lock()
	r.broadcastExceptLocked(nil, ClassDFT, ObjDFT, cdap.MCreate, body)
	r.mu.Unlock()
	return nil
}

// Unregister withdraws applName from the directory.
func (r *RIB) Unregister(applName string) error {
	if !r.dft.Delete(applName) {
		return errors.Errorf(errors.KindResource, "rib: %q not registered", applName)
	}
	return nil
}

// Enroll parses neighName and drives EnrollNeighbor; the string form is
// the control socket's wire representation of an addr.Name.
func (r *RIB) Enroll(neighName, suppDIF string, wait bool) error {
	name, err := addr.ParseName(neighName)
	if err != nil {
		return errors.Wrap(err, errors.KindConfig, "rib: parse neighbor name")
	}
	return r.EnrollNeighbor(name, suppDIF, wait)
}

// EnrollerEnable toggles whether this IPCP accepts enrollment requests
// from new neighbors.
func (r *RIB) EnrollerEnable(enable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.EnrollerEnabled = enable
	return nil
}

// DFTSet installs a manual directory override.
func (r *RIB) DFTSet(applName string, address uint64) error {
	r.dft.Set(applName, addr.Addr(address))
	return nil
}

// RIBShow renders a human-readable dump of every replicated table, for
// rib-show.
func (r *RIB) RIBShow() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "address: %s\n", r.myAddr)
	fmt.Fprintf(&b, "neighbors:\n")
	for _, n := range r.neighbors {
		fmt.Fprintf(&b, "  %s addr=%s enrolled=%t\n", n.Name.String(), n.Address, n.Enrolled())
	}
	fmt.Fprintf(&b, "lfdb:\n")
	for _, lf := range r.lfdb.Snapshot() {
		fmt.Fprintf(&b, "  %s -> %s cost=%d state=%s age=%d\n", lf.Local, lf.Remote, lf.Cost, lf.State, lf.Age)
	}
	fmt.Fprintf(&b, "dft:\n")
	for _, e := range r.dft.Snapshot() {
		fmt.Fprintf(&b, "  %s -> %s\n", e.ApplName, e.Address)
	}
	return b.String(), nil
}

// RoutingShow renders the currently computed next-hop table.
func (r *RIB) RoutingShow() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dests := make([]addr.Addr, 0, len(r.nextHops))
	for d := range r.nextHops {
		dests = append(dests, d)
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })

	var b strings.Builder
	for _, d := range dests {
		fmt.Fprintf(&b, "%s via %s\n", d, r.nextHops[d])
	}
	return b.String(), nil
}

func (r *RIB) PolicyMod(component, name string) error {
	return r.reg.PolicyMod(component, name)
}

func (r *RIB) PolicyList(component string) ([]string, error) {
	return r.reg.Names(component), nil
}

func (r *RIB) PolicyParamMod(component, name, value string) error {
	return r.reg.PolicyParamMod(component, name, value)
}

func (r *RIB) PolicyParamList(component string) (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range r.reg.ParamNames(component) {
		out[name] = r.reg.Param(component, name).String()
	}
	return out, nil
}

// NeighDisconnect tears down every flow to neighName and drops it from
// the neighbor table.
func (r *RIB) NeighDisconnect(neighName string) error {
	name, err := addr.ParseName(neighName)
	if err != nil {
		return errors.Wrap(err, errors.KindConfig, "rib: parse neighbor name")
	}

	r.mu.Lock()
	n, ok := r.neighbors[name.String()]
	if ok {
		delete(r.neighbors, name.String())
		for portID, owner := range r.portOwner {
			if owner == n {
				delete(r.portOwner, portID)
			}
		}
		r.metrics.Neighbors.Set(float64(len(r.neighbors)))
	}
	r.mu.Unlock()

	if !ok {
		return errors.Errorf(errors.KindResource, "rib: no such neighbor %q", neighName)
	}
	for _, f := range n.Flows() {
		f.Close()
	}
	return nil
}

// LowerDIFDetach is not yet meaningful for this daemon: lower DIF
// membership is carried entirely by the allocator the caller wires in at
// construction time, so there is nothing to tear down here beyond what
// NeighDisconnect already covers per supporting DIF.
func (r *RIB) LowerDIFDetach(difName string) error {
	return nil
}
