// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/lfdb"
	"rina.dev/ipcpd/internal/neighbor"
	"rina.dev/ipcpd/internal/routing"
)

// send writes an already-serialized CDAP message to f. Reliable flows own
// a dedicated fd and the bytes go straight across it; unreliable flows
// share the management fd, so the write is wrapped in a frame header
// carrying f's local_port for the far side to demultiplex (spec.md §4.9).
func (r *RIB) send(f *neighbor.Flow, wire []byte) error {
	if f.Reliable {
		_, err := f.FlowIO.Write(wire)
		if err != nil {
			return errors.Wrap(err, errors.KindTransientIO, "rib: write to reliable flow")
		}
		return nil
	}
	if r.cfg.MgmtFD == nil {
		return errors.New(errors.KindResource, "rib: no management fd for unreliable flow")
	}
	return WriteFrame(r.cfg.MgmtFD, Frame{
		Header: Header{Type: FrameOutLocalPort, LocalPort: f.PortID},
		Body:   wire,
	})
}

// writeToFlow serializes msg against f's CDAP connection, stamping a
// fresh invoke id, and sends it. Used by handlers replying directly
// rather than through an enrollment.Worker.
func (r *RIB) writeToFlow(f *neighbor.Flow, msg cdap.Message) error {
	invokeID := f.Invokes.Allocate()
	wire, err := f.Conn.MsgSer(msg, invokeID)
	if err != nil {
		return err
	}
	f.Conn.Advance(msg.Opcode)
	return r.send(f, wire)
}

// broadcastExceptLocked rebroadcasts an object update to every enrolled
// neighbor but except, implementing split-horizon gossip (spec.md §4.4,
// §4.5). Must be called with r.mu held.
func (r *RIB) broadcastExceptLocked(except *neighbor.Neighbor, objClass, objName string, op cdap.Opcode, body []byte) {
	for _, n := range r.neighbors {
		if n == except || !n.Enrolled() {
			continue
		}
		flow, err := n.MgmtConn()
		if err != nil {
			continue
		}
		msg := cdap.Message{
			Opcode: op, ObjClass: objClass, ObjName: objName,
			Src: r.cfg.MyName.String(), Body: body,
		}
		if err := r.writeToFlow(flow, msg); err != nil {
			r.log.Warn("rib: broadcast failed", "neighbor", n.Name.String(), "error", err)
		}
	}
}

// nextHopResolver implements routing.PortResolver against the RIB's own
// neighbor table (spec.md §4.5).
type nextHopResolver struct{ r *RIB }

func (nr nextHopResolver) PortForNextHop(next addr.Addr) (uint32, bool) {
	for _, n := range nr.r.neighbors {
		if n.Address != next {
			continue
		}
		f, err := n.MgmtConn()
		if err != nil {
			return 0, false
		}
		return f.PortID, true
	}
	return 0, false
}

// updateLocal implements spec.md §4.4's owner path: once this IPCP knows
// (myaddr, peer_addr) and has a management flow to the peer, it inserts
// its own (myaddr -> peer) LowerFlow with seqnum=1 and broadcasts it on
// /mgmt/routing/lfdb. Called once a NeighFlow to neigh reaches ENROLLED
// (spec.md §4.3: "On entering ENROLLED a side commits a LowerFlow...").
func (r *RIB) updateLocal(neigh *neighbor.Neighbor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.myAddr.Valid() || !neigh.Address.Valid() {
		return
	}
	if _, err := neigh.MgmtConn(); err != nil {
		return
	}

	lf := lfdb.LowerFlow{Local: r.myAddr, Remote: neigh.Address, Cost: 1, Seqnum: 1, State: lfdb.StateUp}
	if !r.lfdb.Add(lf) {
		return
	}

	if body, err := codec.Marshal(lfdb.LowerFlowList{Entries: []lfdb.LowerFlow{lf}}); err == nil {
		r.broadcastExceptLocked(nil, ClassLFDB, ObjLFDB, cdap.MCreate, body)
	}
	r.runSPLocked()
}

// runSPLocked reruns the shortest-path engine over the current LFDB and
// pushes the resulting forwarding table into the kernel. Must be called
// with r.mu held.
func (r *RIB) runSPLocked() {
	g := routing.BuildGraph(r.lfdb)
	hops := routing.ShortestPaths(r.myAddr, g)
	r.nextHops = hops

	if r.metrics != nil {
		r.metrics.ForwardingTableEntries.Set(float64(len(hops)))
		r.metrics.LFDBEntries.Set(float64(len(r.lfdb.Snapshot())))
	}

	if r.cfg.Kernel == nil {
		return
	}
	if err := routing.PDUFTSync(r.cfg.Kernel, hops, nextHopResolver{r}, r.log); err != nil {
		r.log.Warn("rib: pduft sync failed", "error", err)
	}
}
