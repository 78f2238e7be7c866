// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"context"
	"time"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/neighbor"
)

// Run starts the management-frame event loop, the age-increment ticker,
// and the 10-second periodic task runner (spec.md §2, §4.9). Call Close
// to stop all three.
func (r *RIB) Run() {
	r.eg.Go(func() error { r.serveMgmtLoop(); return nil })
	r.eg.Go(func() error { r.ageLoop(); return nil })
	r.eg.Go(func() error { r.periodicLoop(); return nil })
}

// serveMgmtLoop is the single event loop thread of spec.md §2: it reads
// management frames off the bound fd, decodes the nested CDAP message,
// and hands it to HandleFrame.
func (r *RIB) serveMgmtLoop() {
	if r.cfg.MgmtFD == nil {
		return
	}
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		frame, err := ReadFrame(r.cfg.MgmtFD)
		if err != nil {
			select {
			case <-r.stop:
				return
			default:
			}
			r.log.Warn("rib: management frame read failed", "error", err)
			continue
		}

		var msg cdap.Message
		if err := codec.Unmarshal(frame.Body, &msg); err != nil {
			r.log.Warn("rib: malformed management frame", "error", err)
			continue
		}
		if err := r.HandleFrame(frame.Header, msg); err != nil {
			r.log.Warn("rib: dispatch failed", "error", err)
		}
	}
}

func (r *RIB) ageInterval() time.Duration {
	return time.Duration(r.reg.Param(component, "age-incr-intval").IntVal) * time.Second
}

// ageLoop runs IncrAge on its own ticker (age-incr-intval seconds,
// independently configurable from the 10s periodic tasks, spec.md §4.9).
func (r *RIB) ageLoop() {
	for {
		select {
		case <-r.stop:
			return
		case <-time.After(r.ageInterval()):
			r.incrAge()
		}
	}
}

func (r *RIB) incrAge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	maxAge := uint32(r.reg.Param(component, "age-max").IntVal)
	intervalSecs := uint32(r.ageInterval() / time.Second)
	if discarded := r.lfdb.IncrAge(intervalSecs, maxAge); len(discarded) > 0 {
		r.runSPLocked()
	}
}

// periodicLoop runs the spec.md §4.9 10-second task list: retry failed
// enrollments for auto-reconnect neighbors, open N-flows where the
// management flow is unreliable but reliable-n-flows is enabled, and
// detect address conflicts. Reaping terminated enrollment workers needs
// no separate pass here: onEnrolledFor's callback and onAborted remove a worker
// from r.workers the moment its handshake finishes.
func (r *RIB) periodicLoop() {
	ticker := time.NewTicker(r.cfg.PeriodicInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.retryReconnects()
			r.openReliableNFlows()
			r.checkAddressConflicts()
		}
	}
}

func (r *RIB) retryReconnects() {
	if !r.cfg.AutoReconnect {
		return
	}
	r.mu.Lock()
	var toRetry []*neighbor.Neighbor
	for key, pending := range r.reconnects {
		if !pending {
			continue
		}
		if n, ok := r.neighbors[key]; ok && !n.Enrolled() {
			toRetry = append(toRetry, n)
		}
	}
	r.mu.Unlock()

	for _, n := range toRetry {
		if err := r.EnrollNeighbor(n.Name, "", false); err != nil {
			r.log.Warn("rib: reconnect failed", "neighbor", n.Name.String(), "error", err)
		}
	}
}

func (r *RIB) openReliableNFlows() {
	if !r.cfg.ReliableNFlows {
		return
	}
	r.mu.Lock()
	var need []*neighbor.Neighbor
	for _, n := range r.neighbors {
		flow, err := n.MgmtConn()
		if err == nil && !flow.Reliable {
			need = append(need, n)
		}
	}
	allocator := r.cfg.Allocator
	r.mu.Unlock()

	if allocator == nil {
		return
	}
	for _, n := range need {
		if _, err := n.AllocateFlow(context.Background(), allocator, "", false); err != nil {
			r.log.Warn("rib: reliable n-flow allocation failed", "neighbor", n.Name.String(), "error", err)
		}
	}
}

func (r *RIB) checkAddressConflicts() {
	r.mu.Lock()
	claimants := make(map[addr.Addr]int)
	for _, n := range r.neighbors {
		if n.Address.Valid() {
			claimants[n.Address]++
		}
	}
	if r.myAddr.Valid() {
		claimants[r.myAddr]++
	}
	conflicted := r.addralloc.CheckConflicts(claimants)
	myAddr := r.myAddr
	r.mu.Unlock()

	if conflicted {
		r.log.Warn("rib: address conflict detected, releasing", "addr", myAddr)
		r.addralloc.Release()
	}
}
