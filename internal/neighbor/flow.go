// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package neighbor implements NeighFlow and Neighbor (C3, C4): the
// per-N-1-flow enrollment/keepalive state and the peer identity that owns
// 1..N of them. Grounded on the teacher's internal/state replicaConn map
// keyed by address (here keyed by port id) and its small resource-holder
// struct style (internal/ctlplane's Server: plain fields, explicit
// lifecycle methods, no hidden magic).
package neighbor

import (
	"io"
	"sync"
	"time"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/cdap"
)

// EnrollState is the enrollment sub-state of a NeighFlow (spec.md §4.3).
type EnrollState int

const (
	StateNone EnrollState = iota
	StateIWaitConnectR
	StateSWaitStart
	StateIWaitStartR
	StateSWaitStopR
	StateIWaitStop
	StateIWaitStart
	StateEnrolled
)

func (s EnrollState) String() string {
	switch s {
	case StateIWaitConnectR:
		return "I_WAIT_CONNECT_R"
	case StateSWaitStart:
		return "S_WAIT_START"
	case StateIWaitStartR:
		return "I_WAIT_START_R"
	case StateSWaitStopR:
		return "S_WAIT_STOP_R"
	case StateIWaitStop:
		return "I_WAIT_STOP"
	case StateIWaitStart:
		return "I_WAIT_START"
	case StateEnrolled:
		return "ENROLLED"
	default:
		return "NONE"
	}
}

// Stats tracks basic NeighFlow traffic counters.
type Stats struct {
	MessagesSent int64
	MessagesRecv int64
}

// Flow is one N-1 flow to a neighbor (C3, NeighFlow in spec.md §3).
type Flow struct {
	mu sync.Mutex

	NeighName     addr.Name
	SuppDIF       string
	PortID        uint32
	FlowIO        io.ReadWriteCloser
	LowerIPCPID   string
	Reliable      bool
	Initiator     bool
	EnrollState   EnrollState
	Conn          *cdap.Conn
	Invokes       *cdap.InvokeIDPool
	Stats         Stats
	LastActivity  time.Time
	EnrollTimeout *time.Timer
}

// NewFlow creates a Flow in enroll state NONE, per spec.md §3.
func NewFlow(neigh addr.Name, suppDIF string, portID uint32, io_ io.ReadWriteCloser, reliable, initiator bool) *Flow {
	return &Flow{
		NeighName: neigh,
		SuppDIF:   suppDIF,
		PortID:    portID,
		FlowIO:    io_,
		Reliable:  reliable,
		Initiator: initiator,
		Conn:      cdap.NewConn(cdap.GobCodec{}),
		Invokes:   cdap.NewInvokeIDPool(),
	}
}

// State returns the current enrollment sub-state.
func (f *Flow) State() EnrollState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.EnrollState
}

// SetState transitions the enrollment sub-state.
func (f *Flow) SetState(s EnrollState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EnrollState = s
}

// Touch records activity for keepalive/unheard_since bookkeeping.
func (f *Flow) Touch(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastActivity = now
}

// ArmTimeout (re)arms the single-shot enrollment timer for the current
// wait-state, calling onExpire if it fires before being stopped/rearmed.
func (f *Flow) ArmTimeout(d time.Duration, onExpire func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnrollTimeout != nil {
		f.EnrollTimeout.Stop()
	}
	f.EnrollTimeout = time.AfterFunc(d, onExpire)
}

// DisarmTimeout stops any pending enrollment timer, e.g. on reaching
// ENROLLED or NONE.
func (f *Flow) DisarmTimeout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnrollTimeout != nil {
		f.EnrollTimeout.Stop()
		f.EnrollTimeout = nil
	}
}

// Close tears down the underlying flow I/O.
func (f *Flow) Close() error {
	f.DisarmTimeout()
	if f.FlowIO != nil {
		return f.FlowIO.Close()
	}
	return nil
}
