// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package enrollment implements the enrollment state machine (C5): the
// 7/8-message handshake a NeighFlow runs through to become ENROLLED,
// expressed as an explicit state table. Grounded on the teacher's
// internal/supervisor worker-lifecycle pattern (a goroutine driven by a
// bounded inbox channel, with a condition variable signaling completion
// to waiters) adapted from process supervision to a protocol handshake.
package enrollment

import (
	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/neighbor"
)

// Role is which side of the handshake a NeighFlow is playing.
type Role int

const (
	RoleEnrollee Role = iota
	RoleEnroller
)

func (r Role) String() string {
	if r == RoleEnroller {
		return "enroller"
	}
	return "enrollee"
}

// step describes one FSM transition: on receiving recv in state current
// (for role), move to next and emit every opcode in send, in order.
// terminal marks ENROLLED.
type step struct {
	next     neighbor.EnrollState
	send     []cdap.Opcode
	terminal bool
}

// Step advances the FSM for role upon receiving op in current. ok is
// false when the received message's Result field was non-zero (a
// protocol-level NACK), which always aborts the handshake regardless of
// state, per spec.md §4.5 abort(nf) policy.
func Step(role Role, current neighbor.EnrollState, op cdap.Opcode, ok bool) (next neighbor.EnrollState, send []cdap.Opcode, terminal bool, err error) {
	if !ok {
		return neighbor.StateNone, nil, false, errors.Errorf(errors.KindPeerFailure, "enrollment: peer NACKed %s in state %s", op, current)
	}

	if role == RoleEnrollee {
		return stepEnrollee(current, op)
	}
	return stepEnroller(current, op)
}

// stepEnrollee drives the initiator side (I_*). The enroller, not the
// enrollee, sends M_STOP: per spec.md §4.3 steps 4-7, the enrollee only
// replies M_STOP_R once the enroller's M_STOP arrives in I_WAIT_STOP.
func stepEnrollee(current neighbor.EnrollState, op cdap.Opcode) (neighbor.EnrollState, []cdap.Opcode, bool, error) {
	switch current {
	case neighbor.StateIWaitConnectR:
		if op == cdap.MConnectR {
			return neighbor.StateIWaitStartR, []cdap.Opcode{cdap.MStart}, false, nil
		}
	case neighbor.StateIWaitStartR:
		if op == cdap.MStartR {
			return neighbor.StateIWaitStop, nil, false, nil
		}
	case neighbor.StateIWaitStop:
		if op == cdap.MStop {
			return neighbor.StateEnrolled, []cdap.Opcode{cdap.MStopR}, true, nil
		}
	case neighbor.StateIWaitStart:
		// Reserved: spec.md §9 leaves this state's reachability open; this
		// daemon never drives an enrollee into it, so any arrival here is
		// a protocol violation rather than a valid transition.
		return neighbor.StateNone, nil, false, errors.New(errors.KindProtocolViolation, "enrollment: enrollee entered I_WAIT_START, which is unreachable in this implementation")
	}
	return neighbor.StateNone, nil, false, errors.Errorf(errors.KindProtocolViolation, "enrollment: unexpected %s for enrollee in state %s", op, current)
}

// stepEnroller drives the slave/enroller side (S_*). On M_START it
// replies with both M_START_R (carrying the enrollment snapshot) and
// M_STOP in sequence, per spec.md §4.3 steps 4 and 6; S_WAIT_STOP_R
// names the wait for the enrollee's M_STOP_R reply to that M_STOP.
func stepEnroller(current neighbor.EnrollState, op cdap.Opcode) (neighbor.EnrollState, []cdap.Opcode, bool, error) {
	switch current {
	case neighbor.StateNone:
		if op == cdap.MConnect {
			return neighbor.StateSWaitStart, []cdap.Opcode{cdap.MConnectR}, false, nil
		}
	case neighbor.StateSWaitStart:
		if op == cdap.MStart {
			return neighbor.StateSWaitStopR, []cdap.Opcode{cdap.MStartR, cdap.MStop}, false, nil
		}
	case neighbor.StateSWaitStopR:
		if op == cdap.MStopR {
			return neighbor.StateEnrolled, nil, true, nil
		}
	}
	return neighbor.StateNone, nil, false, errors.Errorf(errors.KindProtocolViolation, "enrollment: unexpected %s for enroller in state %s", op, current)
}
