// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cdap implements the Common Distributed Application Protocol
// surface this daemon needs: message envelopes, the per-flow connection
// state machine (C2), and the invoke-id allocator (C1). The real
// CDAP/protobuf wire format is out of scope (spec.md §1); Conn is built
// against a small Codec interface so a production wire codec can be
// substituted without touching any caller.
package cdap

import "fmt"

// Opcode identifies a CDAP message type.
type Opcode int

const (
	OpUnknown Opcode = iota
	MConnect
	MConnectR
	MRelease
	MReleaseR
	MCreate
	MCreateR
	MDelete
	MDeleteR
	MStart
	MStartR
	MStop
	MStopR
	MRead
	MReadR
	MWrite
	MWriteR
)

func (o Opcode) String() string {
	names := map[Opcode]string{
		MConnect: "M_CONNECT", MConnectR: "M_CONNECT_R",
		MRelease: "M_RELEASE", MReleaseR: "M_RELEASE_R",
		MCreate: "M_CREATE", MCreateR: "M_CREATE_R",
		MDelete: "M_DELETE", MDeleteR: "M_DELETE_R",
		MStart: "M_START", MStartR: "M_START_R",
		MStop: "M_STOP", MStopR: "M_STOP_R",
		MRead: "M_READ", MReadR: "M_READ_R",
		MWrite: "M_WRITE", MWriteR: "M_WRITE_R",
	}
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("OP(%d)", o)
}

// Message is one CDAP PDU. Body carries the nested object (EnrollmentInfo,
// a LowerFlowList, a DFT slice, ...) as decided by ObjClass/ObjName.
type Message struct {
	Opcode   Opcode
	InvokeID uint32
	ObjClass string
	ObjName  string
	Src      string // source IPCP name, canonical form
	Dst      string // destination IPCP name, canonical form
	Result   int32  // 0 = success, matches M_*_R semantics
	Auth     []byte // opaque per spec.md §1: never interpreted here
	Body     []byte // codec-encoded nested object
}

// IsResponse reports whether o is a response opcode (M_*_R).
func (o Opcode) IsResponse() bool {
	switch o {
	case MConnectR, MReleaseR, MCreateR, MDeleteR, MStartR, MStopR, MReadR, MWriteR:
		return true
	default:
		return false
	}
}
