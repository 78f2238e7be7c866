// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cdap

import (
	"sync"

	"rina.dev/ipcpd/internal/errors"
)

// ConnState is the connection-level (not enrollment-level) state of a CDAP
// session over one N-1 flow.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnected
	ConnAwaitingRelease
)

func (s ConnState) String() string {
	switch s {
	case ConnConnected:
		return "connected"
	case ConnAwaitingRelease:
		return "awaiting-release"
	default:
		return "disconnected"
	}
}

// Conn is a per-N-1-flow CDAP connection (C2): it tracks M_CONNECT/
// M_CONNECT_R/M_RELEASE/M_RELEASE_R and exposes (de)serialization of
// Messages. A single Conn is never used by more than one goroutine
// concurrently; callers serialize access the same way they serialize
// access to the underlying NeighFlow.
type Conn struct {
	mu    sync.Mutex
	state ConnState
	codec Codec
}

// NewConn creates a disconnected Conn using codec for nested object
// (de)serialization.
func NewConn(codec Codec) *Conn {
	if codec == nil {
		codec = GobCodec{}
	}
	return &Conn{state: ConnDisconnected, codec: codec}
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Advance updates connection state in response to a CDAP opcode crossing
// the wire (either direction). It is the only place Conn's state changes.
func (c *Conn) Advance(op Opcode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch op {
	case MConnect:
		// Either side may see the opcode before the reply; connection is
		// considered open from the initiator's perspective once sent and
		// from the acceptor's once received.
		c.state = ConnConnected
	case MConnectR:
		c.state = ConnConnected
	case MRelease:
		c.state = ConnAwaitingRelease
	case MReleaseR:
		c.state = ConnDisconnected
	}
}

// Reset returns the connection to disconnected without sending anything,
// per spec.md §4.1.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ConnDisconnected
}

// MsgSer serializes msg for the wire, stamping invokeID, after verifying the
// connection accepts writes (anything but a CONNECT/CONNECT_R pair requires
// an established connection).
func (c *Conn) MsgSer(msg Message, invokeID uint32) ([]byte, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == ConnDisconnected && msg.Opcode != MConnect && msg.Opcode != MConnectR {
		return nil, errors.Errorf(errors.KindProtocolViolation, "cdap: write rejected, connection not established (state=%s, op=%s)", state, msg.Opcode)
	}

	msg.InvokeID = invokeID
	encoded, err := c.codec.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindProtocolViolation, "cdap: serialize message")
	}
	return encoded, nil
}

// MsgDeser deserializes a wire-format CDAP message.
func (c *Conn) MsgDeser(b []byte) (Message, error) {
	var msg Message
	if err := c.codec.Unmarshal(b, &msg); err != nil {
		return Message{}, errors.Wrap(err, errors.KindProtocolViolation, "cdap: deserialize message")
	}
	return msg, nil
}
