// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"encoding/binary"
	"io"

	"rina.dev/ipcpd/internal/errors"
)

// FrameType distinguishes the three management-frame directions of
// spec.md §6.
type FrameType uint8

const (
	FrameIn             FrameType = 1 // from kernel
	FrameOutLocalPort   FrameType = 2
	FrameOutDstAddr     FrameType = 3
)

// headerSize is the fixed prefix before a frame's CDAP payload:
// type(1) + reserved(1) + local_port(4) + remote_addr(8) + flags(4).
const headerSize = 1 + 1 + 4 + 8 + 4

// MaxFrame is the largest management frame this daemon accepts, per
// spec.md §6; oversized writes are rejected with KindResource/EFBIG.
const MaxFrame = 8 * 1024

// Header is the fixed management-frame prefix carried ahead of every
// CDAP byte stream on the bound management fd.
type Header struct {
	Type       FrameType
	LocalPort  uint32
	RemoteAddr uint64
	Flags      uint32
}

// Frame is one complete management PDU: header plus CDAP payload. The
// management fd is modeled as message-oriented (each Read/Write call
// transfers exactly one frame), matching a RINA flow's SDU-preserving
// semantics rather than a raw byte stream.
type Frame struct {
	Header Header
	Body   []byte
}

func encodeHeader(h Header) []byte {
	b := make([]byte, headerSize)
	b[0] = byte(h.Type)
	b[1] = 0 // reserved
	binary.BigEndian.PutUint32(b[2:6], h.LocalPort)
	binary.BigEndian.PutUint64(b[6:14], h.RemoteAddr)
	binary.BigEndian.PutUint32(b[14:18], h.Flags)
	return b
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, errors.Errorf(errors.KindProtocolViolation, "rib: short management header (%d bytes)", len(b))
	}
	return Header{
		Type:       FrameType(b[0]),
		LocalPort:  binary.BigEndian.Uint32(b[2:6]),
		RemoteAddr: binary.BigEndian.Uint64(b[6:14]),
		Flags:      binary.BigEndian.Uint32(b[14:18]),
	}, nil
}

// WriteFrame prepends f's header and writes the combined frame to w in a
// single call, implementing mgmt_bound_flow_write. Frames over MaxFrame
// are rejected rather than sent.
func WriteFrame(w io.Writer, f Frame) error {
	if headerSize+len(f.Body) > MaxFrame {
		return errors.Errorf(errors.KindResource, "rib: management frame too large (%d bytes, EFBIG)", headerSize+len(f.Body))
	}
	buf := make([]byte, 0, headerSize+len(f.Body))
	buf = append(buf, encodeHeader(f.Header)...)
	buf = append(buf, f.Body...)
	_, err := w.Write(buf)
	if err != nil {
		return errors.Wrap(err, errors.KindTransientIO, "rib: write management frame")
	}
	return nil
}

// ReadFrame reads up to MaxFrame bytes from r in one call and parses them
// as a single management frame.
func ReadFrame(r io.Reader) (Frame, error) {
	buf := make([]byte, MaxFrame)
	n, err := r.Read(buf)
	if err != nil {
		return Frame{}, errors.Wrap(err, errors.KindTransientIO, "rib: read management frame")
	}
	h, err := decodeHeader(buf[:n])
	if err != nil {
		return Frame{}, err
	}
	body := make([]byte, n-headerSize)
	copy(body, buf[headerSize:n])
	return Frame{Header: h, Body: body}, nil
}
