// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tcpflow is a reference neighbor.LowerFlowAllocator: it renders
// an N-1 flow as a plain TCP connection, keyed by a static peer-name ->
// address book. This is a stand-in for the real OS-level flow allocation
// API, which spec.md §1 places out of scope; it exists so this daemon can
// actually be run and enrolled end to end (e.g. over a test harness or a
// lab network) rather than only ever driven through unit tests. Grounded
// on the teacher's cmd/proxy.go, which dials/accepts plain TCP/Unix
// connections as the transport underneath its own higher-level protocol.
//
// A real N-1 flow-allocation request at the lower DIF already carries the
// caller's source name to the callee before any CDAP traffic starts; this
// stand-in reproduces that with a one-line text preamble ("srcName
// suppDIF\n") sent immediately after connecting, so Accept can identify
// the caller the same way AcceptNeighborFlow expects.
package tcpflow

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/neighbor"
)

// readLine reads a single '\n'-terminated line one byte at a time so it
// never buffers ahead into the CDAP bytes that follow on the same
// connection once the preamble is consumed.
func readLine(conn net.Conn) (string, error) {
	buf := make([]byte, 0, 128)
	one := make([]byte, 1)
	for {
		if _, err := conn.Read(one); err != nil {
			return "", err
		}
		if one[0] == '\n' {
			return string(buf), nil
		}
		buf = append(buf, one[0])
	}
}

// Book maps a peer's canonical name string to a dial address ("host:port")
// within a named supporting DIF. A real allocator would resolve this via
// the lower DIF's own directory instead of a static table.
type Book map[string]string

// Allocator implements neighbor.LowerFlowAllocator over TCP.
type Allocator struct {
	myName addr.Name

	mu      sync.Mutex
	dials   map[string]Book // suppDIF -> peer name -> dial address
	nextPID uint32
}

// New creates an empty Allocator that identifies itself as myName on
// every outbound flow it opens; call AddPeer to populate its dial book.
func New(myName addr.Name) *Allocator {
	return &Allocator{myName: myName, dials: make(map[string]Book)}
}

// AddPeer registers the TCP dial address for peer within suppDIF.
func (a *Allocator) AddPeer(suppDIF string, peer addr.Name, dialAddr string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	book, ok := a.dials[suppDIF]
	if !ok {
		book = make(Book)
		a.dials[suppDIF] = book
	}
	book[peer.String()] = dialAddr
}

// AllocateFlow dials the peer's registered TCP address, announces this
// IPCP's name over the preamble, and wraps the resulting connection as a
// fresh N-1 flow. TCP connections are always reported reliable;
// lower_ipcp_id echoes the supporting DIF name, since this stand-in has
// no separate concept of a lower IPCP instance.
func (a *Allocator) AllocateFlow(ctx context.Context, suppDIF string, peer addr.Name) (neighbor.AllocatedFlow, error) {
	a.mu.Lock()
	dialAddr, ok := a.dials[suppDIF][peer.String()]
	a.mu.Unlock()
	if !ok {
		return neighbor.AllocatedFlow{}, errors.Errorf(errors.KindResource, "tcpflow: no dial address for %s in DIF %q", peer.String(), suppDIF)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", dialAddr)
	if err != nil {
		return neighbor.AllocatedFlow{}, errors.Wrap(err, errors.KindResource, fmt.Sprintf("tcpflow: dial %s", dialAddr))
	}
	if _, err := fmt.Fprintf(conn, "%s %s\n", a.myName.String(), suppDIF); err != nil {
		conn.Close()
		return neighbor.AllocatedFlow{}, errors.Wrap(err, errors.KindTransientIO, "tcpflow: send preamble")
	}

	return neighbor.AllocatedFlow{
		PortID:      atomic.AddUint32(&a.nextPID, 1),
		IO:          conn,
		LowerIPCPID: suppDIF,
		Reliable:    true,
	}, nil
}

// Inbound is one accepted N-1 flow along with the peer identity and
// supporting DIF name its preamble announced.
type Inbound struct {
	Peer    addr.Name
	SuppDIF string
	Flow    neighbor.AllocatedFlow
}

// Listener accepts inbound N-1 flows on a bound TCP address.
type Listener struct {
	ln      net.Listener
	nextPID uint32
}

// Listen binds addrStr for inbound flow-allocation requests.
func Listen(addrStr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addrStr)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindFatal, "tcpflow: listen")
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks for the next inbound connection and reads its preamble.
func (l *Listener) Accept() (Inbound, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return Inbound{}, err
	}

	line, err := readLine(conn)
	if err != nil {
		conn.Close()
		return Inbound{}, errors.Wrap(err, errors.KindProtocolViolation, "tcpflow: read preamble")
	}
	var srcName, suppDIF string
	if _, err := fmt.Sscanf(line, "%s %s", &srcName, &suppDIF); err != nil {
		conn.Close()
		return Inbound{}, errors.Wrap(err, errors.KindProtocolViolation, "tcpflow: parse preamble")
	}
	name, err := addr.ParseName(srcName)
	if err != nil {
		conn.Close()
		return Inbound{}, errors.Wrap(err, errors.KindProtocolViolation, "tcpflow: parse preamble name")
	}

	return Inbound{
		Peer:    name,
		SuppDIF: suppDIF,
		Flow: neighbor.AllocatedFlow{
			PortID:      atomic.AddUint32(&l.nextPID, 1) | 0x8000_0000, // high bit: locally-accepted port id namespace
			IO:          conn,
			LowerIPCPID: suppDIF,
			Reliable:    true,
		},
	}, nil
}

// Close releases the bound listening socket.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Addr returns the address this listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
