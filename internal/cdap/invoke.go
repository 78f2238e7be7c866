// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cdap

import (
	"sync"

	"rina.dev/ipcpd/internal/errors"
)

// InvokeIDPool issues and recycles per-session CDAP invoke ids (C1). Each
// NeighFlow owns one pool for the requests it originates.
type InvokeIDPool struct {
	mu     sync.Mutex
	next   uint32
	free   []uint32
	inUse  map[uint32]struct{}
	noZero bool // invoke id 0 is reserved, never issued
}

// NewInvokeIDPool creates an empty pool. Invoke id 0 is never issued: CDAP
// reserves it to mean "no invoke id" on messages outside any request.
func NewInvokeIDPool() *InvokeIDPool {
	return &InvokeIDPool{
		next:   1,
		inUse:  make(map[uint32]struct{}),
		noZero: true,
	}
}

// Allocate returns a fresh invoke id, preferring a recycled one.
func (p *InvokeIDPool) Allocate() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var id uint32
	if n := len(p.free); n > 0 {
		id = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		id = p.next
		p.next++
	}
	p.inUse[id] = struct{}{}
	return id
}

// Release returns id to the free list so it can be recycled. Releasing an
// id that isn't currently allocated is a protocol-violation error: it means
// a caller is acknowledging a request it never sent.
func (p *InvokeIDPool) Release(id uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inUse[id]; !ok {
		return errors.Errorf(errors.KindProtocolViolation, "invoke id %d not outstanding", id)
	}
	delete(p.inUse, id)
	p.free = append(p.free, id)
	return nil
}

// Outstanding reports how many invoke ids are currently allocated.
func (p *InvokeIDPool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}
