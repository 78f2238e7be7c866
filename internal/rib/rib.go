// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rib

import (
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/addralloc"
	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/dft"
	"rina.dev/ipcpd/internal/enrollment"
	"rina.dev/ipcpd/internal/flowalloc"
	"rina.dev/ipcpd/internal/kernelrt"
	"rina.dev/ipcpd/internal/lfdb"
	"rina.dev/ipcpd/internal/logging"
	"rina.dev/ipcpd/internal/metrics"
	"rina.dev/ipcpd/internal/neighbor"
	"rina.dev/ipcpd/internal/policy"
)

// Config is the static configuration a RIB is built from (spec.md §2, §9:
// "each IPCP owns its RIB; there is no process-wide singleton").
type Config struct {
	MyName    addr.Name
	MyAddr    addr.Addr // NullAddr until this IPCP enrolls and is assigned one
	LowerDIFs []string

	MgmtFD io.ReadWriteCloser // shared, message-oriented management flow

	Allocator neighbor.LowerFlowAllocator
	Kernel    kernelrt.Programmer

	EnrollerEnabled bool
	AutoReconnect   bool
	ReliableNFlows  bool

	TieBreak uint64 // this node's address-conflict tie-breaker

	PeriodicInterval time.Duration // default 10s, spec.md §4.9
}

// timeNow is a package-level indirection so tests can stub out wall-clock
// time; it is never reassigned outside of tests.
var timeNow = time.Now

const (
	component = "rib"

	defaultEnrollTimeout = 1000 * time.Millisecond
	defaultAgeIncrSecs   = 30
	defaultAgeMaxSecs    = 300
	defaultPeriodic      = 10 * time.Second
)

type handlerFunc func(r *RIB, ctx *dispatchCtx, msg cdap.Message) error

// dispatchCtx carries the origin of an incoming CDAP message to a handler:
// either a NeighFlow/Neighbor pair (the common case) or a bare source
// address for a sessionless A-DATA envelope (spec.md §4.9).
type dispatchCtx struct {
	Flow    *neighbor.Flow
	Neigh   *neighbor.Neighbor
	SrcAddr addr.Addr
	ADATA   bool
}

// RIB is the resource information base for one IPCP instance: the
// concurrent database of distributed state plus the dispatcher that keeps
// it synchronized with neighbors. Every mutation happens under mu
// (spec.md §5): "one event-loop thread... All mutations of the RIB...
// happen under a single RIB mutex."
type RIB struct {
	mu sync.Mutex

	cfg     Config
	myAddr  addr.Addr
	log     *logging.Logger
	metrics *metrics.Metrics
	reg     *policy.Registry

	neighbors map[string]*neighbor.Neighbor // keyed by addr.Name.String()
	portOwner map[uint32]*neighbor.Neighbor // local_port -> owning neighbor
	candSeen  map[string]neighbor.Candidate

	lfdb      *lfdb.DB
	dft       *dft.Table
	addralloc *addralloc.Allocator
	flowalloc *flowalloc.Allocator
	addrGrant map[addr.Addr]*addralloc.Allocator // in-flight enroller-side grants

	nextHops map[addr.Addr]addr.Addr

	handlers map[string]handlerFunc

	workers    map[uint32]*enrollment.Worker // port_id -> live handshake
	nextCand   addr.Addr
	reconnects map[string]bool // neighbors pending reconnect

	stop   chan struct{}
	eg     *errgroup.Group // event loop + age loop + periodic loop lifetime
	enroll *sync.Cond      // signaled whenever any flow reaches a terminal enroll state
}

// New constructs a RIB that has not yet started its event loop or
// periodic tasks; call Run to bring it up.
func New(cfg Config, log *logging.Logger, m *metrics.Metrics) *RIB {
	if log == nil {
		log = logging.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	if cfg.PeriodicInterval == 0 {
		cfg.PeriodicInterval = defaultPeriodic
	}

	reg := policy.NewRegistry()
	reg.DeclareParam(component, "enrollment-timeout-ms", policy.NewIntParam(int64(defaultEnrollTimeout/time.Millisecond), 50, 60000))
	reg.DeclareParam(component, "age-incr-intval", policy.NewIntParam(defaultAgeIncrSecs, 1, 3600))
	reg.DeclareParam(component, "age-max", policy.NewIntParam(defaultAgeMaxSecs, 1, 86400))

	r := &RIB{
		cfg:        cfg,
		myAddr:     cfg.MyAddr,
		log:        log,
		metrics:    m,
		reg:        reg,
		neighbors:  make(map[string]*neighbor.Neighbor),
		portOwner:  make(map[uint32]*neighbor.Neighbor),
		candSeen:   make(map[string]neighbor.Candidate),
		lfdb:       lfdb.New(cfg.MyAddr),
		dft:        dft.New(),
		addralloc:  addralloc.New(reg),
		flowalloc:  nil, // set below once dft resolver is available
		addrGrant:  make(map[addr.Addr]*addralloc.Allocator),
		nextHops:   make(map[addr.Addr]addr.Addr),
		handlers:   make(map[string]handlerFunc),
		workers:    make(map[uint32]*enrollment.Worker),
		nextCand:   cfg.MyAddr + 1,
		reconnects: make(map[string]bool),
		stop:       make(chan struct{}),
		eg:         &errgroup.Group{},
	}
	r.enroll = sync.NewCond(&r.mu)
	r.flowalloc = flowalloc.New(reg, r.dft)
	r.registerHandlers()
	return r
}

// Log returns the RIB's logger, for subsystems wired up alongside it
// (e.g. the control socket server).
func (r *RIB) Log() *logging.Logger { return r.log }

// MyAddr returns this IPCP's currently assigned address (NullAddr if
// not yet enrolled).
func (r *RIB) MyAddr() addr.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.myAddr
}

func (r *RIB) setMyAddr(a addr.Addr) {
	r.myAddr = a
	r.lfdb = lfdbWithOwner(r.lfdb, a)
}

// lfdbWithOwner rebuilds db's age-exemption owner once myAddr becomes
// known (it starts as NullAddr before this IPCP has enrolled).
func lfdbWithOwner(db *lfdb.DB, owner addr.Addr) *lfdb.DB {
	fresh := lfdb.New(owner)
	for _, e := range db.Snapshot() {
		fresh.Add(e)
	}
	return fresh
}

// Close stops the event loop and periodic tasks and waits for every
// enrollment worker to self-terminate, polling rather than forcibly
// cancelling them (spec.md §5: "the destructor waits outside the lock
// (500ms sleeps) until all workers have self-terminated").
func (r *RIB) Close() error {
	close(r.stop)
	_ = r.eg.Wait() // the three loops only ever return nil; stop is signal-only

	for {
		r.mu.Lock()
		n := len(r.workers)
		r.mu.Unlock()
		if n == 0 {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	r.mu.Lock()
	neighbors := make([]*neighbor.Neighbor, 0, len(r.neighbors))
	for _, n := range r.neighbors {
		neighbors = append(neighbors, n)
	}
	r.mu.Unlock()

	for _, n := range neighbors {
		for _, f := range n.Flows() {
			f.Close()
		}
	}
	return nil
}
