// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrollment

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"rina.dev/ipcpd/internal/cdap"
	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/logging"
	"rina.dev/ipcpd/internal/neighbor"
)

// inboxDepth bounds the per-worker message queue; a neighbor that floods
// us with enrollment traffic backs up rather than growing unboundedly.
const inboxDepth = 16

// Callbacks lets a Worker talk to the RIB without importing it: sending
// bytes on the wire and exporting/importing RIB state snapshots.
type Callbacks struct {
	// Send writes an already-serialized CDAP message to the flow.
	Send func(f *neighbor.Flow, wire []byte) error
	// ExportSnapshot is called by the enroller when building M_START_R.
	ExportSnapshot func() Snapshot
	// ApplySnapshot is called by the enrollee upon receiving M_START_R.
	ApplySnapshot func(Snapshot)
	// OnEnrolled fires once, after the handshake completes successfully.
	OnEnrolled func(f *neighbor.Flow)
	// OnAborted fires if the handshake fails or times out.
	OnAborted func(f *neighbor.Flow, err error)
}

// Worker drives one NeighFlow's enrollment FSM on its own goroutine, fed
// by Feed. Mirrors the teacher's supervised-worker pattern: a bounded
// inbox, a single owning goroutine, and a condition variable other
// goroutines can block on for completion.
type Worker struct {
	Flow    *neighbor.Flow
	Role    Role
	CB      Callbacks
	Timeout time.Duration
	Log     *logging.Logger

	codec cdap.GobCodec

	// session is a correlation id for this handshake attempt, included
	// in every log line so a re-enrollment after a crash doesn't get
	// confused with the attempt it replaces (spec.md §4.3 re-enrollment).
	session uuid.UUID

	inbox chan cdap.Message
	stop  chan struct{}

	mu       sync.Mutex
	cond     *sync.Cond
	finished bool
	err      error
}

// NewWorker constructs a Worker. timeout is the single-shot duration
// armed on every wait-state (spec.md §4.5, default 1000ms, overridden by
// the policy registry's enrollment-timeout-ms parameter).
func NewWorker(f *neighbor.Flow, role Role, cb Callbacks, timeout time.Duration, log *logging.Logger) *Worker {
	w := &Worker{
		Flow:    f,
		Role:    role,
		CB:      cb,
		Timeout: timeout,
		Log:     log,
		session: uuid.New(),
		inbox:   make(chan cdap.Message, inboxDepth),
		stop:    make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Feed enqueues an incoming CDAP message for processing. Returns a
// protocol-violation error if the inbox is full, rather than blocking
// the RIB event loop.
func (w *Worker) Feed(msg cdap.Message) error {
	select {
	case w.inbox <- msg:
		return nil
	default:
		return errors.Errorf(errors.KindProtocolViolation, "enrollment: inbox full for flow port %d", w.Flow.PortID)
	}
}

// Run is the worker's goroutine body. It returns once the handshake
// reaches ENROLLED or aborts.
func (w *Worker) Run() {
	if w.Role == RoleEnrollee {
		w.send(cdap.Message{Opcode: cdap.MConnect, Src: w.Flow.NeighName.String()})
		w.Flow.SetState(neighbor.StateIWaitConnectR)
		w.arm()
	}

	for {
		select {
		case msg := <-w.inbox:
			if w.handle(msg) {
				return
			}
			if w.Flow.State() != neighbor.StateEnrolled {
				w.arm()
			}
		case <-w.stop:
			return
		}
	}
}

// Abort cancels the handshake from the outside (e.g. RIB shutdown).
func (w *Worker) Abort(err error) {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	w.finish(err)
}

// WaitForCompletion blocks until the handshake finishes, returning its
// terminal error (nil on success). This backs enroll(wait_for_completion)
// from spec.md §6.
func (w *Worker) WaitForCompletion() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.finished {
		w.cond.Wait()
	}
	return w.err
}

func (w *Worker) handle(msg cdap.Message) (done bool) {
	ok := msg.Result == 0
	current := w.Flow.State()
	next, sendOps, terminal, err := Step(w.Role, current, msg.Opcode, ok)
	if err != nil {
		w.abort(err)
		return true
	}
	w.Flow.SetState(next)
	w.logTransition(current, next, msg.Opcode)

	if msg.Opcode == cdap.MStartR && w.Role == RoleEnrollee && w.CB.ApplySnapshot != nil {
		var snap Snapshot
		if len(msg.Body) > 0 {
			if err := w.codec.Unmarshal(msg.Body, &snap); err != nil {
				w.abort(errors.Wrap(err, errors.KindProtocolViolation, "enrollment: decode M_START_R snapshot"))
				return true
			}
		}
		w.CB.ApplySnapshot(snap)
	}

	for _, sendOp := range sendOps {
		out := cdap.Message{Opcode: sendOp, Src: w.Flow.NeighName.String()}
		if sendOp == cdap.MStartR && w.Role == RoleEnroller && w.CB.ExportSnapshot != nil {
			snap := w.CB.ExportSnapshot()
			body, err := w.codec.Marshal(snap)
			if err != nil {
				w.abort(errors.Wrap(err, errors.KindInternal, "enrollment: encode M_START_R snapshot"))
				return true
			}
			out.Body = body
		}
		w.send(out)
		if w.isFinished() {
			return true
		}
	}

	if terminal {
		w.Flow.DisarmTimeout()
		w.finish(nil)
		if w.CB.OnEnrolled != nil {
			w.CB.OnEnrolled(w.Flow)
		}
		return true
	}
	return false
}

func (w *Worker) isFinished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

func (w *Worker) send(msg cdap.Message) {
	invokeID := w.Flow.Invokes.Allocate()
	wire, err := w.Flow.Conn.MsgSer(msg, invokeID)
	if err != nil {
		w.abort(err)
		return
	}
	w.Flow.Conn.Advance(msg.Opcode)
	if w.CB.Send != nil {
		if err := w.CB.Send(w.Flow, wire); err != nil {
			w.abort(errors.Wrap(err, errors.KindTransientIO, "enrollment: write to flow"))
		}
	}
}

// logTransition logs a state change at INFO, per spec.md §4.3: "The
// state transition is logged at INFO."
func (w *Worker) logTransition(from, to neighbor.EnrollState, op cdap.Opcode) {
	if w.Log == nil {
		return
	}
	w.Log.Info("enrollment: state transition",
		"session", w.session,
		"neighbor", w.Flow.NeighName.String(),
		"port", w.Flow.PortID,
		"role", w.Role.String(),
		"opcode", op,
		"from", from.String(),
		"to", to.String(),
	)
}

func (w *Worker) arm() {
	w.Flow.ArmTimeout(w.Timeout, func() {
		w.abort(errors.Errorf(errors.KindPeerFailure, "enrollment: timed out in state %s", w.Flow.State()))
	})
}

func (w *Worker) abort(err error) {
	from := w.Flow.State()
	w.Flow.SetState(neighbor.StateNone)
	w.Flow.DisarmTimeout()
	if w.Log != nil {
		w.Log.Info("enrollment: aborted", "session", w.session, "neighbor", w.Flow.NeighName.String(),
			"port", w.Flow.PortID, "from", from.String(), "error", err)
	}
	w.finish(err)
	if w.CB.OnAborted != nil {
		w.CB.OnAborted(w.Flow, err)
	}
}

func (w *Worker) finish(err error) {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return
	}
	w.finished = true
	w.err = err
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	w.mu.Unlock()
	w.cond.Broadcast()
}
