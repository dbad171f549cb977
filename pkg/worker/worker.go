// Package worker isolates long-running geometry operations from the
// caller's thread. An Executor is one long-lived worker context: ops are
// queued to a single goroutine, pending requests are multiplexed by
// correlation id, progress events stream to the originating caller, and
// tearing the executor down atomically fails every pending request.
//
// There is deliberately no mid-operation cancellation: the only escape
// hatch is Terminate, which takes the whole context with it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrTerminated is delivered to every pending request when an executor
// is shut down or crashes.
var ErrTerminated = errors.New("worker: executor terminated")

// Progress is one progress event: (current, total, stage).
type Progress struct {
	Current int
	Total   int
	Stage   string
}

// Result is the terminal outcome of a dispatched operation.
type Result struct {
	Value any
	Err   error
}

// OpFunc executes one operation. The report callback streams progress to
// the dispatching caller and must not be retained after return.
type OpFunc func(payload any, report func(Progress)) (any, error)

// Handle is the awaitable side of a dispatch, keyed by correlation id.
// Payload buffers are handed over with move semantics: the caller must
// not touch them between Dispatch and the result arriving.
type Handle struct {
	ID       uuid.UUID
	progress chan Progress
	done     chan Result

	mu      sync.Mutex
	settled bool
}

// settle delivers the terminal result exactly once. A handle can be
// settled from two sides, the worker finishing the op and failAll
// tearing the context down; whichever arrives first wins and the other
// is dropped.
func (h *Handle) settle(res Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settled {
		return
	}
	h.settled = true
	h.done <- res
	close(h.progress)
}

// report forwards one progress event. Held under the same mutex as
// settle so an op still running after its handle was failed cannot send
// on the closed progress channel. A slow consumer drops progress, never
// blocks the worker.
func (h *Handle) report(p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settled {
		return
	}
	select {
	case h.progress <- p:
	default:
	}
}

// Progress returns the stream of progress events for this request. The
// channel closes when the terminal result is delivered.
func (h *Handle) Progress() <-chan Progress {
	return h.progress
}

// Await blocks until the operation finishes or ctx expires.
func (h *Handle) Await(ctx context.Context) (any, error) {
	select {
	case res := <-h.done:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type task struct {
	id      uuid.UUID
	op      string
	payload any
}

// Executor is one worker context. The zero value is not usable; create
// with NewExecutor.
type Executor struct {
	ops map[string]OpFunc

	mu      sync.Mutex
	pending map[uuid.UUID]*Handle
	queue   chan task
	stop    chan struct{}
	dead    bool
	started bool
}

// NewExecutor creates an executor for the given operation table. The
// worker goroutine starts lazily on the first dispatch.
func NewExecutor(ops map[string]OpFunc) *Executor {
	return &Executor{
		ops:     ops,
		pending: make(map[uuid.UUID]*Handle),
		queue:   make(chan task, 64),
		stop:    make(chan struct{}),
	}
}

// Dispatch queues an operation and returns its handle. An unknown op
// name or nil payload is a programmer error and fails immediately; every
// operational failure arrives through the handle instead.
func (e *Executor) Dispatch(op string, payload any) (*Handle, error) {
	if _, ok := e.ops[op]; !ok {
		return nil, fmt.Errorf("worker: unknown operation %q", op)
	}
	if payload == nil {
		return nil, fmt.Errorf("worker: missing payload for operation %q", op)
	}

	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return nil, ErrTerminated
	}
	h := &Handle{
		ID:       uuid.New(),
		progress: make(chan Progress, 16),
		done:     make(chan Result, 1),
	}
	e.pending[h.ID] = h
	if !e.started {
		e.started = true
		go e.run()
	}
	e.mu.Unlock()

	// The queue send races against teardown: with the queue full and the
	// worker gone it would block forever, so a teardown in progress wins.
	select {
	case e.queue <- task{id: h.ID, op: op, payload: payload}:
	case <-e.stop:
		e.mu.Lock()
		delete(e.pending, h.ID)
		e.mu.Unlock()
		return nil, ErrTerminated
	}
	return h, nil
}

// Terminate fails every pending request and marks the executor dead.
// Safe to call more than once.
func (e *Executor) Terminate() {
	e.failAll(ErrTerminated)
}

// run is the worker loop. A panic inside an op is a fatal context fault:
// the loop cannot tell which in-flight request corrupted the context, so
// it rejects all of them and exits.
func (e *Executor) run() {
	for {
		select {
		case t := <-e.queue:
			e.mu.Lock()
			h, ok := e.pending[t.id]
			e.mu.Unlock()
			if !ok {
				continue // already failed by Terminate
			}
			e.execute(t, h)
		case <-e.stop:
			return
		}
	}
}

func (e *Executor) execute(t task, h *Handle) {
	defer func() {
		if r := recover(); r != nil {
			e.failAll(fmt.Errorf("worker: context fault in %q: %v: %w", t.op, r, ErrTerminated))
		}
	}()

	value, err := e.ops[t.op](t.payload, h.report)

	e.mu.Lock()
	delete(e.pending, t.id)
	e.mu.Unlock()

	// If failAll got here first the handle is already settled with
	// ErrTerminated and this result is discarded.
	h.settle(Result{Value: value, Err: err})
}

// failAll rejects every pending request with err and marks the executor
// dead.
func (e *Executor) failAll(err error) {
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return
	}
	e.dead = true
	handles := make([]*Handle, 0, len(e.pending))
	for _, h := range e.pending {
		handles = append(handles, h)
	}
	e.pending = make(map[uuid.UUID]*Handle)
	e.mu.Unlock()

	// Closing stop unblocks the worker loop and any Dispatch stuck on a
	// full queue.
	close(e.stop)

	for _, h := range handles {
		h.settle(Result{Err: err})
	}
}

// Family names a worker context. One executor exists per family, lazily
// created and reused across calls.
type Family string

const (
	FamilyCSG           Family = "csg"
	FamilyHoleSubtract  Family = "hole-subtract"
	FamilyClampSubtract Family = "clamp-subtract"
	FamilyDecimate      Family = "decimate"
)

// Pool owns the per-family executors. It belongs to the application's
// long-lived session object; tear it down explicitly on session reset
// rather than leaking module-global worker state.
type Pool struct {
	mu        sync.Mutex
	executors map[Family]*Executor
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{executors: make(map[Family]*Executor)}
}

// Executor returns the family's worker context, creating it on first
// use with the default geometry operation table. A context that died is
// replaced by a fresh one on the next call.
func (p *Pool) Executor(f Family) *Executor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.executors[f]; ok {
		e.mu.Lock()
		dead := e.dead
		e.mu.Unlock()
		if !dead {
			return e
		}
	}
	e := NewExecutor(DefaultOps())
	p.executors[f] = e
	return e
}

// Shutdown terminates every executor in the pool.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.executors {
		e.Terminate()
	}
	p.executors = make(map[Family]*Executor)
}
