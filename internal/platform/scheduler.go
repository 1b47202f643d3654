package platform

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/chazu/corevm/internal/corevm"
)

// ThreadState carries the per-thread LookupCache and idle-monitor §5
// describes: "A ThreadState carries the per-thread LookupCache and an
// idle-monitor." The scheduler creates a fresh ThreadState, with a fresh
// LookupCache, for each process it dispatches; it is not reused across
// processes.
//
// ctx/cancel give the scheduler a coordinated-shutdown handle per thread,
// derived from the WorkerScheduler's own root context: cancelling the
// scheduler cancels every thread's context, and onRun callbacks that
// respect ctx.Done() can abandon a long-running process promptly instead
// of waiting for it to reach a natural yield point.
type ThreadState struct {
	ID    uint64
	Cache *corevm.LookupCache

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	cond *sync.Cond
	idle bool
}

// NewThreadState creates a ThreadState with a fresh per-thread
// LookupCache, starting idle, whose cancellation is tied to parent.
func NewThreadState(id uint64, parent context.Context) *ThreadState {
	ctx, cancel := context.WithCancel(parent)
	ts := &ThreadState{ID: id, Cache: corevm.NewLookupCache(), idle: true, ctx: ctx, cancel: cancel}
	ts.cond = sync.NewCond(&ts.mu)
	return ts
}

// Done returns the channel that closes once this thread's context (or its
// scheduler's root context) has been cancelled.
func (ts *ThreadState) Done() <-chan struct{} { return ts.ctx.Done() }

// Err reports why this thread's context was cancelled, or nil if it's
// still live.
func (ts *ThreadState) Err() error { return ts.ctx.Err() }

// MarkBusy flags this thread as running a process.
func (ts *ThreadState) MarkBusy() {
	ts.mu.Lock()
	ts.idle = false
	ts.mu.Unlock()
}

// MarkIdle flags this thread as available and wakes anyone waiting on
// WaitUntilIdle.
func (ts *ThreadState) MarkIdle() {
	ts.mu.Lock()
	ts.idle = true
	ts.cond.Broadcast()
	ts.mu.Unlock()
}

// WaitUntilIdle blocks until this thread reports itself idle — the
// "every process scheduled out" precondition a shared-heap GC pause
// needs from every worker (§5's "Shared-heap GC requires every process
// to be scheduled out... the program holds a global pause monitor").
func (ts *ThreadState) WaitUntilIdle() {
	ts.mu.Lock()
	for !ts.idle {
		ts.cond.Wait()
	}
	ts.mu.Unlock()
}

// defaultAllocationBudget is the tick count a process is given each time
// the scheduler dispatches it to a worker. It is a scheduling heuristic
// only, not a GC invariant, and an onRun loop that calls
// Process.DecrementAllocationBudget on its own cadence may preempt and
// re-enqueue the process once the budget is exhausted.
const defaultAllocationBudget = 1 << 16

// WorkerScheduler is the default corevm.Scheduler: a bounded pool of
// goroutines, each backed by a ThreadState, pulling processes off a ready
// queue. Bounded via golang.org/x/sync/semaphore rather than an unbounded
// goroutine-per-process fork (vm/concurrency.go's Block>>fork), so the
// number of concurrently running processes is capped the way real OS
// threads would be.
type WorkerScheduler struct {
	sem     *semaphore.Weighted
	onRun   func(p *corevm.Process, thread *ThreadState)
	onPause func()

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	threads []*ThreadState
	nextID  uint64
	ready   []*corevm.Process

	platform *HostPlatform
}

// NewWorkerScheduler returns a scheduler that runs up to maxWorkers
// processes concurrently, invoking onRun (supplied by the host binary's
// interpreter loop) each time a process is dequeued.
func NewWorkerScheduler(maxWorkers int64, platform *HostPlatform, onRun func(p *corevm.Process, thread *ThreadState)) *WorkerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerScheduler{
		sem:        semaphore.NewWeighted(maxWorkers),
		onRun:      onRun,
		platform:   platform,
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// Shutdown cancels every ThreadState's context, signalling onRun callbacks
// that watch ThreadState.Done() to abandon their process promptly. It does
// not wait for in-flight workers to exit; combine with CollectSharedGarbage
// when a caller needs that.
func (s *WorkerScheduler) Shutdown() { s.rootCancel() }

// Enqueue appends p to the ready queue and, if a worker slot is free,
// immediately dispatches it on a new goroutine.
func (s *WorkerScheduler) Enqueue(p *corevm.Process) {
	s.mu.Lock()
	s.ready = append(s.ready, p)
	s.mu.Unlock()
	s.drain()
}

// drain pulls queued processes off the ready list while semaphore
// capacity remains, running each on its own goroutine with a
// freshly-acquired ThreadState.
func (s *WorkerScheduler) drain() {
	for {
		if !s.sem.TryAcquire(1) {
			return
		}
		s.mu.Lock()
		if len(s.ready) == 0 {
			s.mu.Unlock()
			s.sem.Release(1)
			return
		}
		p := s.ready[0]
		s.ready = s.ready[1:]
		s.nextID++
		thread := NewThreadState(s.nextID, s.rootCtx)
		s.threads = append(s.threads, thread)
		s.mu.Unlock()

		go func() {
			defer s.sem.Release(1)
			thread.MarkBusy()
			p.SetAllocationBudget(defaultAllocationBudget)
			if s.onRun != nil {
				s.onRun(p, thread)
			}
			thread.MarkIdle()
		}()
	}
}

// CollectSharedGarbage waits until every ThreadState created so far
// reports idle, then runs onPause. It does not hold back Enqueue: a
// process enqueued while it waits or while onPause runs is dispatched as
// usual.
func (s *WorkerScheduler) CollectSharedGarbage() {
	s.mu.Lock()
	threads := append([]*ThreadState(nil), s.threads...)
	s.mu.Unlock()

	for _, t := range threads {
		t.WaitUntilIdle()
	}
	if s.onPause != nil {
		s.onPause()
	}
}

// SetPauseHandler installs the callback CollectSharedGarbage runs once
// every worker thread is confirmed idle — typically
// Program.PerformSharedGarbageCollection bound to the live process list.
func (s *WorkerScheduler) SetPauseHandler(fn func()) { s.onPause = fn }

var _ corevm.Scheduler = (*WorkerScheduler)(nil)
