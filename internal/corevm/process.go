package corevm

import (
	"sync/atomic"

	deadlock "github.com/sasha-s/go-deadlock"
)

// ProcessState is a process's position in the scheduler's Sleeping /
// Ready / Running / Terminated lifecycle (§5, §6). The scheduler drives
// these transitions; the core only exposes them.
type ProcessState uint8

const (
	ProcessSleeping ProcessState = iota
	ProcessReady
	ProcessRunning
	ProcessTerminated
)

// TerminationKind distinguishes a normal return from a killed or faulted
// exit, recorded so Cleanup can choose the Reason text it hands to linked
// processes.
type TerminationKind uint8

const (
	TerminationNormal TerminationKind = iota
	TerminationKilled
	TerminationUncaughtException
	TerminationCompileTimeError
)

func (k TerminationKind) String() string {
	switch k {
	case TerminationNormal:
		return "normal"
	case TerminationKilled:
		return "killed"
	case TerminationUncaughtException:
		return "uncaught exception"
	case TerminationCompileTimeError:
		return "compile-time error"
	default:
		return "unknown"
	}
}

// Process is the per-process execution context described throughout §3–§7:
// one mutable Heap, one coroutine chain, the process's store buffer,
// mailbox, lookup cache, and its handshake state with the scheduler.
//
// mu guards the fields the scheduler and the mutator's own goroutine can
// both touch (state, ports, linked) — deadlock.Mutex rather than
// sync.Mutex, for a lock-order-checking mutex around any cross-goroutine
// process state.
type Process struct {
	mu deadlock.Mutex

	state ProcessState

	program     *Program
	heap        *Heap
	storeBuffer *StoreBuffer
	coroutine   *Coroutine
	stackLimit  stackLimit
	gc          MutableGC
	cache       *LookupCache

	mailbox       *Mailbox
	ports         []*Port
	processHandle *ProcessHandle
	linked        []*ProcessHandle
	pendingSignal atomic.Pointer[Signal]

	platform     Platform
	eventHandler EventHandler

	debug *DebugState

	staticFields      []Object
	currentException  Object
	randomState       uint64
	errno             int
	numberOfStacks    int

	allocationBudget atomic.Int64
}

// NewProcess constructs a Process attached to program, owning a fresh
// mutable Heap sized chunkWords per chunk, a freshly set-up execution
// stack (§4.7), and the mutable-GC strategy selected by gc (§4.6).
func NewProcess(program *Program, platform Platform, gc MutableGC, chunkWords, numStaticFields int) *Process {
	p := &Process{
		program:      program,
		heap:         NewHeap(chunkWords),
		storeBuffer:  NewStoreBuffer(),
		coroutine:    SetupExecutionStack(),
		gc:           gc,
		cache:        NewLookupCache(),
		mailbox:      NewMailbox(),
		debug:        &DebugState{},
		platform:     platform,
		staticFields: make([]Object, numStaticFields),
		randomState:  0x9e3779b97f4a7c15,
	}
	p.processHandle = NewProcessHandle(p)
	p.stackLimit.recomputeRealLimit(p.coroutine.Stack())
	return p
}

func (p *Process) State() ProcessState { return p.state }

func (p *Process) setState(s ProcessState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// SetEventHandler installs the platform's port-death notification sink.
// Left nil by NewProcess since not every host needs one.
func (p *Process) SetEventHandler(h EventHandler) { p.eventHandler = h }

func (p *Process) Handle() *ProcessHandle { return p.processHandle }
func (p *Process) Coroutine() *Coroutine  { return p.coroutine }
func (p *Process) Heap() *Heap            { return p.heap }
func (p *Process) Program() *Program      { return p.program }
func (p *Process) LookupCache() *LookupCache { return p.cache }

// AllocationBudget returns the process's current preemption counter: a
// tick budget the scheduler resets on dispatch and an onRun loop may
// lower with DecrementAllocationBudget. It carries no GC invariant of its
// own and is purely a scheduling heuristic.
func (p *Process) AllocationBudget() int64 { return p.allocationBudget.Load() }

// SetAllocationBudget resets the preemption counter, typically called by
// the scheduler each time it dispatches this process to a worker.
func (p *Process) SetAllocationBudget(n int64) { p.allocationBudget.Store(n) }

// DecrementAllocationBudget lowers the preemption counter by one and
// returns the resulting value. The scheduler does not watch it: acting on
// a budget that has reached zero is left to the onRun loop.
func (p *Process) DecrementAllocationBudget() int64 { return p.allocationBudget.Add(-1) }

// NewPort creates and registers a fresh mailbox endpoint owned by p,
// wrapped by channelObj in the heap (an Instance the mutator sees as a
// channel-typed value).
func (p *Process) NewPort(channelObj HeapObject) *Port {
	port := &Port{owner: p, channelObj: channelObj}
	p.mu.Lock()
	p.ports = append(p.ports, port)
	p.mu.Unlock()
	return port
}

// Link registers handle so p notifies it with a ProcessDeathSignal
// message when p terminates (§4.10's linking contract).
func (p *Process) Link(handle *ProcessHandle) {
	handle.Retain()
	p.mu.Lock()
	p.linked = append(p.linked, handle)
	p.mu.Unlock()
}

// IterateRoots visits every Object slot reachable directly from this
// process without walking the heap: every frame on every chained stack,
// the mailbox's still-queued payloads, the static field vector, and the
// current exception (§4.4).
func (p *Process) IterateRoots(v Visitor) {
	for s := p.coroutine.Stack(); s != nil; s = s.Next {
		s.visitPointers(v)
	}
	p.mailbox.IterateVisit(v)
	for i := range p.staticFields {
		v.Visit(&p.staticFields[i])
	}
	v.Visit(&p.currentException)
}

// IterateProgramPointers visits the same root set as IterateRoots — every
// root capable of holding a pointer into the mutable heap is equally
// capable of holding one into the shared/program heap, so the shared
// collector's stop-the-world mark pass (SharedHeap.PerformSharedGarbageCollection)
// can walk this instead of a separate program-only root set (§2, §4.4).
func (p *Process) IterateProgramPointers(v Visitor) {
	p.IterateRoots(v)
}

// CollectMutableGarbage runs the process's selected MutableGC strategy
// (§4.5 scavenging by default, §4.6 mark-sweep if configured) over this
// process's mutable heap.
func (p *Process) CollectMutableGarbage() {
	p.gc.Collect(p)
}

// cleanDeadPorts detaches every port whose owning channel object did not
// survive the most recent collection, notifying the platform's event
// handler once with the whole dead batch — the phase gcCommonFinish
// shares between the scavenger and the mark-sweep collector (§4.5 step 8,
// §4.6).
func (p *Process) cleanDeadPorts(isLive func(HeapObject) bool) {
	p.mu.Lock()
	kept := p.ports[:0]
	var dead []*Port
	for _, port := range p.ports {
		if port.channelObj != nil && !isLive(port.channelObj) {
			port.OwnerProcessTerminating()
			dead = append(dead, port)
			continue
		}
		kept = append(kept, port)
	}
	p.ports = kept
	p.mu.Unlock()

	if len(dead) > 0 && p.eventHandler != nil {
		p.eventHandler.ReceiverForPortsDied(dead)
	}
}

// Cleanup tears a terminated process down: every remaining port is
// detached, and every linked process receives a ProcessDeathSignal
// message carrying this process's handle — at most once per linked
// process, the uniqueness SendSignal's CAS race enforces (§4.10, §8
// property 7).
func (p *Process) Cleanup(kind TerminationKind) {
	p.setState(ProcessTerminated)

	p.mu.Lock()
	ports := p.ports
	p.ports = nil
	linked := p.linked
	p.linked = nil
	p.mu.Unlock()

	for _, port := range ports {
		port.OwnerProcessTerminating()
	}
	if len(ports) > 0 && p.eventHandler != nil {
		p.eventHandler.ReceiverForPortsDied(ports)
	}

	for _, handle := range linked {
		target := handle.Process()
		if target == nil {
			handle.Release()
			continue
		}
		p.processHandle.Retain()
		sig := &Signal{Handle: p.processHandle, Reason: kind.String()}
		SendSignal(target, sig)
		target.mailbox.Enqueue(&Message{Kind: MessageProcessDeathSignal, Signal: sig})
		handle.Release()
	}
}
