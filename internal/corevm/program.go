package corevm

import "time"

// Platform is the host facility the core consumes for monotonic time,
// stack sizing, thread identity, and abort delivery (§6). It is
// implemented outside this package (internal/platform) — the interpreter
// loop, OS threads, and syscalls are explicitly out of the core's scope
// (§1).
type Platform interface {
	GetMicroseconds() int64
	MaxStackSizeInWords() int
	ImmediateAbort(reason string)
	ScheduleAbort(reason string)
	ThreadID() uint64
}

// EventHandler is notified of port liveness during Process.Cleanup (§6).
type EventHandler interface {
	ReceiverForPortsDied(ports []*Port)
}

// Scheduler owns process ready/paused queues and decides when to invoke
// shared-heap collection (§5, §6). The core only calls back into it; it
// never reaches into scheduler internals.
type Scheduler interface {
	Enqueue(p *Process)
	CollectSharedGarbage()
}

// Program holds the shared immutable root set: canonical classes, the
// dispatch table, the shared heap, the entry function, and main arity
// (§1, §3). Mutation happens only through Initialize, AddSession, and
// SetupDispatchTableIntrinsics, matching the read-mostly contract in §6.
type Program struct {
	shared      *SharedHeap
	classes     map[string]*Class
	entry       *Function
	mainArity   int
	compactMode bool
	created     time.Time

	nilClass, trueClass, falseClass *Class
	nilObj, trueObj, falseObj       *Instance
}

// NewProgram creates an empty Program with a fresh SharedHeap.
func NewProgram(sharedChunkWords int) *Program {
	return &Program{
		shared:  NewSharedHeap(sharedChunkWords),
		classes: make(map[string]*Class),
		created: time.Now(),
	}
}

func (pr *Program) SharedHeap() *SharedHeap { return pr.shared }
func (pr *Program) CompactMode() bool       { return pr.compactMode }

// Initialize links the program's canonical class set and entry function,
// and materializes the well-known Nil/True/False singletons. Called once,
// before any Process is created against this Program.
func (pr *Program) Initialize(classes []*Class, entry *Function, mainArity int) {
	for _, c := range classes {
		pr.classes[c.Name] = c
	}
	pr.entry = entry
	pr.mainArity = mainArity
	pr.materializeWellKnownSingletons()
}

// materializeWellKnownSingletons builds the Null/True/False classes and
// their one heap Instance apiece as plain Go values, bypassing
// CreateClass/CreateInstance's allocation-failure path: these three objects
// must exist before any process can run, so their construction is not
// allowed to fail the way ordinary object creation can. Living outside any
// Space, they are never swept or relocated by either collector, the same
// way a process's view of the immutable SharedHeap never moves.
func (pr *Program) materializeWellKnownSingletons() {
	pr.nilClass = &Class{Name: "Null", NumSlots: 0}
	pr.trueClass = &Class{Name: "True", NumSlots: 0}
	pr.falseClass = &Class{Name: "False", NumSlots: 0}
	pr.classes[pr.nilClass.Name] = pr.nilClass
	pr.classes[pr.trueClass.Name] = pr.trueClass
	pr.classes[pr.falseClass.Name] = pr.falseClass

	pr.nilObj = &Instance{}
	pr.nilObj.setClass(pr.nilClass)
	pr.trueObj = &Instance{}
	pr.trueObj.setClass(pr.trueClass)
	pr.falseObj = &Instance{}
	pr.falseObj.setClass(pr.falseClass)
}

// NilObject, TrueObject, and FalseObject return the program's canonical
// singleton for Smalltalk-style nil/true/false: heap Instances of the
// well-known Null/True/False classes rather than small-integer immediates,
// matching the original runtime's heap-boolean split (object.h).
func (pr *Program) NilObject() Object   { return NewHeapObject(pr.nilObj) }
func (pr *Program) TrueObject() Object  { return NewHeapObject(pr.trueObj) }
func (pr *Program) FalseObject() Object { return NewHeapObject(pr.falseObj) }

// AddSession merges additional classes discovered by a live coding
// session (external session protocol, §1) into the program's class table.
// It never removes existing bindings, matching the shared heap's
// append-only construction discipline.
func (pr *Program) AddSession(classes []*Class) {
	for _, c := range classes {
		pr.classes[c.Name] = c
	}
}

// SetupDispatchTableIntrinsics registers native fast paths for methods
// already present in the program's dispatch table, the only other
// permitted post-construction mutation (§6).
func (pr *Program) SetupDispatchTableIntrinsics(register func(class *Class)) {
	for _, c := range pr.classes {
		register(c)
	}
}

// ClassByName resolves a canonical class by name, or nil if unlinked.
func (pr *Program) ClassByName(name string) *Class { return pr.classes[name] }

// Entry returns the program's entry function and expected main arity.
func (pr *Program) Entry() (*Function, int) { return pr.entry, pr.mainArity }

// FunctionForBCP resolves the Function owning bcp by a linear scan of
// every Function resident in the shared heap, or nil if none contains it.
// This is the resolver Stack.Cook needs and can't supply itself — only the
// program knows every loaded Function (§4.7).
func (pr *Program) FunctionForBCP(bcp *byte) *Function {
	var found *Function
	pr.shared.space.IterateObjects(func(obj HeapObject) {
		if found != nil {
			return
		}
		if fn, ok := obj.(*Function); ok && fn.OffsetOf(bcp) >= 0 {
			found = fn
		}
	})
	return found
}

// PerformSharedGarbageCollection runs the program's stop-the-world
// shared-heap GC over every live process, matching the data-flow
// description in §2: "The program periodically performs a shared-heap GC
// over all processes in stop-the-world fashion." Every process's stack
// chain is cooked first and uncooked again afterward (scenario E6),
// grounded on original_source/src/vm/program.cc's CollectSharedGarbage
// cooking every process's stacks around the mark-sweep pass even though
// this collector never moves objects: the protocol must hold regardless,
// since a future compacting revision depends on it.
func (pr *Program) PerformSharedGarbageCollection(processes []*Process) {
	for _, p := range processes {
		p.coroutine.Stack().CookStacks(pr.FunctionForBCP)
	}
	pr.shared.PerformSharedGarbageCollection(processes)
	for _, p := range processes {
		p.coroutine.Stack().UncookAndUnchainStacks()
	}
}
