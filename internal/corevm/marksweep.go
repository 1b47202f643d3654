package corevm

// MarkSweepGC is the alternate mutable-heap collector selected at Process
// construction (§4.6), grounded on the block-based mark/sweep collector
// in andypeng2015-tinygo/src/runtime/gc_blocks.go: a marking worklist
// (their scanList) drains into a live set, then a sweep rebuilds the free
// list from anything left unmarked.
type MarkSweepGC struct {
	// freeWords tracks words reclaimed by the most recent sweep, exposed
	// for tests and telemetry the way gc_blocks.go exposes gcTotalAlloc.
	freeWords int
}

// Collect marks from the process roots, whose first entries are the
// frames of the current coroutine's stack, drains the marking stack, then
// shares the weak-pointer/port-cleanup phase with the scavenger before
// sweeping. It does not chain other reachable stacks behind the current
// one: numberOfStacks counts only the stacks already linked from the
// current stack via Next, and is recorded on the process (§4.6).
func (ms *MarkSweepGC) Collect(p *Process) {
	live := make(map[HeapObject]bool)
	var worklist []HeapObject

	mark := func(obj HeapObject) {
		if obj == nil || live[obj] {
			return
		}
		live[obj] = true
		worklist = append(worklist, obj)
	}

	numberOfStacks := 0
	current := p.coroutine.Stack()
	for s := current; s != nil; s = s.Next {
		numberOfStacks++
	}

	p.IterateRoots(VisitorFunc(func(slot *Object) {
		if slot.IsHeapObject() {
			mark(slot.HeapObject())
		}
	}))

	for len(worklist) > 0 {
		obj := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		VisitHeapObjectPointers(obj, VisitorFunc(func(slot *Object) {
			if slot.IsHeapObject() && p.heap.space.Includes(slot.HeapObject()) {
				mark(slot.HeapObject())
			}
		}))
	}

	isLive := func(obj HeapObject) bool { return live[obj] }
	gcCommonFinish(p, isLive, nil)

	p.storeBuffer.Compact(isLive)
	ms.freeWords = ms.sweep(p.heap.space, isLive)
	p.numberOfStacks = numberOfStacks

	p.stackLimit.recomputeRealLimit(p.coroutine.Stack())
}

// sweep rebuilds each chunk's live object list in place, dropping dead
// entries, decrementing each chunk's used word count so the reclaimed
// capacity is available to the next Allocate, and returning the number of
// words reclaimed.
func (ms *MarkSweepGC) sweep(space *Space, isLive func(HeapObject) bool) int {
	return space.Sweep(isLive)
}

// gcCommonFinish is the phase DESIGN NOTES §9 says the two MutableGC
// variants share: process weak pointers against the just-computed live
// set, then detach any port whose owning object no longer survives.
// rewrite lets a moving collector (the scavenger) redirect a surviving
// weak-pointer target to its forwarding address before the liveness check;
// mark-sweep, which never relocates anything, passes nil.
func gcCommonFinish(p *Process, isLive func(HeapObject) bool, rewrite func(HeapObject) HeapObject) {
	p.heap.ProcessWeakPointers(isLive, rewrite)
	p.cleanDeadPorts(isLive)
}
