package corevm

// SharedHeap is the per-program immutable heap: objects placed here are
// never written after construction, and their internal pointers only ever
// target the shared heap or the program heap (§3).
//
// It exposes the same factory surface as Heap (§4.2) but has no weak
// pointer registry of its own — weak references to shared objects are
// registered on the owning process's mutable Heap instead, since only the
// mutable heap's scavenger runs often enough to make weak-pointer
// processing useful.
type SharedHeap struct {
	space *Space
}

// NewSharedHeap creates an empty SharedHeap.
func NewSharedHeap(chunkWords int) *SharedHeap {
	return &SharedHeap{space: NewSpace(chunkWords)}
}

func (sh *SharedHeap) Space() *Space { return sh.space }

// owns reports whether obj was allocated from this shared heap — the
// predicate the StoreBuffer uses to find process-heap pointers that cross
// into shared space (§4.3, §4.5 step 6).
func (sh *SharedHeap) owns(obj HeapObject) bool { return sh.space.Includes(obj) }

func (sh *SharedHeap) CreateArray(length int) (*Array, *Failure) {
	a := &Array{Slots: make([]Object, length)}
	if !sh.space.Allocate(a, a.Size()) {
		return nil, RetryAfterGC
	}
	return a, nil
}

func (sh *SharedHeap) CreateInstance(class *Class) (*Instance, *Failure) {
	i := &Instance{Slots: make([]Object, class.NumSlots)}
	i.setClass(class)
	if !sh.space.Allocate(i, i.Size()) {
		return nil, RetryAfterGC
	}
	return i, nil
}

func (sh *SharedHeap) CreateOneByteString(text string) (*OneByteString, *Failure) {
	s := &OneByteString{Bytes: []byte(text)}
	if !sh.space.Allocate(s, s.Size()) {
		return nil, RetryAfterGC
	}
	return s, nil
}

func (sh *SharedHeap) CreateClass(c *Class) (*Class, *Failure) {
	if !sh.space.Allocate(c, c.Size()) {
		return nil, RetryAfterGC
	}
	return c, nil
}

func (sh *SharedHeap) CreateFunction(f *Function) (*Function, *Failure) {
	if !sh.space.Allocate(f, f.Size()) {
		return nil, RetryAfterGC
	}
	return f, nil
}

// PerformSharedGarbageCollection runs a stop-the-world mark-sweep pass over
// the shared heap, rooted only at every process's IterateProgramPointers:
// mark reachable objects, then sweep the space to actually reclaim
// anything left unmarked. The program's class table and entry function
// are not roots, so a shared object reachable only from them is swept.
// It is non-moving —
// survivors keep their addresses — which is why §4.7's Cook/Uncook
// protocol exists: code built to survive a *moving* program GC still
// cooks/uncooks even though this implementation only marks-and-sweeps the
// shared heap, so the protocol stays correct if a future revision makes
// shared-heap collection compacting.
func (sh *SharedHeap) PerformSharedGarbageCollection(processes []*Process) {
	live := make(map[HeapObject]bool)
	var mark func(HeapObject)
	mark = func(obj HeapObject) {
		if obj == nil || !sh.owns(obj) || live[obj] {
			return
		}
		live[obj] = true
		VisitHeapObjectPointers(obj, VisitorFunc(func(slot *Object) {
			if slot.IsHeapObject() {
				mark(slot.HeapObject())
			}
		}))
	}
	for _, p := range processes {
		p.IterateProgramPointers(VisitorFunc(func(slot *Object) {
			if slot.IsHeapObject() {
				mark(slot.HeapObject())
			}
		}))
	}
	sh.space.Sweep(func(obj HeapObject) bool { return live[obj] })
}
