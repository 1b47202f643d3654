package corevm

// StoreBuffer is the remembered set of mutable-heap objects that may
// contain a pointer into the shared/immutable heap, or that were newly
// allocated and must be revisited incrementally (§3, §4.3).
//
// It is a superset of the true remembered set: iteration may visit the
// same object more than once, so every visitor passed to
// IteratePointersToImmutableSpace must be idempotent. Grounded on the
// concept (not the code) of the Go runtime's write-barrier buffer
// described in other_examples/friendlyhank-go-hign__mgcsweepbuf.go,
// simplified to a plain set since this store buffer tracks whole objects
// rather than individual card-marked spans.
type StoreBuffer struct {
	entries map[HeapObject]struct{}
}

// NewStoreBuffer returns an empty StoreBuffer.
func NewStoreBuffer() *StoreBuffer {
	return &StoreBuffer{entries: make(map[HeapObject]struct{})}
}

// Insert records obj in the remembered set. Duplicate inserts are
// tolerated and cheap (map assignment is idempotent).
func (sb *StoreBuffer) Insert(obj HeapObject) {
	if obj == nil {
		return
	}
	sb.entries[obj] = struct{}{}
}

// Len reports how many distinct objects are currently remembered.
func (sb *StoreBuffer) Len() int { return len(sb.entries) }

// Contains reports whether obj is currently remembered — used by tests
// checking §8 property 2 (store-buffer soundness) and scenario E2.
func (sb *StoreBuffer) Contains(obj HeapObject) bool {
	_, ok := sb.entries[obj]
	return ok
}

// IteratePointersToImmutableSpace visits every Object slot of every
// remembered object that targets shared, the given shared/immutable
// space, via HeapObjectPointerVisitor dispatch — the program-GC's only
// way to find process-heap pointers into the shared heap without walking
// every process object (§4.4, §4.5 step 6 rationale).
func (sb *StoreBuffer) IteratePointersToImmutableSpace(shared *SharedHeap, visitor Visitor) {
	for obj := range sb.entries {
		VisitHeapObjectPointers(obj, VisitorFunc(func(slot *Object) {
			if slot.IsHeapObject() && shared.owns(slot.HeapObject()) {
				visitor.Visit(slot)
			}
		}))
	}
}

// ReplaceAfterMutableGC installs newBuffer as the process's store buffer
// after a mutable GC, rewriting any surviving stale entry through its
// forwarding address and dropping entries whose object did not survive.
// Per §4.3/§4.5 step 7, newBuffer already holds every object the
// scavenger recorded while scanning to-space; this folds in each old entry
// that was evacuated, through its forwarding address. An old entry with no
// forwarding address did not survive and is not carried over.
func (sb *StoreBuffer) ReplaceAfterMutableGC(newBuffer *StoreBuffer) {
	for obj := range sb.entries {
		if fwd := obj.forwardingAddress(); fwd != nil {
			newBuffer.Insert(fwd)
		}
	}
	sb.entries = newBuffer.entries
}

// Compact drops entries for objects that no longer exist in any space —
// used between collections to keep memory bounded when a mark-sweep pass
// frees objects without a forwarding pass to rewrite references through.
func (sb *StoreBuffer) Compact(isLive func(HeapObject) bool) {
	for obj := range sb.entries {
		if !isLive(obj) {
			delete(sb.entries, obj)
		}
	}
}
