package corevm

// weakEntry pairs a weakly-held object with the callback to invoke when
// it is found dead at the end of a collection (§4.2).
type weakEntry struct {
	object   HeapObject
	callback func(heap *Heap, object HeapObject)
}

// Heap is the per-process mutable heap: a Space, a weak-pointer registry,
// and a foreign-memory byte counter (§3).
type Heap struct {
	space        *Space
	weak         []*weakEntry
	foreignBytes int64
	lastLargeInt *LargeInteger // most recent CreateLargeInteger result, for TryDeallocInteger
}

// NewHeap creates an empty mutable Heap backed by a fresh Space.
func NewHeap(chunkWords int) *Heap {
	return &Heap{space: NewSpace(chunkWords)}
}

// Space exposes the backing HeapSpace, primarily for the collectors.
func (h *Heap) Space() *Space { return h.space }

// --- Factories -------------------------------------------------------------
//
// Every factory below returns (object, nil) on success or (nil,
// RetryAfterGC) on failure; per the allocation retry law (§8 property 1)
// the caller — Process — is responsible for invoking CollectMutableGarbage
// and retrying exactly once.

func (h *Heap) CreateArray(length int) (*Array, *Failure) {
	a := &Array{Slots: make([]Object, length)}
	if !h.space.Allocate(a, a.Size()) {
		return nil, RetryAfterGC
	}
	return a, nil
}

func (h *Heap) CreateByteArray(length int) (*ByteArray, *Failure) {
	b := &ByteArray{Bytes: make([]byte, length)}
	if !h.space.Allocate(b, b.Size()) {
		return nil, RetryAfterGC
	}
	return b, nil
}

func (h *Heap) CreateInstance(class *Class) (*Instance, *Failure) {
	i := &Instance{Slots: make([]Object, class.NumSlots)}
	i.setClass(class)
	if !h.space.Allocate(i, i.Size()) {
		return nil, RetryAfterGC
	}
	return i, nil
}

func (h *Heap) CreateStack(length int) (*Stack, *Failure) {
	s := NewStack(length)
	if !h.space.Allocate(s, s.Size()) {
		return nil, RetryAfterGC
	}
	return s, nil
}

func (h *Heap) CreateOneByteStringUninitialized(length int) (*OneByteString, *Failure) {
	s := &OneByteString{Bytes: make([]byte, length)}
	if !h.space.Allocate(s, s.Size()) {
		return nil, RetryAfterGC
	}
	return s, nil
}

func (h *Heap) CreateOneByteString(text string) (*OneByteString, *Failure) {
	s, failure := h.CreateOneByteStringUninitialized(len(text))
	if failure != nil {
		return nil, failure
	}
	copy(s.Bytes, text)
	return s, nil
}

func (h *Heap) CreateTwoByteStringUninitialized(length int) (*TwoByteString, *Failure) {
	s := &TwoByteString{Units: make([]uint16, length)}
	if !h.space.Allocate(s, s.Size()) {
		return nil, RetryAfterGC
	}
	return s, nil
}

func (h *Heap) CreateTwoByteString(text []uint16) (*TwoByteString, *Failure) {
	s, failure := h.CreateTwoByteStringUninitialized(len(text))
	if failure != nil {
		return nil, failure
	}
	copy(s.Units, text)
	return s, nil
}

func (h *Heap) CreateBoxed(inner Object) (*Boxed, *Failure) {
	b := &Boxed{Inner: inner}
	if !h.space.Allocate(b, b.Size()) {
		return nil, RetryAfterGC
	}
	return b, nil
}

func (h *Heap) CreateDouble(v float64) (*Double, *Failure) {
	d := &Double{Value: v}
	if !h.space.Allocate(d, d.Size()) {
		return nil, RetryAfterGC
	}
	return d, nil
}

func (h *Heap) CreateLargeInteger(v int64) (*LargeInteger, *Failure) {
	l := &LargeInteger{Value: v}
	if !h.space.Allocate(l, l.Size()) {
		return nil, RetryAfterGC
	}
	h.lastLargeInt = l
	return l, nil
}

// TryDeallocInteger opportunistically unallocates the most recently
// created LargeInteger if its value now fits in a Smi and it is still on
// the chunk top — i.e. nothing has allocated since. Returns true if the
// integer was reclaimed.
func (h *Heap) TryDeallocInteger() bool {
	l := h.lastLargeInt
	if l == nil || !SmiFitsInt64(l.Value) {
		return false
	}
	c := h.space.current
	if len(c.objects) == 0 || c.objects[len(c.objects)-1] != HeapObject(l) {
		return false
	}
	c.objects = c.objects[:len(c.objects)-1]
	c.used -= l.Size()
	h.lastLargeInt = nil
	return true
}

// --- Weak pointers -----------------------------------------------------

// AddWeakPointer registers a weak reference to object; callback fires
// during collection if object is found dead.
func (h *Heap) AddWeakPointer(object HeapObject, callback func(heap *Heap, object HeapObject)) {
	h.weak = append(h.weak, &weakEntry{object: object, callback: callback})
}

// RemoveWeakPointer deregisters a previously added weak pointer.
func (h *Heap) RemoveWeakPointer(object HeapObject) {
	for i, e := range h.weak {
		if e.object == object {
			h.weak = append(h.weak[:i], h.weak[i+1:]...)
			return
		}
	}
}

// ProcessWeakPointers invokes the callback for every registered weak
// pointer whose target isLive reports as dead, then removes it from the
// registry (§4.2, §4.5 step 8).
//
// rewrite is consulted first and, when non-nil, gives each entry's target
// a chance to move to its post-collection address (the scavenger's
// forwarding address) before isLive is asked about it; mark-sweep, which
// never relocates objects, passes nil. Without this a surviving weak
// pointer would keep referencing its stale from-space object, and
// forwardingAddress()!=nil would then report it live forever, even after
// it is actually garbage on some later collection.
func (h *Heap) ProcessWeakPointers(isLive func(HeapObject) bool, rewrite func(HeapObject) HeapObject) {
	kept := h.weak[:0]
	for _, e := range h.weak {
		if rewrite != nil {
			if fwd := rewrite(e.object); fwd != nil {
				e.object = fwd
			}
		}
		if isLive(e.object) {
			kept = append(kept, e)
			continue
		}
		if e.callback != nil {
			e.callback(h, e.object)
		}
	}
	h.weak = kept
}

// --- Foreign memory accounting ---------------------------------------------

// AllocatedForeignMemory records bytes of off-heap memory charged against
// this heap's budget, reported by the mutator when it takes ownership of
// a foreign buffer (e.g. a ForeignFinalized mailbox message, §4.10).
func (h *Heap) AllocatedForeignMemory(bytes int64) { h.foreignBytes += bytes }

// FreedForeignMemory records bytes released by a finalizer callback.
func (h *Heap) FreedForeignMemory(bytes int64) { h.foreignBytes -= bytes }

// ForeignMemoryBytes reports the current foreign-memory budget charge,
// which participates in GC-trigger heuristics alongside heap Used().
func (h *Heap) ForeignMemoryBytes() int64 { return h.foreignBytes }
