package corevm

// MutableGC is the capability selected at Process construction that
// implements the mutator's mutable-heap collection strategy — the
// scavenging default of §4.5, or the mark-sweep alternative of §4.6.
// DESIGN NOTES §9 calls these "two variants of the same MutableGc
// capability... they share the weak-pointer and port-cleanup phases",
// which live in gcCommonFinish (marksweep.go) rather than being duplicated
// per variant.
type MutableGC interface {
	Collect(p *Process)
}

// ScavengingGC is the default copying collector for the mutable heap.
type ScavengingGC struct{}

// scavengeCopy makes a shallow structural copy of obj in to-space,
// preserving its class and content but not yet fixing up any outgoing
// Object pointers — those are corrected as the grey set drains in step 6
// of Collect.
func scavengeCopy(obj HeapObject) HeapObject {
	switch o := obj.(type) {
	case *Array:
		n := &Array{Slots: append([]Object(nil), o.Slots...)}
		n.setClass(o.Class())
		return n
	case *ByteArray:
		n := &ByteArray{Bytes: append([]byte(nil), o.Bytes...)}
		n.setClass(o.Class())
		return n
	case *OneByteString:
		n := &OneByteString{Bytes: append([]byte(nil), o.Bytes...)}
		n.setClass(o.Class())
		return n
	case *TwoByteString:
		n := &TwoByteString{Units: append([]uint16(nil), o.Units...)}
		n.setClass(o.Class())
		return n
	case *Double:
		n := &Double{Value: o.Value}
		n.setClass(o.Class())
		return n
	case *LargeInteger:
		n := &LargeInteger{Value: o.Value}
		n.setClass(o.Class())
		return n
	case *Boxed:
		n := &Boxed{Inner: o.Inner}
		n.setClass(o.Class())
		return n
	case *Instance:
		n := &Instance{Slots: append([]Object(nil), o.Slots...)}
		n.setClass(o.Class())
		return n
	case *Stack:
		n := NewStack(o.Length())
		copy(n.words, o.words)
		n.Top = o.Top
		n.Frames = updateFramePointers(o.Frames, n)
		n.Next = o.Next
		n.setClass(o.Class())
		return n
	case *Coroutine:
		n := &Coroutine{stackSlot: o.stackSlot}
		n.setClass(o.Class())
		return n
	default:
		return obj // Class/Function/Failure never live in the mutable heap
	}
}

// scavengeVisitor forwards every slot it visits: if the slot already
// points at from-space, either follow the existing forwarding address or
// copy the object to to-space and install a fresh one, then rewrite the
// slot to point at the to-space copy. Objects outside from-space (already
// in the shared heap, or already in to-space) are left untouched.
type scavengeVisitor struct {
	from, to *Space
	grey     *[]HeapObject
}

func (v scavengeVisitor) Visit(slot *Object) {
	if !slot.IsHeapObject() {
		return
	}
	obj := slot.HeapObject()
	if !v.from.Includes(obj) {
		return // already in to-space or targets the shared/program heap
	}
	if fwd := obj.forwardingAddress(); fwd != nil {
		*slot = NewHeapObject(fwd)
		return
	}
	copyObj := scavengeCopy(obj)
	v.to.Allocate(copyObj, copyObj.Size())
	obj.setForwardingAddress(copyObj)
	*slot = NewHeapObject(copyObj)
	*v.grey = append(*v.grey, copyObj)
}

func (v scavengeVisitor) VisitBlock(slots []Object) {
	for i := range slots {
		v.Visit(&slots[i])
	}
}

// Collect implements the ten-step scavenging algorithm of §4.5.
func (ScavengingGC) Collect(p *Process) {
	// Step 1: merge mailbox-attached child heaps into from-space so their
	// objects are visited (and possibly promoted) alongside everything
	// else reachable from this process's roots.
	p.mailbox.mergeChildHeaps(p.heap)

	from := p.heap.space
	// Step 3: to-space sized from.Used()/10, grown greedily during the
	// pass via NoAllocationFailureScope so copying always makes progress.
	toWords := from.Used() / 10
	if toWords < 1 {
		toWords = 1
	}
	to := NewSpace(toWords)
	scope := NewNoAllocationFailureScope(to)
	defer scope.Close()

	// Step 4.
	newSB := NewStoreBuffer()

	var grey []HeapObject
	visitor := scavengeVisitor{from: from, to: to, grey: &grey}

	// Step 5: apply the visitor to every root.
	p.IterateRoots(visitor)

	// Step 6: drain the grey set, recording store-buffer entries whenever
	// a scanned field targets the program (shared) heap.
	for len(grey) > 0 {
		obj := grey[len(grey)-1]
		grey = grey[:len(grey)-1]
		VisitHeapObjectPointers(obj, visitorFuncWithSB{base: visitor, sb: newSB, shared: p.program.SharedHeap(), owner: obj})
	}

	// Step 7: replace the store buffer, rewriting stale entries through
	// forwarding.
	p.storeBuffer.ReplaceAfterMutableGC(newSB)

	// Step 8: weak pointers + port cleanup, shared with mark-sweep. rewrite
	// redirects a weak pointer still referencing its stale from-space
	// object to the to-space copy it was forwarded to, so the next
	// collection's liveness check runs against the object's current
	// address instead of a permanently-forwarded husk.
	isLive := func(obj HeapObject) bool { return obj.forwardingAddress() != nil || !from.Includes(obj) }
	rewrite := func(obj HeapObject) HeapObject {
		if !from.Includes(obj) {
			return nil
		}
		return obj.forwardingAddress()
	}
	gcCommonFinish(p, isLive, rewrite)

	// Step 9.
	p.heap.space.ReplaceWith(to)

	// Step 10.
	p.stackLimit.recomputeRealLimit(p.coroutine.Stack())
}

// visitorFuncWithSB wraps the base scavenge visitor so that, while
// draining the grey set, any field of owner found to target the shared
// heap gets owner recorded in the new store buffer (§4.5 step 6).
type visitorFuncWithSB struct {
	base   scavengeVisitor
	sb     *StoreBuffer
	shared *SharedHeap
	owner  HeapObject
}

func (v visitorFuncWithSB) Visit(slot *Object) {
	if slot.IsHeapObject() && v.shared != nil && v.shared.owns(slot.HeapObject()) {
		v.sb.Insert(v.owner)
	}
	v.base.Visit(slot)
}

func (v visitorFuncWithSB) VisitBlock(slots []Object) {
	for i := range slots {
		v.Visit(&slots[i])
	}
}
