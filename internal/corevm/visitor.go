package corevm

// Visitor is the uniform pointer-iteration capability shared by the
// scavenger, marker, validator, and program-GC (§4.4). VisitBlock must be
// equivalent to calling Visit on every slot in the half-open range.
type Visitor interface {
	Visit(slot *Object)
	VisitBlock(slots []Object)
}

// VisitorFunc adapts a plain function to the Visitor interface for
// one-off visitors (tests, validators) that don't need VisitBlock's batch
// form to differ from a loop over Visit.
type VisitorFunc func(*Object)

func (f VisitorFunc) Visit(slot *Object) { f(slot) }
func (f VisitorFunc) VisitBlock(slots []Object) {
	for i := range slots {
		f(&slots[i])
	}
}

// VisitHeapObjectPointers dispatches on obj's concrete layout and calls
// visitor on every outgoing Object slot it owns. This is the
// HeapObjectPointerVisitor adapter of §4.4.
func VisitHeapObjectPointers(obj HeapObject, visitor Visitor) {
	switch o := obj.(type) {
	case *Array:
		visitor.VisitBlock(o.Slots)
	case *Instance:
		visitor.VisitBlock(o.Slots)
	case *Boxed:
		visitor.Visit(&o.Inner)
	case *Stack:
		o.visitPointers(visitor)
	case *Coroutine:
		visitor.Visit(&o.stackSlot)
	case *ByteArray, *OneByteString, *TwoByteString, *Double, *LargeInteger,
		*Function, *Class, *Failure:
		// No outgoing Object pointers (Function/Class hold their own
		// specialized references, walked separately by the program GC).
	}
}
