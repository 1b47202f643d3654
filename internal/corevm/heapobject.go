package corevm

// HeapObjectKind discriminates the variants of HeapObject listed in the
// data model: Array, ByteArray, OneByteString, TwoByteString, Double,
// LargeInteger, Boxed, Instance, Class, Function, Stack, Coroutine, and the
// singleton Failure sentinels.
type HeapObjectKind uint8

const (
	KindArray HeapObjectKind = iota
	KindByteArray
	KindOneByteString
	KindTwoByteString
	KindDouble
	KindLargeInteger
	KindBoxed
	KindInstance
	KindClass
	KindFunction
	KindStack
	KindCoroutine
	KindFailure
)

// HeapObject is any value that lives in a HeapSpace chunk. Every heap
// object begins with a class pointer in its first word; during a copying
// collection that slot may temporarily hold a forwarding address instead
// (see forwardingAddress).
type HeapObject interface {
	// Kind reports the concrete variant for dispatch without a type switch
	// at every call site (mirrors the class-pointer-driven dispatch the
	// bytecode interpreter performs externally).
	Kind() HeapObjectKind

	// Class returns the object's class, or nil while a forwarding address
	// is installed in its place during a scavenge.
	Class() *Class
	setClass(*Class)

	// Size reports the object's footprint in words, used by the space
	// allocator and by chunk iteration to step to the next header.
	Size() int

	// forwardingAddress returns the forwarding target installed by the
	// scavenger, or nil if this object has not yet been copied.
	forwardingAddress() HeapObject
	setForwardingAddress(HeapObject)
}

// objectHeader is embedded by every concrete HeapObject and carries the
// class pointer / forwarding address union described in §3: "During a
// copying collection a forwarding address may temporarily overwrite the
// class slot in from-space."
type objectHeader struct {
	class     *Class
	forwarded HeapObject
}

func (h *objectHeader) Class() *Class             { return h.class }
func (h *objectHeader) setClass(c *Class)         { h.class = c }
func (h *objectHeader) forwardingAddress() HeapObject { return h.forwarded }
func (h *objectHeader) setForwardingAddress(to HeapObject) { h.forwarded = to }

// --- Array ---------------------------------------------------------------

// Array is a fixed-length sequence of Object slots.
type Array struct {
	objectHeader
	Slots []Object
}

func (a *Array) Kind() HeapObjectKind { return KindArray }
func (a *Array) Size() int            { return 1 + len(a.Slots) }

// --- ByteArray -------------------------------------------------------------

// ByteArray is a fixed-length sequence of raw bytes with no outgoing
// pointers; nothing records it in the store buffer.
type ByteArray struct {
	objectHeader
	Bytes []byte
}

func (b *ByteArray) Kind() HeapObjectKind { return KindByteArray }
func (b *ByteArray) Size() int            { return 1 + (len(b.Bytes)+7)/8 }

// --- Strings ---------------------------------------------------------------

// OneByteString stores Latin-1 characters one byte per code point.
type OneByteString struct {
	objectHeader
	Bytes []byte
}

func (s *OneByteString) Kind() HeapObjectKind { return KindOneByteString }
func (s *OneByteString) Size() int            { return 1 + (len(s.Bytes)+7)/8 }

// TwoByteString stores UTF-16 code units, two bytes per unit.
type TwoByteString struct {
	objectHeader
	Units []uint16
}

func (s *TwoByteString) Kind() HeapObjectKind { return KindTwoByteString }
func (s *TwoByteString) Size() int            { return 1 + (len(s.Units)+3)/4 }

// --- Numeric boxes -----------------------------------------------------

// Double is a boxed IEEE-754 double; Smis never need boxing, only values
// that do not fit the in-line representation do.
type Double struct {
	objectHeader
	Value float64
}

func (d *Double) Kind() HeapObjectKind { return KindDouble }
func (d *Double) Size() int            { return 2 }

// LargeInteger boxes an integer magnitude that overflows a Smi.
type LargeInteger struct {
	objectHeader
	Value int64
}

func (l *LargeInteger) Kind() HeapObjectKind { return KindLargeInteger }
func (l *LargeInteger) Size() int            { return 2 }

// Boxed wraps a single Object, used for mutable upvalue-style cells (e.g.
// a variable captured by a block/closure).
type Boxed struct {
	objectHeader
	Inner Object
}

func (b *Boxed) Kind() HeapObjectKind { return KindBoxed }
func (b *Boxed) Size() int            { return 2 }

// --- Instance ------------------------------------------------------------

// Instance is a general user-defined object with a fixed number of slots
// determined by its Class.
type Instance struct {
	objectHeader
	Slots []Object
}

func (i *Instance) Kind() HeapObjectKind { return KindInstance }
func (i *Instance) Size() int            { return 1 + len(i.Slots) }

// --- Function --------------------------------------------------------------

// Function is the heap representation of compiled bytecode. Frames record
// a BCP into a Function's bytecode rather than a raw pointer once cooked
// (see Stack.Cook); BytecodeAddressForOffset reconstructs a live BCP from a
// function and a delta after a moving program GC.
type Function struct {
	objectHeader
	Bytecode []byte
	Arity    int
	Literals []Object
}

func (f *Function) Kind() HeapObjectKind { return KindFunction }
func (f *Function) Size() int            { return 2 + (len(f.Bytecode)+7)/8 + len(f.Literals) }

// BytecodeAddressForOffset returns the BCP corresponding to delta bytes
// into this function's code, or nil if delta is out of range.
func (f *Function) BytecodeAddressForOffset(delta int) *byte {
	if delta < 0 || delta >= len(f.Bytecode) {
		return nil
	}
	return &f.Bytecode[delta]
}

// LiteralAt returns the literal at index in this function's constant
// pool, satisfying internal/bytecode.Literals so ConstantForBytecode can
// resolve an Invoke*Unfold operand without that package importing
// corevm.
func (f *Function) LiteralAt(index int) (interface{}, bool) {
	if index < 0 || index >= len(f.Literals) {
		return nil, false
	}
	return f.Literals[index], true
}

// OffsetOf returns the byte offset of bcp within this function's code, or
// -1 if bcp does not point into it.
func (f *Function) OffsetOf(bcp *byte) int {
	if bcp == nil || len(f.Bytecode) == 0 {
		return -1
	}
	for i := range f.Bytecode {
		if &f.Bytecode[i] == bcp {
			return i
		}
	}
	return -1
}

// --- Failure ---------------------------------------------------------------

// FailureKind enumerates the singleton Failure sentinels allocators and
// natives return in place of a real object.
type FailureKind uint8

const (
	FailureRetryAfterGC FailureKind = iota
	FailureWrongArgumentType
	FailureIndexOutOfBounds
	FailureIllegalState
)

// Failure is a singleton sentinel, never a "real" allocation: every
// factory in §4.2 returns either a live HeapObject or one of these.
type Failure struct {
	objectHeader
	FKind FailureKind
}

func (f *Failure) Kind() HeapObjectKind { return KindFailure }
func (f *Failure) Size() int            { return 1 }

// The four Failure singletons, shared across every Heap/SharedHeap instance
// in the process (they carry no per-heap state).
var (
	RetryAfterGC       = &Failure{FKind: FailureRetryAfterGC}
	WrongArgumentType  = &Failure{FKind: FailureWrongArgumentType}
	IndexOutOfBoundsF  = &Failure{FKind: FailureIndexOutOfBounds}
	IllegalStateF      = &Failure{FKind: FailureIllegalState}
)

// IsFailure reports whether obj is one of the Failure singletons.
func IsFailure(obj HeapObject) bool {
	_, ok := obj.(*Failure)
	return ok
}
