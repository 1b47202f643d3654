package corevm

// Coroutine owns exactly one Stack; the process's current coroutine is
// the root of execution (§3).
type Coroutine struct {
	objectHeader
	stackSlot Object // holds a *Stack wrapped as a HeapObject Object
}

func (c *Coroutine) Kind() HeapObjectKind { return KindCoroutine }
func (c *Coroutine) Size() int            { return 2 }

// NewCoroutine creates a Coroutine owning the given Stack.
func NewCoroutine(stack *Stack) *Coroutine {
	return &Coroutine{stackSlot: NewHeapObject(stack)}
}

// Stack returns the coroutine's current Stack.
func (c *Coroutine) Stack() *Stack {
	if c.stackSlot.IsHeapObject() {
		if s, ok := c.stackSlot.HeapObject().(*Stack); ok {
			return s
		}
	}
	return nil
}

func (c *Coroutine) setStack(s *Stack) { c.stackSlot = NewHeapObject(s) }

// StackCheckResult is the typed outcome of a stack-check / overflow
// handler, matching §4.7 and §7's propagation policy.
type StackCheckResult uint8

const (
	StackContinue StackCheckResult = iota
	StackInterrupt
	StackDebugInterrupt
	StackOverflow
)

// SetupExecutionStack creates the initial 256-word stack and coroutine for
// a freshly created process (§4.7).
func SetupExecutionStack() *Coroutine {
	return NewCoroutine(NewStack(initialStackWords))
}

const initialStackWords = 256

// nextPow2 rounds n up to the next power of two (n=0 rounds to 1).
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// HandleStackOverflow implements §4.7's growth algorithm. It first checks
// whether the apparent overflow was actually an interrupt marker set on
// the process's stack limit; only a genuine overflow grows the stack.
//
// CollectMutableGarbage is invoked at most once, mirroring the allocation retry law
// (§8 property 1): a failed stack allocation triggers one collection and
// one retry before giving up with StackOverflow.
func (p *Process) HandleStackOverflow(additionalWords int) StackCheckResult {
	if marker, ok := p.stackLimit.consumeMarker(); ok {
		p.stackLimit.updateStackLimit(p.coroutine.Stack())
		return marker.result()
	}

	co := p.coroutine
	stack := co.Stack()
	growth := additionalWords
	if growth < 1 {
		growth = 1
	}
	growth = nextPow2(growth)
	if growth < initialStackWords {
		growth = initialStackWords
	}
	newLength := stack.Length() + growth

	if newLength > p.platform.MaxStackSizeInWords() {
		return StackOverflow
	}

	newStack, ok := p.allocateStackRetrying(newLength)
	if !ok {
		return StackOverflow
	}

	liveWords := stack.Top
	_ = liveWords // documents the invariant; copy below moves Top live words
	copy(newStack.words[:stack.Top], stack.words[:stack.Top])
	newStack.Top = stack.Top
	newStack.Frames = updateFramePointers(stack.Frames, newStack)

	co.setStack(newStack)
	p.storeBuffer.Insert(newStack)
	p.stackLimit.recomputeRealLimit(newStack)
	return StackContinue
}

// allocateStackRetrying tries CreateStack once, and on RetryAfterGC runs a
// mutable collection and retries exactly once more (the allocation retry
// law applied to stack growth specifically).
func (p *Process) allocateStackRetrying(length int) (*Stack, bool) {
	s, failure := p.heap.CreateStack(length)
	if failure == nil {
		return s, true
	}
	if failure != RetryAfterGC {
		return nil, false
	}
	p.CollectMutableGarbage()
	s, failure = p.heap.CreateStack(length)
	return s, failure == nil
}

// updateFramePointers rewrites each frame's slot slice to point into the
// new stack's backing array and relinks FramePointer indices, which stay
// valid unchanged since both stacks share the same base-0 addressing —
// only the backing array identity changes.
func updateFramePointers(frames []*Frame, newStack *Stack) []*Frame {
	out := make([]*Frame, len(frames))
	for i, f := range frames {
		nf := &Frame{
			BCP:          f.BCP,
			cookedFn:     f.cookedFn,
			cookedDelta:  f.cookedDelta,
			FramePointer: f.FramePointer,
			Base:         f.Base,
			Slots:        newStack.words[f.Base : f.Base+len(f.Slots)],
		}
		out[i] = nf
	}
	return out
}
