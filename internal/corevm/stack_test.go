package corevm

import "testing"

// ---------------------------------------------------------------------------
// Frame push and addressing
// ---------------------------------------------------------------------------

func TestStackPushFrameLinksFramePointer(t *testing.T) {
	s := NewStack(64)

	f1 := s.PushFrame(nil, 2)
	if f1.FramePointer != -1 {
		t.Errorf("outermost frame's FramePointer = %d, want -1", f1.FramePointer)
	}

	f2 := s.PushFrame(nil, 3)
	if f2.FramePointer != f1.Base {
		t.Errorf("f2.FramePointer = %d, want f1.Base = %d", f2.FramePointer, f1.Base)
	}
	if len(f2.Slots) != 3 {
		t.Errorf("f2 slot count = %d, want 3", len(f2.Slots))
	}
}

func TestStackCookUncookRoundTrip(t *testing.T) {
	fn := &Function{Bytecode: make([]byte, 8)}
	s := NewStack(64)
	f := s.PushFrame(&fn.Bytecode[3], 1)

	s.Cook(func(bcp *byte) *Function { return fn })
	if f.BCP != nil {
		t.Error("Cook should clear BCP")
	}

	s.Uncook()
	if f.BCP != &fn.Bytecode[3] {
		t.Error("Uncook should restore the original BCP")
	}
}

func TestCookStacksCountsChain(t *testing.T) {
	a := NewStack(32)
	b := NewStack(32)
	a.Next = b

	n := a.CookStacks(func(bcp *byte) *Function { return nil })
	if n != 2 {
		t.Errorf("CookStacks walked %d stacks, want 2", n)
	}
}

func TestUncookAndUnchainStacksResetsNext(t *testing.T) {
	a := NewStack(32)
	b := NewStack(32)
	a.Next = b

	a.UncookAndUnchainStacks()
	if a.Next != stackNextZero {
		t.Error("UncookAndUnchainStacks should reset Next to the Smi-zero sentinel")
	}
}

// ---------------------------------------------------------------------------
// Stack growth (§4.7)
// ---------------------------------------------------------------------------

func TestHandleStackOverflowGrowsPowerOfTwo(t *testing.T) {
	host := &testPlatform{maxWords: 1 << 20}
	gc := ScavengingGC{}
	program := NewProgram(1 << 10)
	p := NewProcess(program, host, gc, 1<<12, 0)

	before := p.coroutine.Stack().Length()
	result := p.HandleStackOverflow(100)
	if result != StackContinue {
		t.Fatalf("HandleStackOverflow = %v, want StackContinue", result)
	}
	after := p.coroutine.Stack().Length()
	if after <= before {
		t.Errorf("stack did not grow: before=%d after=%d", before, after)
	}
	if (after-before)&(after-before-1) != 0 {
		t.Errorf("growth increment %d is not a power of two", after-before)
	}
}

func TestHandleStackOverflowRefusesPastMaxSize(t *testing.T) {
	host := &testPlatform{maxWords: 300}
	program := NewProgram(1 << 10)
	p := NewProcess(program, host, ScavengingGC{}, 1<<12, 0)

	if result := p.HandleStackOverflow(1 << 20); result != StackOverflow {
		t.Errorf("HandleStackOverflow = %v, want StackOverflow", result)
	}
}

func TestHandleStackOverflowConsumesMarkerFirst(t *testing.T) {
	host := &testPlatform{maxWords: 1 << 20}
	program := NewProgram(1 << 10)
	p := NewProcess(program, host, ScavengingGC{}, 1<<12, 0)

	before := p.coroutine.Stack().Length()
	p.stackLimit.setMarker(MarkerPreempt)

	result := p.HandleStackOverflow(8)
	if result != StackInterrupt {
		t.Errorf("HandleStackOverflow = %v, want StackInterrupt", result)
	}
	if p.coroutine.Stack().Length() != before {
		t.Error("consuming a marker must not grow the stack")
	}
}

// ---------------------------------------------------------------------------
// Interrupt markers (§4.9)
// ---------------------------------------------------------------------------

func TestStackLimitMarkerSetAndConsumePriority(t *testing.T) {
	var sl stackLimit
	sl.word.Store(1000)

	sl.setMarker(MarkerProfile)
	sl.setMarker(MarkerPreempt)

	m, ok := sl.consumeMarker()
	if !ok || m != MarkerPreempt {
		t.Errorf("consumeMarker = (%v, %v), want (MarkerPreempt, true) by priority order", m, ok)
	}

	m2, ok2 := sl.consumeMarker()
	if !ok2 || m2 != MarkerProfile {
		t.Errorf("second consumeMarker = (%v, %v), want (MarkerProfile, true)", m2, ok2)
	}

	if sl.hasAnyMarker() {
		t.Error("no markers should remain set")
	}
}

func TestStackLimitUpdateRestoresRealLimitOnlyWhenClear(t *testing.T) {
	s := NewStack(256)
	var sl stackLimit
	sl.recomputeRealLimit(s)
	real := sl.word.Load()

	sl.setMarker(MarkerDebugInterrupt)
	sl.updateStackLimit(s)
	if sl.word.Load() == real {
		t.Error("updateStackLimit should not restore the real limit while a marker remains set")
	}

	sl.consumeMarker()
	sl.updateStackLimit(s)
	if sl.word.Load() != real {
		t.Errorf("updateStackLimit should restore the real limit once clear, got %d want %d", sl.word.Load(), real)
	}
}

// testPlatform is a minimal Platform stub for tests that only exercise
// stack growth and GC wiring, not time/abort/thread-identity behavior.
type testPlatform struct {
	maxWords int
}

func (t *testPlatform) GetMicroseconds() int64       { return 0 }
func (t *testPlatform) MaxStackSizeInWords() int      { return t.maxWords }
func (t *testPlatform) ImmediateAbort(reason string)  {}
func (t *testPlatform) ScheduleAbort(reason string)   {}
func (t *testPlatform) ThreadID() uint64              { return 1 }
