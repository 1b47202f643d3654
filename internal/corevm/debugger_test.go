package corevm

import (
	"testing"

	"github.com/chazu/corevm/internal/bytecode"
)

// ---------------------------------------------------------------------------
// Debug stepping (§4.11)
// ---------------------------------------------------------------------------

func TestPrepareStepOverNonInvokeStaysInFrame(t *testing.T) {
	p := newTestProcess(1 << 16)
	code := []byte{byte(bytecode.Pop), byte(bytecode.Nop)}
	stack := p.coroutine.Stack()
	frame := stack.PushFrame(&code[0], 2)

	bp := p.PrepareStepOver()
	if bp == nil {
		t.Fatal("PrepareStepOver returned nil")
	}
	if bp.Frame != frame {
		t.Error("non-invoke step-over should stay in the current frame")
	}
	if bp.BCP != &code[1] {
		t.Error("non-invoke step-over should land on the very next instruction")
	}
	if bp.Height != stack.Top {
		t.Errorf("non-invoke step-over height = %d, want unchanged stack.Top = %d", bp.Height, stack.Top)
	}
}

// TestPrepareStepOverInvokeComputesPostReturnHeight mirrors scenario E4:
// an InvokeMethod with arity 2 over a stack whose Top sits 4 words above
// the expected post-return height, verifying
// expected = stack.Top - StackDiff(op, arity) + kGuaranteedFrameSize.
func TestPrepareStepOverInvokeComputesPostReturnHeight(t *testing.T) {
	p := newTestProcess(1 << 16)
	// InvokeMethod operand layout: opcode, 2-byte selector index, 1-byte arity.
	code := []byte{byte(bytecode.InvokeMethod), 0x00, 0x00, 0x02, byte(bytecode.ReturnTop)}
	stack := p.coroutine.Stack()
	stack.PushFrame(&code[0], 4)
	stack.Top += 4 // simulate four operand words already pushed for the call

	bp := p.PrepareStepOver()
	if bp == nil {
		t.Fatal("PrepareStepOver returned nil")
	}
	if bp.BCP != &code[4] {
		t.Error("invoke step-over should land just past the invoke instruction")
	}

	expected := stack.Top - bytecode.StackDiff(bytecode.InvokeMethod, 2) + guaranteedFrameHeaderWords
	wantHeight := stack.Length() - expected
	if bp.Height != wantHeight {
		t.Errorf("bp.Height = %d, want %d", bp.Height, wantHeight)
	}
}

func TestPrepareStepOutTargetsCaller(t *testing.T) {
	p := newTestProcess(1 << 16)
	callerCode := []byte{byte(bytecode.InvokeMethod), 0x00, 0x00, 0x00, byte(bytecode.ReturnTop)}
	stack := p.coroutine.Stack()
	stack.PushFrame(&callerCode[0], 2)
	callee := stack.PushFrame(nil, 1)

	bp := p.PrepareStepOut()
	if bp == nil {
		t.Fatal("PrepareStepOut returned nil")
	}
	if bp.BCP != &callerCode[4] {
		t.Error("step-out should resume just past the caller's invoke instruction")
	}
	wantHeight := stack.Length() - callee.Base
	if bp.Height != wantHeight {
		t.Errorf("bp.Height = %d, want %d", bp.Height, wantHeight)
	}
}

func TestPrepareStepOutNeedsTwoFrames(t *testing.T) {
	p := newTestProcess(1 << 16)
	code := []byte{byte(bytecode.Nop)}
	p.coroutine.Stack().PushFrame(&code[0], 0)

	if bp := p.PrepareStepOut(); bp != nil {
		t.Error("PrepareStepOut with only one frame should return nil")
	}
}

func TestCheckBreakpointFiresOnceThenDisarms(t *testing.T) {
	p := newTestProcess(1 << 16)
	code := []byte{byte(bytecode.Pop), byte(bytecode.Nop)}
	stack := p.coroutine.Stack()
	frame := stack.PushFrame(&code[0], 0)

	bp := p.PrepareStepOver()

	if !p.CheckBreakpoint(frame, bp.BCP, bp.Height) {
		t.Fatal("CheckBreakpoint should fire for the armed breakpoint's exact (frame, bcp, height)")
	}
	if p.CheckBreakpoint(frame, bp.BCP, bp.Height) {
		t.Error("CheckBreakpoint should not fire again once disarmed")
	}
}

func TestCheckBreakpointRequiresExactMatch(t *testing.T) {
	p := newTestProcess(1 << 16)
	code := []byte{byte(bytecode.Pop), byte(bytecode.Nop)}
	stack := p.coroutine.Stack()
	frame := stack.PushFrame(&code[0], 0)

	bp := p.PrepareStepOver()

	if p.CheckBreakpoint(frame, bp.BCP, bp.Height+1) {
		t.Error("CheckBreakpoint should not fire when the height does not match exactly")
	}
}
