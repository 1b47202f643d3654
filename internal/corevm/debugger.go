package corevm

import (
	"unsafe"

	"github.com/chazu/corevm/internal/bytecode"
)

// StepMode covers the two one-shot-breakpoint strategies the core
// actually installs; StepInto needs no core support since it breaks on
// the very next bytecode fetch regardless of frame, which the debugger
// front end can arrange without any help from a prepared breakpoint
// here.
type StepMode uint8

const (
	StepNone StepMode = iota
	StepOver
	StepOut
)

// Breakpoint is a one-shot install: it fires only when execution reaches
// BCP in Frame with the stack at exactly Height words, then disarms
// itself (§4.11).
type Breakpoint struct {
	Frame  *Frame
	BCP    *byte
	Height int
	Mode   StepMode
}

// DebugState is the per-process stepping state PrepareStepOver and
// PrepareStepOut install into, and the interpreter's bytecode fetch
// consults on every step (§4.11). It is intentionally process-local
// rather than a single shared debug server, since each process here
// has its own coroutine stack to step through.
type DebugState struct {
	Armed *Breakpoint
}

// arityForInvoke decodes an invoke bytecode's call-site arity. Unfold
// variants carry their selector indirectly via a resolved literal, but
// the arity operand byte is encoded identically in both folded and
// unfolded forms (§4.7's unfold pass only changes how the target is
// found, never the calling convention), so ArityByte alone suffices.
func arityForInvoke(bcp *byte) int {
	return bytecode.ArityByte(bcp)
}

// PrepareStepOver installs a one-shot breakpoint that fires on return to
// the current frame. For a non-invoke opcode, nothing is actually a call,
// so the caller just steps to the literal next bytecode in the same
// frame at the current height — returned as the breakpoint to install. An
// invoke variant computes the expected post-return stack height from the
// call's arity and installs the breakpoint at the following instruction
// (§4.11, scenario E4):
//
//	expected = stack.top - StackDiff(op, arity) + kGuaranteedFrameSize
func (p *Process) PrepareStepOver() *Breakpoint {
	frame := p.currentFrame()
	if frame == nil {
		return nil
	}
	op := bytecode.Op(*frame.BCP)
	size := bytecode.Size(op)
	next := advanceBCP(frame.BCP, size)

	stack := p.coroutine.Stack()
	if !bytecode.IsInvokeVariant(op) {
		bp := &Breakpoint{Frame: frame, BCP: next, Height: stack.Top, Mode: StepOver}
		p.debug.Armed = bp
		return bp
	}

	arity := arityForInvoke(frame.BCP)
	expected := stack.Top - bytecode.StackDiff(op, arity) + guaranteedFrameHeaderWords
	bp := &Breakpoint{
		Frame:  frame,
		BCP:    next,
		Height: stack.Length() - expected,
		Mode:   StepOver,
	}
	p.debug.Armed = bp
	return bp
}

// PrepareStepOut walks up one frame from the current one and installs a
// one-shot breakpoint in the caller, at its resume BCP, qualified by the
// stack height expected once the callee's arguments and return slot have
// been popped (§4.11).
func (p *Process) PrepareStepOut() *Breakpoint {
	frames := p.coroutine.Stack().Frames
	if len(frames) < 2 {
		return nil
	}
	callee := frames[len(frames)-1]
	caller := frames[len(frames)-2]

	op := bytecode.Op(*caller.BCP)
	size := bytecode.Size(op)
	resume := advanceBCP(caller.BCP, size)

	stack := p.coroutine.Stack()
	// The callee's own frame base is exactly the stack height the caller
	// sees once the callee's arguments, frame header, and locals have all
	// been popped back off by its return.
	expected := callee.Base
	bp := &Breakpoint{
		Frame:  caller,
		BCP:    resume,
		Height: stack.Length() - expected,
		Mode:   StepOut,
	}
	p.debug.Armed = bp
	return bp
}

// CheckBreakpoint reports whether the armed one-shot breakpoint fires for
// the given frame/BCP/height, disarming it if so. The interpreter's
// bytecode fetch calls this once per step while a breakpoint is armed;
// it is deliberately not called unconditionally so stepping costs nothing
// when no debugger is attached.
func (p *Process) CheckBreakpoint(frame *Frame, bcp *byte, height int) bool {
	bp := p.debug.Armed
	if bp == nil || bp.Frame != frame || bp.BCP != bcp || bp.Height != height {
		return false
	}
	p.debug.Armed = nil
	return true
}

// currentFrame returns the innermost frame of the process's current
// stack, or nil if it has none (a freshly created process before its
// first PushFrame).
func (p *Process) currentFrame() *Frame {
	frames := p.coroutine.Stack().Frames
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

// advanceBCP returns the address n bytes past bcp, within the same
// backing bytecode array — valid as long as the caller never advances
// past the owning Function's last instruction.
func advanceBCP(bcp *byte, n int) *byte {
	if bcp == nil {
		return nil
	}
	return (*byte)(unsafe.Add(unsafe.Pointer(bcp), n))
}
