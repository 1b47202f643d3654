package bytecode

import "testing"

// ---------------------------------------------------------------------------
// Opcode classification
// ---------------------------------------------------------------------------

func TestIsInvokeVariant(t *testing.T) {
	invokes := []Op{InvokeMethod, InvokeMethodUnfold, InvokeStatic, InvokeStaticUnfold}
	for _, op := range invokes {
		if !IsInvokeVariant(op) {
			t.Errorf("IsInvokeVariant(%v) = false, want true", op)
		}
	}
	if IsInvokeVariant(Pop) {
		t.Error("IsInvokeVariant(Pop) = true, want false")
	}
}

func TestSize(t *testing.T) {
	cases := map[Op]int{
		Nop:         1,
		PushSmi:     5,
		PushLiteral: 3,
		InvokeMethod: 4,
		ReturnTop:   1,
	}
	for op, want := range cases {
		if got := Size(op); got != want {
			t.Errorf("Size(%v) = %d, want %d", op, got, want)
		}
	}
}

func TestStackDiffFixedEffect(t *testing.T) {
	if got := StackDiff(Pop, 0); got != -1 {
		t.Errorf("StackDiff(Pop) = %d, want -1", got)
	}
	if got := StackDiff(Dup, 0); got != 1 {
		t.Errorf("StackDiff(Dup) = %d, want 1", got)
	}
}

func TestStackDiffInvokeUsesArity(t *testing.T) {
	if got := StackDiff(InvokeMethod, 3); got != -3 {
		t.Errorf("StackDiff(InvokeMethod, 3) = %d, want -3", got)
	}
	if got := StackDiff(InvokeStaticUnfold, 0); got != 0 {
		t.Errorf("StackDiff(InvokeStaticUnfold, 0) = %d, want 0", got)
	}
}

func TestArityByte(t *testing.T) {
	code := []byte{byte(InvokeMethod), 0x00, 0x01, 0x02}
	if got := ArityByte(&code[0]); got != 2 {
		t.Errorf("ArityByte = %d, want 2", got)
	}
}

// ---------------------------------------------------------------------------
// ConstantForBytecode (DESIGN NOTES §9(c))
// ---------------------------------------------------------------------------

type fakeLiterals []interface{}

func (f fakeLiterals) LiteralAt(index int) (interface{}, bool) {
	if index < 0 || index >= len(f) {
		return nil, false
	}
	return f[index], true
}

func TestConstantForBytecodeResolvesUnfoldedInvoke(t *testing.T) {
	lits := fakeLiterals{"zero", "one", "target"}
	code := []byte{byte(InvokeMethodUnfold), 0x00, 0x02, 0x01}

	got, ok := ConstantForBytecode(lits, &code[0])
	if !ok {
		t.Fatal("ConstantForBytecode should report true for an unfolded invoke")
	}
	if got != "target" {
		t.Errorf("resolved literal = %v, want %q", got, "target")
	}
}

func TestConstantForBytecodeRejectsFoldedInvoke(t *testing.T) {
	lits := fakeLiterals{"zero"}
	code := []byte{byte(InvokeMethod), 0x00, 0x00, 0x01}

	_, ok := ConstantForBytecode(lits, &code[0])
	if ok {
		t.Error("ConstantForBytecode should report false for a folded invoke — the caller must guard on program compaction mode separately")
	}
}
