package corevm

import "testing"

// ---------------------------------------------------------------------------
// Shared-heap mark-sweep (§2, §4.6)
// ---------------------------------------------------------------------------

func TestSharedHeapPerformGarbageCollectionSweepsDeadObjects(t *testing.T) {
	program := NewProgram(1 << 10)
	sh := program.SharedHeap()

	reachable, _ := sh.CreateArray(1)
	garbage, _ := sh.CreateArray(1)

	p := NewProcess(program, &testPlatform{maxWords: 1 << 16}, ScavengingGC{}, 1<<12, 0)
	frame := p.coroutine.Stack().PushFrame(nil, 1)
	frame.Slots[0] = NewHeapObject(reachable)

	usedBefore := sh.Space().Used()
	program.PerformSharedGarbageCollection([]*Process{p})

	if sh.Space().Used() >= usedBefore {
		t.Errorf("Used() = %d, want less than %d after sweeping an unreachable object", sh.Space().Used(), usedBefore)
	}
	if !sh.Space().Includes(reachable) {
		t.Error("a reachable shared object must survive the sweep")
	}
	if sh.Space().Includes(garbage) {
		t.Error("an unreachable shared object should be swept, not left in the space")
	}
}

func TestSharedHeapSweptCapacityIsReusable(t *testing.T) {
	program := NewProgram(8)
	sh := program.SharedHeap()

	// Allocate garbage arrays (Array.Size() == 1+len(Slots) == 2 words each)
	// until organic growth refuses to add a third chunk.
	allocated := 0
	for {
		if _, failure := sh.CreateArray(1); failure != nil {
			break
		}
		allocated++
		if allocated > 1000 {
			t.Fatal("space grew without bound; organic-growth cap is not holding")
		}
	}
	if allocated == 0 {
		t.Fatal("setup should manage at least one allocation before exhausting space")
	}
	usedBefore := sh.Space().Used()

	program.PerformSharedGarbageCollection(nil) // nothing rooted; everything is garbage

	if sh.Space().Used() != 0 {
		t.Errorf("Used() = %d, want 0 once every object has been swept", sh.Space().Used())
	}
	if sh.Space().Used() >= usedBefore {
		t.Fatal("sweep should have reclaimed every word that was in use")
	}
	if _, failure := sh.CreateArray(1); failure != nil {
		t.Error("sweeping garbage should make its words available to a new allocation")
	}
}

// ---------------------------------------------------------------------------
// Cook/uncook around a shared-heap collection (§4.7, scenario E6)
// ---------------------------------------------------------------------------

func TestPerformSharedGarbageCollectionCooksAndUncooksProcessStacks(t *testing.T) {
	program := NewProgram(1 << 10)
	entry, _ := program.SharedHeap().CreateFunction(&Function{Bytecode: []byte{0x01, 0x02, 0x03}})
	program.Initialize(nil, entry, 0)

	p := NewProcess(program, &testPlatform{maxWords: 1 << 16}, ScavengingGC{}, 1<<12, 0)
	stack := p.coroutine.Stack()
	frame := stack.PushFrame(&entry.Bytecode[1], 0)

	program.PerformSharedGarbageCollection([]*Process{p})

	if frame.BCP != &entry.Bytecode[1] {
		t.Errorf("BCP after cook/uncook round trip = %p, want the original bytecode address restored", frame.BCP)
	}
	if stack.Next != nil {
		t.Error("UncookAndUnchainStacks should leave Next reset to nil after the pass")
	}
}
