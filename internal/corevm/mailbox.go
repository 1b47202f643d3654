package corevm

import (
	"sync"

	"github.com/google/uuid"
)

// MessageKind discriminates the payload union a Mailbox message carries
// (§4.10).
type MessageKind uint8

const (
	MessageImmediate MessageKind = iota
	MessageImmutableObject
	MessageForeign
	MessageForeignFinalized
	MessageLargeInteger
	MessageExit
	MessageProcessDeathSignal
)

// Message is one entry in a process's mailbox. Only the fields relevant
// to Kind are populated; the rest are zero.
type Message struct {
	Kind MessageKind

	Immediate    Object          // MessageImmediate
	ImmutableObj HeapObject      // MessageImmutableObject: shared-heap pointer
	ForeignAddr  uintptr         // MessageForeign / MessageForeignFinalized
	ForeignLen   int
	Finalizer    func()          // MessageForeignFinalized only
	LargeIntVal  int64           // MessageLargeInteger
	ExitValue    Object          // MessageExit
	ExitChildHeap *Heap          // MessageExit: heap to merge into the receiver
	Signal       *Signal         // MessageProcessDeathSignal
	Channel      *Port           // originating port, for GetChannel
}

// Port identifies a mailbox endpoint owned by a Process. Port -> Process
// is a weak back-reference cleared by OwnerProcessTerminating (DESIGN
// NOTES §9's cyclic-graph resolution): Process strongly owns its port
// list, Port never strongly owns its Process.
type Port struct {
	ID         uuid.UUID
	owner      *Process   // weak: the process this port was created on
	channelObj HeapObject // the heap instance a channel-typed value wraps this port in
}

// OwnerProcessTerminating clears the weak back-reference when the owning
// process is torn down, so a dangling Port never dereferences a freed
// Process.
func (port *Port) OwnerProcessTerminating() { port.owner = nil }

// collected reports whether the channel a message was addressed to has
// become unreachable (its owning instance no longer exists), the
// condition under which ProcessQueueGetChannel silently drops a message.
// A nil port means the message was never addressed through a channel at
// all (an internally generated message such as a ProcessDeathSignal) and
// is therefore never considered collected.
func (port *Port) collected() bool { return port != nil && port.owner == nil }

// Signal carries a dying process's handle to every linked process, and is
// installed at most once per receiver via SendSignal's CAS race (§4.10,
// §5, §8 property 7).
type Signal struct {
	Handle *ProcessHandle
	Reason string
}

// ProcessHandle is a refcounted external identity decoupled from Process
// lifetime, permitting dangling observation and cross-termination linking
// (DESIGN NOTES §9).
type ProcessHandle struct {
	ID       uuid.UUID
	mu       sync.Mutex
	refCount int32
	process  *Process
}

// NewProcessHandle wraps process with an initial reference count of 1.
func NewProcessHandle(process *Process) *ProcessHandle {
	return &ProcessHandle{ID: uuid.New(), refCount: 1, process: process}
}

func (h *ProcessHandle) Retain() {
	h.mu.Lock()
	h.refCount++
	h.mu.Unlock()
}

// Release decrements the reference count and reports whether it reached
// zero (the caller is then responsible for discarding the handle).
func (h *ProcessHandle) Release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refCount--
	return h.refCount <= 0
}

// RefCount reports the current reference count, primarily for tests.
func (h *ProcessHandle) RefCount() int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refCount
}

// Process returns the wrapped process even after it has terminated —
// callers must check its state before touching mutable fields.
func (h *ProcessHandle) Process() *Process { return h.process }

// Mailbox is a multiple-producer / single-consumer queue of messages
// ordered by arrival (§4.10).
type Mailbox struct {
	mu    sync.Mutex
	queue []*Message
}

// NewMailbox returns an empty Mailbox.
func NewMailbox() *Mailbox { return &Mailbox{} }

// Enqueue appends msg — safe for concurrent producers.
func (m *Mailbox) Enqueue(msg *Message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
}

// peek returns the front message without removing it, or nil if empty.
func (m *Mailbox) peek() *Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	return m.queue[0]
}

// advance removes the front message; only called once its payload has
// been successfully materialized into a mutator-visible value.
func (m *Mailbox) advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 {
		m.queue = m.queue[1:]
	}
}

// dropFront removes the front message without materializing it — used
// when its channel has been collected.
func (m *Mailbox) dropFront() { m.advance() }

// mergeChildHeaps folds every Exit message's attached child heap into
// target, consuming them from the mailbox — step 1 of the scavenge
// algorithm ("Take child heaps (merge mailbox-attached heaps from
// recently received messages)").
func (m *Mailbox) mergeChildHeaps(target *Heap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.queue {
		if msg.Kind == MessageExit && msg.ExitChildHeap != nil {
			mergeSpaceInto(target.space, msg.ExitChildHeap.space)
			msg.ExitChildHeap = nil
		}
	}
}

// mergeSpaceInto appends src's chunk list onto dst's, giving dst's
// scavenger a chance to visit (and possibly promote) the merged objects.
func mergeSpaceInto(dst, src *Space) {
	if src.first == nil {
		return
	}
	dst.current.next = src.first
	dst.current = src.current
}

// IterateVisit visits every Object-valued payload slot the mailbox holds,
// so Process.IterateRoots can include pending messages in the root set
// (§4.4: "Process.IterateRoots(visitor) visits: ... and the mailbox").
func (m *Mailbox) IterateVisit(visitor Visitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.queue {
		switch msg.Kind {
		case MessageImmediate:
			visitor.Visit(&msg.Immediate)
		case MessageExit:
			visitor.Visit(&msg.ExitValue)
		}
	}
}

// ProcessQueueGetMessage pops one message and materializes its payload
// into a mutator-visible Object, per §4.10. Only on successful
// materialization is the message advanced.
func (p *Process) ProcessQueueGetMessage() (Object, *Failure) {
	msg := p.mailbox.peek()
	if msg == nil {
		return Nil, nil
	}
	if msg.Channel.collected() {
		p.mailbox.dropFront()
		return Nil, nil
	}

	switch msg.Kind {
	case MessageImmediate:
		p.mailbox.advance()
		return msg.Immediate, nil

	case MessageImmutableObject:
		p.mailbox.advance()
		return NewHeapObject(msg.ImmutableObj), nil

	case MessageForeign, MessageForeignFinalized:
		inst, failure := p.heap.CreateInstance(foreignMemoryClass)
		if failure != nil {
			return Nil, failure
		}
		addr := int64(msg.ForeignAddr)
		inst.Slots[0] = NewSmi(addr & 0xFFFFFFFF)
		inst.Slots[1] = NewSmi(addr >> 32)
		inst.Slots[2] = NewSmi(int64(msg.ForeignLen))
		if msg.Kind == MessageForeignFinalized {
			p.heap.AllocatedForeignMemory(int64(msg.ForeignLen))
			cb := msg.Finalizer
			bytes := int64(msg.ForeignLen)
			p.heap.AddWeakPointer(inst, func(h *Heap, _ HeapObject) {
				h.FreedForeignMemory(bytes)
				if cb != nil {
					cb()
				}
			})
		}
		p.mailbox.advance()
		return NewHeapObject(inst), nil

	case MessageLargeInteger:
		li, failure := p.heap.CreateLargeInteger(msg.LargeIntVal)
		if failure != nil {
			return Nil, failure // interpreter propagates retry_after_gc
		}
		p.mailbox.advance()
		return NewHeapObject(li), nil

	case MessageProcessDeathSignal:
		msg.Signal.Handle.Retain()
		handleInst, failure := p.heap.CreateInstance(processHandleClass)
		if failure != nil {
			return Nil, failure
		}
		notification, failure := p.heap.CreateInstance(processDeathClass)
		if failure != nil {
			return Nil, failure
		}
		notification.Slots[0] = NewHeapObject(handleInst)
		p.heap.AddWeakPointer(handleInst, func(_ *Heap, _ HeapObject) {
			msg.Signal.Handle.Release()
		})
		p.mailbox.advance()
		return NewHeapObject(notification), nil

	default:
		p.mailbox.advance()
		return Nil, nil
	}
}

// ProcessQueueGetChannel peeks at the current message and returns its
// channel, dropping the message first if that channel has already been
// collected (§4.10).
func (p *Process) ProcessQueueGetChannel() *Port {
	msg := p.mailbox.peek()
	if msg == nil {
		return nil
	}
	if msg.Channel.collected() {
		p.mailbox.dropFront()
		return p.ProcessQueueGetChannel()
	}
	return msg.Channel
}

// Well-known classes used to materialize mailbox payloads. In a full
// program these would be looked up from the Program's canonical class
// table; the core keeps package-level placeholders so mailbox
// materialization is testable without a full Program wiring.
var (
	foreignMemoryClass = &Class{Name: "ForeignMemory", NumSlots: 3}
	processHandleClass = &Class{Name: "ProcessHandle", NumSlots: 0}
	processDeathClass  = &Class{Name: "ProcessDeath", NumSlots: 1}
)

// SendSignal installs sig on target's pending-signal slot via a
// compare-and-swap from nil. If another signal wins the race, the loser's
// handle reference count is decremented exactly once — §8 property 7 and
// DESIGN NOTES §9(b): the retry loop's body is unreachable after a
// successful CAS, effectively degrading to an if, which is treated as
// intentional defensive retry rather than trimmed away.
func SendSignal(target *Process, sig *Signal) {
	for {
		old := target.pendingSignal.Load()
		if old != nil {
			sig.Handle.Release()
			return
		}
		if target.pendingSignal.CompareAndSwap(nil, sig) {
			return
		}
	}
}
