package corevm

// Chunk is a contiguous allocation region inside a Space: bump-pointer
// allocation within [top, limit), objects already placed within
// [base, top). Grounded on the head/tail block metadata-at-end-of-heap
// layout of andypeng2015-tinygo's gc_blocks.go, simplified from 4-word
// blocks down to a plain bump chunk since we track object headers inline
// via HeapObject.Size() instead of a separate metadata bitmap.
type Chunk struct {
	objects []HeapObject // objects already allocated here, in allocation order
	used    int           // words consumed so far
	limit   int           // capacity in words
	next    *Chunk
}

func newChunk(words int) *Chunk {
	return &Chunk{limit: words}
}

func (c *Chunk) available() int { return c.limit - c.used }

func (c *Chunk) bumpAllocate(obj HeapObject, words int) bool {
	if words > c.available() {
		return false
	}
	c.objects = append(c.objects, obj)
	c.used += words
	return true
}

// NoAllocationFailureScope forces a Space to grow rather than report
// allocation failure for the duration of the scope — used while a
// collection is in progress so the copying/marking pass is guaranteed
// forward progress (spec §4.1, §4.5 step 3).
type NoAllocationFailureScope struct {
	space *Space
	prev  bool
}

// NewNoAllocationFailureScope activates growth-on-overflow for space and
// returns a scope whose Close restores the previous mode. All call sites
// must Close on every exit path (defer is the idiom used throughout).
func NewNoAllocationFailureScope(space *Space) *NoAllocationFailureScope {
	s := &NoAllocationFailureScope{space: space, prev: space.growOnOverflow}
	space.growOnOverflow = true
	return s
}

// Close releases the scope, restoring the Space's previous overflow policy.
func (s *NoAllocationFailureScope) Close() {
	s.space.growOnOverflow = s.prev
}

// Space is a linked list of Chunks forming one HeapSpace (either the
// mutable heap's from/to space or the immutable shared heap's single
// space).
type Space struct {
	first, current *Chunk
	chunkWords      int // default new-chunk size, in words
	growOnOverflow  bool
}

// NewSpace creates an empty Space whose chunks default to chunkWords words
// each when growing organically (outside a NoAllocationFailureScope).
func NewSpace(chunkWords int) *Space {
	if chunkWords <= 0 {
		chunkWords = 1 << 14 // 16k words, a reasonable default chunk size
	}
	first := newChunk(chunkWords)
	return &Space{first: first, current: first, chunkWords: chunkWords}
}

// Allocate reserves words of space for obj, returning false (the
// "addr | null" failure of §4.1) if no chunk has room and a new chunk
// cannot be added under the current policy.
//
// Every new chunk is sized to at least fit the request. Outside a
// NoAllocationFailureScope, allocation adds a chunk only while the space
// still has its first chunk as current; once it has grown, a further
// overflow fails. Inside a NoAllocationFailureScope, chunks are appended
// greedily, guaranteeing the collector always finishes moving/marking
// objects.
func (s *Space) Allocate(obj HeapObject, words int) bool {
	if s.current.bumpAllocate(obj, words) {
		return true
	}
	size := s.chunkWords
	if words > size {
		size = words
	}
	if !s.growOnOverflow && s.current != s.first {
		// Already grew once outside a forced-growth scope; refuse further
		// organic growth so normal allocation genuinely fails and the
		// mutator triggers a collection instead of growing unbounded.
		return false
	}
	next := newChunk(size)
	s.current.next = next
	s.current = next
	return s.current.bumpAllocate(obj, words)
}

// Used returns the total words consumed across every chunk.
func (s *Space) Used() int {
	total := 0
	for c := s.first; c != nil; c = c.next {
		total += c.used
	}
	return total
}

// Size returns the total capacity in words across every chunk.
func (s *Space) Size() int {
	total := 0
	for c := s.first; c != nil; c = c.next {
		total += c.limit
	}
	return total
}

// Includes reports whether obj was allocated from this space — used by
// the scavenger to distinguish from-space pointers from ones that already
// target the shared/immutable heap.
func (s *Space) Includes(obj HeapObject) bool {
	for c := s.first; c != nil; c = c.next {
		for _, o := range c.objects {
			if o == obj {
				return true
			}
		}
	}
	return false
}

// IterateObjects walks every chunk in allocation order, calling fn once
// per live header — the chunk-linear parse described in §4.1.
func (s *Space) IterateObjects(fn func(HeapObject)) {
	for c := s.first; c != nil; c = c.next {
		for _, o := range c.objects {
			fn(o)
		}
	}
}

// Sweep drops every object for which isLive reports false from each
// chunk's object list and gives back the words it occupied, so a later
// Allocate can reuse that capacity. Returns the total words reclaimed.
// Shared by MarkSweepGC.sweep and SharedHeap.PerformSharedGarbageCollection
// — the only two collectors that sweep rather than copy (§4.6, §2).
func (s *Space) Sweep(isLive func(HeapObject) bool) int {
	freed := 0
	for c := s.first; c != nil; c = c.next {
		kept := c.objects[:0]
		for _, obj := range c.objects {
			if isLive(obj) {
				kept = append(kept, obj)
				continue
			}
			size := obj.Size()
			freed += size
			c.used -= size
		}
		c.objects = kept
	}
	return freed
}

// Flush finalizes a partially filled chunk when switching allocation
// modes (e.g. handing the space off from the scavenger to the mutator).
// Chunk bookkeeping here is eager, so Flush is a documented no-op retained
// for call-site symmetry with the component design.
func (s *Space) Flush() {}

// ReplaceWith swaps this space's contents with other's, used by the
// scavenger's final step ("replace the heap's space with to") without
// requiring the Heap to swap its own field.
func (s *Space) ReplaceWith(other *Space) {
	s.first = other.first
	s.current = other.current
	s.chunkWords = other.chunkWords
}
