package corevm

import "unsafe"

// pointerIdentity returns a stable integer identity for a *Class, used to
// spread cache indices. Classes are never moved once linked into a
// Program's SharedHeap in this simplified (non-compacting) shared-heap
// collector, so the raw pointer value is safe to hash on directly.
func pointerIdentity(c *Class) uintptr {
	return uintptr(unsafe.Pointer(c))
}
