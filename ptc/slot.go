package ptc

import "sync/atomic"

// Slot is an atomic cell holding either nil (EMPTY) or exclusive ownership
// of one boxed item. A slot is never aliased: at most one goroutine ever
// observes a given publication.
type Slot[T any] struct {
	v atomic.Pointer[T]
}

// SlotArray is a fixed-size, lock-free bounded mailbox shared between two
// stages of the pipeline. It is not a FIFO queue: items may be withdrawn
// out of publish order, which is harmless because items are independent.
type SlotArray[T any] struct {
	slots []Slot[T]
}

// NewSlotArray allocates a slot array with the given number of slots.
func NewSlotArray[T any](capacity int) *SlotArray[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &SlotArray[T]{slots: make([]Slot[T], capacity)}
}

// Len returns the number of slots in the array.
func (a *SlotArray[T]) Len() int {
	return len(a.slots)
}

// TryPublish scans slots in index order and CASes item into the first slot
// observed EMPTY, transferring ownership of item into the array. Returns
// false, retaining ownership, if every slot was occupied.
func (a *SlotArray[T]) TryPublish(item *T) bool {
	for i := range a.slots {
		if a.slots[i].v.CompareAndSwap(nil, item) {
			return true
		}
	}
	return false
}

// TryWithdraw scans slots in index order and atomically exchanges the
// first non-empty slot it finds for EMPTY, returning the withdrawn item
// with ownership. Returns false if every slot was empty.
func (a *SlotArray[T]) TryWithdraw() (*T, bool) {
	for i := range a.slots {
		if old := a.slots[i].v.Swap(nil); old != nil {
			return old, true
		}
	}
	return nil, false
}

// IsEmpty reports whether every slot was observed EMPTY at the point of
// the load. Used by shutdown to confirm a buffer has fully drained.
func (a *SlotArray[T]) IsEmpty() bool {
	for i := range a.slots {
		if a.slots[i].v.Load() != nil {
			return false
		}
	}
	return true
}
