package slab

// Arena is a fixed-capacity, index-stable store of T, backed by a Bitset.
// Allocating returns a pointer into the backing array that stays valid
// (and stable) for the record's entire lifetime, matching spec.md's
// pool-backed-array design note for the request table and internal-event
// pool. Arena itself does not lock; callers needing atomicity beyond slot
// allocation (e.g. the registry's handle-publication fence) layer it on
// top, the way Registry does.
type Arena[T any] struct {
	slots  []T
	filled *Bitset
}

// NewArena creates an Arena with room for capacity elements.
func NewArena[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots:  make([]T, capacity),
		filled: NewBitset(capacity),
	}
}

// Cap returns the arena's fixed capacity.
func (a *Arena[T]) Cap() int { return a.filled.Cap() }

// Alloc reserves a free slot and returns its index and a pointer to the
// zero-valued slot, or ok=false if the arena is full.
func (a *Arena[T]) Alloc() (idx int, slot *T, ok bool) {
	idx = a.filled.FindFreeAndSet()
	if idx < 0 {
		return 0, nil, false
	}
	var zero T
	a.slots[idx] = zero
	return idx, &a.slots[idx], true
}

// Free releases idx back to the free set. The caller must have already
// neutralized the slot's contents if a concurrent reader could still be
// observing it (see requests.Table.Delete for the fence pattern).
func (a *Arena[T]) Free(idx int) {
	a.filled.Clear(idx)
}

// At returns a pointer to the slot at idx without checking liveness.
func (a *Arena[T]) At(idx int) *T {
	return &a.slots[idx]
}

// Live reports whether idx currently holds an allocated slot.
func (a *Arena[T]) Live(idx int) bool {
	return a.filled.IsSet(idx)
}

// Each calls fn for every currently-live slot's index. fn must not call
// Alloc or Free on the same arena.
func (a *Arena[T]) Each(fn func(idx int, slot *T)) {
	for i := range a.slots {
		if a.filled.IsSet(i) {
			fn(i, &a.slots[i])
		}
	}
}
