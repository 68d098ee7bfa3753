// Package arena implements the traceback-object allocator described in
// spec §4.8's design note: an "arena-with-index handles" replacement for
// the C implementation's pointer-tagged mark bits. Each [Arena] owns a
// typed vector of elements referenced by 32-bit [Handle] values and a
// separate mark bitmap, so garbage collection never mutates the elements
// themselves and the sweep phase is a single linear pass.
package arena

// Handle is a 1-based index into an [Arena]'s element vector. The zero
// value, Nil, denotes "no object" (mirrors a nil pointer / prev==NULL in
// the original traceback graph).
type Handle uint32

// Nil is the zero Handle, meaning "no object".
const Nil Handle = 0

// Stats summarises one arena's population at a point in time, used for
// health logging and the GC-completeness test scenarios of spec §8.
type Stats struct {
	Capacity int // number of element slots ever allocated (block growth)
	Live     int // currently allocated (reachable or not-yet-swept) elements
	Free     int // slots available for reuse without growing
}

// SweepStats reports the outcome of one sweep pass over an arena.
type SweepStats struct {
	Total int // elements that were allocated at sweep time
	Freed int // elements reclaimed because they were unmarked
}

// Arena is a typed, growable vector of T with handle-based allocation and
// mark-and-sweep reclamation. It replaces HTK's MemHeap block lists: here
// growth is a plain slice append instead of a discrete block-list, which is
// safe because handles are stable indices, not pointers that growth would
// invalidate.
type Arena[T any] struct {
	elems    []T
	used     []bool
	marked   []bool
	freeList []Handle
}

// New returns an empty [Arena].
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc stores v in the arena and returns its handle. A freed slot is
// reused when available; otherwise the backing vector grows by one.
func (a *Arena[T]) Alloc(v T) Handle {
	if n := len(a.freeList); n > 0 {
		h := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		idx := int(h - 1)
		a.elems[idx] = v
		a.used[idx] = true
		a.marked[idx] = false
		return h
	}
	a.elems = append(a.elems, v)
	a.used = append(a.used, true)
	a.marked = append(a.marked, false)
	return Handle(len(a.elems))
}

// Get returns a pointer to the element referenced by h. The caller must not
// retain the pointer across an Alloc call, which may reallocate the
// backing slice.
func (a *Arena[T]) Get(h Handle) *T {
	return &a.elems[h-1]
}

// Valid reports whether h currently references a live (allocated, not yet
// swept) element.
func (a *Arena[T]) Valid(h Handle) bool {
	return h != Nil && int(h) <= len(a.elems) && a.used[h-1]
}

// Mark sets the GC mark bit for h. Marking an already-marked handle is a
// no-op; callers use this to detect "already visited" during traversal.
func (a *Arena[T]) Mark(h Handle) {
	a.marked[h-1] = true
}

// Marked reports whether h is currently marked.
func (a *Arena[T]) Marked(h Handle) bool {
	return a.marked[h-1]
}

// Sweep reclaims every allocated-but-unmarked element, returning them to
// the free list, and clears the mark bit on every element it keeps. After
// Sweep returns, every mark bit in the arena is false again — the
// precondition the next GC cycle's mark phase relies on.
func (a *Arena[T]) Sweep() SweepStats {
	var stats SweepStats
	var zero T
	for i := range a.elems {
		if !a.used[i] {
			continue
		}
		stats.Total++
		if a.marked[i] {
			a.marked[i] = false
			continue
		}
		stats.Freed++
		a.used[i] = false
		a.elems[i] = zero
		a.freeList = append(a.freeList, Handle(i+1))
	}
	return stats
}

// Stats returns the arena's current population counters.
func (a *Arena[T]) Stats() Stats {
	return Stats{
		Capacity: len(a.elems),
		Live:     len(a.elems) - len(a.freeList),
		Free:     len(a.freeList),
	}
}

// Reset empties the arena entirely, releasing all elements back to a
// zero-length state. Used when a decoder instance is reused across
// utterances (spec §5 resource lifecycle) instead of tearing down and
// recreating arenas.
func (a *Arena[T]) Reset() {
	a.elems = a.elems[:0]
	a.used = a.used[:0]
	a.marked = a.marked[:0]
	a.freeList = a.freeList[:0]
}
