package pool

import "sync/atomic"

// emptyGeneration is the observed-generation sentinel of an empty Weak
// handle. Real generations start at 1 and only increase.
const emptyGeneration = -1

// Owned is the exclusive, owning handle over one pool element. At most one
// live Owned exists per slot. The zero value is an empty handle.
//
// Owned must not be copied after being bound to an element; copying would
// duplicate custody of the slot. Use Move to transfer ownership.
type Owned[T any] struct {
	pool *Pool[T]
	slot uint32
}

// Empty reports whether the handle holds no element.
func (o *Owned[T]) Empty() bool {
	return o.pool == nil || o.slot == noSlot
}

// Get returns the element. It must only be called on a non-empty handle.
func (o *Owned[T]) Get() *T {
	return &o.pool.slotAt(o.slot).elem
}

// Generation returns the slot's current generation.
func (o *Owned[T]) Generation() int32 {
	return atomic.LoadInt32(&o.pool.slotAt(o.slot).gen)
}

// Weak mints an observing handle bound to the element's current generation.
// The owner has exclusive access to the slot, so no ordering beyond the
// atomic read is needed here.
func (o *Owned[T]) Weak() Weak[T] {
	if o.Empty() {
		return Weak[T]{gen: emptyGeneration, slot: noSlot}
	}
	return Weak[T]{
		pool: o.pool,
		slot: o.slot,
		gen:  atomic.LoadInt32(&o.pool.slotAt(o.slot).gen),
	}
}

// Move transfers ownership to the returned handle and empties the receiver.
// Moving an empty handle yields an empty handle.
func (o *Owned[T]) Move() Owned[T] {
	moved := Owned[T]{pool: o.pool, slot: o.slot}
	o.pool = nil
	o.slot = noSlot
	return moved
}

// Reset retires the element and empties the handle; a no-op when already
// empty. The handle detaches from its slot before the element's teardown
// runs, so teardown that recursively retires the same handle (an element
// owning a handle to itself) sees an empty handle and does nothing.
func (o *Owned[T]) Reset() {
	if o.Empty() {
		return
	}
	idx := o.slot
	o.slot = noSlot
	o.pool.retire(idx)
}

// Weak is a copyable, non-owning observer of one pool element. It never
// keeps the element alive and never owns storage; it only remembers which
// generation of the slot it saw. The zero value is an empty handle.
type Weak[T any] struct {
	pool *Pool[T]
	slot uint32
	gen  int32
}

// Alive reports whether the observed element is still the current occupant
// of its slot. The usual acquire/release pattern is inverted here: the owner
// publishes invalidation by bumping the generation on retirement, so seeing
// the captured generation means the element was alive as of this read.
// A true result is a statement about that instant only, not an ongoing
// guarantee.
func (w Weak[T]) Alive() bool {
	if w.pool == nil {
		return false
	}
	return w.gen == atomic.LoadInt32(&w.pool.slotAt(w.slot).gen)
}

// AliveUnsafe is Alive without the atomic load. Usable only when the caller
// has independent ordering guarantees against the retiring goroutine, such
// as a single-threaded access pattern.
func (w Weak[T]) AliveUnsafe() bool {
	if w.pool == nil {
		return false
	}
	return w.gen == w.pool.slotAt(w.slot).gen
}

// Get returns the element's storage. The result is only meaningful when an
// immediately preceding Alive returned true; the type does not enforce this.
// Get on an empty handle returns nil.
func (w Weak[T]) Get() *T {
	if w.pool == nil {
		return nil
	}
	return &w.pool.slotAt(w.slot).elem
}

// Empty reports whether the handle observes nothing.
func (w Weak[T]) Empty() bool {
	return w.pool == nil
}

// Clear resets the handle to the empty state.
func (w *Weak[T]) Clear() {
	w.pool = nil
	w.slot = noSlot
	w.gen = emptyGeneration
}

// Generation returns the generation captured when the handle was minted, or
// the empty sentinel.
func (w Weak[T]) Generation() int32 {
	return w.gen
}
