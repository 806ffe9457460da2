// Package pool implements a fixed-element-size, concurrent object pool with
// generation-based staleness detection. It is designed for actor-style systems
// that keep millions of lightweight cross-references to mutable objects (an
// actor id, a session handle) without paying for atomic reference counting on
// every copy.
//
// Compared with a reference-counted handle:
//   - Weak handles are much cheaper. Copying one is a plain struct copy with
//     no atomics and no barriers.
//   - Slots are never returned to the allocator individually. A retired slot
//     is recycled for a future element; the backing chunks are released only
//     when the pool itself is closed.
//
// # Architecture
//
// The pool hands out two handle kinds over the same slot:
//
//   - Owned[T]: exclusive custody of one live element. At most one live
//     Owned exists per slot. It is the only handle that may construct,
//     mutate through, or retire the element. Owned must not be copied;
//     use Move to transfer ownership.
//   - Weak[T]: a trivially copyable observer. It pairs a slot index with the
//     generation observed at mint time and can answer "is this still the
//     same logical object" without synchronizing with the owner.
//
// Storage is an arena of fixed-size chunks (64 slots each). Free slots are
// kept on an index-based lock-free stack; acquire and release are CAS retry
// loops and never block. A slot reference is an arena index, so a "detached"
// handle is a trivially checkable sentinel rather than a dangling pointer.
//
// # Staleness protocol
//
// Every slot carries a generation counter starting at 1. Retiring an element
// tears its state down, bumps the generation by exactly one and pushes the
// slot back onto the free list. A Weak handle reports Alive only while the
// slot's current generation still equals the one it captured. The owner
// publishes invalidation, not validity: an observer either sees the
// generation it captured (alive as of that read) or a newer one (gone).
// Generations only increase, so a Weak can never be fooled by an older value.
//
// The generation counter is 32 bits wide and wraparound is not detected;
// the pool assumes the counter is never exhausted over its lifetime.
//
// # Usage
//
//	p := pool.New[Session](func(s *Session) { s.Close() }, logger)
//	defer p.Close()
//
//	owned := p.Create(Session{ID: 42})
//	weak := owned.Weak()
//
//	if weak.Alive() {
//		_ = weak.Get().ID // valid as of the Alive check
//	}
//
//	owned.Reset() // retire; weak.Alive() is false from here on
//
// Create, Release and Alive checks are safe for arbitrarily many concurrent
// goroutines. Pool construction and Close are not; Close assumes all
// slot-mutating activity has quiesced.
package pool
