package pool

import (
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	// chunkSize is the number of slots allocated per chunk. Slot 0 of a fresh
	// chunk is handed straight to the allocating caller, slots 1..chunkSize-2
	// are batch-pushed onto the free list, and the last slot is reserved as
	// the chunk's tracking node, so the usable capacity per chunk is
	// chunkSize-1.
	chunkSize  = 64
	chunkShift = 6
	chunkMask  = chunkSize - 1

	// noSlot is the index sentinel for "no slot": list terminator and the
	// detached state of a handle.
	noSlot = ^uint32(0)
)

// slot is the atomic unit of storage: one element plus pool bookkeeping.
// next is meaningful only while the slot sits on the free list or serves as a
// chunk-tracking node. gen changes if and only if the slot is retired; it
// never moves while an Owned handle holds the slot.
type slot[T any] struct {
	elem T
	next uint32
	gen  int32
}

type chunk[T any] struct {
	slots [chunkSize]slot[T]
}

// Stats is a snapshot of pool counters. All values are diagnostic; none are
// used for correctness.
type Stats struct {
	// Slots is the total number of slots ever allocated, in chunk multiples.
	Slots int64
	// Chunks is the number of chunks backing the arena.
	Chunks int
	// Live is the number of elements currently held by an Owned handle.
	Live int64
	// Created counts every element construction, Recycled every retirement.
	Created  int64
	Recycled int64
}

// Pool is a concurrent, fixed-element-size object pool for elements of type T.
//
// The zero element state of T must be valid: a freshly acquired slot holds
// the zero value (or whatever the reset function left behind). Create, Release
// and handle aliveness checks may be called from arbitrarily many goroutines;
// New and Close may not run concurrently with anything else.
type Pool[T any] struct {
	// freeHead packs a 32-bit version tag with the 32-bit index of the free
	// list's top slot. The tag advances on every successful CAS so a popped
	// and re-pushed index cannot satisfy a stale compare.
	freeHead atomic.Uint64

	// chunkHead is the head of a separate lock-free list threading every
	// chunk's tracking slot. Only Close walks it.
	chunkHead atomic.Uint64

	// dir is the chunk directory: an immutable slice swapped copy-on-write,
	// so index resolution is a single atomic load.
	dir atomic.Pointer[[]*chunk[T]]

	slotCount atomic.Int64
	live      atomic.Int64
	created   atomic.Int64
	recycled  atomic.Int64

	reset  func(*T)
	logger *zap.Logger

	// checkEmpty records caller intent that all Owned handles are retired
	// before Close. It is not consulted at teardown; enforcing it is an
	// extension point.
	checkEmpty bool
}

// New creates a pool. reset is invoked on each element at retirement, before
// the slot is recycled; if nil, the element is overwritten with the zero
// value of T instead. A nil logger is replaced with a no-op logger.
func New[T any](reset func(*T), logger *zap.Logger) *Pool[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool[T]{
		reset:  reset,
		logger: logger,
	}
	p.freeHead.Store(pack(0, noSlot))
	p.chunkHead.Store(pack(0, noSlot))
	return p
}

// pack combines a version tag and a slot index into one CAS-able word.
func pack(tag, idx uint32) uint64 {
	return uint64(tag)<<32 | uint64(idx)
}

func headTag(head uint64) uint32 {
	return uint32(head >> 32)
}

func headIndex(head uint64) uint32 {
	return uint32(head)
}

// slotAt resolves an arena index to its slot.
func (p *Pool[T]) slotAt(idx uint32) *slot[T] {
	dir := *p.dir.Load()
	return &dir[idx>>chunkShift].slots[idx&chunkMask]
}

// Create acquires a slot, assigns v into it in place and returns the owning
// handle. The returned handle is never empty and its captured slot carries
// the slot's current generation.
func (p *Pool[T]) Create(v T) Owned[T] {
	idx := p.acquire()
	p.slotAt(idx).elem = v
	p.created.Add(1)
	p.live.Add(1)
	return Owned[T]{pool: p, slot: idx}
}

// CreateEmpty acquires a slot without constructing an element. The element
// starts in whatever vacant state the previous retirement (or the zero value)
// left it in.
func (p *Pool[T]) CreateEmpty() Owned[T] {
	idx := p.acquire()
	p.created.Add(1)
	p.live.Add(1)
	return Owned[T]{pool: p, slot: idx}
}

// Release retires the element held by o and consumes the handle. Releasing
// an empty handle is a no-op. Equivalent to o.Reset().
func (p *Pool[T]) Release(o *Owned[T]) {
	o.Reset()
}

// SetCheckEmpty records whether all Owned handles are expected to be retired
// before Close. Must not be called concurrently with pool operations.
func (p *Pool[T]) SetCheckEmpty(flag bool) {
	p.checkEmpty = flag
}

// Stats returns a snapshot of the pool's diagnostic counters.
func (p *Pool[T]) Stats() Stats {
	chunks := 0
	if dir := p.dir.Load(); dir != nil {
		chunks = len(*dir)
	}
	return Stats{
		Slots:    p.slotCount.Load(),
		Chunks:   chunks,
		Live:     p.live.Load(),
		Created:  p.created.Load(),
		Recycled: p.recycled.Load(),
	}
}

// acquire pops a free slot, allocating a new chunk when the free list is
// empty. The popped slot's next field is stale and must be ignored until the
// slot is recycled.
func (p *Pool[T]) acquire() uint32 {
	for {
		head := p.freeHead.Load()
		idx := headIndex(head)
		if idx == noSlot {
			return p.allocateChunk()
		}
		next := atomic.LoadUint32(&p.slotAt(idx).next)
		if p.freeHead.CompareAndSwap(head, pack(headTag(head)+1, next)) {
			return idx
		}
	}
}

// releaseSlot pushes a slot back onto the free list. The successful CAS
// publishes every write that preceded it, notably the generation bump done
// by retirement, to any goroutine that later pops the slot.
func (p *Pool[T]) releaseSlot(idx uint32) {
	s := p.slotAt(idx)
	for {
		head := p.freeHead.Load()
		atomic.StoreUint32(&s.next, headIndex(head))
		if p.freeHead.CompareAndSwap(head, pack(headTag(head)+1, idx)) {
			return
		}
	}
}

// retire destroys the element's logical state, bumps the slot's generation
// and recycles the slot. idx must come from a detached Owned handle.
func (p *Pool[T]) retire(idx uint32) {
	s := p.slotAt(idx)
	if p.reset != nil {
		p.reset(&s.elem)
	} else {
		var zero T
		s.elem = zero
	}
	// The bump happens after teardown and before the free-list push, so any
	// goroutine that acquires this slot observes the new generation before
	// it can observe whatever element gets constructed into it next.
	atomic.AddInt32(&s.gen, 1)
	p.live.Add(-1)
	p.recycled.Add(1)
	p.releaseSlot(idx)
}

// allocateChunk grows the arena by one chunk and returns the index of the
// chunk's first slot, which is handed to the caller without touching the
// free list.
func (p *Pool[T]) allocateChunk() uint32 {
	c := new(chunk[T])
	for i := range c.slots {
		c.slots[i].gen = 1
	}

	// Publish the chunk into the directory copy-on-write.
	var base uint32
	for {
		old := p.dir.Load()
		var cur []*chunk[T]
		if old != nil {
			cur = *old
		}
		next := make([]*chunk[T], len(cur)+1)
		copy(next, cur)
		next[len(cur)] = c
		if p.dir.CompareAndSwap(old, &next) {
			base = uint32(len(cur)) << chunkShift
			break
		}
	}
	p.slotCount.Add(chunkSize)

	// Wire slots 1..chunkSize-2 into a private mini list, then splice it
	// onto the free list with a single CAS.
	for i := uint32(1); i < chunkSize-2; i++ {
		c.slots[i].next = base + i + 1
	}
	for {
		head := p.freeHead.Load()
		atomic.StoreUint32(&c.slots[chunkSize-2].next, headIndex(head))
		if p.freeHead.CompareAndSwap(head, pack(headTag(head)+1, base+1)) {
			break
		}
	}

	// The last slot is never handed out; it threads the chunk onto the
	// tracking list so Close can find every chunk.
	for {
		head := p.chunkHead.Load()
		atomic.StoreUint32(&c.slots[chunkSize-1].next, headIndex(head))
		if p.chunkHead.CompareAndSwap(head, pack(headTag(head)+1, base+chunkSize-1)) {
			break
		}
	}

	p.logger.Debug("allocated pool chunk",
		zap.Uint32("base", base),
		zap.Int64("slots_total", p.slotCount.Load()))

	return base
}

// Close tears the pool down: it walks the chunk-tracking list, clears every
// chunk's payloads and detaches the arena so the backing memory can be
// collected. Close must not run concurrently with any other pool operation,
// and any Owned or Weak handle still held afterwards must not be used.
// Close is idempotent.
func (p *Pool[T]) Close() {
	chunks := 0
	dirPtr := p.dir.Load()
	if dirPtr != nil {
		dir := *dirPtr
		node := headIndex(p.chunkHead.Load())
		for node != noSlot {
			c := dir[node>>chunkShift]
			next := c.slots[chunkMask].next
			*c = chunk[T]{}
			chunks++
			node = next
		}
	}

	p.chunkHead.Store(pack(0, noSlot))
	p.freeHead.Store(pack(0, noSlot))
	p.dir.Store(nil)

	if chunks > 0 {
		p.logger.Debug("closed pool",
			zap.Int("chunks_released", chunks),
			zap.Int64("live_at_close", p.live.Load()))
	}
}
