package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testElem struct {
	value   int
	cleared int
}

func newTestPool(t *testing.T) *Pool[testElem] {
	t.Helper()
	return New[testElem](func(e *testElem) {
		e.value = 0
		e.cleared++
	}, zaptest.NewLogger(t))
}

func TestCreateAndRetire(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	owned := p.Create(testElem{value: 5})
	require.False(t, owned.Empty())
	assert.Equal(t, 5, owned.Get().value)
	assert.EqualValues(t, 1, owned.Generation())

	weak := owned.Weak()
	require.True(t, weak.Alive())
	assert.Equal(t, 5, weak.Get().value)

	owned.Reset()
	assert.True(t, owned.Empty())
	assert.False(t, weak.Alive())
}

func TestCreateEmpty(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	owned := p.CreateEmpty()
	require.False(t, owned.Empty())
	assert.Equal(t, 0, owned.Get().value)

	owned.Get().value = 7
	assert.Equal(t, 7, owned.Get().value)
	owned.Reset()
}

func TestReleaseConsumesHandle(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	owned := p.Create(testElem{value: 1})
	weak := owned.Weak()
	p.Release(&owned)

	assert.True(t, owned.Empty())
	assert.False(t, weak.Alive())

	// Releasing an already-empty handle is a no-op.
	p.Release(&owned)
	assert.EqualValues(t, 1, p.Stats().Recycled)
}

func TestResetInvokesTeardown(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	owned := p.Create(testElem{value: 3})
	addr := owned.Get()
	owned.Reset()

	// The slot keeps the element storage; teardown ran once and zeroed the
	// value.
	assert.Equal(t, 1, addr.cleared)
	assert.Equal(t, 0, addr.value)
}

func TestSlotReuseInvalidatesWeak(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	a := p.Create(testElem{value: 1})
	addrA := a.Get()
	weakA := a.Weak()
	genA := weakA.Generation()
	a.Reset()

	// Single-threaded, the free list is LIFO: the next create recycles A's
	// slot.
	b := p.Create(testElem{value: 2})
	require.Same(t, addrA, b.Get(), "expected B to recycle A's slot")

	assert.False(t, weakA.Alive(), "weak handle must not see B through A's slot")
	assert.Equal(t, 2, b.Get().value)
	assert.Greater(t, b.Generation(), genA)
	b.Reset()
}

func TestGenerationMonotonic(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	owned := p.Create(testElem{})
	addr := owned.Get()
	last := owned.Generation()
	owned.Reset()

	for i := 0; i < 100; i++ {
		next := p.Create(testElem{value: i})
		require.Same(t, addr, next.Get())
		gen := next.Generation()
		assert.Greater(t, gen, last)
		last = gen
		next.Reset()
	}
}

func TestChunkGrowth(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	// One chunk serves chunkSize-1 elements: slot 0 goes to the first
	// caller, 62 more sit on the free list, the last slot tracks the chunk.
	usable := chunkSize - 1

	handles := make([]Owned[testElem], 0, usable+1)
	for i := 0; i < usable; i++ {
		handles = append(handles, p.Create(testElem{value: i}))
	}
	st := p.Stats()
	assert.Equal(t, 1, st.Chunks)
	assert.EqualValues(t, chunkSize, st.Slots)

	// One more element forces a second chunk; capacity grows by exactly one
	// chunk's worth of slots.
	handles = append(handles, p.Create(testElem{value: usable}))
	st = p.Stats()
	assert.Equal(t, 2, st.Chunks)
	assert.EqualValues(t, 2*chunkSize, st.Slots)

	for i := range handles {
		assert.Equal(t, i, handles[i].Get().value)
		handles[i].Reset()
	}
}

func TestStats(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	a := p.Create(testElem{})
	b := p.Create(testElem{})
	st := p.Stats()
	assert.EqualValues(t, 2, st.Live)
	assert.EqualValues(t, 2, st.Created)
	assert.EqualValues(t, 0, st.Recycled)

	a.Reset()
	b.Reset()
	st = p.Stats()
	assert.EqualValues(t, 0, st.Live)
	assert.EqualValues(t, 2, st.Recycled)
}

func TestSetCheckEmpty(t *testing.T) {
	p := newTestPool(t)
	p.SetCheckEmpty(true)

	owned := p.Create(testElem{value: 1})
	owned.Reset()
	p.Close()
}

func TestCloseReleasesChunks(t *testing.T) {
	p := newTestPool(t)

	handles := make([]Owned[testElem], 0, 3*chunkSize)
	for i := 0; i < 3*chunkSize; i++ {
		handles = append(handles, p.Create(testElem{value: i}))
	}
	require.GreaterOrEqual(t, p.Stats().Chunks, 4)
	for i := range handles {
		handles[i].Reset()
	}

	p.Close()
	st := p.Stats()
	assert.Equal(t, 0, st.Chunks)

	// Close is idempotent.
	p.Close()
	assert.Equal(t, 0, p.Stats().Chunks)
}

// selfOwning embeds an owning handle to its own slot; retiring it exercises
// the detach-before-teardown path.
type selfOwning struct {
	self Owned[selfOwning]
}

func TestRecursiveRetirement(t *testing.T) {
	p := New[selfOwning](func(e *selfOwning) {
		// Teardown retires through the element's own handle; the handle was
		// detached before teardown ran, so this must be a no-op rather than
		// a re-entrant retirement.
		e.self.Reset()
	}, zaptest.NewLogger(t))
	defer p.Close()

	owned := p.CreateEmpty()
	owned.Get().self = Owned[selfOwning]{pool: p, slot: owned.slot}

	owned.Get().self.Reset()
	assert.True(t, owned.Get().self.Empty())
	assert.EqualValues(t, 1, p.Stats().Recycled)
}

func TestConcurrentCreateRetire(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	const (
		goroutines = 8
		cycles     = 2000
	)

	// Shadow ownership table: no two Owned handles may be simultaneously
	// bound to the same slot, observed via the element's storage address.
	var (
		mu    sync.Mutex
		owner = map[*testElem]int{}
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < cycles; i++ {
				owned := p.Create(testElem{value: id})
				addr := owned.Get()

				mu.Lock()
				prev, taken := owner[addr]
				owner[addr] = id
				mu.Unlock()
				if taken {
					t.Errorf("slot %p owned by %d and %d at once", addr, prev, id)
					return
				}

				if owned.Get().value != id {
					t.Errorf("element corrupted: got %d want %d", owned.Get().value, id)
				}
				weak := owned.Weak()
				if !weak.Alive() {
					t.Error("weak handle dead while owner live")
				}

				mu.Lock()
				delete(owner, addr)
				mu.Unlock()
				owned.Reset()

				if weak.Alive() {
					// A concurrent create may already have recycled the slot,
					// but it can never resurrect the old generation.
					t.Error("weak handle alive after retirement")
				}
			}
		}(g)
	}
	wg.Wait()

	st := p.Stats()
	assert.EqualValues(t, goroutines*cycles, st.Created)
	assert.EqualValues(t, goroutines*cycles, st.Recycled)
	assert.EqualValues(t, 0, st.Live)
}

func TestConcurrentWeakObservers(t *testing.T) {
	p := newTestPool(t)
	defer p.Close()

	owned := p.Create(testElem{value: 42})
	weak := owned.Weak()

	const observers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < observers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			// Alive may flip from true to false at any point, but must
			// never flip back.
			seen := true
			for j := 0; j < 10000; j++ {
				alive := weak.Alive()
				if alive && !seen {
					t.Error("weak handle came back to life")
					return
				}
				seen = alive
			}
		}()
	}

	close(start)
	owned.Reset()
	wg.Wait()
}
