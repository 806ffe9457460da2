package pool

import (
	"testing"

	"go.uber.org/zap"
)

type benchElem struct {
	id      int64
	payload [48]byte
}

func BenchmarkCreateRetire(b *testing.B) {
	p := New[benchElem](nil, zap.NewNop())
	defer p.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		owned := p.Create(benchElem{id: int64(i)})
		owned.Reset()
	}
}

func BenchmarkCreateRetireParallel(b *testing.B) {
	p := New[benchElem](nil, zap.NewNop())
	defer p.Close()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			owned := p.Create(benchElem{id: 1})
			owned.Reset()
		}
	})
}

func BenchmarkWeakAlive(b *testing.B) {
	p := New[benchElem](nil, zap.NewNop())
	defer p.Close()

	owned := p.Create(benchElem{id: 1})
	weak := owned.Weak()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !weak.Alive() {
			b.Fatal("owner still live")
		}
	}
	owned.Reset()
}

func BenchmarkWeakCopy(b *testing.B) {
	p := New[benchElem](nil, zap.NewNop())
	defer p.Close()

	owned := p.Create(benchElem{id: 1})
	weak := owned.Weak()

	var sink Weak[benchElem]
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sink = weak
	}
	_ = sink
	owned.Reset()
}
