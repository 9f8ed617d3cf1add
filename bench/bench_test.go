// Package bench provides reproducible micro-benchmarks for rom-cache.
// Run via:  go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// The benchmarks use a fixed 64-byte value shape so results are comparable
// across versions.  Load and Store are no-ops: we measure the engine (hash,
// set scan, lock traffic, LRU upkeep), not the user's backing store.
//
// We measure:
//   1. GetHit        – resident shared lookup
//   2. GetMutHit     – resident exclusive lookup (includes LRU touch)
//   3. GetParallel   – highly concurrent shared hits (b.RunParallel)
//   4. MissEvict     – worst case: every lookup displaces the previous type
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
//
// NOTE: Unit tests live in pkg/; this file is *only* for performance.
//
// © 2025 rom-cache authors. MIT License.

package bench

import (
	"testing"

	romcache "github.com/Voskan/rom-cache/pkg"
)

/* -------------------------------------------------------------------------
   Benchmark value types
   ------------------------------------------------------------------------- */

type blobA struct{ _ [64]byte }

func (*blobA) Load() error  { return nil }
func (*blobA) Store() error { return nil }

type blobB struct{ _ [64]byte }

func (*blobB) Load() error  { return nil }
func (*blobB) Store() error { return nil }

type blobC struct{ _ [64]byte }

func (*blobC) Load() error  { return nil }
func (*blobC) Store() error { return nil }

type blobD struct{ _ [64]byte }

func (*blobD) Load() error  { return nil }
func (*blobD) Store() error { return nil }

func newBenchCache(b *testing.B, sets, ways int) *romcache.Cache {
	b.Helper()
	c, err := romcache.New(sets, ways)
	if err != nil {
		b.Fatal(err)
	}
	return c
}

/* -------------------------------------------------------------------------
   Benchmarks
   ------------------------------------------------------------------------- */

func BenchmarkGetHit(b *testing.B) {
	c := newBenchCache(b, 16, 4)
	if ref, err := romcache.Get[blobA](c); err != nil {
		b.Fatal(err)
	} else {
		ref.Release()
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ref, err := romcache.Get[blobA](c)
		if err != nil {
			b.Fatal(err)
		}
		ref.Release()
	}
	_ = c.Close()
}

func BenchmarkGetMutHit(b *testing.B) {
	c := newBenchCache(b, 16, 4)
	if mut, err := romcache.GetMut[blobA](c); err != nil {
		b.Fatal(err)
	} else {
		mut.Release()
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mut, err := romcache.GetMut[blobA](c)
		if err != nil {
			b.Fatal(err)
		}
		mut.Release()
	}
	_ = c.Close()
}

func BenchmarkGetParallel(b *testing.B) {
	c := newBenchCache(b, 16, 4)
	for _, warm := range []func() error{
		func() error { r, err := romcache.Get[blobA](c); releaseIf(r, err); return err },
		func() error { r, err := romcache.Get[blobB](c); releaseIf(r, err); return err },
		func() error { r, err := romcache.Get[blobC](c); releaseIf(r, err); return err },
		func() error { r, err := romcache.Get[blobD](c); releaseIf(r, err); return err },
	} {
		if err := warm(); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ref, err := romcache.Get[blobA](c)
			if err != nil {
				// Another goroutine may hold the set exclusively for a
				// moment; contention is a documented outcome, not a failure.
				continue
			}
			ref.Release()
		}
	})
	_ = c.Close()
}

// Two types sharing a single one-way set: every Get displaces the other
// type, exercising victim selection, eviction and reload on each iteration.
func BenchmarkMissEvict(b *testing.B) {
	c := newBenchCache(b, 1, 1)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%2 == 0 {
			ref, err := romcache.Get[blobA](c)
			if err != nil {
				b.Fatal(err)
			}
			ref.Release()
		} else {
			ref, err := romcache.Get[blobB](c)
			if err != nil {
				b.Fatal(err)
			}
			ref.Release()
		}
	}
	_ = c.Close()
}

func releaseIf[T any](r *romcache.Ref[T], err error) {
	if err == nil {
		r.Release()
	}
}
