package main

// workload.go declares the record types the stress driver caches and the
// worker loop that exercises them.  Each record has one canonical key in the
// backing store; a fresh store starts every counter at zero via the cache's
// load-fallback policy.

import (
	"context"
	"errors"

	romcache "github.com/Voskan/rom-cache/pkg"
)

type bumpable interface{ bump() }

type counterA struct{ N uint64 }

func (x *counterA) Load() error  { return store.Read("counter-a", x) }
func (x *counterA) Store() error { return store.Write("counter-a", x) }
func (x *counterA) bump()        { x.N++ }

type counterB struct{ N uint64 }

func (x *counterB) Load() error  { return store.Read("counter-b", x) }
func (x *counterB) Store() error { return store.Write("counter-b", x) }
func (x *counterB) bump()        { x.N++ }

type counterC struct{ N uint64 }

func (x *counterC) Load() error  { return store.Read("counter-c", x) }
func (x *counterC) Store() error { return store.Write("counter-c", x) }
func (x *counterC) bump()        { x.N++ }

type counterD struct{ N uint64 }

func (x *counterD) Load() error  { return store.Read("counter-d", x) }
func (x *counterD) Store() error { return store.Write("counter-d", x) }
func (x *counterD) bump()        { x.N++ }

type counterE struct{ N uint64 }

func (x *counterE) Load() error  { return store.Read("counter-e", x) }
func (x *counterE) Store() error { return store.Write("counter-e", x) }
func (x *counterE) bump()        { x.N++ }

type counterF struct{ N uint64 }

func (x *counterF) Load() error  { return store.Read("counter-f", x) }
func (x *counterF) Store() error { return store.Write("counter-f", x) }
func (x *counterF) bump()        { x.N++ }

// transientErr reports whether the cache rejected the operation for a
// retryable reason.
func transientErr(err error) bool {
	return errors.Is(err, romcache.ErrBusy) || errors.Is(err, romcache.ErrLocked)
}

func readRecord[T any, P romcache.Ptr[T]](c *romcache.Cache) error {
	ref, err := romcache.Get[T, P](c)
	if err != nil {
		if transientErr(err) {
			return nil
		}
		return err
	}
	ref.Release()
	return nil
}

func bumpRecord[T any, P romcache.Ptr[T]](c *romcache.Cache) error {
	mut, err := romcache.GetMut[T, P](c)
	if err != nil {
		if transientErr(err) {
			return nil
		}
		return err
	}
	any(mut.Value()).(bumpable).bump()
	mut.Release()
	return nil
}

// Roughly 2:1 reads to writes across six types.
var workloadOps = []func(*romcache.Cache) error{
	readRecord[counterA, *counterA],
	readRecord[counterB, *counterB],
	readRecord[counterC, *counterC],
	readRecord[counterD, *counterD],
	readRecord[counterE, *counterE],
	readRecord[counterF, *counterF],
	bumpRecord[counterA, *counterA],
	bumpRecord[counterB, *counterB],
	bumpRecord[counterC, *counterC],
}

// worker runs the op mix until ctx is cancelled.  The per-worker LCG keeps
// the mix deterministic for a given worker count.
func worker(ctx context.Context, c *romcache.Cache, id int) error {
	x := uint32(id)*2654435761 + 12345
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		x = x*1664525 + 1013904223
		if err := workloadOps[x%uint32(len(workloadOps))](c); err != nil {
			return err
		}
	}
}
