package romcache

// cache.go contains the top-level Cache: a set-associative, type-indexed
// cache over slow typed backing storage ("ROM").  A Cache is split into S
// independent sets of W lines each; a stored type's identity hashes to
// exactly one set and occupies at most one line there.  Lookups load on
// miss, evictions write back dirty values, and the per-set LRU ordering
// picks victims.
//
// Locking is two-level and strictly non-blocking: the set RWMutex guards the
// set's structure and LRU, the line RWMutex guards one payload.  Every
// acquisition on the Get, GetMut, Flush and Reset paths is a try-acquire;
// contention surfaces to the caller as ErrLocked (a needed lock was held)
// or ErrBusy (no evictable victim), never as waiting.  On those paths the
// only calls that may block are the user's Load and Store, which run while
// the exclusive set lock is held – which is also why blocking on cache
// locks anywhere else would risk deadlock against them.  Len is the
// exception: it waits for each set's shared lock.
//
// Get and GetMut are package-level generic functions rather than methods
// because Go methods cannot introduce type parameters.
//
// © 2025 rom-cache authors. MIT License.

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Cache is the main cache structure.  Construct with New; the zero value is
// not usable.  All methods and the package-level Get/GetMut are safe for
// concurrent use.
type Cache struct {
	groups []*group
	sink   metricsSink
	log    *zap.Logger

	// fast counters, mirrored into the metrics sink (atomic to avoid
	// locking on the hot path).
	hits            atomic.Uint64
	misses          atomic.Uint64
	evictions       atomic.Uint64
	writebacks      atomic.Uint64
	writebackErrors atomic.Uint64
	loadFallbacks   atomic.Uint64
	busy            atomic.Uint64
	locked          atomic.Uint64
}

// New creates a cache with the given geometry: sets × ways lines, all empty.
// Geometry is fixed for the cache's lifetime.
func New(sets, ways int, opts ...Option) (*Cache, error) {
	cfg := defaultConfig(sets, ways)
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	c := &Cache{
		groups: make([]*group, sets),
		sink:   newMetricsSink(cfg.registry),
		log:    cfg.logger,
	}
	for i := range c.groups {
		c.groups[i] = newGroup(ways)
	}
	return c, nil
}

// typeOf returns the identity of T.  reflect.Type values are canonical per
// type within a process, so equality on them is the identity test.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// setIndex hashes a type identity to its home set.  The fully qualified name
// is stable for the life of the process; collisions across types are
// expected and resolved by associativity.
func (c *Cache) setIndex(t reflect.Type) int {
	h := xxhash.Sum64String(t.PkgPath() + "." + t.String())
	return int(h % uint64(len(c.groups)))
}

// Get returns a shared guard for the resident value of T, loading it from
// the backing store on miss.  Concurrent Gets for the same type succeed
// together; an outstanding Mut for it yields ErrLocked.  A miss that finds
// every line of the target set pinned yields ErrBusy.
//
// Read hits taken entirely under the shared set lock do not update the LRU
// ordering; only the exclusive paths (miss fill, GetMut) do.
func Get[T any, P Ptr[T]](c *Cache) (*Ref[T], error) {
	t := typeOf[T]()
	gi := c.setIndex(t)
	g := c.groups[gi]

	// Fast path: shared set lock, resident hit.
	if !g.mu.TryRLock() {
		return nil, c.rejectLocked(gi)
	}
	if slot := g.lookup(t); slot >= 0 {
		ln := &g.lines[slot]
		if !ln.mu.TryRLock() {
			g.mu.RUnlock()
			return nil, c.rejectLocked(gi)
		}
		val := ln.ent.val.(*T)
		g.mu.RUnlock()
		c.hits.Add(1)
		c.sink.incHit(gi)
		return &Ref[T]{ln: ln, val: val}, nil
	}
	g.mu.RUnlock()

	// Miss path: exclusive set lock, re-probe, then evict + load.
	if !g.mu.TryLock() {
		return nil, c.rejectLocked(gi)
	}
	defer g.mu.Unlock()

	if slot := g.lookup(t); slot >= 0 {
		// Installed by another goroutine between our probes.
		ln := &g.lines[slot]
		if !ln.mu.TryRLock() {
			return nil, c.rejectLocked(gi)
		}
		g.order.Touch(slot)
		c.hits.Add(1)
		c.sink.incHit(gi)
		return &Ref[T]{ln: ln, val: ln.ent.val.(*T)}, nil
	}

	slot, err := fill[T, P](c, g, gi, t)
	if err != nil {
		return nil, err
	}
	ln := &g.lines[slot]
	ln.mu.RLock() // fresh line; nothing else can see it while the set lock is held
	return &Ref[T]{ln: ln, val: ln.ent.val.(*T)}, nil
}

// GetMut returns an exclusive guard for the resident value of T, loading it
// on miss.  Any outstanding guard for the line – shared or exclusive –
// yields ErrLocked.  Mutating through the guard marks the line dirty so the
// value is written back on eviction or Flush.
func GetMut[T any, P Ptr[T]](c *Cache) (*Mut[T], error) {
	t := typeOf[T]()
	gi := c.setIndex(t)
	g := c.groups[gi]

	if !g.mu.TryLock() {
		return nil, c.rejectLocked(gi)
	}
	defer g.mu.Unlock()

	if slot := g.lookup(t); slot >= 0 {
		ln := &g.lines[slot]
		if !ln.mu.TryLock() {
			return nil, c.rejectLocked(gi)
		}
		g.order.Touch(slot)
		c.hits.Add(1)
		c.sink.incHit(gi)
		return &Mut[T]{ln: ln, val: ln.ent.val.(*T)}, nil
	}

	slot, err := fill[T, P](c, g, gi, t)
	if err != nil {
		return nil, err
	}
	ln := &g.lines[slot]
	ln.mu.Lock() // fresh line; uncontended under the exclusive set lock
	return &Mut[T]{ln: ln, val: ln.ent.val.(*T)}, nil
}

// fill handles a confirmed miss: pick a victim, write it back if dirty, load
// T (falling back to its default on error) and install it as the set's MRU.
// Caller holds the exclusive set lock.  On success the new line is clean,
// resident and unlocked.
func fill[T any, P Ptr[T]](c *Cache, g *group, gi int, t reflect.Type) (int, error) {
	c.misses.Add(1)
	c.sink.incMiss(gi)

	slot, ok := g.victim()
	if !ok {
		c.busy.Add(1)
		c.sink.incBusy(gi)
		return 0, ErrBusy
	}
	ln := &g.lines[slot]
	// Line write lock held from here until install completes.

	if !ln.isEmpty() {
		evicted := ln.typeOf()
		wasDirty := ln.isDirty()
		c.evictions.Add(1)
		c.sink.incEviction(gi)
		if err := ln.evict(); err != nil {
			c.writebackErrors.Add(1)
			c.sink.incWritebackError(gi)
			c.log.Warn("writeback failed, value dropped",
				zap.String("type", evicted.String()),
				zap.Int("set", gi),
				zap.Error(err))
		} else if wasDirty {
			c.writebacks.Add(1)
			c.sink.incWriteback(gi)
		}
	}

	ptr := P(new(T))
	if err := ptr.Load(); err != nil {
		// Install the type's default instead; the lookup still succeeds.
		var zero T
		*ptr = zero
		if d, ok := any(ptr).(Defaulter); ok {
			d.SetDefault()
		}
		c.loadFallbacks.Add(1)
		c.sink.incLoadFallback(gi)
		c.log.Debug("load failed, installing default",
			zap.String("type", t.String()),
			zap.Int("set", gi),
			zap.Error(err))
	}

	ln.install(&entry{typ: t, val: (*T)(ptr), store: ptr.Store})
	g.order.Touch(slot)
	ln.mu.Unlock()
	return slot, nil
}

func (c *Cache) rejectLocked(set int) error {
	c.locked.Add(1)
	c.sink.incLocked(set)
	return ErrLocked
}

// Flush writes every dirty line back to the backing store; lines stay
// resident and become clean.  Sets or lines whose locks are held are
// skipped and reported, as are store failures.  A nil return means every
// dirty value reached the backing store.
func (c *Cache) Flush() error {
	var errs error
	for gi, g := range c.groups {
		if !g.mu.TryLock() {
			errs = multierr.Append(errs, fmt.Errorf("set %d: %w", gi, ErrLocked))
			continue
		}
		for i := range g.lines {
			ln := &g.lines[i]
			if !ln.mu.TryLock() {
				if ln.isDirty() {
					errs = multierr.Append(errs, fmt.Errorf("set %d slot %d: %w", gi, i, ErrBusy))
				}
				continue
			}
			stored, err := ln.writeback()
			if err != nil {
				c.writebackErrors.Add(1)
				c.sink.incWritebackError(gi)
				errs = multierr.Append(errs, fmt.Errorf("set %d slot %d (%s): %w", gi, i, ln.typeOf(), err))
			} else if stored {
				c.writebacks.Add(1)
				c.sink.incWriteback(gi)
			}
			ln.mu.Unlock()
		}
		g.mu.Unlock()
	}
	return errs
}

// Reset evicts every line: dirty values are written back, then all lines
// are cleared to empty.  Lines pinned by outstanding guards are skipped and
// reported.  Counters and geometry are untouched.
func (c *Cache) Reset() error {
	var errs error
	for gi, g := range c.groups {
		if !g.mu.TryLock() {
			errs = multierr.Append(errs, fmt.Errorf("set %d: %w", gi, ErrLocked))
			continue
		}
		for i := range g.lines {
			ln := &g.lines[i]
			if !ln.mu.TryLock() {
				errs = multierr.Append(errs, fmt.Errorf("set %d slot %d: %w", gi, i, ErrBusy))
				continue
			}
			if !ln.isEmpty() {
				evicted := ln.typeOf()
				wasDirty := ln.isDirty()
				c.evictions.Add(1)
				c.sink.incEviction(gi)
				if err := ln.evict(); err != nil {
					c.writebackErrors.Add(1)
					c.sink.incWritebackError(gi)
					errs = multierr.Append(errs, fmt.Errorf("set %d slot %d (%s): %w", gi, i, evicted, err))
				} else if wasDirty {
					c.writebacks.Add(1)
					c.sink.incWriteback(gi)
				}
			}
			ln.mu.Unlock()
		}
		g.mu.Unlock()
	}
	return errs
}

// Close writes back all dirty state and empties the cache.  Best effort:
// lines still pinned by guards at Close are reported in the error, not
// waited for.
func (c *Cache) Close() error {
	return c.Reset()
}

// Len returns the number of resident (non-empty) lines.  Unlike the other
// operations it takes each set's shared lock with a blocking RLock, so it
// waits while a set is held exclusively (for example during a Load or Store).
func (c *Cache) Len() int {
	total := 0
	for _, g := range c.groups {
		g.mu.RLock()
		for i := range g.lines {
			if !g.lines[i].isEmpty() {
				total++
			}
		}
		g.mu.RUnlock()
	}
	return total
}

// Stats is a point-in-time snapshot of the cache's counters.
type Stats struct {
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	Evictions       uint64 `json:"evictions"`
	Writebacks      uint64 `json:"writebacks"`
	WritebackErrors uint64 `json:"writeback_errors"`
	LoadFallbacks   uint64 `json:"load_fallbacks"`
	Busy            uint64 `json:"busy"`
	Locked          uint64 `json:"locked"`
}

// Stats returns the counter snapshot.  Cheap enough for sporadic scraping.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Evictions:       c.evictions.Load(),
		Writebacks:      c.writebacks.Load(),
		WritebackErrors: c.writebackErrors.Load(),
		LoadFallbacks:   c.loadFallbacks.Load(),
		Busy:            c.busy.Load(),
		Locked:          c.locked.Load(),
	}
}
