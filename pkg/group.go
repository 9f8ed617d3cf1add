package romcache

// group.go contains the set – a fixed array of W lines sharing one RWMutex
// and one LRU ordering.  The set lock is the *outer* level of the locking
// protocol: structural reads (which slot holds which type) take it shared,
// structural mutations (install, evict, LRU touch) take it exclusive.  The
// ordering itself lives in internal/lruorder and is free of locking; the set
// serialises all access to it.
//
// Groups are not exposed from the public API: the exported types live in
// pkg/cache.go, pkg/guard.go, pkg/cacheable.go and pkg/config.go.
//
// © 2025 rom-cache authors. MIT License.

import (
	"reflect"
	"sync"

	"github.com/Voskan/rom-cache/internal/lruorder"
)

type group struct {
	mu    sync.RWMutex
	lines []line
	order lruorder.Order
}

func newGroup(ways int) *group {
	return &group{
		lines: make([]line, ways),
		order: lruorder.New(ways),
	}
}

// lookup returns the slot holding the given type identity, or -1.  Linear
// scan over the W slots; at most one can match (install enforces it).
// Requires at least the shared set lock.
func (g *group) lookup(t reflect.Type) int {
	for i := range g.lines {
		if g.lines[i].typeOf() == t {
			return i
		}
	}
	return -1
}

// victim picks the least-recently-used slot whose line lock is currently
// acquirable and returns it with the line write lock HELD.  Empty slots sort
// least-recent until first installed, so a set fills up before it evicts.
// Returns ok=false when every slot is pinned by an outstanding guard.
//
// Requires the exclusive set lock: no new guard can appear in this set while
// it is held, so a successful TryLock proves the slot stays evictable.
func (g *group) victim() (int, bool) {
	for r := g.order.Len() - 1; r >= 0; r-- {
		slot := g.order.At(r)
		if g.lines[slot].mu.TryLock() {
			return slot, true
		}
	}
	return 0, false
}
