package romcache

// cacheable.go defines Cacheable – the capability set a type must provide to
// live in the cache.  Each cacheable type has one canonical location in the
// backing store ("ROM"); the cache keeps at most one resident value per type
// and calls these methods on the load-on-miss and writeback-on-evict paths.
// We place the contract in its own file so that it can be referenced from
// cache.go, guard.go and line.go without circling.
//
// • Load and Store are synchronous and may block the calling goroutine; they
//   run while the cache holds the exclusive lock of the type's set.
// • Both MUST be safe to call from any goroutine.
// • Neither may re-enter the cache for a type that hashes to the same set.
//   Because every internal acquisition is a try-acquire, such re-entry fails
//   fast with ErrLocked instead of deadlocking – but the value observed by
//   the re-entrant call is unspecified, so don't.
//
// © 2025 rom-cache authors. MIT License.

// Cacheable is implemented by the pointer type *T of a cached type T.  Load
// populates the receiver from the type's canonical backing location; Store
// writes the receiver back.  If Load fails the cache installs a fallback
// instance instead (see Defaulter) and the lookup still succeeds.
type Cacheable interface {
	Load() error
	Store() error
}

// Ptr constrains the pointer type used by Get and GetMut.  Call sites only
// name T; the pointer type is inferred:
//
//	ref, err := romcache.Get[Player](c)
type Ptr[T any] interface {
	Cacheable
	*T
}

// Defaulter customises the fallback value installed when Load fails or when
// a type has never been stored.  Without it the fallback is the zero value.
// SetDefault is called on a freshly zeroed instance.  A type for which no
// usable default exists should panic here; the cache deliberately does not
// surface load errors to Get callers.
type Defaulter interface {
	SetDefault()
}
