package romcache

// config.go defines the internal configuration object, the functional
// options accepted by New, and the package's sentinel errors.  The config
// struct is hidden from the public API: users can only influence behaviour
// via Option, which guarantees forward compatibility.
//
// Design notes
// ------------
// • All fields are initialised with sensible defaults in defaultConfig().
// • Options never allocate – they just capture pointers to external objects
//   (registry, logger).
// • Geometry (sets, ways) is fixed at construction; there is no live
//   mutation from user land.
//
// © 2025 rom-cache authors. MIT License.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Voskan/rom-cache/internal/lruorder"
)

// Option is the functional option passed to New.
type Option func(*config)

type config struct {
	sets int
	ways int

	// optional knobs
	registry *prometheus.Registry
	logger   *zap.Logger
}

func defaultConfig(sets, ways int) *config {
	return &config{
		sets:     sets,
		ways:     ways,
		logger:   zap.NewNop(),
		registry: nil, // user must opt-in to metrics
	}
}

// WithMetrics enables Prometheus metrics collection for the cache instance.
// Passing nil disables metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithLogger plugs an external zap.Logger.  The cache never logs on the hot
// path; only slow events (writeback failures, load fallbacks) are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// applyOptions copies user-supplied options into cfg and validates the
// geometry.
func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sets < 1 || cfg.sets > maxSets {
		return errInvalidSets
	}
	if cfg.ways < 1 || cfg.ways > lruorder.MaxWays {
		return errInvalidWays
	}
	return nil
}

const maxSets = 1 << 16

/*
   ---------------- Error values ----------------
*/

// ErrBusy is returned when the operation needed to evict but every slot of
// the target set is pinned by an outstanding guard, or when a victim could
// not be claimed.  Nothing was modified; the caller may retry.
var ErrBusy = errors.New("romcache: all lines in set are in use")

// ErrLocked is returned when a required lock (the set lock in the needed
// mode, or the line lock of a hit) could not be acquired without blocking.
// Nothing was modified; the caller may retry.
var ErrLocked = errors.New("romcache: lock contended")

var (
	errInvalidSets = errors.New("romcache: sets must be in [1, 65536]")
	errInvalidWays = errors.New("romcache: ways must be in [1, 65536]")
)
