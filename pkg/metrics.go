package romcache

// metrics.go contains a thin abstraction over Prometheus so that rom-cache
// can be used with or without metrics.  When the user passes a
// *prometheus.Registry in New(..., WithMetrics(reg)), we create labeled
// metrics and expose them via the registry.  Otherwise a no-op sink is used
// and the hot path does not pay for metric updates.
//
// All metrics are **set-level**; aggregations can easily be done on the
// Prometheus side via sum() / rate().
//
// ┌──────────────────────────────────────────────┐
// │ Metric                    │ Type │ Labels    │
// ├───────────────────────────┼──────┼───────────┤
// │ hits_total                │ Ctr  │ set       │
// │ misses_total              │ Ctr  │ set       │
// │ evictions_total           │ Ctr  │ set       │
// │ writebacks_total          │ Ctr  │ set       │
// │ writeback_errors_total    │ Ctr  │ set       │
// │ load_fallbacks_total      │ Ctr  │ set       │
// │ busy_total                │ Ctr  │ set       │
// │ locked_total              │ Ctr  │ set       │
// └──────────────────────────────────────────────┘
//
// © 2025 rom-cache authors. MIT License.

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink is an internal interface abstracting away the concrete backend
// (Prometheus vs noop).  It is *not* exposed outside the package; the Cache
// only knows about the generic methods here.
type metricsSink interface {
	incHit(set int)
	incMiss(set int)
	incEviction(set int)
	incWriteback(set int)
	incWritebackError(set int)
	incLoadFallback(set int)
	incBusy(set int)
	incLocked(set int)
}

/*
   ---------------- No-op implementation ----------------
*/

type noopMetrics struct{}

func (noopMetrics) incHit(int)            {}
func (noopMetrics) incMiss(int)           {}
func (noopMetrics) incEviction(int)       {}
func (noopMetrics) incWriteback(int)      {}
func (noopMetrics) incWritebackError(int) {}
func (noopMetrics) incLoadFallback(int)   {}
func (noopMetrics) incBusy(int)           {}
func (noopMetrics) incLocked(int)         {}

/*
   ---------------- Prometheus implementation ----------------
*/

type promMetrics struct {
	hits            *prometheus.CounterVec
	misses          *prometheus.CounterVec
	evictions       *prometheus.CounterVec
	writebacks      *prometheus.CounterVec
	writebackErrors *prometheus.CounterVec
	loadFallbacks   *prometheus.CounterVec
	busy            *prometheus.CounterVec
	locked          *prometheus.CounterVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"set"}
	ctr := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rom_cache",
			Name:      name,
			Help:      help,
		}, label)
	}

	pm := &promMetrics{
		hits:            ctr("hits_total", "Number of lookups served by a resident line."),
		misses:          ctr("misses_total", "Number of lookups that had to load from the backing store."),
		evictions:       ctr("evictions_total", "Number of occupied lines displaced to make room."),
		writebacks:      ctr("writebacks_total", "Number of dirty lines written back to the backing store."),
		writebackErrors: ctr("writeback_errors_total", "Number of failed backing-store writes."),
		loadFallbacks:   ctr("load_fallbacks_total", "Number of failed loads replaced by a default value."),
		busy:            ctr("busy_total", "Number of operations rejected because every line was in use."),
		locked:          ctr("locked_total", "Number of operations rejected by lock contention."),
	}

	reg.MustRegister(pm.hits, pm.misses, pm.evictions, pm.writebacks,
		pm.writebackErrors, pm.loadFallbacks, pm.busy, pm.locked)
	return pm
}

/*
   -------- promMetrics implements metricsSink --------
*/

func (m *promMetrics) incHit(set int) {
	m.hits.WithLabelValues(strconv.Itoa(set)).Inc()
}
func (m *promMetrics) incMiss(set int) {
	m.misses.WithLabelValues(strconv.Itoa(set)).Inc()
}
func (m *promMetrics) incEviction(set int) {
	m.evictions.WithLabelValues(strconv.Itoa(set)).Inc()
}
func (m *promMetrics) incWriteback(set int) {
	m.writebacks.WithLabelValues(strconv.Itoa(set)).Inc()
}
func (m *promMetrics) incWritebackError(set int) {
	m.writebackErrors.WithLabelValues(strconv.Itoa(set)).Inc()
}
func (m *promMetrics) incLoadFallback(set int) {
	m.loadFallbacks.WithLabelValues(strconv.Itoa(set)).Inc()
}
func (m *promMetrics) incBusy(set int) {
	m.busy.WithLabelValues(strconv.Itoa(set)).Inc()
}
func (m *promMetrics) incLocked(set int) {
	m.locked.WithLabelValues(strconv.Itoa(set)).Inc()
}

/*
   ---------------- Factory ----------------
*/

// newMetricsSink decides which implementation to use.
func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
