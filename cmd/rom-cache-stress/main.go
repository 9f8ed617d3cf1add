package main

// main.go implements the rom-cache stress driver: it spins up a cache in
// front of a real backing store (file-per-key or BadgerDB), hammers it from
// a pool of workers with a mixed read/write workload, and exposes live
// metrics while doing so.  Useful for soak-testing the locking protocol on
// real hardware and for eyeballing hit/eviction behaviour of a geometry
// before committing to it.
//
// Endpoints while running:
//   • GET /metrics                      – Prometheus metrics.
//   • GET /debug/rom-cache/snapshot    – JSON counter snapshot.
//
// Run:
//   go run ./cmd/rom-cache-stress --sets 8 --ways 4 --workers 16 --duration 30s
//
// A hujson config file can carry the same settings (see --config); explicit
// flags win over the file.
// ---------------------------------------------------------------
// © 2025 rom-cache authors. MIT License.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	romcache "github.com/Voskan/rom-cache/pkg"
	"github.com/Voskan/rom-cache/romstore"
)

var version = "dev"

// store is the backing store the workload record types talk to.  Set once in
// main before any worker starts.
var store romstore.ROM

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful exit.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("signal received, draining")
		cancel()
	}()

	store, err = openStore(cfg)
	if err != nil {
		fatal(err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	reg := prometheus.NewRegistry()
	c, err := romcache.New(cfg.Sets, cfg.Ways,
		romcache.WithLogger(logger),
		romcache.WithMetrics(reg))
	if err != nil {
		fatal(err)
	}

	srv := serveHTTP(cfg.Listen, reg, c, logger)
	defer func() { _ = srv.Shutdown(context.Background()) }()

	logger.Info("stress starting",
		zap.Int("sets", cfg.Sets),
		zap.Int("ways", cfg.Ways),
		zap.Int("workers", cfg.Workers),
		zap.Duration("duration", cfg.Duration),
		zap.String("backend", cfg.Backend))

	runCtx := ctx
	if cfg.Duration > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(ctx, cfg.Duration)
		defer tcancel()
	}

	start := time.Now()
	var eg errgroup.Group
	for w := 0; w < cfg.Workers; w++ {
		w := w
		eg.Go(func() error { return worker(runCtx, c, w) })
	}

	// Periodic progress line while the workers run.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()

	for {
		select {
		case <-ticker.C:
			s := c.Stats()
			logger.Info("progress",
				zap.Uint64("hits", s.Hits),
				zap.Uint64("misses", s.Misses),
				zap.Uint64("evictions", s.Evictions),
				zap.Uint64("writebacks", s.Writebacks),
				zap.Uint64("busy", s.Busy),
				zap.Uint64("locked", s.Locked))
		case err := <-done:
			if err != nil {
				fatal(err)
			}
			if cerr := c.Close(); cerr != nil {
				logger.Warn("close left state behind", zap.Error(cerr))
			}
			printSummary(c, time.Since(start))
			return
		}
	}
}

func serveHTTP(addr string, reg *prometheus.Registry, c *romcache.Cache, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/rom-cache/snapshot", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(c.Stats())
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server", zap.Error(err))
		}
	}()
	return srv
}

func openStore(cfg *config) (romstore.ROM, error) {
	switch cfg.Backend {
	case "file":
		return romstore.OpenFile(cfg.ROMDir)
	case "badger":
		return romstore.OpenBadger(cfg.ROMDir)
	default:
		return nil, fmt.Errorf("unknown backend %q (want file or badger)", cfg.Backend)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func printSummary(c *romcache.Cache, elapsed time.Duration) {
	s := c.Stats()
	total := s.Hits + s.Misses
	fmt.Printf("elapsed:    %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("lookups:    %d (%.1f%% hit)\n", total, pct(s.Hits, total))
	fmt.Printf("evictions:  %d\n", s.Evictions)
	fmt.Printf("writebacks: %d (%d failed)\n", s.Writebacks, s.WritebackErrors)
	fmt.Printf("rejected:   %d busy, %d locked\n", s.Busy, s.Locked)
}

func pct(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "rom-cache-stress:", err)
	os.Exit(1)
}
