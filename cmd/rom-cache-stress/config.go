package main

// config.go holds the stress driver's settings and the two layers they come
// from: an optional hujson config file and the command-line flags.  Flags
// that were explicitly set win over the file, which wins over defaults.

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

type config struct {
	Sets     int           `json:"sets"`
	Ways     int           `json:"ways"`
	Workers  int           `json:"workers"`
	Duration time.Duration `json:"-"`
	ROMDir   string        `json:"rom_dir"`
	Backend  string        `json:"backend"`
	Listen   string        `json:"listen"`

	// file-only representation of Duration
	DurationStr string `json:"duration"`

	showVersion bool
	Verbose     bool `json:"verbose"`
}

func defaultStressConfig() *config {
	return &config{
		Sets:    8,
		Ways:    4,
		Workers: 8,
		ROMDir:  "./rom-data",
		Backend: "badger",
		Listen:  ":9190",
	}
}

// loadConfig parses args, merging an optional hujson config file underneath
// explicitly set flags.
func loadConfig(args []string) (*config, error) {
	cfg := defaultStressConfig()

	fs := flag.NewFlagSet("rom-cache-stress", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to hujson config file")
	fs.IntVar(&cfg.Sets, "sets", cfg.Sets, "number of sets")
	fs.IntVar(&cfg.Ways, "ways", cfg.Ways, "lines per set")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent workers")
	fs.DurationVar(&cfg.Duration, "duration", 0, "how long to run (0 = until signal)")
	fs.StringVar(&cfg.ROMDir, "rom", cfg.ROMDir, "backing store directory")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "backing store kind: file or badger")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "metrics/debug listen address")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "development logging")
	fs.BoolVar(&cfg.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		fileCfg, err := loadConfigFile(*configPath)
		if err != nil {
			return nil, err
		}
		mergeConfig(cfg, fileCfg, fs)
	}

	if cfg.Sets < 1 || cfg.Ways < 1 || cfg.Workers < 1 {
		return nil, fmt.Errorf("sets, ways and workers must all be >= 1")
	}
	return cfg, nil
}

// loadConfigFile reads a hujson file (JSON with comments and trailing
// commas) into a config.
func loadConfigFile(path string) (*config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	var cfg config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.DurationStr != "" {
		d, err := time.ParseDuration(cfg.DurationStr)
		if err != nil {
			return nil, fmt.Errorf("config duration: %w", err)
		}
		cfg.Duration = d
	}
	return &cfg, nil
}

// mergeConfig copies file values into cfg for every flag the user did not
// set explicitly.
func mergeConfig(cfg, file *config, fs *flag.FlagSet) {
	if !fs.Changed("sets") && file.Sets != 0 {
		cfg.Sets = file.Sets
	}
	if !fs.Changed("ways") && file.Ways != 0 {
		cfg.Ways = file.Ways
	}
	if !fs.Changed("workers") && file.Workers != 0 {
		cfg.Workers = file.Workers
	}
	if !fs.Changed("duration") && file.Duration != 0 {
		cfg.Duration = file.Duration
	}
	if !fs.Changed("rom") && file.ROMDir != "" {
		cfg.ROMDir = file.ROMDir
	}
	if !fs.Changed("backend") && file.Backend != "" {
		cfg.Backend = file.Backend
	}
	if !fs.Changed("listen") && file.Listen != "" {
		cfg.Listen = file.Listen
	}
	if !fs.Changed("verbose") {
		cfg.Verbose = file.Verbose
	}
}
