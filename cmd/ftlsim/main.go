// Command ftlsim is a demo driver that wires the FTL core to a simulated
// NAND die array and a read-only debug HTTP surface, grounded on sop's
// restapi/main (gin.Default() + route registration) and tools/httpserver
// main-wiring idiom, minus the okta bearer-token layer restapi/main carries
// (see DESIGN.md).
package main

import (
	"flag"
	log "log/slog"
	"os"

	ftlcore "github.com/openssd-go/ftlcore"
	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/config"
	"github.com/openssd-go/ftlcore/core"
	"github.com/openssd-go/ftlcore/debugapi"
	"github.com/openssd-go/ftlcore/fdp"
	"github.com/openssd-go/ftlcore/nandsim"
)

func main() {
	ftlcore.ConfigureLogging()

	configPath := flag.String("config", "", "path to a JSON config file (see config.Config)")
	listenAddr := flag.String("listen", "localhost:8080", "debug HTTP surface listen address")
	flag.Parse()

	cfg, err := loadOrDefault(*configPath)
	if err != nil {
		log.Error("ftlsim: loading config", "error", err)
		os.Exit(1)
	}

	nLSA := cfg.Geometry.NumVSA()
	sliceSize := 4096
	store, err := nandsim.NewStore(cfg.Geometry, sliceSize, 4, 2)
	if err != nil {
		log.Error("ftlsim: building nand simulator", "error", err)
		os.Exit(1)
	}
	sched := nandsim.NewScheduler(store, cfg.RequestPoolCapacity)

	var eg *fdp.EnduranceGroup
	if cfg.FDPEnabled {
		eg, err = fdp.New(cfg.Geometry, cfg.FDP)
		if err != nil {
			log.Error("ftlsim: building fdp endurance group", "error", err)
			os.Exit(1)
		}
		eg.Enabled = true
		eg.NSs = namespacesFromConfig(cfg.Namespaces)
	}

	c := core.New(cfg.Geometry, nLSA, cfg.ReservedFreeBlockCount, nil, cfg.TempBufCapacity, eg, sched)

	log.Info("ftlsim: core ready", "dies", cfg.Geometry.Dies, "blocksPerDie", cfg.Geometry.BlocksPerDie, "fdpEnabled", cfg.FDPEnabled)

	srv := debugapi.New(c)
	log.Info("ftlsim: debug api listening", "addr", *listenAddr)
	if err := srv.Run(*listenAddr); err != nil {
		log.Error("ftlsim: debug api stopped", "error", err)
		os.Exit(1)
	}
}

// loadOrDefault loads path if non-empty, else returns a small built-in
// demo geometry so the binary runs with zero setup.
func loadOrDefault(path string) (config.Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	return config.Load(path)
}

func defaultConfig() config.Config {
	return config.Config{
		Geometry: addr.Geometry{
			Dies:              1,
			BlocksPerDie:      8,
			SlicesPerBlock:    16,
			UserPagesPerBlock: 16,
		},
		ReservedFreeBlockCount: 1,
		RequestPoolCapacity:    64,
		TempBufCapacity:        16,
		FDPEnabled:             false,
	}
}

func namespacesFromConfig(nss []config.NamespaceConfig) []fdp.Namespace {
	out := make([]fdp.Namespace, len(nss))
	for i, ns := range nss {
		phs := make([]fdp.RUHID, len(ns.PlacementHandles))
		for j, h := range ns.PlacementHandles {
			phs[j] = fdp.RUHID(h)
		}
		out[i] = fdp.Namespace{NSID: ns.NSID, PHs: phs}
	}
	return out
}
