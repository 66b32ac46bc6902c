package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/23skdu/longbow-tessera/internal/config"
	"github.com/23skdu/longbow-tessera/internal/perfmodel"
	"github.com/23skdu/longbow-tessera/internal/runtime"
	"github.com/23skdu/longbow-tessera/internal/transport"
)

var (
	configPath    = flag.String("config", "", "Path to a config file (yaml or toml)")
	flagRank      = flag.Int("rank", 0, "Rank of this process")
	flagSize      = flag.Int("size", 1, "Number of ranks")
	flagPeers     = flag.String("peers", "", "Comma separated Flight address per rank; empty runs all ranks in-process")
	flagListen    = flag.String("listen", "0.0.0.0:3010", "Flight listen address of this rank")
	flagMetrics   = flag.String("metrics-listen", "", "Address for the /metrics, /health and /perfmodel endpoints (e.g. :9090)")
	flagNCPU      = flag.Int("ncpu", -1, "CPU workers per rank (-1 for one per core)")
	flagNAccel    = flag.Int("naccel", 1, "Accelerator workers per rank")
	flagPerfmodel = flag.String("perfmodel", "", "Performance model file, loaded at start and saved at exit")
	enableOTel    = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	flagInflight  = flag.String("max-inflight", "64MiB", "Bytes in flight per rank before sends block (e.g. 64MiB)")

	matrixSize = flag.Int("n", 512, "Matrix size of the demo workload")
	tileSize   = flag.Int("tile", 128, "Tile size of the demo workload")
	iterations = flag.Int("iters", 3, "Demo workload iterations")
)

// loadConfig merges the config file with flags set on the command line.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	var overrides []string
	flag.Visit(func(f *flag.Flag) { overrides = append(overrides, f.Name) })
	for _, name := range overrides {
		switch name {
		case "rank":
			cfg.Rank = *flagRank
		case "size":
			cfg.Size = *flagSize
		case "peers":
			cfg.Peers = splitPeers(*flagPeers)
		case "listen":
			cfg.Listen = *flagListen
		case "metrics-listen":
			cfg.MetricsListen = *flagMetrics
		case "ncpu":
			cfg.NCPU = *flagNCPU
		case "naccel":
			cfg.NAccel = *flagNAccel
		case "perfmodel":
			cfg.PerfmodelPath = *flagPerfmodel
		case "otel":
			cfg.OTel = *enableOTel
		case "max-inflight":
			n, err := parseBytes(*flagInflight)
			if err != nil {
				return cfg, err
			}
			cfg.MaxInflightBytes = n
		}
	}
	return cfg, cfg.Validate()
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().Stringer("config", cfg).Msg("Starting tessera")

	if cfg.OTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	model := perfmodel.New(cfg.CalibrationSamples)
	if cfg.PerfmodelPath != "" {
		if err := model.LoadFile(cfg.PerfmodelPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to load performance model")
		}
		log.Info().Int("buckets", model.Size()).Str("path", cfg.PerfmodelPath).Msg("Loaded performance model")
	}

	ctxs, closeWorld, err := startRanks(cfg, model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start runtime")
	}

	if cfg.MetricsListen != "" {
		statuses := make([]StatusInterface, len(ctxs))
		for i, c := range ctxs {
			statuses[i] = c
		}
		go startServer(cfg.MetricsListen, model, statuses)
	}

	w := workload{n: *matrixSize, tile: *tileSize, iters: *iterations}
	var g errgroup.Group
	for _, c := range ctxs {
		g.Go(func() error { return w.run(c) })
	}
	runErr := g.Wait()

	for _, c := range ctxs {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Int("rank", c.Rank()).Msg("Runtime closed with error")
		}
	}
	closeWorld()

	if cfg.PerfmodelPath != "" {
		if err := model.SaveFile(cfg.PerfmodelPath); err != nil {
			log.Error().Err(err).Msg("Failed to save performance model")
		} else {
			log.Info().Int("buckets", model.Size()).Str("path", cfg.PerfmodelPath).Msg("Saved performance model")
		}
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Workload failed")
	}
}

// startRanks creates the runtime contexts hosted by this process: every rank
// over a loopback world, or this rank alone over Flight.
func startRanks(cfg config.Config, model *perfmodel.Model) ([]*runtime.Context, func(), error) {
	newContext := func(tr transport.Transport) (*runtime.Context, error) {
		rc := cfg.Runtime()
		rc.Transport = tr
		rc.Model = model
		return runtime.New(rc)
	}

	if !cfg.Distributed() {
		world := transport.NewWorld(cfg.Size)
		ctxs := make([]*runtime.Context, cfg.Size)
		for r := range ctxs {
			c, err := newContext(world.Endpoint(r))
			if err != nil {
				for _, prev := range ctxs[:r] {
					_ = prev.Close()
				}
				world.Close()
				return nil, nil, err
			}
			ctxs[r] = c
		}
		return ctxs, world.Close, nil
	}

	fl, err := transport.NewFlight(cfg.Flight())
	if err != nil {
		return nil, nil, err
	}
	c, err := newContext(fl)
	if err != nil {
		_ = fl.Close()
		return nil, nil, err
	}
	return []*runtime.Context{c}, func() { _ = fl.Close() }, nil
}

func parseBytes(s string) (uint64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(config.ErrInvalid, "bytes %q: %v", s, err)
	}
	return n, nil
}

func splitPeers(s string) []string {
	var peers []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("tessera"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
