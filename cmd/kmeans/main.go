package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/kmeans.visual/internal/api"
	"github.com/banshee-data/kmeans.visual/internal/config"
	"github.com/banshee-data/kmeans.visual/internal/dataset"
	"github.com/banshee-data/kmeans.visual/internal/driver"
	"github.com/banshee-data/kmeans.visual/internal/kmeans"
	"github.com/banshee-data/kmeans.visual/internal/render"
	"github.com/banshee-data/kmeans.visual/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to a demo config JSON file (defaults are built in)")
	serve         = flag.Bool("serve", false, "Serve the interactive demo over HTTP")
	listen        = flag.String("listen", ":8080", "Listen address")
	datasetName   = flag.String("dataset", string(dataset.KindBlobs), "Dataset for offline runs: random, mickey or uniform")
	k             = flag.Int("k", 0, "Number of clusters (overrides config)")
	maxIterations = flag.Int("max-iterations", 0, "Iteration cap (overrides config)")
	interval      = flag.Duration("interval", -1, "Pause between steps when serving (overrides config)")
	seed          = flag.Uint64("seed", 0, "Random seed (overrides config; 0 seeds from time)")
	outDir        = flag.String("out", "", "Output directory for offline runs (overrides plot_dir)")
	versionFlag   = flag.Bool("version", false, "Print version information and exit")
)

const chartTitle = "K-Means Clustering"

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("kmeans %s (%s) built %s\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlags(cfg); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		runServer(ctx, cfg)
		return
	}

	kind, err := dataset.ParseKind(*datasetName)
	if err != nil {
		log.Fatalf("invalid -dataset: %v", err)
	}
	if err := runOffline(ctx, cfg, kind); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func loadConfig(path string) (*config.DemoConfig, error) {
	if path == "" {
		return config.EmptyDemoConfig(), nil
	}
	return config.LoadDemoConfig(path)
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cfg *config.DemoConfig) error {
	var setErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "k":
			cfg.K = k
		case "max-iterations":
			cfg.MaxIterations = maxIterations
		case "interval":
			s := interval.String()
			cfg.StepInterval = &s
		case "seed":
			cfg.Seed = seed
		case "out":
			cfg.PlotDir = outDir
		case "dataset":
			if kind := dataset.Kind(*datasetName); kind == dataset.KindDrawn {
				setErr = fmt.Errorf("the drawn dataset is only available with -serve")
			}
		}
	})
	if setErr != nil {
		return setErr
	}
	return cfg.Validate()
}

func newRand(cfg *config.DemoConfig) *rand.Rand {
	s := cfg.GetSeed()
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(s, s>>1))
}

func driverOptions(cfg *config.DemoConfig, rng *rand.Rand) driver.Options {
	opts := driver.DefaultOptions()
	opts.Bounds = cfg.GetBounds()
	opts.Interval = cfg.GetStepInterval()
	opts.Tolerance = cfg.GetTolerance()
	opts.MaxInitAttempts = cfg.GetInitMaxAttempts()
	opts.Rand = rng
	return opts
}

// runOffline clusters one generated dataset without pacing and writes
// timeline.html plus one PNG per iteration to the plot directory.
func runOffline(ctx context.Context, cfg *config.DemoConfig, kind dataset.Kind) error {
	rng := newRand(cfg)
	bounds := cfg.GetBounds()

	source := dataset.NewSource(rng, bounds, cfg.DatasetParams())
	if _, err := source.Select(kind); err != nil {
		return err
	}
	groups, err := source.Points()
	if err != nil {
		return err
	}

	dir := cfg.GetPlotDir()
	frames, err := render.NewFrameWriter(dir, bounds)
	if err != nil {
		return err
	}
	timeline := render.NewTimeline(bounds, chartTitle, 0)

	opts := driverOptions(cfg, rng)
	opts.OnUpdate = func(state kmeans.State, terminal bool) {
		timeline.Record(state, terminal)
		frames.Record(state, terminal)
	}
	d := driver.New(opts)

	state, status, err := d.Run(ctx, cfg.GetK(), cfg.GetMaxIterations(), groups)
	if err != nil {
		return err
	}
	if err := frames.Err(); err != nil {
		return fmt.Errorf("failed to write frames: %w", err)
	}

	htmlPath := filepath.Join(dir, "timeline.html")
	if err := writeTimeline(htmlPath, timeline); err != nil {
		return err
	}

	log.Printf("[Main] %s dataset: %s after %d iterations, cluster sizes %v", kind, status, state.Iteration, state.Sizes())
	log.Printf("[Main] wrote %s and %d frames", htmlPath, len(frames.Files()))
	return nil
}

// writeTimeline renders the timeline page to path.
func writeTimeline(path string, timeline *render.Timeline) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := timeline.Render(f); err != nil {
		return fmt.Errorf("failed to render timeline: %w", err)
	}
	return nil
}

// newServer wires the demo server from cfg.
func newServer(cfg *config.DemoConfig) *api.Server {
	rng := newRand(cfg)
	bounds := cfg.GetBounds()

	// The source and the driver lock independently, so each gets its own generator.
	source := dataset.NewSource(rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())), bounds, cfg.DatasetParams())
	// Requests may raise max_iterations above the config, so the timeline is uncapped.
	timeline := render.NewTimeline(bounds, chartTitle, 0)
	return api.NewServer(driverOptions(cfg, rng), source, timeline, api.Defaults{
		K:             cfg.GetK(),
		MaxIterations: cfg.GetMaxIterations(),
	})
}

// runServer serves the demo until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.DemoConfig) {
	srv := newServer(cfg)
	defer srv.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:              *listen,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("[Main] serving demo on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
