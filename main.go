package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gridwise/capex/config"
	"github.com/gridwise/capex/dataplatform"
	"github.com/gridwise/capex/repository"
	"github.com/gridwise/capex/results"
	"github.com/gridwise/capex/runner"
)

func main() {

	configPath := flag.String("config", "scenarios.yaml", "path to the scenario configuration file")
	workers := flag.Int("workers", 2, "number of scenarios to solve concurrently")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("Starting capacity-expansion runs...", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// the platform outlives the run context: it must keep consuming the
	// projection channel until the sink drain below has finished, or an
	// interrupt could leave the drain blocked on a full channel
	platformCtx, stopPlatform := context.WithCancel(context.Background())
	defer stopPlatform()

	var repo *repository.Repository
	if cfg.ResultsDB != "" {
		repo, err = repository.New(cfg.ResultsDB)
		if err != nil {
			slog.Error("Failed to open results database", "error", err)
			os.Exit(1)
		}
	}

	var platform *dataplatform.DataPlatform
	if cfg.DataPlatform != nil {
		platform, err = dataplatform.New(
			cfg.DataPlatform.URL,
			os.Getenv("SUPABASE_KEY"),
			cfg.DataPlatform.Schema,
			cfg.DataPlatform.BufferFile,
		)
		if err != nil {
			slog.Error("Failed to create data platform", "error", err)
			os.Exit(1)
		}
		go platform.Run(platformCtx)
	}

	// projections are fanned in from the scenario workers and persisted
	sink := make(chan *results.Projection, len(cfg.Scenarios))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range sink {
			if repo != nil {
				if err := repo.AddProjection(p); err != nil {
					slog.Error("Failed to persist projection", "scenario", p.Scenario, "error", err)
				}
			}
			if platform != nil {
				platform.Projections <- p
			}
		}
	}()

	// a ctrl-c interrupt abandons in-flight solves; there are no partial results
	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt)
		<-signalChan
		slog.Info("Interrupted, cancelling runs")
		cancel()
	}()

	err = runner.RunAll(ctx, cfg.Scenarios, *workers, sink)
	close(sink)
	<-done
	cancel()
	if err != nil {
		slog.Error("Scenario runs failed", "error", err)
		os.Exit(1)
	}

	// give the data platform a moment to flush before exiting
	if platform != nil {
		time.Sleep(time.Millisecond * 100)
	}
	stopPlatform()

	slog.Info("Exiting")
}
