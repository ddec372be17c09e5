package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MewKitBit/Solaris/internal/config"
	"github.com/MewKitBit/Solaris/internal/farm"
	"github.com/MewKitBit/Solaris/internal/ident"
	"github.com/MewKitBit/Solaris/internal/logging"
	"github.com/MewKitBit/Solaris/internal/monitor"
	"github.com/MewKitBit/Solaris/internal/observability"
	"github.com/MewKitBit/Solaris/internal/panel"
	"github.com/MewKitBit/Solaris/internal/publish"
	"github.com/MewKitBit/Solaris/internal/sim"
	"github.com/rs/zerolog/log"
	pb "gopkg.in/cheggaaa/pb.v1"
)

func main() {
	configPath := flag.String("config", "", "solarisctl runtime config (TOML)")
	scenarioPath := flag.String("scenario", "", "scenario file, overrides scenario_path")
	noProgress := flag.Bool("no-progress", false, "disable the progress bar")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("solarisctl")

	if err := run(*configPath, *scenarioPath, *noProgress); err != nil {
		fmt.Fprintf(os.Stderr, "solarisctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, scenarioPath string, noProgress bool) error {
	cfg := defaultRuntimeConfig()
	if configPath != "" {
		loaded, err := loadRuntimeConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if scenarioPath != "" {
		cfg.ScenarioPath = scenarioPath
	}
	if noProgress {
		cfg.Progress = false
	}

	scenario, err := config.LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return err
	}
	farmCfg := config.FarmFromScenario(scenario)

	series, err := loadSeries(scenario.Series)
	if err != nil {
		return err
	}

	alloc, err := ident.New(rand.New(rand.NewSource(farmCfg.Seed)))
	if err != nil {
		return err
	}
	coll, err := farm.New(farmCfg, alloc, panel.OwnedRand(farmCfg.Seed))
	if err != nil {
		return err
	}
	defer coll.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := publish.New(cfg.Publish)
	defer publisher.Close()

	var bar *pb.ProgressBar
	if cfg.Progress {
		bar = pb.New(len(series))
		bar.Start()
	}

	hook := func(rec sim.StepRecord) {
		if bar != nil {
			bar.Increment()
		}
		publisher.Publish(ctx, rec)
	}

	runCfg := cfg.Run
	runCfg.ScenarioName = scenario.Name
	runner, err := sim.NewRunner(runCfg, coll, alloc, series, hook)
	if err != nil {
		return err
	}

	var monitorSrv *monitor.Server
	if cfg.MonitorEnabled {
		monitorSrv, err = monitor.NewServer(cfg.Monitor, runner)
		if err != nil {
			return err
		}
		go func() {
			if err := monitorSrv.Serve(); err != nil {
				log.Error().Err(err).Msg("monitor_failed")
			}
		}()
	}

	summary, runErr := runner.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if monitorSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		monitorSrv.Shutdown(shutdownCtx)
		cancel()
	}

	log.Info().
		Str("run", summary.RunID).
		Str("scenario", summary.Scenario).
		Int("steps", summary.Steps).
		Float64("energy_wh", summary.EnergyWattHours).
		Float64("mean_watts", summary.FinalStats.MeanWatts).
		Int("failures", summary.FailuresObserved).
		Int("replacements", summary.Replacements).
		Dur("elapsed", summary.Elapsed).
		Msg("run_summary")
	return runErr
}

func loadSeries(cfg config.SeriesConfig) (sim.Series, error) {
	if cfg.Path != "" {
		return sim.LoadSeriesCSV(cfg.Path)
	}
	start := time.Now().UTC().Truncate(time.Hour)
	return sim.SyntheticSeries(start, cfg.Hours, cfg.PeakWatts), nil
}
