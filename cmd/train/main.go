package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"stationcast/internal/config"
	"stationcast/internal/database"
	"stationcast/internal/dataset"
	"stationcast/internal/learn"
	"stationcast/internal/pipeline"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config")
	out := flag.String("out", "", "bundle path (default <artifacts_dir>/model.json)")
	hours := flag.Float64("hours", -1, "training window in hours, overrides training.window_hours (<=0 full history)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	window := cfg.WindowHours()
	if flagSet("hours") {
		window = *hours
	}

	ds, err := dataset.Load(ctx, db, pipeline.Window(window, time.Now()), logger)
	if err != nil {
		logger.Fatal("Failed to load dataset", zap.Error(err))
	}

	trainer := &pipeline.Trainer{
		Learner:           learn.NewBoosting(cfg.Learner),
		Horizons:          cfg.HorizonSet(),
		MinStationSamples: cfg.Training.MinStationSamples,
		MinGroupSamples:   cfg.Training.MinGroupSamples,
		Source:            sourceLabel(cfg),
		Logger:            logger,
	}
	bundle, err := trainer.Train(ctx, ds)
	if err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}

	path := *out
	if path == "" {
		path = cfg.BundlePath()
	}
	if err := bundle.Save(path); err != nil {
		logger.Fatal("Failed to save bundle", zap.Error(err))
	}

	logger.Info("Saved model bundle",
		zap.String("path", path),
		zap.String("run_id", bundle.RunID),
		zap.Int("models", bundle.ModelCount()),
		zap.Int("skipped", len(bundle.Skipped)),
		zap.Float64("window_hours", window))
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// sourceLabel names the data source in the bundle without MySQL credentials.
func sourceLabel(cfg *config.Config) string {
	if cfg.Database.Driver == database.DriverSQLite {
		return cfg.Database.DSN
	}
	return cfg.Database.Driver
}
