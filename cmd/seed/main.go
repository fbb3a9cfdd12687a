package main

import (
	"context"
	"flag"
	"time"

	"stationcast/internal/config"
	"stationcast/internal/database"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config")
	steps := flag.Int("steps", 4320, "number of samples to generate")
	stepMs := flag.Int64("step-ms", 10_000, "sampling interval in ms")
	groups := flag.Int("groups", 4, "number of battery groups")
	seed := flag.Int64("seed", 1, "random seed")
	eventEvery := flag.Int("event-every", 60, "mean steps between alarm occurrences per group (0 disables)")
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

	// Initialize database
	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// history ends now so the default training window sees it
	start := time.Now().UnixMilli() - int64(*steps)*(*stepMs)
	batch := database.Synthetic(database.SynthOptions{
		StartMs:    start,
		StepMs:     *stepMs,
		Steps:      *steps,
		Groups:     *groups,
		Seed:       *seed,
		EventEvery: *eventEvery,
	})

	if err := db.WriteBatch(context.Background(), batch); err != nil {
		logger.Fatal("Failed to write synthetic history", zap.Error(err))
	}

	logger.Info("Seed complete",
		zap.Int("rows", batch.Len()),
		zap.Int("steps", *steps),
		zap.Int("groups", *groups),
		zap.Int("occurrences", len(batch.Occurrences)))
}
