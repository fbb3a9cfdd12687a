package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"time"

	"stationcast/internal/config"
	"stationcast/internal/database"
	"stationcast/internal/dataset"
	"stationcast/internal/pipeline"
	"stationcast/internal/stream"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config")
	modelPath := flag.String("model", "", "bundle path (default prediction.model_path)")
	outPath := flag.String("out", "", "output path (default prediction.output_path)")
	publish := flag.Bool("publish", false, "publish the prediction to the Redis stream")
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
	if *modelPath == "" {
		*modelPath = cfg.Prediction.ModelPath
	}
	if *outPath == "" {
		*outPath = cfg.Prediction.OutputPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bundle, err := pipeline.LoadBundle(*modelPath)
	if err != nil {
		logger.Fatal("Failed to load model bundle", zap.String("path", *modelPath), zap.Error(err))
	}

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	ds, err := dataset.Load(ctx, db, pipeline.Window(cfg.WindowHours(), time.Now()), logger)
	if err != nil {
		logger.Fatal("Failed to load dataset", zap.Error(err))
	}

	pred := (&pipeline.Predictor{Bundle: bundle, ModelPath: *modelPath}).Predict(ds)

	data, err := json.MarshalIndent(pred, "", "  ")
	if err != nil {
		logger.Fatal("Failed to serialize prediction", zap.Error(err))
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		logger.Fatal("Failed to create output dir", zap.Error(err))
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		logger.Fatal("Failed to write prediction", zap.Error(err))
	}
	logger.Info("Wrote prediction",
		zap.String("path", *outPath),
		zap.Int64("ts", pred.TS),
		zap.Int("groups", len(pred.BMS)))

	if !*publish && !cfg.Redis.Enabled {
		return
	}

	// the prediction is already on disk; a publish failure is not fatal
	client, err := stream.Dial(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return
	}
	defer client.Close()

	if _, err := stream.NewPublisher(client, cfg.Redis.Stream, logger).Publish(ctx, pred); err != nil {
		logger.Error("Failed to publish prediction", zap.Error(err))
	}
}
