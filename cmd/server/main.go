package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"stationcast/internal/config"
	"stationcast/internal/database"
	"stationcast/internal/server"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config")
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

	httpServer := server.NewServer(db, cfg.Prediction.ModelPath, cfg.WindowHours(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() { errs <- httpServer.Start(cfg.Server.Addr) }()

	select {
	case err := <-errs:
		if err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
	}
}
