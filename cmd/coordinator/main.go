// Command coordinator issues presigned upload slots and reports on the
// clip processing artifacts of uploaded lectures.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studyslice/studyslice/internal/config"
	"github.com/studyslice/studyslice/internal/coordinator"
	"github.com/studyslice/studyslice/internal/db"
	"github.com/studyslice/studyslice/internal/logging"
)

const slotSweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting studyslice coordinator",
		"version", config.Version,
		"bucket", cfg.S3Bucket(),
		"region", cfg.S3Region(),
		"prefix", cfg.S3Prefix(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(ctx, db.Options{
		Path:   cfg.DBPath(),
		Logger: logging.WithComponent(logger, "db"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	store, err := coordinator.NewS3Store(ctx, cfg.S3Bucket(), cfg.S3Region(), logging.WithComponent(logger, "s3"))
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	repo := coordinator.NewRepository(database)
	go coordinator.SweepSlots(ctx, repo, slotSweepInterval, logger)

	server := coordinator.NewServer(coordinator.ServerConfig{
		Port:       cfg.Port(),
		Store:      store,
		Repository: repo,
		Prefix:     cfg.S3Prefix(),
		SlotExpiry: cfg.SlotExpiry(),
		Version:    config.Version,
		Logger:     logger,
		StartTime:  startTime,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
