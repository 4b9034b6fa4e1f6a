package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/config"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/logging"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/orchestrator"
)

// main is the entry point for the Inspector service.
//
// The Inspector is responsible for:
//   - Accepting site photos over HTTP and gRPC
//   - Calling the generic detector and the equipment classifier
//   - Fusing both into per-person PPE verdicts
//   - Storing reports and streaming them to live viewers
//   - Answering fusion requests and publishing completed analyses on NATS
//
// Lifecycle:
//  1. Load configuration from environment variables
//  2. Build the logger
//  3. Start the orchestrator (engine, store, optional cache/detectors/NATS)
//  4. Serve HTTP, gRPC and health until SIGINT or SIGTERM
//  5. Gracefully close all connections on shutdown
func main() {
	// Load configuration from environment variables and .env file
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("SafetyMonkey Inspector starting...")
	logger.Infow("Configuration loaded",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"health_port", cfg.HealthPort,
		"store", cfg.StoreAdapter,
		"events", cfg.EnableEvents,
		"cache", cfg.RedisAddr != "",
		"detectors", cfg.DetectorsConfigured(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := orchestrator.NewOrchestrator(cfg, logger)
	if err := orch.Start(ctx); err != nil {
		logger.Fatalf("Failed to start orchestrator: %v", err)
	}

	// Listen for shutdown signals (Ctrl+C, Docker stop, k8s termination)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() {
		runErr <- orch.Run(ctx)
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Orchestrator error: %v", err)
		}
	}

	cancel()

	if err := orch.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}

	logger.Info("Inspector stopped successfully")
}
