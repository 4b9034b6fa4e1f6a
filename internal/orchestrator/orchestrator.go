package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/analysis"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/cache"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/config"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/engine"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/eventbus"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/fusion"
	grpcserver "github.com/EricMurray-e-m-dev/SafetyMonkey/internal/grpc"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/health"
	httpserver "github.com/EricMurray-e-m-dev/SafetyMonkey/internal/http"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/live"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/storage"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/vision"
)

// Orchestrator manages the Inspector service lifecycle.
//
// Lifecycle:
//  1. Start() - Builds the engine, store, cache, detectors, NATS, HTTP, gRPC and health servers
//  2. Run() - Starts all servers and blocks until context is cancelled
//  3. Stop() - Gracefully closes all connections and resources
//
// The orchestrator implements graceful degradation:
//   - Redis failure: every upload calls the detectors
//   - Detector credentials missing: uploads are refused, fusion requests still work
//   - NATS failure: no completed events and no fusion requests over the bus
type Orchestrator struct {
	config *config.Config
	logger *zap.SugaredLogger

	// Core components
	engine  *engine.Engine
	store   storage.Store
	service *analysis.Service
	hub     *live.Hub

	// Optional connections
	cache          *cache.Client
	detector       vision.GenericDetector
	classifier     vision.Classifier
	natsPublisher  *eventbus.Publisher
	natsSubscriber *eventbus.Subscriber

	// Servers
	httpServer   *httpserver.Server
	grpcServer   *grpcserver.Server
	grpcListener net.Listener
	healthServer *health.HealthServer
}

// NewOrchestrator creates a new Orchestrator instance with the provided configuration.
// The orchestrator is not started until Start() is called.
func NewOrchestrator(cfg *config.Config, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		config: cfg,
		logger: logger,
	}
}

// Start initializes all components. Returns an error if a required one
// (engine, store, gRPC listener) fails.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.logger.Info("Starting Inspector Orchestrator...")

	if err := o.initializeEngine(); err != nil {
		return fmt.Errorf("failed to initialize fusion engine: %w", err)
	}

	if err := o.connectStore(ctx); err != nil {
		return fmt.Errorf("failed to connect to store (required): %w", err)
	}

	o.connectCache(ctx)  // Optional - warnings logged on failure
	o.connectDetectors() // Optional - uploads refused without detectors
	o.connectPublisher() // Optional - no completed events without NATS

	o.hub = live.NewHub(o.logger)
	o.initializeService()
	o.startSubscriber()

	o.initializeHTTPServer()
	if err := o.initializeGRPCServer(); err != nil {
		return fmt.Errorf("failed to initialize gRPC server: %w", err)
	}
	o.initializeHealthServer()

	o.logger.Info("Inspector Orchestrator started successfully")
	return nil
}

func (o *Orchestrator) initializeEngine() error {
	t := o.config.Thresholds
	rules, err := fusion.DefaultRuleset(fusion.Thresholds{
		ObjectConfidenceFloor: t.ObjectConfidenceFloor,
		BypassProbability:     t.BypassProbability,
		WornThreshold:         t.WornThreshold,
		EvidenceWornThreshold: t.EvidenceWornThreshold,
	})
	if err != nil {
		return err
	}

	o.engine = engine.NewEngine(rules, o.logger)
	return nil
}

func (o *Orchestrator) connectStore(ctx context.Context) error {
	o.logger.Infof("Opening %s store", o.config.StoreAdapter)

	store, err := storage.NewStore(ctx, o.config.StoreAdapter, o.config.StoreConnectionString, o.config.StoreDatabase)
	if err != nil {
		return err
	}

	o.store = store
	return nil
}

// connectCache is optional. Without Redis every upload reaches the detectors.
func (o *Orchestrator) connectCache(ctx context.Context) {
	if o.config.RedisAddr == "" {
		o.logger.Info("REDIS_ADDR not set, report cache disabled")
		return
	}

	client, err := cache.NewClient(ctx, o.config.RedisAddr, o.config.RedisPassword, o.config.RedisDB, o.config.CacheTTL, o.logger)
	if err != nil {
		o.logger.Warnf("Failed to connect to Redis: %v", err)
		o.logger.Warn("Report cache disabled")
		return
	}

	o.cache = client
}

func (o *Orchestrator) connectDetectors() {
	if !o.config.DetectorsConfigured() {
		o.logger.Warn("Detector credentials missing, image uploads will be refused")
		return
	}

	detector, err := vision.NewComputerVisionClient(o.config.VisionEndpoint, o.config.VisionKey, o.config.DetectorTimeout)
	if err != nil {
		o.logger.Warnf("Failed to create generic detector: %v", err)
		return
	}

	classifier, err := vision.NewCustomVisionClient(o.config.CustomVisionEndpoint, o.config.CustomVisionKey,
		o.config.CustomVisionProjectID, o.config.CustomVisionIteration, o.config.DetectorTimeout)
	if err != nil {
		o.logger.Warnf("Failed to create equipment classifier: %v", err)
		return
	}

	o.detector = detector
	o.classifier = classifier
	o.logger.Info("Detectors configured")
}

func (o *Orchestrator) connectPublisher() {
	if !o.config.EnableEvents {
		o.logger.Info("Event bus disabled")
		return
	}

	o.logger.Infof("Connecting to NATS at: %s", o.config.NatsURL)

	publisher, err := eventbus.NewPublisher(o.config.NatsURL, o.logger)
	if err != nil {
		o.logger.Warnf("Failed to create NATS publisher: %v", err)
		return
	}
	o.natsPublisher = publisher
}

func (o *Orchestrator) initializeService() {
	opts := []analysis.Option{analysis.WithNotifier(o.hub)}

	if o.cache != nil {
		opts = append(opts, analysis.WithCache(o.cache))
	}
	if o.detector != nil && o.classifier != nil {
		opts = append(opts, analysis.WithDetectors(o.detector, o.classifier))
	}
	if o.natsPublisher != nil {
		opts = append(opts, analysis.WithNotifier(o.natsPublisher))
	}

	o.service = analysis.NewService(o.engine, o.store, o.logger, opts...)
}

// startSubscriber is created after the service because it needs the service instance.
func (o *Orchestrator) startSubscriber() {
	if !o.config.EnableEvents {
		return
	}

	subscriber, err := eventbus.NewSubscriber(o.config.NatsURL, o.service, o.config.DetectorTimeout, o.logger)
	if err != nil {
		o.logger.Warnf("Failed to create NATS subscriber: %v", err)
		return
	}

	if err := subscriber.Start(); err != nil {
		o.logger.Warnf("Failed to start NATS subscriber: %v", err)
		subscriber.Close()
		return
	}

	o.natsSubscriber = subscriber
}

func (o *Orchestrator) initializeHTTPServer() {
	o.httpServer = httpserver.NewServer(o.service, http.HandlerFunc(o.hub.ServeWS), httpserver.Options{
		MaxUploadBytes:  o.config.MaxUploadBytes,
		UploadRateLimit: o.config.UploadRateLimit,
	}, o.logger)
}

func (o *Orchestrator) initializeGRPCServer() error {
	listener, err := net.Listen("tcp", ":"+o.config.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", o.config.GRPCPort, err)
	}
	o.grpcListener = listener
	o.grpcServer = grpcserver.NewServer(o.service, o.logger)
	return nil
}

func (o *Orchestrator) initializeHealthServer() {
	o.healthServer = health.NewHealthServer("inspector")
	o.healthServer.Register("store", true, o.store.Ping)

	if o.cache != nil {
		o.healthServer.Register("redis", false, o.cache.Ping)
	}
	if o.natsPublisher != nil {
		publisher := o.natsPublisher
		o.healthServer.Register("nats", false, func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		})
	}
}

// GRPCAddr returns the address the gRPC server is bound to.
func (o *Orchestrator) GRPCAddr() net.Addr {
	if o.grpcListener == nil {
		return nil
	}
	return o.grpcListener.Addr()
}

// Run starts all servers and blocks until the context is cancelled or a server fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("Starting servers...")

	go o.hub.Run(ctx)

	errChan := make(chan error, 3)

	go func() {
		if err := o.httpServer.Start(":" + o.config.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := o.grpcServer.Serve(o.grpcListener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		o.logger.Infof("Health check listening on: %s", o.config.HealthPort)
		if err := o.healthServer.Start(":" + o.config.HealthPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("health server error: %w", err)
		}
	}()

	o.logger.Info("Inspector ready")

	select {
	case <-ctx.Done():
		o.logger.Info("Shutdown signal received")
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully closes all connections and releases resources.
func (o *Orchestrator) Stop() error {
	o.logger.Info("Stopping Orchestrator...")

	if o.httpServer != nil {
		if err := o.httpServer.Stop(); err != nil {
			o.logger.Warnf("Error stopping HTTP server: %v", err)
		}
	}

	if o.grpcServer != nil {
		o.logger.Info("Stopping gRPC server...")
		o.grpcServer.GracefulStop()
	} else if o.grpcListener != nil {
		o.grpcListener.Close()
	}

	if o.healthServer != nil {
		if err := o.healthServer.Shutdown(context.Background()); err != nil {
			o.logger.Warnf("Error stopping health server: %v", err)
		}
	}

	if o.natsSubscriber != nil {
		o.natsSubscriber.Close()
	}

	if o.natsPublisher != nil {
		o.natsPublisher.Close()
	}

	if o.cache != nil {
		if err := o.cache.Close(); err != nil {
			o.logger.Warnf("Error closing Redis client: %v", err)
		}
	}

	if o.store != nil {
		if err := o.store.Close(); err != nil {
			o.logger.Warnf("Error closing store: %v", err)
		}
	}

	o.logger.Info("Orchestrator stopped successfully")
	return nil
}
