package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the Inspector service.
type Config struct {
	// Service ports
	HTTPPort   string
	GRPCPort   string
	HealthPort string

	// Event bus
	NatsURL      string
	EnableEvents bool

	// Report cache (Redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Report store
	StoreAdapter          string // memory, postgres, mysql, sqlite, mongodb
	StoreConnectionString string
	StoreDatabase         string // mongodb database name

	// Generic detector (objects, tags, colors)
	VisionEndpoint string
	VisionKey      string

	// Equipment classifier
	CustomVisionEndpoint  string
	CustomVisionKey       string
	CustomVisionProjectID string
	CustomVisionIteration string

	DetectorTimeout time.Duration

	// Upload limits
	MaxUploadBytes  int64
	UploadRateLimit int // requests per minute per IP

	// Logging
	LogLevel  string
	LogFormat string

	// Fusion thresholds
	Thresholds FusionThresholds
}

// FusionThresholds tunes the fusion decision.
type FusionThresholds struct {
	ObjectConfidenceFloor float64 // object label counts as evidence above this
	BypassProbability     float64 // one prediction at or above this decides alone
	WornThreshold         float64 // mean probability needed without generic evidence
	EvidenceWornThreshold float64 // mean probability needed with generic evidence
}

var storeAdapters = map[string]bool{
	"memory":   true,
	"postgres": true,
	"mysql":    true,
	"sqlite":   true,
	"mongodb":  true,
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	// Try multiple .env locations
	envPaths := []string{
		".env",
		"../.env",
		"/app/.env", // Docker
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded config from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Printf("No .env file found, using environment variables")
	}

	config := &Config{
		HTTPPort:   getEnvOrDefault("HTTP_PORT", "8080"),
		GRPCPort:   getEnvOrDefault("GRPC_PORT", "50051"),
		HealthPort: getEnvOrDefault("HEALTH_PORT", "8081"),

		NatsURL:      getEnvOrDefault("NATS_URL", "nats://localhost:4222"),
		EnableEvents: getEnvOrDefault("ENABLE_EVENTS", "true") == "true",

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseIntOrDefault("REDIS_DB", 0),

		StoreAdapter:          getEnvOrDefault("STORE_ADAPTER", "memory"),
		StoreConnectionString: os.Getenv("STORE_CONNECTION_STRING"),
		StoreDatabase:         getEnvOrDefault("STORE_DATABASE", "safetymonkey"),

		VisionEndpoint: os.Getenv("VISION_ENDPOINT"),
		VisionKey:      os.Getenv("VISION_KEY"),

		CustomVisionEndpoint:  os.Getenv("CUSTOM_VISION_ENDPOINT"),
		CustomVisionKey:       os.Getenv("CUSTOM_VISION_KEY"),
		CustomVisionProjectID: os.Getenv("CUSTOM_VISION_PROJECT_ID"),
		CustomVisionIteration: os.Getenv("CUSTOM_VISION_ITERATION"),

		MaxUploadBytes:  int64(parseIntOrDefault("MAX_UPLOAD_BYTES", 5<<20)),
		UploadRateLimit: parseIntOrDefault("UPLOAD_RATE_LIMIT", 30),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "console"),

		Thresholds: FusionThresholds{
			ObjectConfidenceFloor: parseFloatOrDefault("FUSION_OBJECT_CONFIDENCE_FLOOR", 0.6),
			BypassProbability:     parseFloatOrDefault("FUSION_BYPASS_PROBABILITY", 0.99),
			WornThreshold:         parseFloatOrDefault("FUSION_WORN_THRESHOLD", 0.6),
		},
	}
	config.Thresholds.EvidenceWornThreshold = parseFloatOrDefault("FUSION_EVIDENCE_WORN_THRESHOLD", config.Thresholds.WornThreshold)

	var err error
	if config.CacheTTL, err = time.ParseDuration(getEnvOrDefault("CACHE_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if config.DetectorTimeout, err = time.ParseDuration(getEnvOrDefault("DETECTOR_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("invalid DETECTOR_TIMEOUT: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}

	if c.GRPCPort == "" {
		return fmt.Errorf("GRPC_PORT is required")
	}

	if !storeAdapters[c.StoreAdapter] {
		return fmt.Errorf("STORE_ADAPTER %q is not supported", c.StoreAdapter)
	}

	if c.StoreAdapter != "memory" && c.StoreConnectionString == "" {
		return fmt.Errorf("STORE_CONNECTION_STRING is required for STORE_ADAPTER=%s", c.StoreAdapter)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if c.DetectorTimeout <= 0 {
		return fmt.Errorf("DETECTOR_TIMEOUT must be positive")
	}

	// Validate threshold ranges
	thresholds := map[string]float64{
		"FUSION_OBJECT_CONFIDENCE_FLOOR": c.Thresholds.ObjectConfidenceFloor,
		"FUSION_BYPASS_PROBABILITY":      c.Thresholds.BypassProbability,
		"FUSION_WORN_THRESHOLD":          c.Thresholds.WornThreshold,
		"FUSION_EVIDENCE_WORN_THRESHOLD": c.Thresholds.EvidenceWornThreshold,
	}
	for key, value := range thresholds {
		if math.IsNaN(value) || value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}

	return nil
}

// DetectorsConfigured reports whether both remote detectors have credentials.
func (c *Config) DetectorsConfigured() bool {
	return c.VisionEndpoint != "" && c.VisionKey != "" &&
		c.CustomVisionEndpoint != "" && c.CustomVisionKey != "" &&
		c.CustomVisionProjectID != "" && c.CustomVisionIteration != ""
}

// Helper functions
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
