package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/analysis"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/config"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/logging"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:        "0",
		GRPCPort:        "0",
		HealthPort:      "0",
		EnableEvents:    false,
		StoreAdapter:    "memory",
		MaxUploadBytes:  5 << 20,
		UploadRateLimit: 30,
		Thresholds: config.FusionThresholds{
			ObjectConfidenceFloor: 0.6,
			BypassProbability:     0.99,
			WornThreshold:         0.6,
			EvidenceWornThreshold: 0.6,
		},
	}
}

func TestStart_MinimalConfiguration(t *testing.T) {
	orch := NewOrchestrator(testConfig(), logging.Nop())

	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop()

	assert.NotNil(t, orch.GRPCAddr())
	assert.Nil(t, orch.cache)
	assert.Nil(t, orch.natsPublisher)
	assert.Nil(t, orch.detector)

	// Fusion requests work without detectors, uploads do not.
	generic := models.GenericDetectionResult{Objects: []models.DetectedObject{{Label: "person", Confidence: 0.9}}}
	result, err := orch.service.AnalyzeDetections(context.Background(), "a.jpg", generic, models.ClassifierResult{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalPeople)

	_, err = orch.service.AnalyzeImage(context.Background(), analysis.Upload{Data: []byte("x")})
	assert.ErrorIs(t, err, analysis.ErrDetectorsUnavailable)

	health := orch.healthServer.Check(context.Background())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Dependencies["store"])
}

func TestStart_UnsupportedStore(t *testing.T) {
	cfg := testConfig()
	cfg.StoreAdapter = "cassandra"
	orch := NewOrchestrator(cfg, logging.Nop())

	err := orch.Start(context.Background())

	assert.Error(t, err)
	assert.NoError(t, orch.Stop())
}

func TestStart_InvalidThresholds(t *testing.T) {
	cfg := testConfig()
	cfg.Thresholds.BypassProbability = 1.5
	orch := NewOrchestrator(cfg, logging.Nop())

	assert.Error(t, orch.Start(context.Background()))
}

func TestStart_UnreachableRedisDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	orch := NewOrchestrator(cfg, logging.Nop())

	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop()

	assert.Nil(t, orch.cache)
}
