package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/cache"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/logging"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) *cache.Client {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	client, err := cache.NewClient(ctx, "localhost:6379", "", 1, time.Minute, logging.Nop()) // Use DB 1 for testing
	if err != nil {
		t.Skip("Redis not available, skipping test")
	}
	return client
}

func TestKey(t *testing.T) {
	assert.Equal(t, "analysis:image:deadbeef", cache.Key("deadbeef"))
}

func TestSetAndGetAnalysis(t *testing.T) {
	client := setupTestClient(t)
	defer client.Close()

	ctx := context.Background()
	hash := "test-hash-001"
	analysis := &models.Analysis{
		ID:        "a-1",
		ImageName: "yard.png",
		ImageHash: hash,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ImageAnalysisReport: *models.NewImageAnalysisReport([]models.PersonRecord{{
			ID:          "1",
			Description: "person 1",
			Equipment: map[string]models.EquipmentVerdict{
				"helmet": {Worn: true, Probability: 0.99, Color: "white"},
			},
		}}),
	}

	require.NoError(t, client.SetAnalysis(ctx, hash, analysis))

	got, ok, err := client.GetAnalysis(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, analysis.ID, got.ID)
	assert.Equal(t, analysis.ImageAnalysisReport, got.ImageAnalysisReport)

	ttl := client.GetClient().TTL(ctx, cache.Key(hash)).Val()
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	// Clean up
	client.GetClient().Del(ctx, cache.Key(hash))
}

func TestGetAnalysis_Miss(t *testing.T) {
	client := setupTestClient(t)
	defer client.Close()

	got, ok, err := client.GetAnalysis(context.Background(), "never-stored")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestGetAnalysis_CorruptEntryIsMiss(t *testing.T) {
	client := setupTestClient(t)
	defer client.Close()

	ctx := context.Background()
	client.GetClient().Set(ctx, cache.Key("corrupt"), "not json", time.Minute)
	defer client.GetClient().Del(ctx, cache.Key("corrupt"))

	_, ok, err := client.GetAnalysis(ctx, "corrupt")

	require.NoError(t, err)
	assert.False(t, ok)
}
