package fusion_test

import (
	"testing"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/fusion"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAggregate_NoMatchingPredictions(t *testing.T) {
	preds := []models.ClassPrediction{{ClassName: "helmet", Probability: 0.9}}

	agg := fusion.Aggregate("boots", preds)

	assert.Empty(t, agg.Probabilities)
	assert.Nil(t, agg.BoundingBox)
}

func TestAggregate_CollectsEveryMatchCaseInsensitive(t *testing.T) {
	low := &models.BoundingBox{Left: 0.1}
	high := &models.BoundingBox{Left: 0.5}
	preds := []models.ClassPrediction{
		{ClassName: "Helmet", Probability: 0.4, BoundingBox: low},
		{ClassName: "vest", Probability: 0.95},
		{ClassName: "HELMET", Probability: 0.8, BoundingBox: high},
		{ClassName: "helmet", Probability: 0.4},
	}

	agg := fusion.Aggregate("helmet", preds)

	assert.Equal(t, []float64{0.4, 0.8, 0.4}, agg.Probabilities)
	assert.Same(t, high, agg.BoundingBox)
}

func TestAggregate_TieKeepsFirstBox(t *testing.T) {
	first := &models.BoundingBox{Left: 0.1}
	second := &models.BoundingBox{Left: 0.2}
	preds := []models.ClassPrediction{
		{ClassName: "gloves", Probability: 0.7, BoundingBox: first},
		{ClassName: "gloves", Probability: 0.7, BoundingBox: second},
	}

	agg := fusion.Aggregate("gloves", preds)

	assert.Same(t, first, agg.BoundingBox)
}

func TestAggregate_BestPredictionWithoutBox(t *testing.T) {
	preds := []models.ClassPrediction{
		{ClassName: "boots", Probability: 0.2, BoundingBox: &models.BoundingBox{}},
		{ClassName: "boots", Probability: 0.6},
	}

	agg := fusion.Aggregate("boots", preds)

	assert.Nil(t, agg.BoundingBox)
}
