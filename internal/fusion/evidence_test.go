package fusion_test

import (
	"testing"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/fusion"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
	"github.com/stretchr/testify/assert"
)

var helmetKeywords = fusion.NewStringSet("helmet", "hard hat")

func TestMatches_ObjectAboveFloor(t *testing.T) {
	objects := []models.DetectedObject{{Label: "Helmet", Confidence: 0.61}}

	assert.True(t, fusion.Matches(helmetKeywords, nil, objects, nil, nil, 0.6))
}

func TestMatches_ObjectAtFloorIsIgnored(t *testing.T) {
	objects := []models.DetectedObject{{Label: "helmet", Confidence: 0.6}}

	assert.False(t, fusion.Matches(helmetKeywords, nil, objects, nil, nil, 0.6))
}

func TestMatches_ObjectWithOtherLabel(t *testing.T) {
	objects := []models.DetectedObject{{Label: "person", Confidence: 0.99}}

	assert.False(t, fusion.Matches(helmetKeywords, nil, objects, nil, nil, 0.6))
}

func TestMatches_TagPresence(t *testing.T) {
	tags := []string{"outdoor", "hard hat", "hard hat"}

	assert.True(t, fusion.Matches(helmetKeywords, nil, nil, tags, nil, 0.6))
}

func TestMatches_ColorOnlyWhenClassUsesColorEvidence(t *testing.T) {
	colors := []string{"Orange"}
	palette := fusion.NewStringSet("orange", "yellow")

	assert.True(t, fusion.Matches(helmetKeywords, palette, nil, nil, colors, 0.6))
	assert.False(t, fusion.Matches(helmetKeywords, nil, nil, nil, colors, 0.6))
}

func TestMatches_EmptyInputs(t *testing.T) {
	assert.False(t, fusion.Matches(helmetKeywords, fusion.NewStringSet("black"), nil, nil, nil, 0.6))
}

func TestDetectColor_FirstPaletteMember(t *testing.T) {
	palette := fusion.NewStringSet("orange", "yellow")

	assert.Equal(t, "orange", fusion.DetectColor(palette, []string{"magenta", "ORANGE", "yellow"}))
}

func TestDetectColor_Unknown(t *testing.T) {
	palette := fusion.NewStringSet("orange")

	assert.Equal(t, "unknown", fusion.DetectColor(palette, []string{"magenta"}))
	assert.Equal(t, "unknown", fusion.DetectColor(palette, nil))
}
