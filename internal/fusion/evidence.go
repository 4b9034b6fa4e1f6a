package fusion

import (
	"strings"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// Matches reports whether the generic detector saw the item.
//
// An object counts when its label is a keyword and its confidence is above
// floor. A tag counts when it equals a keyword. When colorEvidence is non-nil,
// any dominant color in it also counts.
func Matches(keywords StringSet, colorEvidence StringSet, objects []models.DetectedObject, tags []string, colors []string, floor float64) bool {
	for _, obj := range objects {
		if keywords.Contains(obj.Label) && obj.Confidence > floor {
			return true
		}
	}

	if len(keywords) > 0 && len(tags) > 0 {
		present := NewStringSet(tags...)
		for keyword := range keywords {
			if _, ok := present[keyword]; ok {
				return true
			}
		}
	}

	if colorEvidence != nil {
		for _, color := range colors {
			if colorEvidence.Contains(color) {
				return true
			}
		}
	}

	return false
}

// DetectColor returns the first dominant color in validColors, lower-cased,
// or "unknown".
func DetectColor(validColors StringSet, colors []string) string {
	for _, color := range colors {
		if validColors.Contains(color) {
			return strings.ToLower(color)
		}
	}
	return models.UnknownColor
}
