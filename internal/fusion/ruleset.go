// Package fusion reconciles generic detector evidence with equipment
// classifier predictions into one verdict per person and equipment item.
//
// Everything in this package is pure: no I/O, no logging, no shared mutable
// state. A Ruleset is built once and only read afterwards, so it can be
// shared between goroutines.
package fusion

import (
	"fmt"
	"math"
	"strings"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// Default thresholds of the current ruleset.
const (
	// Object labels only count as evidence above this confidence.
	ObjectConfidenceFloor = 0.6

	// A single prediction at or above this probability decides the item alone.
	BypassProbability = 0.99

	// Mean prediction probability needed to declare an item worn.
	WornThreshold = 0.6
)

// Thresholds tunes the fusion decision without touching the algorithm.
type Thresholds struct {
	ObjectConfidenceFloor float64
	BypassProbability     float64

	// WornThreshold applies when generic evidence did not match,
	// EvidenceWornThreshold when it did. Both default to 0.6.
	WornThreshold         float64
	EvidenceWornThreshold float64
}

// DefaultThresholds returns the thresholds of the current ruleset.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ObjectConfidenceFloor: ObjectConfidenceFloor,
		BypassProbability:     BypassProbability,
		WornThreshold:         WornThreshold,
		EvidenceWornThreshold: WornThreshold,
	}
}

// Validate checks every threshold is a probability.
func (t Thresholds) Validate() error {
	values := map[string]float64{
		"object confidence floor": t.ObjectConfidenceFloor,
		"bypass probability":      t.BypassProbability,
		"worn threshold":          t.WornThreshold,
		"evidence worn threshold": t.EvidenceWornThreshold,
	}
	for name, v := range values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}
	return nil
}

// EquipmentClass describes how one equipment item is recognised.
type EquipmentClass struct {
	// Name is the key used in PersonRecord.Equipment.
	Name string

	// PredictionTag is the classifier tag aggregated for this class.
	PredictionTag string

	// Keywords matched against object labels and tags.
	Keywords []string

	// ValidColors is the palette used for color attribution.
	ValidColors []string

	// ColorEvidence makes a palette color count as presence evidence.
	ColorEvidence bool
}

// DefaultEquipmentClasses is the frozen rule table.
func DefaultEquipmentClasses() []EquipmentClass {
	return []EquipmentClass{
		{
			Name:          models.EquipmentHelmet,
			PredictionTag: "helmet",
			Keywords: []string{
				"helmet", "hard hat", "safety helmet", "yellow helmet",
				"construction helmet", "protective headgear",
			},
			ValidColors: []string{"yellow", "blue"},
		},
		{
			Name:          models.EquipmentUniform,
			PredictionTag: "uniform",
			Keywords: []string{
				"vest", "uniform", "jacket", "safety vest", "workwear",
				"coverall", "overall", "jumpsuit", "work shirt",
				"long sleeve", "protective clothing", "safety suit",
				"work uniform", "industrial uniform", "work clothes",
				"safety harness", "harness", "fall protection",
				"blue uniform", "orange vest", "reflective vest",
			},
			ValidColors:   []string{"blue", "orange", "yellow", "green", "red", "purple", "brown", "gray", "black", "white"},
			ColorEvidence: true,
		},
		{
			Name:          models.EquipmentVest,
			PredictionTag: "vest",
			Keywords: []string{
				"vest", "safety vest", "reflective vest", "orange vest",
				"high visibility vest", "hi-vis vest", "high-visibility vest",
			},
			ValidColors: []string{"orange", "yellow", "green", "red", "white"},
		},
		{
			Name:          models.EquipmentGloves,
			PredictionTag: "gloves",
			Keywords: []string{
				"gloves", "safety gloves", "hand protection", "work gloves",
				"protective gloves", "hand cover", "industrial gloves",
				"safety hand wear", "hand equipment", "hand gear",
				"black gloves", "dark gloves",
			},
			ValidColors:   []string{"black", "gray", "blue", "orange", "green", "red", "purple", "white"},
			ColorEvidence: true,
		},
		{
			Name:          models.EquipmentBoots,
			PredictionTag: "boots",
			Keywords: []string{
				"boots", "safety boots", "work boots", "footwear",
				"protective footwear", "brown boots", "construction boots",
			},
			ValidColors:   []string{"brown", "black", "blue", "orange", "green", "red", "purple", "white"},
			ColorEvidence: true,
		},
	}
}

type rule struct {
	name          string
	predictionTag string
	keywords      StringSet
	colors        StringSet
	colorEvidence bool
}

// Ruleset is the immutable mapping from equipment class to its evidence rules.
type Ruleset struct {
	rules      []rule
	thresholds Thresholds
}

// NewRuleset builds a Ruleset. Class names must be unique and non-empty.
func NewRuleset(classes []EquipmentClass, thresholds Thresholds) (*Ruleset, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(classes))
	rules := make([]rule, 0, len(classes))
	for _, c := range classes {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("equipment class has no name")
		}
		if seen[name] {
			return nil, fmt.Errorf("equipment class %q defined twice", name)
		}
		seen[name] = true

		tag := c.PredictionTag
		if tag == "" {
			tag = name
		}

		rules = append(rules, rule{
			name:          name,
			predictionTag: tag,
			keywords:      NewStringSet(c.Keywords...),
			colors:        NewStringSet(c.ValidColors...),
			colorEvidence: c.ColorEvidence,
		})
	}

	return &Ruleset{rules: rules, thresholds: thresholds}, nil
}

// DefaultRuleset returns the frozen rule table with the given thresholds.
func DefaultRuleset(thresholds Thresholds) (*Ruleset, error) {
	return NewRuleset(DefaultEquipmentClasses(), thresholds)
}

// Classes returns the equipment class names in evaluation order.
func (r *Ruleset) Classes() []string {
	names := make([]string, len(r.rules))
	for i, rl := range r.rules {
		names[i] = rl.name
	}
	return names
}

// Thresholds returns the thresholds the ruleset decides with.
func (r *Ruleset) Thresholds() Thresholds {
	return r.thresholds
}

// StringSet is a set of lower-cased strings.
type StringSet map[string]struct{}

// NewStringSet lower-cases and trims every value.
func NewStringSet(values ...string) StringSet {
	set := make(StringSet, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

// Contains reports whether v, lower-cased, is a member.
func (s StringSet) Contains(v string) bool {
	_, ok := s[strings.ToLower(v)]
	return ok
}
