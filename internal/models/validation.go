package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput marks detector output that breaks the data contract.
var ErrInvalidInput = errors.New("invalid detector input")

// UnmarshalJSON rejects predictions without a probability instead of
// letting them decode to zero.
func (p *ClassPrediction) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClassName   string       `json:"className"`
		Probability *float64     `json:"probability"`
		BoundingBox *BoundingBox `json:"boundingBox"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Probability == nil {
		return fmt.Errorf("%w: prediction %q has no probability", ErrInvalidInput, raw.ClassName)
	}

	p.ClassName = raw.ClassName
	p.Probability = *raw.Probability
	p.BoundingBox = raw.BoundingBox
	return nil
}

// Validate checks labels and confidences reported by the generic detector.
func (g *GenericDetectionResult) Validate() error {
	for i, obj := range g.Objects {
		if strings.TrimSpace(obj.Label) == "" {
			return fmt.Errorf("%w: object %d has no label", ErrInvalidInput, i)
		}
		if !isUnitInterval(obj.Confidence) {
			return fmt.Errorf("%w: object %d (%s) confidence %v outside [0,1]", ErrInvalidInput, i, obj.Label, obj.Confidence)
		}
	}
	return nil
}

// Normalised returns a copy with tags lower-cased and trimmed.
func (g *GenericDetectionResult) Normalised() GenericDetectionResult {
	tags := make([]string, 0, len(g.Tags))
	for _, tag := range g.Tags {
		tags = append(tags, strings.ToLower(strings.TrimSpace(tag)))
	}

	return GenericDetectionResult{
		Objects:        g.Objects,
		Tags:           tags,
		DominantColors: g.DominantColors,
	}
}

// Validate checks class names, probabilities and boxes reported by the classifier.
func (c *ClassifierResult) Validate() error {
	for i, pred := range c.Predictions {
		if strings.TrimSpace(pred.ClassName) == "" {
			return fmt.Errorf("%w: prediction %d has no class name", ErrInvalidInput, i)
		}
		if !isUnitInterval(pred.Probability) {
			return fmt.Errorf("%w: prediction %d (%s) probability %v outside [0,1]", ErrInvalidInput, i, pred.ClassName, pred.Probability)
		}
		if box := pred.BoundingBox; box != nil && (box.Width < 0 || box.Height < 0) {
			return fmt.Errorf("%w: prediction %d (%s) has a negative box size", ErrInvalidInput, i, pred.ClassName)
		}
	}
	return nil
}

func isUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
