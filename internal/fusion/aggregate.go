package fusion

import (
	"strings"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// Aggregation is every classifier probability reported for one class, plus
// the box of the most probable prediction.
type Aggregation struct {
	Probabilities []float64
	BoundingBox   *models.BoundingBox
}

// Aggregate collects the predictions whose class name matches className,
// ignoring case. Probabilities are kept in input order and not deduplicated.
// The box comes from the highest probability; ties keep the first.
func Aggregate(className string, predictions []models.ClassPrediction) Aggregation {
	agg := Aggregation{Probabilities: []float64{}}
	best := -1.0

	for _, pred := range predictions {
		if !strings.EqualFold(pred.ClassName, className) {
			continue
		}

		agg.Probabilities = append(agg.Probabilities, pred.Probability)
		if pred.Probability > best {
			best = pred.Probability
			agg.BoundingBox = pred.BoundingBox
		}
	}

	return agg
}
