package fusion

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// Decision is the worn verdict before color attribution.
type Decision struct {
	Worn        bool
	Probability float64
	BoundingBox *models.BoundingBox
}

// Path names which rule produced a decision.
type Path string

const (
	PathBypass  Path = "bypass"
	PathAverage Path = "average"
)

// Decide fuses evidence and aggregated probabilities.
//
//  1. Any probability >= BypassProbability: worn, probability is the max.
//  2. Otherwise the mean (0 for no predictions) is compared to the worn
//     threshold selected by evidenceMatch.
//
// The box is always the aggregation's box.
func Decide(evidenceMatch bool, agg Aggregation, t Thresholds) Decision {
	d, _ := decide(evidenceMatch, agg, t)
	return d
}

func decide(evidenceMatch bool, agg Aggregation, t Thresholds) (Decision, Path) {
	if len(agg.Probabilities) > 0 {
		if highest := floats.Max(agg.Probabilities); highest >= t.BypassProbability {
			return Decision{
				Worn:        true,
				Probability: highest,
				BoundingBox: agg.BoundingBox,
			}, PathBypass
		}
	}

	avg := mean(agg.Probabilities)

	threshold := t.WornThreshold
	if evidenceMatch {
		threshold = t.EvidenceWornThreshold
	}

	return Decision{
		Worn:        avg >= threshold,
		Probability: avg,
		BoundingBox: agg.BoundingBox,
	}, PathAverage
}

// mean of an empty list is 0.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
