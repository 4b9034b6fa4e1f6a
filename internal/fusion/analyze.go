package fusion

import (
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// Evaluation records how one equipment class was decided.
type Evaluation struct {
	Class         string
	EvidenceMatch bool
	Aggregation   Aggregation
	Path          Path
	Verdict       models.EquipmentVerdict
}

// Evaluate decides every equipment class against one image's detector output.
// Tags are expected lower-cased.
func (r *Ruleset) Evaluate(generic models.GenericDetectionResult, predictions []models.ClassPrediction) []Evaluation {
	evaluations := make([]Evaluation, 0, len(r.rules))

	for _, rl := range r.rules {
		var colorEvidence StringSet
		if rl.colorEvidence {
			colorEvidence = rl.colors
		}

		match := Matches(rl.keywords, colorEvidence, generic.Objects, generic.Tags, generic.DominantColors, r.thresholds.ObjectConfidenceFloor)
		agg := Aggregate(rl.predictionTag, predictions)
		decision, path := decide(match, agg, r.thresholds)

		evaluations = append(evaluations, Evaluation{
			Class:         rl.name,
			EvidenceMatch: match,
			Aggregation:   agg,
			Path:          path,
			Verdict: models.EquipmentVerdict{
				Worn:        decision.Worn,
				Probability: decision.Probability,
				BoundingBox: decision.BoundingBox,
				Color:       DetectColor(rl.colors, generic.DominantColors),
			},
		})
	}

	return evaluations
}

// EvaluatePerson builds the record for one person.
func (r *Ruleset) EvaluatePerson(person PersonStub, generic models.GenericDetectionResult, predictions []models.ClassPrediction) models.PersonRecord {
	evaluations := r.Evaluate(generic, predictions)

	equipment := make(map[string]models.EquipmentVerdict, len(evaluations))
	for _, e := range evaluations {
		equipment[e.Class] = e.Verdict
	}

	return models.PersonRecord{
		ID:          person.ID,
		Description: person.Description,
		Equipment:   equipment,
	}
}

// Prepare validates both detector outputs and normalises tags. Any
// validation failure rejects the whole image.
func Prepare(generic models.GenericDetectionResult, classifier models.ClassifierResult) (models.GenericDetectionResult, error) {
	if err := generic.Validate(); err != nil {
		return models.GenericDetectionResult{}, err
	}
	if err := classifier.Validate(); err != nil {
		return models.GenericDetectionResult{}, err
	}
	return generic.Normalised(), nil
}

// Analyze produces the report for one image. It is pure: identical inputs
// give identical reports.
func Analyze(rules *Ruleset, generic models.GenericDetectionResult, classifier models.ClassifierResult) (*models.ImageAnalysisReport, error) {
	normalised, err := Prepare(generic, classifier)
	if err != nil {
		return nil, err
	}

	stubs := EnumeratePeople(normalised.Objects)
	people := make([]models.PersonRecord, len(stubs))
	for _, stub := range stubs {
		people[stub.Index] = rules.EvaluatePerson(stub, normalised, classifier.Predictions)
	}

	return models.NewImageAnalysisReport(people), nil
}
