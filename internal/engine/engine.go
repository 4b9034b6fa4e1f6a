package engine

import (
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/fusion"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// Engine runs the fusion ruleset over detector outputs and logs around it.
type Engine struct {
	rules  *fusion.Ruleset
	logger *zap.SugaredLogger
}

// Create a new fusion engine
func NewEngine(rules *fusion.Ruleset, logger *zap.SugaredLogger) *Engine {
	t := rules.Thresholds()
	for _, class := range rules.Classes() {
		logger.Debugf("Registered equipment class: %s", class)
	}
	logger.Infow("Fusion engine initialised",
		"classes", len(rules.Classes()),
		"object_confidence_floor", t.ObjectConfidenceFloor,
		"bypass_probability", t.BypassProbability,
		"worn_threshold", t.WornThreshold,
		"evidence_worn_threshold", t.EvidenceWornThreshold,
	)

	return &Engine{
		rules:  rules,
		logger: logger,
	}
}

// Analyze builds the report for one image. People are evaluated in parallel
// and written by index, so the report is identical to a sequential run.
func (e *Engine) Analyze(generic models.GenericDetectionResult, classifier models.ClassifierResult) (*models.ImageAnalysisReport, error) {
	normalised, err := fusion.Prepare(generic, classifier)
	if err != nil {
		e.logger.Warnw("Rejected detector output", "error", err)
		return nil, err
	}

	if e.logger.Desugar().Core().Enabled(zapcore.DebugLevel) {
		e.logInputs(normalised, classifier)
	}

	stubs := fusion.EnumeratePeople(normalised.Objects)
	people := make([]models.PersonRecord, len(stubs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, stub := range stubs {
		stub := stub
		g.Go(func() error {
			people[stub.Index] = e.rules.EvaluatePerson(stub, normalised, classifier.Predictions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := models.NewImageAnalysisReport(people)

	if report.TotalPeople == 0 {
		e.logger.Infof("No people detected (%d objects)", len(normalised.Objects))
	} else {
		e.logger.Infof("Analysed %d people across %d equipment classes", report.TotalPeople, len(e.rules.Classes()))
	}

	return report, nil
}

// Returns the equipment classes evaluated for every person
func (e *Engine) GetRegisteredEquipment() []string {
	return e.rules.Classes()
}

func (e *Engine) logInputs(generic models.GenericDetectionResult, classifier models.ClassifierResult) {
	e.logger.Debugw("Detector output",
		"objects", generic.Objects,
		"tags", generic.Tags,
		"dominant_colors", generic.DominantColors,
		"predictions", len(classifier.Predictions),
	)

	for _, ev := range e.rules.Evaluate(generic, classifier.Predictions) {
		e.logger.Debugw("Equipment evaluated",
			"class", ev.Class,
			"evidence_match", ev.EvidenceMatch,
			"probabilities", ev.Aggregation.Probabilities,
			"path", ev.Path,
			"worn", ev.Verdict.Worn,
			"probability", ev.Verdict.Probability,
			"color", ev.Verdict.Color,
		)
	}
}
