// Package eventbus connects the inspector to NATS: completed analyses are
// published, and fusion requests carrying detector outputs are answered.
package eventbus

import (
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

const (
	SubjectAnalysisCompleted = "analysis.completed"
	SubjectAnalysisRequested = "analysis.requested"

	requestQueueGroup = "inspector"
)

// AnalysisCompletedEvent is published after every stored analysis.
type AnalysisCompletedEvent struct {
	AnalysisID         string                     `json:"analysis_id"`
	ImageName          string                     `json:"image_name"`
	TotalPeople        int                        `json:"total_people"`
	NonCompliantPeople int                        `json:"non_compliant_people"`
	Report             models.ImageAnalysisReport `json:"report"`
	Timestamp          int64                      `json:"timestamp"`
}

// AnalysisRequest asks for a fusion run over detector outputs that were
// already obtained elsewhere.
type AnalysisRequest struct {
	ImageName  string                        `json:"image_name"`
	Generic    models.GenericDetectionResult `json:"generic"`
	Classifier models.ClassifierResult       `json:"classifier"`
}

// AnalysisReply answers an AnalysisRequest. Exactly one field is set.
type AnalysisReply struct {
	Analysis *models.Analysis `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// NonCompliantPeople counts people missing at least one equipment item.
func NonCompliantPeople(report models.ImageAnalysisReport) int {
	count := 0
	for _, person := range report.People {
		for _, verdict := range person.Equipment {
			if !verdict.Worn {
				count++
				break
			}
		}
	}
	return count
}
