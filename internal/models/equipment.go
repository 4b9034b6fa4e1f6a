package models

import "time"

// Equipment classes evaluated for every detected person.
const (
	EquipmentHelmet  = "helmet"
	EquipmentUniform = "uniform"
	EquipmentVest    = "vest"
	EquipmentGloves  = "gloves"
	EquipmentBoots   = "boots"
)

// UnknownColor is reported when no dominant color belongs to a class palette.
const UnknownColor = "unknown"

// BoundingBox is a region reported by the classifier, normalised to the image size.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectedObject is one object returned by the generic detector.
type DetectedObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ClassPrediction is one region scored by the equipment classifier.
// A class can appear several times with different boxes.
type ClassPrediction struct {
	ClassName   string       `json:"className"`
	Probability float64      `json:"probability"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// GenericDetectionResult is everything the generic detector reports for one image.
type GenericDetectionResult struct {
	Objects        []DetectedObject `json:"objects"`
	Tags           []string         `json:"tags"`
	DominantColors []string         `json:"dominantColors"`
}

// ClassifierResult is everything the equipment classifier reports for one image.
type ClassifierResult struct {
	Predictions []ClassPrediction `json:"predictions"`
}

// EquipmentVerdict is the fused decision for one item on one person.
type EquipmentVerdict struct {
	Worn        bool         `json:"worn"`
	Probability float64      `json:"probability"`
	BoundingBox *BoundingBox `json:"boundingBox"`
	Color       string       `json:"color"`
}

// PersonRecord holds the verdicts for one detected person.
type PersonRecord struct {
	ID          string                      `json:"id"`
	Description string                      `json:"desc"`
	Equipment   map[string]EquipmentVerdict `json:"equipment"`
}

// ImageAnalysisReport is the engine output for one image.
type ImageAnalysisReport struct {
	People      []PersonRecord `json:"people"`
	TotalPeople int            `json:"totalPeople"`
}

// NewImageAnalysisReport keeps TotalPeople in step with People.
func NewImageAnalysisReport(people []PersonRecord) *ImageAnalysisReport {
	if people == nil {
		people = []PersonRecord{}
	}
	return &ImageAnalysisReport{
		People:      people,
		TotalPeople: len(people),
	}
}

// Analysis is a stored report together with the image it was computed for.
type Analysis struct {
	ID        string    `json:"id"`
	ImageName string    `json:"imageName"`
	ImageHash string    `json:"imageHash,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	ImageAnalysisReport
}
