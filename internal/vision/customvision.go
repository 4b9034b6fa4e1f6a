package vision

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

const customVisionService = "custom vision"

// CustomVisionClient is the equipment classifier backed by an Azure Custom
// Vision object detection project.
type CustomVisionClient struct {
	endpoint  string
	key       string
	projectID string
	iteration string
	client    *http.Client
}

type predictionResponse struct {
	Predictions []struct {
		TagName     string              `json:"tagName"`
		Probability *float64            `json:"probability"`
		BoundingBox *models.BoundingBox `json:"boundingBox"`
	} `json:"predictions"`
}

func NewCustomVisionClient(endpoint, key, projectID, iteration string, timeout time.Duration) (*CustomVisionClient, error) {
	if endpoint == "" || key == "" || projectID == "" || iteration == "" {
		return nil, fmt.Errorf("%w: custom vision endpoint, key, project and iteration are required", ErrNotConfigured)
	}

	return &CustomVisionClient{
		endpoint:  strings.TrimRight(endpoint, "/"),
		key:       key,
		projectID: projectID,
		iteration: iteration,
		client:    newHTTPClient(timeout),
	}, nil
}

// Classify returns every region the classifier scored. A prediction without
// a probability is a contract violation and fails the call.
func (c *CustomVisionClient) Classify(ctx context.Context, image []byte) (*models.ClassifierResult, error) {
	endpoint := fmt.Sprintf("%s/customvision/v3.0/Prediction/%s/detect/iterations/%s/image",
		c.endpoint, url.PathEscape(c.projectID), url.PathEscape(c.iteration))

	var resp predictionResponse
	if err := postImage(ctx, c.client, customVisionService, endpoint,
		map[string]string{"Prediction-Key": c.key}, image, &resp); err != nil {
		return nil, err
	}

	result := &models.ClassifierResult{
		Predictions: make([]models.ClassPrediction, 0, len(resp.Predictions)),
	}
	for i, p := range resp.Predictions {
		if p.Probability == nil {
			return nil, fmt.Errorf("%w: %s prediction %d (%s) has no probability", models.ErrInvalidInput, customVisionService, i, p.TagName)
		}
		result.Predictions = append(result.Predictions, models.ClassPrediction{
			ClassName:   p.TagName,
			Probability: *p.Probability,
			BoundingBox: p.BoundingBox,
		})
	}

	return result, nil
}
