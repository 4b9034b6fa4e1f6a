package vision

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

const computerVisionService = "computer vision"

// ComputerVisionClient is the generic detector backed by the Azure
// Computer Vision analyze API.
type ComputerVisionClient struct {
	endpoint string
	key      string
	client   *http.Client
}

type analyzeResponse struct {
	Objects []struct {
		Object     string   `json:"object"`
		Confidence *float64 `json:"confidence"`
	} `json:"objects"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
	Color *struct {
		DominantColors []string `json:"dominantColors"`
	} `json:"color"`
}

func NewComputerVisionClient(endpoint, key string, timeout time.Duration) (*ComputerVisionClient, error) {
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("%w: computer vision endpoint and key are required", ErrNotConfigured)
	}

	return &ComputerVisionClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		client:   newHTTPClient(timeout),
	}, nil
}

// Detect runs the object+color and tag analyses concurrently and merges them.
func (c *ComputerVisionClient) Detect(ctx context.Context, image []byte) (*models.GenericDetectionResult, error) {
	var objectResult, tagResult analyzeResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.analyze(gctx, image, "Objects,Color", &objectResult)
	})
	g.Go(func() error {
		return c.analyze(gctx, image, "Tags,Description", &tagResult)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &models.GenericDetectionResult{
		Objects:        make([]models.DetectedObject, 0, len(objectResult.Objects)),
		Tags:           make([]string, 0, len(tagResult.Tags)),
		DominantColors: []string{},
	}

	for _, obj := range objectResult.Objects {
		// Missing confidence never counts as evidence.
		confidence := 0.0
		if obj.Confidence != nil {
			confidence = *obj.Confidence
		}
		result.Objects = append(result.Objects, models.DetectedObject{
			Label:      obj.Object,
			Confidence: confidence,
		})
	}

	for _, tag := range tagResult.Tags {
		result.Tags = append(result.Tags, strings.ToLower(tag.Name))
	}

	if objectResult.Color != nil {
		result.DominantColors = append(result.DominantColors, objectResult.Color.DominantColors...)
	}

	return result, nil
}

func (c *ComputerVisionClient) analyze(ctx context.Context, image []byte, features string, out *analyzeResponse) error {
	query := url.Values{}
	query.Set("visualFeatures", features)
	endpoint := c.endpoint + "/vision/v3.2/analyze?" + query.Encode()

	return postImage(ctx, c.client, computerVisionService, endpoint,
		map[string]string{"Ocp-Apim-Subscription-Key": c.key}, image, out)
}
