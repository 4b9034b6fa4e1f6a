// Package vision calls the two remote detectors and converts their responses
// into fusion inputs.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// GenericDetector returns objects, tags and dominant colors for an image.
type GenericDetector interface {
	Detect(ctx context.Context, image []byte) (*models.GenericDetectionResult, error)
}

// Classifier returns per-class equipment predictions for an image.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*models.ClassifierResult, error)
}

var (
	// ErrNotConfigured - endpoint or key missing
	ErrNotConfigured = errors.New("vision: detector not configured")
)

// StatusError is returned when a detector answers with a non-2xx status.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

const maxErrorBody = 512

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// postImage sends the raw image bytes and decodes the JSON response into out.
func postImage(ctx context.Context, client *http.Client, service, url string, headers map[string]string, image []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("create %s request: %w", service, err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Service: service, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}

	return nil
}
