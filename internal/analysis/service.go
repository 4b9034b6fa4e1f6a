// Package analysis runs an image through both detectors and the fusion
// engine, then stores and announces the result.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/engine"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/storage"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/vision"
)

var (
	// ErrDetectorsUnavailable - no detector credentials configured
	ErrDetectorsUnavailable = errors.New("detectors not configured")
	// ErrDetection wraps any failure or contract violation from a detector
	ErrDetection = errors.New("detector call failed")
)

// ReportCache remembers analyses by image hash.
type ReportCache interface {
	GetAnalysis(ctx context.Context, imageHash string) (*models.Analysis, bool, error)
	SetAnalysis(ctx context.Context, imageHash string, analysis *models.Analysis) error
}

// Notifier is told about every stored analysis.
type Notifier interface {
	PublishAnalysis(analysis *models.Analysis) error
}

// Upload is an image received from a client.
type Upload struct {
	Name string
	Data []byte
}

type Service struct {
	engine     *engine.Engine
	detector   vision.GenericDetector
	classifier vision.Classifier
	store      storage.Store
	cache      ReportCache
	notifiers  []Notifier
	logger     *zap.SugaredLogger

	now   func() time.Time
	newID func() string
}

type Option func(*Service)

func WithCache(cache ReportCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifiers = append(s.notifiers, n) }
}

// WithDetectors sets the remote detectors. Without them only
// AnalyzeDetections and the read operations work.
func WithDetectors(detector vision.GenericDetector, classifier vision.Classifier) Option {
	return func(s *Service) {
		s.detector = detector
		s.classifier = classifier
	}
}

func NewService(eng *engine.Engine, store storage.Store, logger *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		engine: eng,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashImage returns the hex SHA-256 used as the cache key.
func HashImage(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AnalyzeImage detects, fuses, stores and announces one uploaded image.
// The same bytes uploaded again return the cached analysis.
func (s *Service) AnalyzeImage(ctx context.Context, upload Upload) (*models.Analysis, error) {
	if s.detector == nil || s.classifier == nil {
		return nil, ErrDetectorsUnavailable
	}

	hash := HashImage(upload.Data)

	if s.cache != nil {
		cached, ok, err := s.cache.GetAnalysis(ctx, hash)
		if err != nil {
			s.logger.Warnw("Cache lookup failed", "image_hash", hash, "error", err)
		} else if ok {
			s.logger.Infow("Serving cached analysis", "analysis_id", cached.ID, "image_hash", hash)
			return cached, nil
		}
	}

	var (
		generic    *models.GenericDetectionResult
		classifier *models.ClassifierResult
	)

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		generic, err = s.detector.Detect(gctx, upload.Data)
		return err
	})
	g.Go(func() error {
		var err error
		classifier, err = s.classifier.Classify(gctx, upload.Data)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Errorw("Detector call failed", "image", upload.Name, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	s.logger.Debugw("Detectors finished", "image", upload.Name, "elapsed", time.Since(started))

	report, err := s.engine.Analyze(*generic, *classifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}

	analysis, err := s.record(ctx, upload.Name, hash, report)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetAnalysis(ctx, hash, analysis); err != nil {
			s.logger.Warnw("Failed to cache analysis", "analysis_id", analysis.ID, "error", err)
		}
	}

	return analysis, nil
}

// AnalyzeDetections fuses detector outputs supplied by the caller. Invalid
// input is reported as models.ErrInvalidInput.
func (s *Service) AnalyzeDetections(ctx context.Context, imageName string, generic models.GenericDetectionResult, classifier models.ClassifierResult) (*models.Analysis, error) {
	report, err := s.engine.Analyze(generic, classifier)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, imageName, "", report)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Analysis, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]models.Analysis, error) {
	return s.store.List(ctx, limit)
}

func (s *Service) record(ctx context.Context, imageName, hash string, report *models.ImageAnalysisReport) (*models.Analysis, error) {
	analysis := &models.Analysis{
		ID:                  s.newID(),
		ImageName:           imageName,
		ImageHash:           hash,
		CreatedAt:           s.now(),
		ImageAnalysisReport: *report,
	}

	if err := s.store.Save(ctx, analysis); err != nil {
		s.logger.Errorw("Failed to store analysis", "analysis_id", analysis.ID, "error", err)
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}

	for _, n := range s.notifiers {
		if err := n.PublishAnalysis(analysis); err != nil {
			s.logger.Warnw("Failed to publish analysis", "analysis_id", analysis.ID, "error", err)
		}
	}

	s.logger.Infow("Analysis completed",
		"analysis_id", analysis.ID,
		"image", imageName,
		"total_people", analysis.TotalPeople,
	)

	return analysis, nil
}
