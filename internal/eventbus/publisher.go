package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// Publisher publishes events to NATS
type Publisher struct {
	conn   *nats.Conn
	logger *zap.SugaredLogger
}

func connect(natsURL string) (*nats.Conn, error) {
	return nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
}

// NewPublisher creates a new event bus publisher
func NewPublisher(natsURL string, logger *zap.SugaredLogger) (*Publisher, error) {
	conn, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	logger.Infof("Inspector (Pub) connected to NATS at %s", natsURL)

	return &Publisher{
		conn:   conn,
		logger: logger,
	}, nil
}

// PublishAnalysis publishes a finished analysis to the "analysis.completed" topic
func (p *Publisher) PublishAnalysis(analysis *models.Analysis) error {
	event := AnalysisCompletedEvent{
		AnalysisID:         analysis.ID,
		ImageName:          analysis.ImageName,
		TotalPeople:        analysis.TotalPeople,
		NonCompliantPeople: NonCompliantPeople(analysis.ImageAnalysisReport),
		Report:             analysis.ImageAnalysisReport,
		Timestamp:          analysis.CreatedAt.Unix(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(SubjectAnalysisCompleted, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debugw("Published analysis to event bus",
		"analysis_id", event.AnalysisID,
		"total_people", event.TotalPeople,
		"non_compliant_people", event.NonCompliantPeople,
	)

	return nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		p.logger.Info("Inspector (Pub) disconnected from NATS")
	}
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
