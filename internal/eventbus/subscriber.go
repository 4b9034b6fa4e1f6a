package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

// RequestHandler fuses detector outputs into a stored analysis.
type RequestHandler interface {
	AnalyzeDetections(ctx context.Context, imageName string, generic models.GenericDetectionResult, classifier models.ClassifierResult) (*models.Analysis, error)
}

type Subscriber struct {
	conn         *nats.Conn
	subscription *nats.Subscription
	handler      RequestHandler
	timeout      time.Duration
	logger       *zap.SugaredLogger
}

func NewSubscriber(natsURL string, handler RequestHandler, timeout time.Duration, logger *zap.SugaredLogger) (*Subscriber, error) {
	conn, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	logger.Infof("Inspector (Sub) connected to NATS at %s", natsURL)

	return &Subscriber{
		conn:    conn,
		handler: handler,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Start begins answering fusion requests. Replicas share the queue group so
// each request is handled once.
func (s *Subscriber) Start() error {
	var err error

	s.subscription, err = s.conn.QueueSubscribe(SubjectAnalysisRequested, requestQueueGroup, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		reply := s.HandleRequest(ctx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			s.logger.Warnf("Failed to respond to fusion request: %v", err)
		}
	})
	if err != nil {
		return err
	}

	if err := s.conn.Flush(); err != nil {
		s.logger.Warnf("Subscription to '%s' not yet confirmed: %v", SubjectAnalysisRequested, err)
	}

	s.logger.Infof("Subscribed to '%s'", SubjectAnalysisRequested)
	return nil
}

// HandleRequest decodes one request, runs it and returns the encoded reply.
func (s *Subscriber) HandleRequest(ctx context.Context, data []byte) []byte {
	s.logger.Debugf("Received fusion request (%d bytes)", len(data))

	var req AnalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warnf("Failed to unmarshal fusion request: %v", err)
		return encodeReply(AnalysisReply{Error: "invalid request: " + err.Error()})
	}

	analysis, err := s.handler.AnalyzeDetections(ctx, req.ImageName, req.Generic, req.Classifier)
	if err != nil {
		s.logger.Warnf("Fusion request failed: %v", err)
		return encodeReply(AnalysisReply{Error: err.Error()})
	}

	return encodeReply(AnalysisReply{Analysis: analysis})
}

func encodeReply(reply AnalysisReply) []byte {
	data, err := json.Marshal(reply)
	if err != nil {
		// Only reachable with NaN probabilities, which validation rejects.
		data, _ = json.Marshal(AnalysisReply{Error: "failed to encode reply"})
	}
	return data
}

func (s *Subscriber) Close() {
	if s.subscription != nil {
		s.subscription.Unsubscribe()
	}

	if s.conn != nil {
		s.conn.Close()
		s.logger.Info("Inspector (Sub) disconnected from NATS")
	}
}

func (s *Subscriber) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}
