package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/logging"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

type fakeHandler struct {
	gotName       string
	gotGeneric    models.GenericDetectionResult
	gotClassifier models.ClassifierResult
	err           error
}

func (f *fakeHandler) AnalyzeDetections(ctx context.Context, imageName string, generic models.GenericDetectionResult, classifier models.ClassifierResult) (*models.Analysis, error) {
	f.gotName = imageName
	f.gotGeneric = generic
	f.gotClassifier = classifier
	if f.err != nil {
		return nil, f.err
	}
	return &models.Analysis{ID: "req-1", ImageName: imageName, ImageAnalysisReport: *models.NewImageAnalysisReport(nil)}, nil
}

func decodeReply(t *testing.T, data []byte) AnalysisReply {
	t.Helper()
	var reply AnalysisReply
	require.NoError(t, json.Unmarshal(data, &reply))
	return reply
}

func TestHandleRequest_Success(t *testing.T) {
	handler := &fakeHandler{}
	sub := &Subscriber{handler: handler, logger: logging.Nop()}

	req := `{"image_name":"dock.jpg",
		"generic":{"objects":[{"label":"person","confidence":0.9}],"tags":["helmet"],"dominantColors":["Yellow"]},
		"classifier":{"predictions":[{"className":"helmet","probability":0.8}]}}`

	reply := decodeReply(t, sub.HandleRequest(context.Background(), []byte(req)))

	assert.Empty(t, reply.Error)
	require.NotNil(t, reply.Analysis)
	assert.Equal(t, "req-1", reply.Analysis.ID)
	assert.Equal(t, "dock.jpg", handler.gotName)
	assert.Len(t, handler.gotGeneric.Objects, 1)
	assert.Equal(t, 0.8, handler.gotClassifier.Predictions[0].Probability)
}

func TestHandleRequest_InvalidJSON(t *testing.T) {
	sub := &Subscriber{handler: &fakeHandler{}, logger: logging.Nop()}

	reply := decodeReply(t, sub.HandleRequest(context.Background(), []byte("{not json")))

	assert.Nil(t, reply.Analysis)
	assert.Contains(t, reply.Error, "invalid request")
}

func TestHandleRequest_MissingProbabilityRejected(t *testing.T) {
	handler := &fakeHandler{}
	sub := &Subscriber{handler: handler, logger: logging.Nop()}

	reply := decodeReply(t, sub.HandleRequest(context.Background(),
		[]byte(`{"classifier":{"predictions":[{"className":"vest"}]}}`)))

	assert.Contains(t, reply.Error, "invalid request")
	assert.Empty(t, handler.gotName)
}

func TestHandleRequest_HandlerError(t *testing.T) {
	sub := &Subscriber{handler: &fakeHandler{err: errors.New("store unavailable")}, logger: logging.Nop()}

	reply := decodeReply(t, sub.HandleRequest(context.Background(), []byte(`{"image_name":"x"}`)))

	assert.Nil(t, reply.Analysis)
	assert.Equal(t, "store unavailable", reply.Error)
}

func TestNonCompliantPeople(t *testing.T) {
	report := models.ImageAnalysisReport{People: []models.PersonRecord{
		{ID: "1", Equipment: map[string]models.EquipmentVerdict{"helmet": {Worn: true}, "boots": {Worn: false}}},
		{ID: "2", Equipment: map[string]models.EquipmentVerdict{"helmet": {Worn: true}}},
		{ID: "3", Equipment: map[string]models.EquipmentVerdict{"vest": {Worn: false}, "gloves": {Worn: false}}},
	}}

	assert.Equal(t, 2, NonCompliantPeople(report))
}

func TestRequestReplyOverNATS(t *testing.T) {
	probe, err := nats.Connect(nats.DefaultURL, nats.Timeout(500*time.Millisecond))
	if err != nil {
		t.Skip("NATS not available, skipping test")
	}
	probe.Close()

	logger := logging.Nop()
	sub, err := NewSubscriber(nats.DefaultURL, &fakeHandler{}, time.Second, logger)
	require.NoError(t, err)
	defer sub.Close()
	require.NoError(t, sub.Start())

	pub, err := NewPublisher(nats.DefaultURL, logger)
	require.NoError(t, err)
	defer pub.Close()

	completed := make(chan *nats.Msg, 1)
	watch, err := pub.conn.ChanSubscribe(SubjectAnalysisCompleted, completed)
	require.NoError(t, err)
	defer watch.Unsubscribe()

	msg, err := pub.conn.Request(SubjectAnalysisRequested, []byte(`{"image_name":"nats.png"}`), 2*time.Second)
	require.NoError(t, err)
	reply := decodeReply(t, msg.Data)
	require.NotNil(t, reply.Analysis)
	assert.Equal(t, "nats.png", reply.Analysis.ImageName)

	require.NoError(t, pub.PublishAnalysis(reply.Analysis))
	select {
	case m := <-completed:
		var event AnalysisCompletedEvent
		require.NoError(t, json.Unmarshal(m.Data, &event))
		assert.Equal(t, "req-1", event.AnalysisID)
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s event received", SubjectAnalysisCompleted)
	}
}
