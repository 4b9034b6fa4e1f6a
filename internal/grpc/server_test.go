package grpcserver_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/analysis"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/engine"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/fusion"
	grpcserver "github.com/EricMurray-e-m-dev/SafetyMonkey/internal/grpc"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/logging"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/storage"
)

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()

	rules, err := fusion.DefaultRuleset(fusion.DefaultThresholds())
	require.NoError(t, err)
	svc := analysis.NewService(engine.NewEngine(rules, logging.Nop()), storage.NewMemoryStore(), logging.Nop())

	lis := bufconn.Listen(1 << 20)
	srv := grpcserver.NewServer(svc, logging.Nop())
	go srv.Serve(lis)
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAnalyzeAndGet(t *testing.T) {
	client := grpcserver.NewAnalysisClient(startServer(t))
	ctx := context.Background()

	resp, err := client.Analyze(ctx, &grpcserver.AnalyzeRequest{
		ImageName: "crane.jpg",
		Generic: &models.GenericDetectionResult{
			Objects:        []models.DetectedObject{{Label: "person", Confidence: 0.9}},
			Tags:           []string{"Safety Vest"},
			DominantColors: []string{"Orange"},
		},
		Classifier: &models.ClassifierResult{Predictions: []models.ClassPrediction{
			{ClassName: "vest", Probability: 0.6},
			{ClassName: "vest", Probability: 0.8},
		}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, 1, resp.Analysis.TotalPeople)
	vest := resp.Analysis.People[0].Equipment["vest"]
	assert.True(t, vest.Worn)
	assert.InDelta(t, 0.7, vest.Probability, 1e-9)
	assert.Equal(t, "orange", vest.Color)

	got, err := client.GetAnalysis(ctx, &grpcserver.GetAnalysisRequest{ID: resp.Analysis.ID})
	require.NoError(t, err)
	assert.Equal(t, resp.Analysis.ImageAnalysisReport, got.Analysis.ImageAnalysisReport)
}

func TestAnalyze_ErrorCodes(t *testing.T) {
	client := grpcserver.NewAnalysisClient(startServer(t))
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{
			name: "empty request",
			call: func() error {
				_, err := client.Analyze(ctx, &grpcserver.AnalyzeRequest{})
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "probability out of range",
			call: func() error {
				_, err := client.Analyze(ctx, &grpcserver.AnalyzeRequest{
					Classifier: &models.ClassifierResult{Predictions: []models.ClassPrediction{{ClassName: "boots", Probability: 3}}},
				})
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "image without detectors",
			call: func() error {
				_, err := client.Analyze(ctx, &grpcserver.AnalyzeRequest{Image: []byte{0x89, 'P', 'N', 'G'}})
				return err
			},
			want: codes.FailedPrecondition,
		},
		{
			name: "unknown analysis",
			call: func() error {
				_, err := client.GetAnalysis(ctx, &grpcserver.GetAnalysisRequest{ID: "missing"})
				return err
			},
			want: codes.NotFound,
		},
		{
			name: "missing id",
			call: func() error {
				_, err := client.GetAnalysis(ctx, &grpcserver.GetAnalysisRequest{})
				return err
			},
			want: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestHealthServing(t *testing.T) {
	health := healthpb.NewHealthClient(startServer(t))

	resp, err := health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})

	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
