package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/analysis"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/storage"
)

const ServiceName = "safetymonkey.AnalysisService"

// AnalyzeRequest carries either raw image bytes or detector outputs that
// were obtained elsewhere. Image takes precedence.
type AnalyzeRequest struct {
	ImageName  string                         `json:"image_name"`
	Image      []byte                         `json:"image,omitempty"`
	Generic    *models.GenericDetectionResult `json:"generic,omitempty"`
	Classifier *models.ClassifierResult       `json:"classifier,omitempty"`
}

type GetAnalysisRequest struct {
	ID string `json:"id"`
}

type AnalysisResponse struct {
	Analysis *models.Analysis `json:"analysis"`
}

// AnalysisServiceServer is the server API for the analysis service.
type AnalysisServiceServer interface {
	Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalysisResponse, error)
	GetAnalysis(ctx context.Context, req *GetAnalysisRequest) (*AnalysisResponse, error)
}

// Analyzer is the part of analysis.Service the gRPC API needs.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, upload analysis.Upload) (*models.Analysis, error)
	AnalyzeDetections(ctx context.Context, imageName string, generic models.GenericDetectionResult, classifier models.ClassifierResult) (*models.Analysis, error)
	Get(ctx context.Context, id string) (*models.Analysis, error)
}

type AnalysisServer struct {
	analyzer Analyzer
}

func NewAnalysisServer(analyzer Analyzer) *AnalysisServer {
	return &AnalysisServer{analyzer: analyzer}
}

func (s *AnalysisServer) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalysisResponse, error) {
	var (
		result *models.Analysis
		err    error
	)

	switch {
	case len(req.Image) > 0:
		result, err = s.analyzer.AnalyzeImage(ctx, analysis.Upload{Name: req.ImageName, Data: req.Image})
	case req.Generic != nil || req.Classifier != nil:
		var generic models.GenericDetectionResult
		var classifier models.ClassifierResult
		if req.Generic != nil {
			generic = *req.Generic
		}
		if req.Classifier != nil {
			classifier = *req.Classifier
		}
		result, err = s.analyzer.AnalyzeDetections(ctx, req.ImageName, generic, classifier)
	default:
		return nil, status.Error(codes.InvalidArgument, "image or detector outputs required")
	}

	if err != nil {
		return nil, toStatus(err)
	}
	return &AnalysisResponse{Analysis: result}, nil
}

func (s *AnalysisServer) GetAnalysis(ctx context.Context, req *GetAnalysisRequest) (*AnalysisResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	result, err := s.analyzer.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AnalysisResponse{Analysis: result}, nil
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, analysis.ErrDetection):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, models.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, analysis.ErrDetectorsUnavailable):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func analyzeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AnalyzeRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if interceptor == nil {
		return srv.(AnalysisServiceServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/Analyze",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AnalysisServiceServer).Analyze(ctx, req.(*AnalyzeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getAnalysisHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetAnalysisRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if interceptor == nil {
		return srv.(AnalysisServiceServer).GetAnalysis(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/GetAnalysis",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AnalysisServiceServer).GetAnalysis(ctx, req.(*GetAnalysisRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var AnalysisServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalysisServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
		{MethodName: "GetAnalysis", Handler: getAnalysisHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "safetymonkey/analysis",
}
