// Package grpcserver exposes the analysis service over gRPC with a JSON
// codec, alongside the standard health service.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Base64 inflates uploads by a third, so leave room above the upload limit.
const maxMessageBytes = 16 << 20

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *zap.SugaredLogger
}

func NewServer(analyzer Analyzer, logger *zap.SugaredLogger) *Server {
	s := &Server{
		health: health.NewServer(),
		logger: logger,
	}

	s.grpcServer = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageBytes),
		grpc.UnaryInterceptor(s.logUnary),
	)
	s.grpcServer.RegisterService(&AnalysisServiceDesc, NewAnalysisServer(analyzer))
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return s
}

// Serve blocks until the listener fails or the server stops.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Infof("gRPC server listening on %s", lis.Addr())
	return s.grpcServer.Serve(lis)
}

// GracefulStop reports NOT_SERVING, then waits for in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func (s *Server) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	if err != nil {
		s.logger.Warnw("gRPC call failed",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
			"error", err,
		)
	} else {
		s.logger.Debugw("gRPC call", "method", info.FullMethod, "duration", time.Since(start))
	}

	return resp, err
}
