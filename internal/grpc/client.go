package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// AnalysisClient calls the analysis service over an existing connection.
type AnalysisClient struct {
	conn grpc.ClientConnInterface
}

func NewAnalysisClient(conn grpc.ClientConnInterface) *AnalysisClient {
	return &AnalysisClient{conn: conn}
}

func (c *AnalysisClient) Analyze(ctx context.Context, req *AnalyzeRequest, opts ...grpc.CallOption) (*AnalysisResponse, error) {
	out := new(AnalysisResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Analyze", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AnalysisClient) GetAnalysis(ctx context.Context, req *GetAnalysisRequest, opts ...grpc.CallOption) (*AnalysisResponse, error) {
	out := new(AnalysisResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/GetAnalysis", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
