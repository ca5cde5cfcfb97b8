package handlers

import (
	"context"

	pb "github.com/gartstein/hiring/api/hiring/v1"
	"github.com/gartstein/hiring/internal/hiring/auth"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// JobStoreHandler exposes the job collection over gRPC.
type JobStoreHandler struct {
	service HiringController
	logger  *zap.Logger
}

func NewJobStoreHandler(service HiringController, logger *zap.Logger) *JobStoreHandler {
	return &JobStoreHandler{
		service: service,
		logger:  logger.Named("grpc_handler"),
	}
}

// LoadJobs returns the whole collection and its version.
func (h *JobStoreHandler) LoadJobs(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	col, err := h.service.ListJobs(ctx)
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	out, err := pb.ToStruct(&pb.LoadJobsResponse{Jobs: col.Jobs, Version: col.Version, Degraded: col.Degraded})
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return out, nil
}

// SaveJobs replaces the collection, conditionally when expectedVersion is set.
func (h *JobStoreHandler) SaveJobs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in pb.SaveJobsRequest
	if err := pb.FromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.Jobs == nil {
		return nil, status.Error(codes.InvalidArgument, "jobs are required")
	}

	version, err := h.service.SaveJobs(ctx, in.Jobs, in.ExpectedVersion)
	if err != nil {
		h.logger.Warn("Save jobs failed", zap.String("subject", auth.Subject(ctx)), zap.Error(err))
		return nil, h.mapServiceError(err)
	}
	h.logger.Info("Jobs saved",
		zap.String("subject", auth.Subject(ctx)),
		zap.Int("count", len(in.Jobs)),
	)

	out, err := pb.ToStruct(&pb.SaveJobsResponse{Success: true, Count: len(in.Jobs), Version: version})
	if err != nil {
		return nil, h.mapServiceError(err)
	}
	return out, nil
}
