package cache

import (
	"context"
	"fmt"

	pb "github.com/gartstein/hiring/api/hiring/v1"
	e "github.com/gartstein/hiring/internal/hiring/errors"
	"github.com/gartstein/hiring/internal/hiring/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCRemote reconciles against the JobStore gRPC service.
type GRPCRemote struct {
	client *pb.JobStoreClient
	token  string
	logger *zap.Logger
}

// NewGRPCRemote calls JobStore over cc. A non-empty token is sent as bearer
// metadata on saves.
func NewGRPCRemote(cc grpc.ClientConnInterface, token string, logger *zap.Logger) *GRPCRemote {
	return &GRPCRemote{
		client: pb.NewJobStoreClient(cc),
		token:  token,
		logger: logger.Named("grpc_remote"),
	}
}

func (r *GRPCRemote) Load(ctx context.Context) (models.Collection, error) {
	resp, err := r.client.LoadJobs(ctx)
	if err != nil {
		return models.Collection{}, grpcError(err)
	}
	return models.Collection{Jobs: resp.Jobs, Version: resp.Version, Degraded: resp.Degraded}, nil
}

func (r *GRPCRemote) Save(ctx context.Context, jobs []models.Job, expectedVersion string) (string, error) {
	if jobs == nil {
		jobs = []models.Job{}
	}
	if r.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+r.token)
	}

	resp, err := r.client.SaveJobs(ctx, &pb.SaveJobsRequest{Jobs: jobs, ExpectedVersion: expectedVersion})
	if err != nil {
		return "", grpcError(err)
	}
	r.logger.Debug("Collection pushed", zap.Int("jobs", resp.Count), zap.String("version", resp.Version))
	return resp.Version, nil
}

// grpcError maps a JobStore status back onto the error taxonomy.
func grpcError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", e.ErrStorageUnavailable, err)
	}
	switch st.Code() {
	case codes.Aborted:
		return fmt.Errorf("%w: %s", e.ErrVersionConflict, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", e.ErrReadOnly, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", e.ErrInvalidInput, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", e.ErrNotFound, st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", e.ErrMisconfigured, st.Message())
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return fmt.Errorf("%w: %s: %s", e.ErrStorageUnavailable, st.Code(), st.Message())
	}
}
