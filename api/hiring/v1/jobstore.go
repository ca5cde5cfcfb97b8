// Package hiringv1 describes the hiring.v1.JobStore gRPC service. Messages
// travel as google.protobuf.Struct values so the service needs no generated
// code; the typed wrappers below convert them to and from domain models.
package hiringv1

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gartstein/hiring/internal/hiring/models"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "hiring.v1.JobStore"

	LoadJobsMethod = "/" + ServiceName + "/LoadJobs"
	SaveJobsMethod = "/" + ServiceName + "/SaveJobs"
)

// JobStoreServer is the server API for the JobStore service.
type JobStoreServer interface {
	LoadJobs(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SaveJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterJobStoreServer(s grpc.ServiceRegistrar, srv JobStoreServer) {
	s.RegisterService(&JobStoreServiceDesc, srv)
}

var JobStoreServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JobStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadJobs", Handler: loadJobsHandler},
		{MethodName: "SaveJobs", Handler: saveJobsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hiring/v1/jobstore.proto",
}

func loadJobsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobStoreServer).LoadJobs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LoadJobsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JobStoreServer).LoadJobs(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func saveJobsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobStoreServer).SaveJobs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SaveJobsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JobStoreServer).SaveJobs(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// JobStoreClient calls the JobStore service.
type JobStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewJobStoreClient(cc grpc.ClientConnInterface) *JobStoreClient {
	return &JobStoreClient{cc: cc}
}

func (c *JobStoreClient) LoadJobs(ctx context.Context, opts ...grpc.CallOption) (*LoadJobsResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LoadJobsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	resp := new(LoadJobsResponse)
	if err := FromStruct(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *JobStoreClient) SaveJobs(ctx context.Context, req *SaveJobsRequest, opts ...grpc.CallOption) (*SaveJobsResponse, error) {
	in, err := ToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SaveJobsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(SaveJobsResponse)
	if err := FromStruct(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// DegradedHeader is set to "true" on collection reads served while the
// primary store was unreachable.
const DegradedHeader = "X-Collection-Degraded"

type LoadJobsResponse struct {
	Jobs     []models.Job `json:"jobs"`
	Version  string       `json:"version"`
	Degraded bool         `json:"degraded,omitempty"`
}

type SaveJobsRequest struct {
	Jobs []models.Job `json:"jobs"`
	// ExpectedVersion makes the save conditional when set.
	ExpectedVersion string `json:"expectedVersion,omitempty"`
}

type SaveJobsResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Version string `json:"version"`
}

// ToStruct converts a message to its Struct form through its JSON encoding.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return structpb.NewStruct(fields)
}

// FromStruct decodes a Struct into v through its JSON encoding.
func FromStruct(s *structpb.Struct, v any) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
