package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "submitter.v1.SubmissionService"

// SubmissionServiceServer is the server API. Messages are protobuf well-known
// types, so clients need no generated stubs.
type SubmissionServiceServer interface {
	CreateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkJobPaid(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ProcessJob(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ProcessPendingJobs(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	GetJob(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListJobs(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListResults(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ExportResults(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

func unary[Req proto.Message](method string, newReq func() Req, call func(SubmissionServiceServer, context.Context, Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SubmissionServiceServer), ctx, req.(Req))
			}
			if interceptor == nil {
				return h(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, h)
		},
	}
}

func newStruct() *structpb.Struct        { return &structpb.Struct{} }
func newString() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }
func newEmpty() *emptypb.Empty           { return &emptypb.Empty{} }

var SubmissionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SubmissionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateProfile", newStruct, func(s SubmissionServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.CreateProfile(ctx, in)
		}),
		unary("CreateJob", newStruct, func(s SubmissionServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.CreateJob(ctx, in)
		}),
		unary("MarkJobPaid", newString, func(s SubmissionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.MarkJobPaid(ctx, in)
		}),
		unary("ProcessJob", newString, func(s SubmissionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.ProcessJob(ctx, in)
		}),
		unary("ProcessPendingJobs", newEmpty, func(s SubmissionServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.ProcessPendingJobs(ctx, in)
		}),
		unary("GetJob", newString, func(s SubmissionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.GetJob(ctx, in)
		}),
		unary("ListJobs", newString, func(s SubmissionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.ListJobs(ctx, in)
		}),
		unary("ListResults", newString, func(s SubmissionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.ListResults(ctx, in)
		}),
		unary("ExportResults", newString, func(s SubmissionServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.ExportResults(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "submitter/v1/submission.proto",
}

func RegisterSubmissionServiceServer(s grpc.ServiceRegistrar, srv SubmissionServiceServer) {
	s.RegisterService(&SubmissionServiceDesc, srv)
}

// SubmissionServiceClient calls the service over any gRPC connection.
type SubmissionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSubmissionServiceClient(cc grpc.ClientConnInterface) *SubmissionServiceClient {
	return &SubmissionServiceClient{cc: cc}
}

func invoke[Resp proto.Message](ctx context.Context, cc grpc.ClientConnInterface, method string, in proto.Message, out Resp, opts ...grpc.CallOption) (Resp, error) {
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		var zero Resp
		return zero, err
	}
	return out, nil
}

func (c *SubmissionServiceClient) CreateProfile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "CreateProfile", in, newStruct(), opts...)
}

func (c *SubmissionServiceClient) CreateJob(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "CreateJob", in, newStruct(), opts...)
}

func (c *SubmissionServiceClient) MarkJobPaid(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "MarkJobPaid", in, newStruct(), opts...)
}

func (c *SubmissionServiceClient) ProcessJob(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke(ctx, c.cc, "ProcessJob", in, newEmpty(), opts...)
}

func (c *SubmissionServiceClient) ProcessPendingJobs(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke(ctx, c.cc, "ProcessPendingJobs", in, newEmpty(), opts...)
}

func (c *SubmissionServiceClient) GetJob(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "GetJob", in, newStruct(), opts...)
}

func (c *SubmissionServiceClient) ListJobs(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "ListJobs", in, newStruct(), opts...)
}

func (c *SubmissionServiceClient) ListResults(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "ListResults", in, newStruct(), opts...)
}

func (c *SubmissionServiceClient) ExportResults(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke(ctx, c.cc, "ExportResults", in, &wrapperspb.BytesValue{}, opts...)
}
