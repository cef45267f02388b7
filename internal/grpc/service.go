package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName           = "jobclient.v1.JobMaster"
	requestOnMasterMethod = "/" + serviceName + "/RequestOnMaster"

	// correlationKey carries the request token in gRPC metadata.
	correlationKey = "job-client-correlation-id"

	transportName = "grpc"
)

// jobMasterServer is the server side of the JobMaster service. Requests and
// responses are the protocol envelopes carried as opaque bytes.
type jobMasterServer interface {
	RequestOnMaster(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

func requestOnMasterHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(jobMasterServer).RequestOnMaster(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: requestOnMasterMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(jobMasterServer).RequestOnMaster(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var jobMasterServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*jobMasterServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestOnMaster",
			Handler:    requestOnMasterHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobclient/v1/master.proto",
}
