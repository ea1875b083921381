package dronerpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name, matching what
// protoc-gen-go-grpc would emit from a rocktick.dronerpc.DroneService
// proto definition.
const ServiceName = "rocktick.dronerpc.DroneService"

// DroneServiceServer is implemented by the broker.
type DroneServiceServer interface {
	DroneCheckin(context.Context, *DroneCheckinRequest) (*DroneCheckinResponse, error)
	GetJobs(*GetJobsRequest, DroneService_GetJobsServer) error
	RecordExecution(DroneService_RecordExecutionServer) error
}

// DroneService_GetJobsServer is the broker's side of the GetJobs
// server-streaming method.
type DroneService_GetJobsServer interface {
	Send(*JobSpec) error
	grpc.ServerStream
}

type droneServiceGetJobsServer struct {
	grpc.ServerStream
}

func (x *droneServiceGetJobsServer) Send(m *JobSpec) error {
	return x.ServerStream.SendMsg(m)
}

// DroneService_RecordExecutionServer is the broker's side of the
// RecordExecution bidi-streaming method.
type DroneService_RecordExecutionServer interface {
	Send(*RecordExecutionResponse) error
	Recv() (*JobExecutionFrame, error)
	grpc.ServerStream
}

type droneServiceRecordExecutionServer struct {
	grpc.ServerStream
}

func (x *droneServiceRecordExecutionServer) Send(m *RecordExecutionResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *droneServiceRecordExecutionServer) Recv() (*JobExecutionFrame, error) {
	m := new(JobExecutionFrame)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func droneCheckinHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DroneCheckinRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DroneServiceServer).DroneCheckin(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/DroneCheckin"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DroneServiceServer).DroneCheckin(ctx, req.(*DroneCheckinRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getJobsHandler(srv any, stream grpc.ServerStream) error {
	in := new(GetJobsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DroneServiceServer).GetJobs(in, &droneServiceGetJobsServer{stream})
}

func recordExecutionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(DroneServiceServer).RecordExecution(&droneServiceRecordExecutionServer{stream})
}

// ServiceDesc is registered against a *grpc.Server with
// RegisterDroneServiceServer, the same shape protoc-gen-go-grpc emits.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DroneServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DroneCheckin", Handler: droneCheckinHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "GetJobs", Handler: getJobsHandler, ServerStreams: true},
		{StreamName: "RecordExecution", Handler: recordExecutionHandler, ServerStreams: true, ClientStreams: true},
	},
	Metadata: "rocktick/dronerpc.proto",
}

// RegisterDroneServiceServer registers srv's implementation against s.
func RegisterDroneServiceServer(s *grpc.Server, srv DroneServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// DroneServiceClient is implemented by the drone's RPC stub.
type DroneServiceClient interface {
	DroneCheckin(ctx context.Context, in *DroneCheckinRequest, opts ...grpc.CallOption) (*DroneCheckinResponse, error)
	GetJobs(ctx context.Context, in *GetJobsRequest, opts ...grpc.CallOption) (DroneService_GetJobsClient, error)
	RecordExecution(ctx context.Context, opts ...grpc.CallOption) (DroneService_RecordExecutionClient, error)
}

type droneServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDroneServiceClient builds a client stub over an established
// connection (the drone dials with dronerpc.Codec forced via
// grpc.WithDefaultCallOptions(grpc.ForceCodec(dronerpc.Codec))).
func NewDroneServiceClient(cc grpc.ClientConnInterface) DroneServiceClient {
	return &droneServiceClient{cc}
}

func (c *droneServiceClient) DroneCheckin(ctx context.Context, in *DroneCheckinRequest, opts ...grpc.CallOption) (*DroneCheckinResponse, error) {
	out := new(DroneCheckinResponse)
	err := c.cc.Invoke(ctx, ServiceName+"/DroneCheckin", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DroneService_GetJobsClient is the drone's side of the GetJobs stream.
type DroneService_GetJobsClient interface {
	Recv() (*JobSpec, error)
	grpc.ClientStream
}

type droneServiceGetJobsClient struct {
	grpc.ClientStream
}

func (x *droneServiceGetJobsClient) Recv() (*JobSpec, error) {
	m := new(JobSpec)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *droneServiceClient) GetJobs(ctx context.Context, in *GetJobsRequest, opts ...grpc.CallOption) (DroneService_GetJobsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], ServiceName+"/GetJobs", opts...)
	if err != nil {
		return nil, err
	}
	x := &droneServiceGetJobsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// DroneService_RecordExecutionClient is the drone's side of the
// RecordExecution bidi stream.
type DroneService_RecordExecutionClient interface {
	Send(*JobExecutionFrame) error
	Recv() (*RecordExecutionResponse, error)
	grpc.ClientStream
}

type droneServiceRecordExecutionClient struct {
	grpc.ClientStream
}

func (x *droneServiceRecordExecutionClient) Send(m *JobExecutionFrame) error {
	return x.ClientStream.SendMsg(m)
}

func (x *droneServiceRecordExecutionClient) Recv() (*RecordExecutionResponse, error) {
	m := new(RecordExecutionResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *droneServiceClient) RecordExecution(ctx context.Context, opts ...grpc.CallOption) (DroneService_RecordExecutionClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], ServiceName+"/RecordExecution", opts...)
	if err != nil {
		return nil, err
	}
	return &droneServiceRecordExecutionClient{stream}, nil
}
