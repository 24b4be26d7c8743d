package controlplanev1

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "browserctl.controlplane.v1.ControlPlaneService"

// ControlPlaneServiceServer is the server-side contract for the service,
// equivalent to what protoc-gen-go-grpc emits for a .proto service block.
type ControlPlaneServiceServer interface {
	CreateSession(context.Context, *CreateSessionRequest) (*SessionResponse, error)
	GetSession(context.Context, *GetSessionRequest) (*SessionResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	DeleteSession(context.Context, *DeleteSessionRequest) (*DeleteSessionResponse, error)

	CreateContext(context.Context, *CreateContextRequest) (*ContextResponse, error)
	DeleteContext(context.Context, *DeleteContextRequest) (*DeleteSessionResponse, error)

	CreatePage(context.Context, *CreatePageRequest) (*PageResponse, error)
	DeletePage(context.Context, *DeletePageRequest) (*DeleteSessionResponse, error)

	Execute(context.Context, *ExecuteRequest) (*ExecuteResponse, error)

	StreamSessionEvents(*StreamSessionEventsRequest, ControlPlaneService_StreamSessionEventsServer) error
}

// UnimplementedControlPlaneServiceServer embeds into the concrete server
// so adding a method to the interface above doesn't break compilation
// until the implementation catches up.
type UnimplementedControlPlaneServiceServer struct{}

func (UnimplementedControlPlaneServiceServer) CreateSession(context.Context, *CreateSessionRequest) (*SessionResponse, error) {
	return nil, grpcUnimplemented("CreateSession")
}
func (UnimplementedControlPlaneServiceServer) GetSession(context.Context, *GetSessionRequest) (*SessionResponse, error) {
	return nil, grpcUnimplemented("GetSession")
}
func (UnimplementedControlPlaneServiceServer) ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error) {
	return nil, grpcUnimplemented("ListSessions")
}
func (UnimplementedControlPlaneServiceServer) DeleteSession(context.Context, *DeleteSessionRequest) (*DeleteSessionResponse, error) {
	return nil, grpcUnimplemented("DeleteSession")
}
func (UnimplementedControlPlaneServiceServer) CreateContext(context.Context, *CreateContextRequest) (*ContextResponse, error) {
	return nil, grpcUnimplemented("CreateContext")
}
func (UnimplementedControlPlaneServiceServer) DeleteContext(context.Context, *DeleteContextRequest) (*DeleteSessionResponse, error) {
	return nil, grpcUnimplemented("DeleteContext")
}
func (UnimplementedControlPlaneServiceServer) CreatePage(context.Context, *CreatePageRequest) (*PageResponse, error) {
	return nil, grpcUnimplemented("CreatePage")
}
func (UnimplementedControlPlaneServiceServer) DeletePage(context.Context, *DeletePageRequest) (*DeleteSessionResponse, error) {
	return nil, grpcUnimplemented("DeletePage")
}
func (UnimplementedControlPlaneServiceServer) Execute(context.Context, *ExecuteRequest) (*ExecuteResponse, error) {
	return nil, grpcUnimplemented("Execute")
}
func (UnimplementedControlPlaneServiceServer) StreamSessionEvents(*StreamSessionEventsRequest, ControlPlaneService_StreamSessionEventsServer) error {
	return grpcUnimplemented("StreamSessionEvents")
}

// ControlPlaneService_StreamSessionEventsServer is the server-side stream
// handle for StreamSessionEvents, standing in for the generated
// grpc.ServerStream wrapper.
type ControlPlaneService_StreamSessionEventsServer interface {
	Send(*SessionEventMessage) error
	grpc.ServerStream
}

type controlPlaneServiceStreamSessionEventsServer struct {
	grpc.ServerStream
}

func (s *controlPlaneServiceStreamSessionEventsServer) Send(m *SessionEventMessage) error {
	return s.ServerStream.SendMsg(m)
}

// RegisterControlPlaneServiceServer wires srv's methods into s under the
// handlers below, the hand-written equivalent of the generated
// _ControlPlaneService_serviceDesc registration call.
func RegisterControlPlaneServiceServer(s grpc.ServiceRegistrar, srv ControlPlaneServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ControlPlaneServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: handleCreateSession},
		{MethodName: "GetSession", Handler: handleGetSession},
		{MethodName: "ListSessions", Handler: handleListSessions},
		{MethodName: "DeleteSession", Handler: handleDeleteSession},
		{MethodName: "CreateContext", Handler: handleCreateContext},
		{MethodName: "DeleteContext", Handler: handleDeleteContext},
		{MethodName: "CreatePage", Handler: handleCreatePage},
		{MethodName: "DeletePage", Handler: handleDeletePage},
		{MethodName: "Execute", Handler: handleExecute},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamSessionEvents",
			Handler:       handleStreamSessionEvents,
			ServerStreams: true,
		},
	},
	Metadata: "browserctl/controlplane/v1/controlplane.proto",
}

func handleCreateSession(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).CreateSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/CreateSession"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).CreateSession(ctx, req.(*CreateSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleGetSession(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/GetSession"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).GetSession(ctx, req.(*GetSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleListSessions(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListSessionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).ListSessions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/ListSessions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).ListSessions(ctx, req.(*ListSessionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleDeleteSession(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).DeleteSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/DeleteSession"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).DeleteSession(ctx, req.(*DeleteSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleCreateContext(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateContextRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).CreateContext(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/CreateContext"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).CreateContext(ctx, req.(*CreateContextRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleDeleteContext(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteContextRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).DeleteContext(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/DeleteContext"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).DeleteContext(ctx, req.(*DeleteContextRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleCreatePage(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreatePageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).CreatePage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/CreatePage"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).CreatePage(ctx, req.(*CreatePageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleDeletePage(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeletePageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).DeletePage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/DeletePage"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).DeletePage(ctx, req.(*DeletePageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleExecute(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ExecuteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Execute"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlPlaneServiceServer).Execute(ctx, req.(*ExecuteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleStreamSessionEvents(srv interface{}, stream grpc.ServerStream) error {
	req := new(StreamSessionEventsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ControlPlaneServiceServer).StreamSessionEvents(req, &controlPlaneServiceStreamSessionEventsServer{stream})
}
