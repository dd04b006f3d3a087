package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "clinicsync.v1.Control"

// Method names of the Control service.
const (
	MethodGetStatus         = "GetStatus"
	MethodListQueue         = "ListQueue"
	MethodDrain             = "Drain"
	MethodRefresh           = "Refresh"
	MethodSignIn            = "SignIn"
	MethodSignOut           = "SignOut"
	MethodSwitchBranch      = "SwitchBranch"
	MethodSendChat          = "SendChat"
	MethodListNotifications = "ListNotifications"
	MethodSetVisible        = "SetVisible"
)

// ControlServer is the daemon's control surface. Every message is a
// protobuf Struct carrying the JSON form of the types in this package.
type ControlServer interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListQueue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Drain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignOut(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SwitchBranch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendChat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListNotifications(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetVisible(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(ControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			cs := srv.(ControlServer)
			if interceptor == nil {
				return call(cs, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(cs, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the Control service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodGetStatus, ControlServer.GetStatus),
		method(MethodListQueue, ControlServer.ListQueue),
		method(MethodDrain, ControlServer.Drain),
		method(MethodRefresh, ControlServer.Refresh),
		method(MethodSignIn, ControlServer.SignIn),
		method(MethodSignOut, ControlServer.SignOut),
		method(MethodSwitchBranch, ControlServer.SwitchBranch),
		method(MethodSendChat, ControlServer.SendChat),
		method(MethodListNotifications, ControlServer.ListNotifications),
		method(MethodSetVisible, ControlServer.SetVisible),
	},
	Metadata: "clinicsync/v1/control",
}

// RegisterControlServer registers srv on s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}
