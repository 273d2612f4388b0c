package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "wgram.v1.Projection"

// Method returns the full method path for name.
func Method(name string) string {
	return "/" + ServiceName + "/" + name
}

// ProjectionServer is the server API of the projection service.
type ProjectionServer interface {
	GetStatus(context.Context, *StatusRequest) (*Status, error)
	ListChats(context.Context, *ListChatsRequest) (*ChatList, error)
	OpenChat(context.Context, *OpenChatRequest) (*HistoryPage, error)
	GetHistory(context.Context, *HistoryRequest) (*HistoryPage, error)
	PullOlder(context.Context, *HistoryRequest) (*PullResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendResponse, error)
	Retry(context.Context, *RetryRequest) (*SendResponse, error)
	DeleteMessages(context.Context, *DeleteRequest) (*Empty, error)
	MarkRead(context.Context, *MarkReadRequest) (*Empty, error)
	ListNotifications(context.Context, *Empty) (*NotificationList, error)
	MarkNotificationsRead(context.Context, *MarkNotificationsRequest) (*Empty, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	Authenticate(context.Context, *AuthRequest) (*AuthState, error)
	Watch(*WatchRequest, WatchStream) error
}

// WatchStream is the server side of a Watch call.
type WatchStream interface {
	Send(*Event) error
	grpc.ServerStream
}

type watchStream struct {
	grpc.ServerStream
}

func (s *watchStream) Send(e *Event) error { return s.ServerStream.SendMsg(e) }

// RegisterProjectionServer registers srv on s.
func RegisterProjectionServer(s grpc.ServiceRegistrar, srv ProjectionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the projection service. Messages are JSON encoded
// with the codec registered under CodecName.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProjectionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", ProjectionServer.GetStatus),
		unary("ListChats", ProjectionServer.ListChats),
		unary("OpenChat", ProjectionServer.OpenChat),
		unary("GetHistory", ProjectionServer.GetHistory),
		unary("PullOlder", ProjectionServer.PullOlder),
		unary("SendText", ProjectionServer.SendText),
		unary("Retry", ProjectionServer.Retry),
		unary("DeleteMessages", ProjectionServer.DeleteMessages),
		unary("MarkRead", ProjectionServer.MarkRead),
		unary("ListNotifications", ProjectionServer.ListNotifications),
		unary("MarkNotificationsRead", ProjectionServer.MarkNotificationsRead),
		unary("Search", ProjectionServer.Search),
		unary("Authenticate", ProjectionServer.Authenticate),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		Handler:       watchHandler,
		ServerStreams: true,
	}},
	Metadata: "wgram/v1/projection",
}

// WatchDesc is the stream descriptor clients pass to NewStream.
var WatchDesc = &ServiceDesc.Streams[0]

func unary[Req, Resp any](name string, call func(ProjectionServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ProjectionServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Method(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ProjectionServer).Watch(in, &watchStream{stream})
}
