// Package client is the typed gRPC client of the daemon's projection
// service.
package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/wgram/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, api.Method(method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context) (*api.Status, error) {
	return invoke[api.Status](ctx, c, "GetStatus", &api.StatusRequest{})
}

func (c *Client) ListChats(ctx context.Context, req *api.ListChatsRequest) (*api.ChatList, error) {
	return invoke[api.ChatList](ctx, c, "ListChats", req)
}

func (c *Client) OpenChat(ctx context.Context, req *api.OpenChatRequest) (*api.HistoryPage, error) {
	return invoke[api.HistoryPage](ctx, c, "OpenChat", req)
}

func (c *Client) GetHistory(ctx context.Context, req *api.HistoryRequest) (*api.HistoryPage, error) {
	return invoke[api.HistoryPage](ctx, c, "GetHistory", req)
}

func (c *Client) PullOlder(ctx context.Context, req *api.HistoryRequest) (*api.PullResponse, error) {
	return invoke[api.PullResponse](ctx, c, "PullOlder", req)
}

func (c *Client) SendText(ctx context.Context, req *api.SendTextRequest) (*api.SendResponse, error) {
	return invoke[api.SendResponse](ctx, c, "SendText", req)
}

func (c *Client) Retry(ctx context.Context, req *api.RetryRequest) (*api.SendResponse, error) {
	return invoke[api.SendResponse](ctx, c, "Retry", req)
}

func (c *Client) DeleteMessages(ctx context.Context, req *api.DeleteRequest) error {
	_, err := invoke[api.Empty](ctx, c, "DeleteMessages", req)
	return err
}

func (c *Client) MarkRead(ctx context.Context, req *api.MarkReadRequest) error {
	_, err := invoke[api.Empty](ctx, c, "MarkRead", req)
	return err
}

func (c *Client) ListNotifications(ctx context.Context) (*api.NotificationList, error) {
	return invoke[api.NotificationList](ctx, c, "ListNotifications", &api.Empty{})
}

func (c *Client) MarkNotificationsRead(ctx context.Context, req *api.MarkNotificationsRequest) error {
	_, err := invoke[api.Empty](ctx, c, "MarkNotificationsRead", req)
	return err
}

func (c *Client) Search(ctx context.Context, req *api.SearchRequest) (*api.SearchResponse, error) {
	return invoke[api.SearchResponse](ctx, c, "Search", req)
}

func (c *Client) Authenticate(ctx context.Context, req *api.AuthRequest) (*api.AuthState, error) {
	return invoke[api.AuthState](ctx, c, "Authenticate", req)
}

// Watcher receives events from a Watch stream.
type Watcher struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event.
func (w *Watcher) Recv() (*api.Event, error) {
	e := new(api.Event)
	if err := w.stream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Watch opens an event stream. Cancel ctx to end it.
func (c *Client) Watch(ctx context.Context, req *api.WatchRequest) (*Watcher, error) {
	stream, err := c.conn.NewStream(ctx, api.WatchDesc, api.Method("Watch"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &Watcher{stream: stream}, nil
}
