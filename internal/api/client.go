package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Control service of a running daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req, reply any) error {
	in := &structpb.Struct{}
	if req != nil {
		var err error
		if in, err = encode(req); err != nil {
			return err
		}
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	return decode(out, reply)
}

func (c *Client) GetStatus(ctx context.Context) (StatusReply, error) {
	var r StatusReply
	err := c.call(ctx, MethodGetStatus, nil, &r)
	return r, err
}

func (c *Client) ListQueue(ctx context.Context, limit int) (QueueReply, error) {
	var r QueueReply
	err := c.call(ctx, MethodListQueue, QueueRequest{Limit: limit}, &r)
	return r, err
}

func (c *Client) Drain(ctx context.Context) (DrainReply, error) {
	var r DrainReply
	err := c.call(ctx, MethodDrain, nil, &r)
	return r, err
}

func (c *Client) Refresh(ctx context.Context) (Ack, error) {
	var r Ack
	err := c.call(ctx, MethodRefresh, nil, &r)
	return r, err
}

func (c *Client) SignIn(ctx context.Context, token, userID string) (Ack, error) {
	var r Ack
	err := c.call(ctx, MethodSignIn, SignInRequest{Token: token, UserID: userID}, &r)
	return r, err
}

func (c *Client) SignOut(ctx context.Context) (Ack, error) {
	var r Ack
	err := c.call(ctx, MethodSignOut, nil, &r)
	return r, err
}

func (c *Client) SwitchBranch(ctx context.Context, branchID string) (Ack, error) {
	var r Ack
	err := c.call(ctx, MethodSwitchBranch, BranchRequest{BranchID: branchID}, &r)
	return r, err
}

func (c *Client) SendChat(ctx context.Context, clientID, content string) (Ack, error) {
	var r Ack
	err := c.call(ctx, MethodSendChat, ChatRequest{ClientID: clientID, Content: content}, &r)
	return r, err
}

func (c *Client) ListNotifications(ctx context.Context, unreadOnly bool) (NotificationsReply, error) {
	var r NotificationsReply
	err := c.call(ctx, MethodListNotifications, NotificationsRequest{UnreadOnly: unreadOnly}, &r)
	return r, err
}

func (c *Client) SetVisible(ctx context.Context, visible bool) (Ack, error) {
	var r Ack
	err := c.call(ctx, MethodSetVisible, VisibleRequest{Visible: visible}, &r)
	return r, err
}
