package grpc

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/talktojer/ge-sub000/internal/events"
)

// Client calls the bridge service from a collaborator process.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes a unary method, encoding req and decoding the reply into out when provided.
func (c *Client) Call(ctx context.Context, method string, req any, out any, opts ...grpc.CallOption) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, reply, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(reply, out)
}

// Stats fetches the registry sizes as a raw Struct.
func (c *Client) Stats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Stats", &emptypb.Empty{}, reply, opts...); err != nil {
		return nil, err
	}
	return reply, nil
}

// StreamEvents opens an event stream and hands every envelope to fn until the stream ends.
func (c *Client) StreamEvents(ctx context.Context, subscriberID string, kinds []events.Kind, fn func(events.Envelope) error, opts ...grpc.CallOption) error {
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, string(kind))
	}
	in, err := encode(streamRequest{SubscriberID: subscriberID, Kinds: names})
	if err != nil {
		return err
	}
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/StreamEvents", opts...)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		frame := new(structpb.Struct)
		if err := stream.RecvMsg(frame); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		var envelope events.Envelope
		if err := decode(frame, &envelope); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(envelope); err != nil {
			return err
		}
	}
}
